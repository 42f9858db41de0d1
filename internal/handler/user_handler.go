package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/jobassist/internal/middleware"
	"github.com/hitoshi/jobassist/internal/model"
)

// UserServiceInterface はアカウント操作のサービス。user.Service が満たす。
type UserServiceInterface interface {
	// Withdraw は応募管理、ウィッシュリスト、セッション、ユーザーを削除する。
	Withdraw(ctx context.Context, userID string) error
	// Export はアカウントと保存データをまとめて返す。
	Export(ctx context.Context, userID string) (*model.AccountExport, error)
}

// UserHandler は /api/users 配下のハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{service: service}
}

// Withdraw は退会してセッションCookieを消す。
// DELETE /api/users/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), userID); err != nil {
		handleServiceError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Export は自分のデータをJSONファイルとしてダウンロードさせる。
// GET /api/users/me/export
func (h *UserHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUserID(w, r)
	if !ok {
		return
	}

	data, err := h.service.Export(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="jobassist-export-%s.json"`, data.ExportedAt.Format("20060102")))
	writeJSON(w, http.StatusOK, data)
}

func requireUserID(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, errUnauthorized)
		return "", false
	}
	return userID, true
}
