package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobassist/internal/middleware"
	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/store"
)

// StoreRegistry はユーザーごとのストアを管理するインターフェース。
// store.Registry が満たす。
type StoreRegistry interface {
	// Open はサインイン時にストアを(再)生成してシードする。
	Open(ctx context.Context, userID string, claims model.IdentityClaims) (*store.Store, error)
	// Get はユーザーのストアを返す。未生成なら生成する。
	Get(ctx context.Context, userID string) (*store.Store, error)
	// Close はサインアウト時にストアを破棄する。
	Close(userID string)
}

// currentStore はリクエストのユーザーに対応するストアを返す。
// 取得できない場合はエラーレスポンスを書き込みfalseを返す。
func currentStore(w http.ResponseWriter, r *http.Request, registry StoreRegistry) (*store.Store, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, errUnauthorized)
		return nil, false
	}

	st, err := registry.Get(r.Context(), userID)
	if err != nil {
		slog.Error("ストアの取得に失敗しました",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return nil, false
	}
	return st, true
}
