// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/jobassist/internal/auth"
	"github.com/hitoshi/jobassist/internal/model"
)

const (
	sessionCookieName = "session_id"
	oauthStateCookie  = "oauth_state"
	oauthStateMaxAge  = 10 * 60
)

var (
	errOAuthDisabled = &model.APIError{
		Code:     "OAUTH_DISABLED",
		Message:  "Googleログインは設定されていません。",
		Category: "auth",
		Action:   "ゲストとしてサインインしてください。",
	}
	errGuestDisabled = &model.APIError{
		Code:     "GUEST_DISABLED",
		Message:  "ゲストサインインは無効です。",
		Category: "auth",
		Action:   "Googleアカウントでログインしてください。",
	}
	errInvalidOAuthState = &model.APIError{
		Code:     "INVALID_OAUTH_STATE",
		Message:  "ログインの有効期限が切れたか、不正なリクエストです。",
		Category: "auth",
		Action:   "もう一度ログインしてください。",
	}
	errMissingAuthCode = &model.APIError{
		Code:     "MISSING_AUTH_CODE",
		Message:  "認可コードがありません。",
		Category: "auth",
		Action:   "もう一度ログインしてください。",
	}
	errSignInFailed = &model.APIError{
		Code:     "SIGN_IN_FAILED",
		Message:  "サインインに失敗しました。",
		Category: "system",
		Action:   "時間をおいて再度お試しください。",
	}
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	OAuthEnabled() bool
	GetLoginURL(state string) string
	HandleCallback(ctx context.Context, code string) (*auth.Login, error)
	GuestLogin(ctx context.Context) (*auth.Login, error)
	Logout(ctx context.Context, sessionID string) error
	GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	BaseURL       string
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
	GuestEnabled  bool
}

// AuthHandler はサインイン、サインアウトを扱う。
// サインインでユーザーのストアを開き、サインアウトで閉じる。
type AuthHandler struct {
	service  AuthServiceInterface
	registry StoreRegistry
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, registry StoreRegistry, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		registry: registry,
		config:   config,
	}
}

// cookie はHttpOnlyのCookieを組み立てる。maxAge が負ならCookieを消す。
func (h *AuthHandler) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	}
}

// Login はGoogle OAuthフローを開始する。
// GET /auth/google/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if !h.service.OAuthEnabled() {
		writeAPIErrorResponse(w, http.StatusNotFound, errOAuthDisabled)
		return
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, errSignInFailed)
		return
	}
	state := hex.EncodeToString(buf)

	http.SetCookie(w, h.cookie(oauthStateCookie, state, oauthStateMaxAge))
	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
//
// 利用者が同意画面で拒否した場合は error パラメータが付くので、
// フロントエンドへ ?auth_error=<理由> 付きで戻す。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	state := query.Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		slog.Warn("oauth state mismatch", slog.Bool("has_cookie", err == nil))
		writeAPIErrorResponse(w, http.StatusBadRequest, errInvalidOAuthState)
		return
	}
	http.SetCookie(w, h.cookie(oauthStateCookie, "", -1))

	if reason := query.Get("error"); reason != "" {
		slog.Info("oauth sign-in was not completed", slog.String("reason", reason))
		http.Redirect(w, r, h.frontendURL(reason), http.StatusTemporaryRedirect)
		return
	}

	code := query.Get("code")
	if code == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, errMissingAuthCode)
		return
	}

	login, err := h.service.HandleCallback(r.Context(), code)
	switch {
	case errors.Is(err, auth.ErrOAuthDisabled):
		writeAPIErrorResponse(w, http.StatusNotFound, errOAuthDisabled)
		return
	case err != nil:
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, errSignInFailed)
		return
	}

	if !h.openStore(w, r, login) {
		return
	}
	http.SetCookie(w, h.cookie(sessionCookieName, login.Session.ID, h.config.SessionMaxAge))
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

// frontendURL は BaseURL に auth_error を付けたURLを返す。
func (h *AuthHandler) frontendURL(authError string) string {
	u, err := url.Parse(h.config.BaseURL)
	if err != nil {
		return h.config.BaseURL
	}
	q := u.Query()
	q.Set("auth_error", authError)
	u.RawQuery = q.Encode()
	return u.String()
}

// Guest はゲストとしてサインインする。
// POST /auth/guest
func (h *AuthHandler) Guest(w http.ResponseWriter, r *http.Request) {
	if !h.config.GuestEnabled {
		writeAPIErrorResponse(w, http.StatusForbidden, errGuestDisabled)
		return
	}

	login, err := h.service.GuestLogin(r.Context())
	if err != nil {
		slog.Error("guest login failed", slog.String("error", err.Error()))
		writeAPIErrorResponse(w, http.StatusInternalServerError, errSignInFailed)
		return
	}
	if !h.openStore(w, r, login) {
		return
	}

	http.SetCookie(w, h.cookie(sessionCookieName, login.Session.ID, h.config.SessionMaxAge))
	writeJSON(w, http.StatusCreated, map[string]string{"id": login.Session.UserID})
}

// Logout はストアを閉じてからセッションを削除する。
// セッションの削除に失敗してもCookieは消す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if user, err := h.service.GetCurrentUser(r.Context(), cookie.Value); err == nil && user != nil {
			h.registry.Close(user.ID)
		}
		if err := h.service.Logout(r.Context(), cookie.Value); err != nil {
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	http.SetCookie(w, h.cookie(sessionCookieName, "", -1))
	http.Redirect(w, r, h.config.BaseURL, http.StatusTemporaryRedirect)
}

type meResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl"`
}

// Me は現在のログインユーザーを返す。
// GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, http.StatusUnauthorized, errUnauthorized)
		return
	}

	user, err := h.service.GetCurrentUser(r.Context(), cookie.Value)
	if err != nil {
		if !errors.Is(err, auth.ErrNoSession) {
			slog.Error("failed to get current user", slog.String("error", err.Error()))
		}
		writeAPIErrorResponse(w, http.StatusUnauthorized, errUnauthorized)
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		AvatarURL: user.AvatarURL,
	})
}

func (h *AuthHandler) openStore(w http.ResponseWriter, r *http.Request, login *auth.Login) bool {
	if _, err := h.registry.Open(r.Context(), login.Session.UserID, login.Claims); err != nil {
		slog.Error("failed to open store",
			slog.String("user_id", login.Session.UserID),
			slog.String("error", err.Error()),
		)
		writeAPIErrorResponse(w, http.StatusInternalServerError, errSignInFailed)
		return false
	}
	return true
}
