package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobassist/internal/model"
)

const (
	// csrfCookieName はフロントエンドがJavaScriptで読むため HttpOnly にしない。
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"

	csrfTokenMaxAge = 24 * 60 * 60
)

var (
	errCSRFCookieMissing = errors.New("missing cookie token")
	errCSRFHeaderMissing = errors.New("missing header token")
	errCSRFMismatch      = errors.New("token mismatch")
)

var errCSRFInvalid = &model.APIError{
	Code:     "CSRF_INVALID",
	Message:  "リクエストを検証できませんでした。",
	Category: "auth",
	Action:   "ページを再読み込みしてから再度お試しください。",
}

// CSRFConfig はCSRFトークンCookieの属性。
type CSRFConfig struct {
	CookieSecure bool
	CookieDomain string
}

// csrfTokens はダブルサブミットCookie方式のトークンを発行、検証する。
type csrfTokens struct {
	config CSRFConfig
}

// current はリクエストに付いているトークンを返し、無ければ発行してCookieに設定する。
func (c csrfTokens) current(w http.ResponseWriter, r *http.Request) (string, error) {
	if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, nil
	}
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	token := hex.EncodeToString(buf)
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		Domain:   c.config.CookieDomain,
		MaxAge:   csrfTokenMaxAge,
		Secure:   c.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	return token, nil
}

// verify は Cookie と X-CSRF-Token ヘッダーが一致するかを確かめる。
func (c csrfTokens) verify(r *http.Request) error {
	cookie, err := r.Cookie(csrfCookieName)
	if err != nil || cookie.Value == "" {
		return errCSRFCookieMissing
	}
	header := r.Header.Get(csrfHeaderName)
	if header == "" {
		return errCSRFHeaderMissing
	}
	if subtle.ConstantTimeCompare([]byte(cookie.Value), []byte(header)) != 1 {
		return errCSRFMismatch
	}
	return nil
}

// NewCSRFMiddleware はCSRF対策ミドルウェアを返す。
// GET, HEAD, OPTIONS は検証せず、トークンCookieが無ければ発行する。
// それ以外は Cookie と X-CSRF-Token ヘッダーの一致を要求し、不一致は403を返す。
func NewCSRFMiddleware(config CSRFConfig) func(next http.Handler) http.Handler {
	tokens := csrfTokens{config: config}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				if _, err := tokens.current(w, r); err != nil {
					slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
				}
				next.ServeHTTP(w, r)
				return
			}

			if err := tokens.verify(r); err != nil {
				slog.Warn("CSRF validation failed",
					slog.String("reason", err.Error()),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("request_id", RequestIDFromContext(r.Context())),
				)
				WriteErrorResponse(w, http.StatusForbidden, errCSRFInvalid)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NewCSRFTokenHandler は GET /api/csrf-token のハンドラーを返す。
// 既存のトークンがあればそれを、なければ新しく発行して {"token": ...} で返す。
func NewCSRFTokenHandler(config CSRFConfig) http.Handler {
	tokens := csrfTokens{config: config}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := tokens.current(w, r)
		if err != nil {
			slog.Error("failed to generate CSRF token", slog.String("error", err.Error()))
			WriteInternalServerError(w)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"token": token})
	})
}
