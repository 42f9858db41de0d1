package handler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/jobassist/internal/auth"
	"github.com/hitoshi/jobassist/internal/model"
)

// --- モック定義 ---

type mockAuthService struct {
	oauthDisabled    bool
	getLoginURLFn    func(state string) string
	handleCallbackFn func(ctx context.Context, code string) (*auth.Login, error)
	guestLoginFn     func(ctx context.Context) (*auth.Login, error)
	logoutFn         func(ctx context.Context, sessionID string) error
	getCurrentUserFn func(ctx context.Context, sessionID string) (*model.User, error)
}

func (m *mockAuthService) OAuthEnabled() bool {
	return !m.oauthDisabled
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*auth.Login, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, errors.New("not configured")
}

func (m *mockAuthService) GuestLogin(ctx context.Context) (*auth.Login, error) {
	if m.guestLoginFn != nil {
		return m.guestLoginFn(ctx)
	}
	return nil, errors.New("not configured")
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

func (m *mockAuthService) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if m.getCurrentUserFn != nil {
		return m.getCurrentUserFn(ctx, sessionID)
	}
	return nil, errors.New("no session")
}

func testLogin(userID string) *auth.Login {
	return &auth.Login{
		Session: &model.Session{
			ID:        "session-id-abc",
			UserID:    userID,
			ExpiresAt: time.Now().Add(24 * time.Hour),
		},
		Claims: model.IdentityClaims{Name: "Taro Yamada", Email: "taro@example.com"},
	}
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// --- テスト ---

func TestAuthHandler_Login_RedirectsToOAuthURL(t *testing.T) {
	svc := &mockAuthService{
		getLoginURLFn: func(state string) string {
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}
	h := NewAuthHandler(svc, newTestRegistry(t, nil, false), AuthHandlerConfig{
		BaseURL:       "http://localhost:3000",
		SessionMaxAge: 86400,
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	w := httptest.NewRecorder()

	h.Login(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if location := resp.Header.Get("Location"); !strings.Contains(location, "accounts.google.com") {
		t.Errorf("Location = %q, should contain google oauth URL", location)
	}
	if c := findCookie(resp, "oauth_state"); c == nil || c.Value == "" {
		t.Error("expected oauth_state cookie to be set")
	}
}

// TestAuthHandler_Login_OAuthDisabled_ReturnsNotFound はOAuth未設定時にログインを開始しないことを検証する。
func TestAuthHandler_Login_OAuthDisabled_ReturnsNotFound(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{oauthDisabled: true}, newTestRegistry(t, nil, false), AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/login", nil)
	w := httptest.NewRecorder()

	h.Login(w, req)

	assertErrorCode(t, w, http.StatusNotFound, "OAUTH_DISABLED")
}

// TestAuthHandler_Callback_Success_SetsCookieAndOpensStore はコールバック成功時に
// セッションCookieを設定し、クレームでシードしたストアを生成することを検証する。
func TestAuthHandler_Callback_Success_SetsCookieAndOpensStore(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*auth.Login, error) {
			return testLogin("user-id-123"), nil
		},
	}
	reg := newTestRegistry(t, nil, false)
	h := NewAuthHandler(svc, reg, AuthHandlerConfig{
		BaseURL:       "http://localhost:3000",
		SessionMaxAge: 86400,
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=test-code&state=test-state", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "test-state"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if location := resp.Header.Get("Location"); location != "http://localhost:3000" {
		t.Errorf("Location = %q, want %q", location, "http://localhost:3000")
	}

	sessionCookie := findCookie(resp, "session_id")
	if sessionCookie == nil {
		t.Fatal("expected session_id cookie to be set")
	}
	if sessionCookie.Value != "session-id-abc" {
		t.Errorf("session cookie value = %q, want %q", sessionCookie.Value, "session-id-abc")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if sessionCookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("session cookie SameSite = %v, want %v", sessionCookie.SameSite, http.SameSiteLaxMode)
	}

	if reg.Len() != 1 {
		t.Fatalf("registry Len = %d, want 1", reg.Len())
	}
	st, _ := reg.Get(context.Background(), "user-id-123")
	if got := st.Profile().Name; got != "Taro Yamada" {
		t.Errorf("profile name = %q, want %q", got, "Taro Yamada")
	}
	reg.Close("user-id-123")
}

func TestAuthHandler_Callback_MissingCode_ReturnsBadRequest(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, newTestRegistry(t, nil, false), AuthHandlerConfig{
		BaseURL: "http://localhost:3000",
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?state=s1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "s1"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	assertErrorCode(t, w, http.StatusBadRequest, "MISSING_AUTH_CODE")
}

// 空のstateはCookieが空でも一致とみなさない
func TestAuthHandler_Callback_EmptyState_ReturnsBadRequest(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, newTestRegistry(t, nil, false), AuthHandlerConfig{
		BaseURL: "http://localhost:3000",
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=c", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: ""})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_OAUTH_STATE")
}

// 同意画面で拒否されたらフロントエンドに理由付きで戻す
func TestAuthHandler_Callback_AccessDenied_RedirectsWithReason(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*auth.Login, error) {
			t.Error("HandleCallback should not be called")
			return nil, errors.New("unexpected")
		},
	}
	h := NewAuthHandler(svc, newTestRegistry(t, nil, false), AuthHandlerConfig{
		BaseURL: "http://localhost:3000/app",
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?error=access_denied&state=s1", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "s1"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	if got := resp.Header.Get("Location"); got != "http://localhost:3000/app?auth_error=access_denied" {
		t.Errorf("Location = %q", got)
	}
	if c := findCookie(resp, "oauth_state"); c == nil || c.MaxAge >= 0 {
		t.Error("oauth_state cookie should be cleared")
	}
	if c := findCookie(resp, "session_id"); c != nil {
		t.Error("session cookie must not be set")
	}
}

func TestAuthHandler_Callback_StateMismatch_ReturnsBadRequest(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, newTestRegistry(t, nil, false), AuthHandlerConfig{
		BaseURL: "http://localhost:3000",
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=test-code&state=wrong-state", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "correct-state"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	assertErrorCode(t, w, http.StatusBadRequest, "INVALID_OAUTH_STATE")
}

func TestAuthHandler_Callback_AuthServiceError_ReturnsInternalError(t *testing.T) {
	svc := &mockAuthService{
		handleCallbackFn: func(ctx context.Context, code string) (*auth.Login, error) {
			return nil, errors.New("auth failed")
		},
	}
	reg := newTestRegistry(t, nil, false)
	h := NewAuthHandler(svc, reg, AuthHandlerConfig{
		BaseURL: "http://localhost:3000",
	})

	req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=bad-code&state=test-state", nil)
	req.AddCookie(&http.Cookie{Name: "oauth_state", Value: "test-state"})
	w := httptest.NewRecorder()

	h.Callback(w, req)

	assertErrorCode(t, w, http.StatusInternalServerError, "SIGN_IN_FAILED")
	if reg.Len() != 0 {
		t.Errorf("registry Len = %d, want 0", reg.Len())
	}
}

// TestAuthHandler_Guest_CreatesSessionAndStore はゲストサインインでセッションとストアを作ることを検証する。
func TestAuthHandler_Guest_CreatesSessionAndStore(t *testing.T) {
	svc := &mockAuthService{
		guestLoginFn: func(ctx context.Context) (*auth.Login, error) {
			l := testLogin("guest-1")
			l.Claims = model.IdentityClaims{}
			return l, nil
		},
	}
	reg := newTestRegistry(t, nil, true)
	h := NewAuthHandler(svc, reg, AuthHandlerConfig{GuestEnabled: true, SessionMaxAge: 3600})

	req := httptest.NewRequest(http.MethodPost, "/auth/guest", nil)
	w := httptest.NewRecorder()

	h.Guest(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusCreated)
	}
	body := decodeBody[map[string]string](t, w)
	if body["id"] != "guest-1" {
		t.Errorf("id = %q, want %q", body["id"], "guest-1")
	}
	if c := findCookie(w.Result(), "session_id"); c == nil || c.MaxAge != 3600 {
		t.Errorf("session cookie = %+v, want MaxAge 3600", c)
	}

	// デモモードでは見本の応募管理データが入る
	st, _ := reg.Get(context.Background(), "guest-1")
	if len(st.Tracked()) != 3 {
		t.Errorf("tracked = %d, want 3", len(st.Tracked()))
	}
	reg.Close("guest-1")
}

func TestAuthHandler_Guest_Disabled_ReturnsForbidden(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, newTestRegistry(t, nil, false), AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodPost, "/auth/guest", nil)
	w := httptest.NewRecorder()

	h.Guest(w, req)

	assertErrorCode(t, w, http.StatusForbidden, "GUEST_DISABLED")
}

// TestAuthHandler_Logout_Success_ClearsCookieAndClosesStore はログアウトでストアを破棄することを検証する。
func TestAuthHandler_Logout_Success_ClearsCookieAndClosesStore(t *testing.T) {
	var loggedOut string
	svc := &mockAuthService{
		logoutFn: func(ctx context.Context, sessionID string) error {
			loggedOut = sessionID
			return nil
		},
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return &model.User{ID: testUserID}, nil
		},
	}
	reg := newTestRegistry(t, nil, false)
	openTestStore(t, reg)
	h := NewAuthHandler(svc, reg, AuthHandlerConfig{BaseURL: "http://localhost:3000"})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "session-to-logout"})
	w := httptest.NewRecorder()

	h.Logout(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusTemporaryRedirect)
	}
	sessionCookie := findCookie(resp, "session_id")
	if sessionCookie == nil {
		t.Fatal("expected session_id cookie to be cleared")
	}
	if sessionCookie.MaxAge != -1 {
		t.Errorf("session cookie MaxAge = %d, want -1 (delete)", sessionCookie.MaxAge)
	}
	if loggedOut != "session-to-logout" {
		t.Errorf("logged out session = %q, want %q", loggedOut, "session-to-logout")
	}
	if reg.Len() != 0 {
		t.Errorf("registry Len = %d, want 0 after logout", reg.Len())
	}
}

func TestAuthHandler_Logout_NoSession_StillRedirects(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, newTestRegistry(t, nil, false), AuthHandlerConfig{
		BaseURL: "http://localhost:3000",
	})

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	w := httptest.NewRecorder()

	h.Logout(w, req)

	if w.Code != http.StatusTemporaryRedirect {
		t.Errorf("status = %d, want %d", w.Code, http.StatusTemporaryRedirect)
	}
}

func TestAuthHandler_Me_Authenticated_ReturnsUserJSON(t *testing.T) {
	svc := &mockAuthService{
		getCurrentUserFn: func(ctx context.Context, sessionID string) (*model.User, error) {
			return &model.User{
				ID:        "user-id-me",
				Email:     "me@example.com",
				Name:      "Me User",
				AvatarURL: "https://example.com/me.png",
			}, nil
		},
	}
	h := NewAuthHandler(svc, newTestRegistry(t, nil, false), AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session"})
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}
	body := decodeBody[map[string]string](t, w)
	if body["avatarUrl"] != "https://example.com/me.png" {
		t.Errorf("avatarUrl = %q", body["avatarUrl"])
	}
}

func TestAuthHandler_Me_NoSession_ReturnsUnauthorized(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, newTestRegistry(t, nil, false), AuthHandlerConfig{})

	req := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	w := httptest.NewRecorder()

	h.Me(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
