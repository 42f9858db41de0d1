package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"slices"
	"strings"
	"testing"
)

// googleStub はトークンとuserinfoの2つのエンドポイントを模したテストサーバー。
type googleStub struct {
	token    *httptest.Server
	userInfo *httptest.Server
}

func newGoogleStub(t *testing.T, tokenStatus int, userInfo http.HandlerFunc) *googleStub {
	t.Helper()
	token := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if tokenStatus != http.StatusOK {
			w.WriteHeader(tokenStatus)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "stub-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	info := httptest.NewServer(userInfo)
	t.Cleanup(func() {
		token.Close()
		info.Close()
	})
	return &googleStub{token: token, userInfo: info}
}

func (s *googleStub) provider() *GoogleOAuthProvider {
	return NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost:8080/auth/google/callback",
		TokenURL:     s.token.URL,
		UserInfoURL:  s.userInfo.URL,
	})
}

func userInfoJSON(v map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer stub-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(v)
	}
}

func TestGoogleOAuthProvider_GetLoginURL(t *testing.T) {
	provider := NewGoogleOAuthProvider(GoogleOAuthConfig{
		ClientID:    "client-id",
		RedirectURL: "http://localhost:8080/auth/google/callback",
	})

	u, err := url.Parse(provider.GetLoginURL("state-123"))
	if err != nil {
		t.Fatalf("invalid login URL: %v", err)
	}
	if u.Host != "accounts.google.com" {
		t.Errorf("host = %q, want accounts.google.com", u.Host)
	}

	q := u.Query()
	want := map[string]string{
		"client_id":     "client-id",
		"redirect_uri":  "http://localhost:8080/auth/google/callback",
		"state":         "state-123",
		"response_type": "code",
		"prompt":        "select_account",
	}
	for key, v := range want {
		if q.Get(key) != v {
			t.Errorf("%s = %q, want %q", key, q.Get(key), v)
		}
	}
	scopes := strings.Fields(q.Get("scope"))
	for _, s := range []string{"openid", "email", "profile"} {
		if !slices.Contains(scopes, s) {
			t.Errorf("scope %q missing from %v", s, scopes)
		}
	}
}

func TestGoogleOAuthProvider_ExchangeCode_Success(t *testing.T) {
	stub := newGoogleStub(t, http.StatusOK, userInfoJSON(map[string]any{
		"sub":            "google-sub-12345",
		"email":          "alex@example.com",
		"email_verified": true,
		"name":           "Alex Morgan",
		"picture":        "https://lh3.example.com/avatar.png",
	}))

	info, err := stub.provider().ExchangeCode(context.Background(), "auth-code")
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}

	want := OAuthUserInfo{
		ProviderUserID: "google-sub-12345",
		Email:          "alex@example.com",
		Name:           "Alex Morgan",
		AvatarURL:      "https://lh3.example.com/avatar.png",
		Provider:       ProviderGoogle,
	}
	if *info != want {
		t.Errorf("user info = %+v, want %+v", *info, want)
	}
}

// トークン交換とユーザー情報取得のどちらで失敗してもサインインさせない
func TestGoogleOAuthProvider_ExchangeCode_Failures(t *testing.T) {
	tests := []struct {
		name        string
		tokenStatus int
		userInfo    http.HandlerFunc
	}{
		{
			name:        "token endpoint rejects code",
			tokenStatus: http.StatusBadRequest,
			userInfo:    userInfoJSON(map[string]any{"sub": "x", "email_verified": true}),
		},
		{
			name:        "userinfo unauthorized",
			tokenStatus: http.StatusOK,
			userInfo:    func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusUnauthorized) },
		},
		{
			name:        "userinfo malformed",
			tokenStatus: http.StatusOK,
			userInfo:    func(w http.ResponseWriter, r *http.Request) { w.Write([]byte("{not json")) },
		},
		{
			name:        "missing sub",
			tokenStatus: http.StatusOK,
			userInfo:    userInfoJSON(map[string]any{"email": "alex@example.com", "email_verified": true}),
		},
		{
			name:        "unverified email",
			tokenStatus: http.StatusOK,
			userInfo:    userInfoJSON(map[string]any{"sub": "google-sub-1", "email": "alex@example.com", "email_verified": false}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := newGoogleStub(t, tt.tokenStatus, tt.userInfo)
			info, err := stub.provider().ExchangeCode(context.Background(), "auth-code")
			if err == nil {
				t.Fatalf("expected error, got %+v", info)
			}
		})
	}
}
