package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/repository"
)

// mockOAuthProvider はOAuthProviderのモック。
type mockOAuthProvider struct {
	getLoginURLFn  func(state string) string
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, errors.New("not configured")
}

// failingUserRepo はユーザー作成を失敗させる。createdFirst が立つと、
// 並行サインインで相手側が先に作成した状況を再現する。
type failingUserRepo struct {
	*repository.MemoryUserRepo
	createErr    error
	createdFirst *model.Identity
}

func (r *failingUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if r.createdFirst != nil {
		other := &model.User{ID: r.createdFirst.UserID, Name: user.Name}
		if err := r.MemoryUserRepo.CreateWithIdentity(ctx, other, r.createdFirst); err != nil {
			return err
		}
	}
	return r.createErr
}

type authFixture struct {
	svc      *Service
	users    *repository.MemoryUserRepo
	sessions *repository.MemorySessionRepo
	now      time.Time
}

// newAuthFixture はメモリ上のリポジトリで認証サービスを組み立てる。
func newAuthFixture(oauth OAuthProvider) *authFixture {
	f := &authFixture{
		users:    repository.NewMemoryUserRepo(),
		sessions: repository.NewMemorySessionRepo(),
		now:      time.Now().Truncate(time.Second),
	}
	f.svc = NewService(oauth, f.users, f.users, f.sessions, ServiceConfig{SessionMaxAge: 3600})
	f.svc.now = func() time.Time { return f.now }
	return f
}

func googleUser(sub string) *mockOAuthProvider {
	return &mockOAuthProvider{
		exchangeCodeFn: func(ctx context.Context, code string) (*OAuthUserInfo, error) {
			if code != "good-code" {
				return nil, errors.New("invalid_grant")
			}
			return &OAuthUserInfo{
				ProviderUserID: sub,
				Email:          "alex@example.com",
				Name:           "Alex Morgan",
				AvatarURL:      "https://example.com/a.png",
				Provider:       ProviderGoogle,
			}, nil
		},
	}
}

func TestService_GetLoginURL(t *testing.T) {
	svc := NewService(&mockOAuthProvider{
		getLoginURLFn: func(state string) string { return "https://accounts.google.com/o/oauth2/auth?state=" + state },
	}, nil, nil, nil, ServiceConfig{})

	if got := svc.GetLoginURL("s1"); got != "https://accounts.google.com/o/oauth2/auth?state=s1" {
		t.Errorf("GetLoginURL() = %q", got)
	}
	if !svc.OAuthEnabled() {
		t.Error("OAuthEnabled() = false, want true")
	}

	disabled := NewService(nil, nil, nil, nil, ServiceConfig{})
	if disabled.OAuthEnabled() || disabled.GetLoginURL("s1") != "" {
		t.Error("service without provider should have OAuth disabled")
	}
}

// 初回サインインでユーザーとidentityを作り、2回目は同じユーザーになる
func TestService_HandleCallback_FirstAndReturningSignIn(t *testing.T) {
	f := newAuthFixture(googleUser("google-sub-1"))
	ctx := context.Background()

	first, err := f.svc.HandleCallback(ctx, "good-code")
	if err != nil {
		t.Fatalf("first HandleCallback: %v", err)
	}
	if first.Claims.Name != "Alex Morgan" || first.Claims.Email != "alex@example.com" {
		t.Errorf("claims = %+v", first.Claims)
	}
	if want := f.now.Add(time.Hour); !first.Session.ExpiresAt.Equal(want) {
		t.Errorf("ExpiresAt = %v, want %v", first.Session.ExpiresAt, want)
	}

	user, err := f.users.FindByID(ctx, first.Session.UserID)
	if err != nil || user == nil {
		t.Fatalf("created user = %v, %v", user, err)
	}
	if user.AvatarURL != "https://example.com/a.png" {
		t.Errorf("AvatarURL = %q", user.AvatarURL)
	}
	ident, _ := f.users.FindByProviderAndProviderUserID(ctx, ProviderGoogle, "google-sub-1")
	if ident == nil || ident.UserID != user.ID {
		t.Fatalf("identity = %+v, want owned by %s", ident, user.ID)
	}

	second, err := f.svc.HandleCallback(ctx, "good-code")
	if err != nil {
		t.Fatalf("second HandleCallback: %v", err)
	}
	if second.Session.UserID != first.Session.UserID {
		t.Errorf("returning user id = %q, want %q", second.Session.UserID, first.Session.UserID)
	}
	if second.Session.ID == first.Session.ID {
		t.Error("each sign-in should issue a new session")
	}
}

func TestService_HandleCallback_Errors(t *testing.T) {
	t.Run("oauth disabled", func(t *testing.T) {
		_, err := newAuthFixture(nil).svc.HandleCallback(context.Background(), "good-code")
		if !errors.Is(err, ErrOAuthDisabled) {
			t.Errorf("err = %v, want ErrOAuthDisabled", err)
		}
	})

	t.Run("code rejected", func(t *testing.T) {
		f := newAuthFixture(googleUser("google-sub-1"))
		if _, err := f.svc.HandleCallback(context.Background(), "bad-code"); err == nil {
			t.Fatal("expected error")
		}
		if n, _ := f.sessions.DeleteExpired(context.Background()); n != 0 {
			t.Errorf("no session should have been stored")
		}
	})

	t.Run("user creation fails", func(t *testing.T) {
		f := newAuthFixture(googleUser("google-sub-1"))
		repo := &failingUserRepo{MemoryUserRepo: f.users, createErr: errors.New("db down")}
		f.svc.userRepo = repo
		if _, err := f.svc.HandleCallback(context.Background(), "good-code"); err == nil {
			t.Fatal("expected error")
		}
	})
}

// 並行サインインで作成が一意制約に負けても、先に作られたユーザーでサインインできる
func TestService_HandleCallback_ConcurrentFirstSignIn(t *testing.T) {
	f := newAuthFixture(googleUser("google-sub-1"))
	winner := &model.Identity{ID: "ident-w", UserID: "user-winner", Provider: ProviderGoogle, ProviderUserID: "google-sub-1"}
	f.svc.userRepo = &failingUserRepo{
		MemoryUserRepo: f.users,
		createErr:      errors.New("duplicate key value violates unique constraint"),
		createdFirst:   winner,
	}

	login, err := f.svc.HandleCallback(context.Background(), "good-code")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}
	if login.Session.UserID != "user-winner" {
		t.Errorf("UserID = %q, want user-winner", login.Session.UserID)
	}
}

func TestService_GuestLogin(t *testing.T) {
	f := newAuthFixture(nil)
	ctx := context.Background()

	a, err := f.svc.GuestLogin(ctx)
	if err != nil {
		t.Fatalf("GuestLogin: %v", err)
	}
	b, err := f.svc.GuestLogin(ctx)
	if err != nil {
		t.Fatalf("GuestLogin: %v", err)
	}
	// ゲストは毎回別ユーザー
	if a.Session.UserID == b.Session.UserID {
		t.Error("guest sign-ins should create distinct users")
	}
	if a.Claims != (model.IdentityClaims{}) {
		t.Errorf("guest claims = %+v, want empty", a.Claims)
	}
	user, _ := f.users.FindByID(ctx, a.Session.UserID)
	if user == nil || user.Name != "Guest" {
		t.Errorf("guest user = %+v", user)
	}
}

func TestService_GuestLogin_UserCreationError(t *testing.T) {
	f := newAuthFixture(nil)
	f.svc.userRepo = &failingUserRepo{MemoryUserRepo: f.users, createErr: errors.New("db down")}

	if _, err := f.svc.GuestLogin(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestService_Logout(t *testing.T) {
	f := newAuthFixture(nil)
	ctx := context.Background()
	login, err := f.svc.GuestLogin(ctx)
	if err != nil {
		t.Fatalf("GuestLogin: %v", err)
	}

	if err := f.svc.Logout(ctx, ""); err == nil {
		t.Error("Logout with empty session id should fail")
	}
	if err := f.svc.Logout(ctx, login.Session.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := f.svc.GetCurrentUser(ctx, login.Session.ID); !errors.Is(err, ErrNoSession) {
		t.Errorf("GetCurrentUser after logout err = %v, want ErrNoSession", err)
	}
}

func TestService_GetCurrentUser(t *testing.T) {
	f := newAuthFixture(googleUser("google-sub-1"))
	ctx := context.Background()
	login, err := f.svc.HandleCallback(ctx, "good-code")
	if err != nil {
		t.Fatalf("HandleCallback: %v", err)
	}

	user, err := f.svc.GetCurrentUser(ctx, login.Session.ID)
	if err != nil {
		t.Fatalf("GetCurrentUser: %v", err)
	}
	if user.Email != "alex@example.com" {
		t.Errorf("Email = %q", user.Email)
	}

	if _, err := f.svc.GetCurrentUser(ctx, ""); err == nil {
		t.Error("empty session id should fail")
	}

	// 期限を過ぎたセッション
	f.now = f.now.Add(2 * time.Hour)
	if _, err := f.svc.GetCurrentUser(ctx, login.Session.ID); !errors.Is(err, ErrNoSession) {
		t.Errorf("expired session err = %v, want ErrNoSession", err)
	}
}

// 退会済みユーザーのセッションは無効として扱う
func TestService_GetCurrentUser_DeletedUser(t *testing.T) {
	f := newAuthFixture(nil)
	ctx := context.Background()
	login, err := f.svc.GuestLogin(ctx)
	if err != nil {
		t.Fatalf("GuestLogin: %v", err)
	}
	if err := f.users.DeleteByID(ctx, login.Session.UserID); err != nil {
		t.Fatalf("DeleteByID: %v", err)
	}

	if _, err := f.svc.GetCurrentUser(ctx, login.Session.ID); !errors.Is(err, ErrNoSession) {
		t.Errorf("err = %v, want ErrNoSession", err)
	}
}
