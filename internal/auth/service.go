// Package auth はOAuth認証フロー、ゲストサインイン、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/repository"
)

// IdPの識別子
const (
	ProviderGoogle = "google"
	ProviderGuest  = "guest"
)

var (
	// ErrOAuthDisabled はOAuthプロバイダーが設定されていない場合のエラー。
	ErrOAuthDisabled = errors.New("oauth provider is not configured")
	// ErrNoSession はセッションが無いか期限切れであることを表す。
	ErrNoSession = errors.New("session not found or expired")
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Name           string
	AvatarURL      string
	Provider       string // "google" 等
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Login はサインイン結果。Claims はストアのプロフィール初期値に使う。
type Login struct {
	Session *model.Session
	Claims  model.IdentityClaims
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	userRepo    repository.UserRepository
	identRepo   repository.IdentityRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。oauthがnilの場合はゲストサインインのみ使える。
func NewService(
	oauth OAuthProvider,
	userRepo repository.UserRepository,
	identRepo repository.IdentityRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		userRepo:    userRepo,
		identRepo:   identRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// OAuthEnabled はOAuthサインインが使えるかを返す。
func (s *Service) OAuthEnabled() bool {
	return s.oauth != nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	if s.oauth == nil {
		return ""
	}
	return s.oauth.GetLoginURL(state)
}

// HandleCallback は認可コードを検証してセッションを発行する。
// 初回サインインならusersとidentitiesを作成し、以降はidentityから既存ユーザーを引く。
func (s *Service) HandleCallback(ctx context.Context, code string) (*Login, error) {
	if s.oauth == nil {
		return nil, ErrOAuthDisabled
	}

	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	userID, err := s.resolveUser(ctx, info)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &Login{
		Session: session,
		Claims: model.IdentityClaims{
			Name:      info.Name,
			Email:     info.Email,
			AvatarURL: info.AvatarURL,
		},
	}, nil
}

// resolveUser はIdPのアカウントに対応するユーザーIDを返す。無ければ作成する。
func (s *Service) resolveUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	log := slog.With(slog.String("provider", info.Provider))

	identity, err := s.identRepo.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return "", fmt.Errorf("failed to find identity: %w", err)
	}
	if identity != nil {
		log.Info("existing user logged in", slog.String("user_id", identity.UserID))
		return identity.UserID, nil
	}

	userID, createErr := s.createUser(ctx, info)
	if createErr == nil {
		log.Info("new user created", slog.String("user_id", userID))
		return userID, nil
	}

	// 同じアカウントの初回サインインが並行すると一方の作成は一意制約で失敗する
	identity, err = s.identRepo.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err == nil && identity != nil {
		log.Info("user created by concurrent sign-in", slog.String("user_id", identity.UserID))
		return identity.UserID, nil
	}
	return "", createErr
}

// GuestLogin はゲストユーザーを作成してセッションを発行する。
// ゲストはサインインのたびに別ユーザーとして扱う。
func (s *Service) GuestLogin(ctx context.Context) (*Login, error) {
	info := &OAuthUserInfo{
		ProviderUserID: uuid.NewString(),
		Name:           "Guest",
		Provider:       ProviderGuest,
	}
	userID, err := s.createUser(ctx, info)
	if err != nil {
		return nil, err
	}

	session, err := s.createSession(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("guest user logged in", slog.String("user_id", userID))
	return &Login{Session: session}, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil || session.Expired(s.now()) {
		return nil, ErrNoSession
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// 退会済みユーザーのセッションが残っていた
		return nil, ErrNoSession
	}

	return user, nil
}

// createUser はusersレコードとidentitiesレコードを同時に作成し、ユーザーIDを返す。
func (s *Service) createUser(ctx context.Context, info *OAuthUserInfo) (string, error) {
	now := s.now()
	user := &model.User{
		ID:        uuid.NewString(),
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.AvatarURL,
		CreatedAt: now,
		UpdatedAt: now,
	}
	identity := &model.Identity{
		ID:             uuid.NewString(),
		UserID:         user.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}

	if err := s.userRepo.CreateWithIdentity(ctx, user, identity); err != nil {
		return "", fmt.Errorf("failed to create user and identity: %w", err)
	}
	return user.ID, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
