package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/jobassist/internal/model"
)

// MemoryUserRepo はDATABASE_URL未設定時（デモモード）に使うメモリ上のユーザーリポジトリ。
// UserRepository と IdentityRepository の両方を満たす。プロセス終了で内容は失われる。
type MemoryUserRepo struct {
	mu         sync.RWMutex
	users      map[string]model.User
	identities map[string]model.Identity // key: provider + "\x00" + provider_user_id
}

// NewMemoryUserRepo はMemoryUserRepoを生成する。
func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{
		users:      make(map[string]model.User),
		identities: make(map[string]model.Identity),
	}
}

func identityKey(provider, providerUserID string) string {
	return provider + "\x00" + providerUserID
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *MemoryUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// CreateWithIdentity はユーザーとidentityを作成する。
func (r *MemoryUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := identityKey(identity.Provider, identity.ProviderUserID)
	if _, exists := r.identities[key]; exists {
		return fmt.Errorf("failed to insert identity: duplicate %s", identity.Provider)
	}
	r.users[user.ID] = *user
	r.identities[key] = *identity
	return nil
}

// DeleteByID は指定IDのユーザーと紐づくidentityを削除する。
func (r *MemoryUserRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	delete(r.users, id)
	for k, ident := range r.identities {
		if ident.UserID == id {
			delete(r.identities, k)
		}
	}
	return nil
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
func (r *MemoryUserRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ident, ok := r.identities[identityKey(provider, providerUserID)]
	if !ok {
		return nil, nil
	}
	return &ident, nil
}

// MemorySessionRepo はデモモードで使うメモリ上のセッションリポジトリ。
type MemorySessionRepo struct {
	mu       sync.RWMutex
	sessions map[string]model.Session
	now      func() time.Time
}

// NewMemorySessionRepo はMemorySessionRepoを生成する。
func NewMemorySessionRepo() *MemorySessionRepo {
	return &MemorySessionRepo{
		sessions: make(map[string]model.Session),
		now:      time.Now,
	}
}

// Create はセッションを作成する。
func (r *MemorySessionRepo) Create(ctx context.Context, session *model.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[session.ID] = *session
	return nil
}

// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
func (r *MemorySessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok || s.Expired(r.now()) {
		return nil, nil
	}
	return &s, nil
}

// DeleteByID は指定IDのセッションを削除する。
func (r *MemorySessionRepo) DeleteByID(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
	return nil
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *MemorySessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.UserID == userID {
			delete(r.sessions, id)
		}
	}
	return nil
}

// DeleteExpired は期限切れのセッションを削除し、削除件数を返す。
func (r *MemorySessionRepo) DeleteExpired(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now()
	var n int64
	for id, s := range r.sessions {
		if s.Expired(now) {
			delete(r.sessions, id)
			n++
		}
	}
	return n, nil
}

// compile-time interface check
var (
	_ UserRepository     = (*MemoryUserRepo)(nil)
	_ IdentityRepository = (*MemoryUserRepo)(nil)
	_ SessionRepository  = (*MemorySessionRepo)(nil)
	_ SessionSweeper     = (*MemorySessionRepo)(nil)
)
