package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/notify"
)

// CatalogLister は共有カタログ（取り込み済み求人）の読み出しインターフェース。
type CatalogLister interface {
	// ListRecent は新しい順に最大limit件の求人を返す。
	ListRecent(ctx context.Context, limit int) ([]model.Job, error)
}

// RegistryConfig はRegistryの設定。
type RegistryConfig struct {
	Searcher     JobSearcher
	Persistence  *Persistence
	Catalog      CatalogLister
	CatalogLimit int
	Demo         bool
	ToastTTL     time.Duration
	Logger       *slog.Logger
}

// Registry はサインイン中のユーザーごとにStoreを保持する。
// サインインで生成・シードし、サインアウトで破棄する。
type Registry struct {
	mu     sync.Mutex
	stores map[string]*Store
	cfg    RegistryConfig
	logger *slog.Logger

	// lazy はGetでの生成をユーザーごとに1回にまとめる。
	lazy singleflight.Group
}

// NewRegistry はRegistryを生成する。
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CatalogLimit <= 0 {
		cfg.CatalogLimit = 100
	}
	if cfg.ToastTTL <= 0 {
		cfg.ToastTTL = notify.DefaultTTL
	}
	return &Registry{
		stores: make(map[string]*Store),
		cfg:    cfg,
		logger: cfg.Logger,
	}
}

// Open はユーザーのStoreを(再)生成してシードする。既存のStoreは破棄される。
// 永続化層がある場合は保存済みデータを読み込み、初回サインインなら初期データを書き込む。
func (r *Registry) Open(ctx context.Context, userID string, claims model.IdentityClaims) (*Store, error) {
	s, err := r.build(ctx, userID, claims)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	old := r.stores[userID]
	r.stores[userID] = s
	r.mu.Unlock()

	if old != nil {
		old.Close()
	}

	r.logger.Info("ストアを初期化しました",
		slog.String("user_id", userID),
		slog.Bool("persistent", r.cfg.Persistence != nil),
	)
	return s, nil
}

// Get はユーザーのStoreを返す。未生成の場合はクレーム無しで生成する。
// サーバー再起動後に既存セッションでアクセスされた場合に使われる。
// 同じユーザーへの同時アクセスでは生成は1回だけ行い、結果を共有する。
func (r *Registry) Get(ctx context.Context, userID string) (*Store, error) {
	if s, ok := r.lookup(userID); ok {
		return s, nil
	}

	v, err, _ := r.lazy.Do(userID, func() (any, error) {
		if s, ok := r.lookup(userID); ok {
			return s, nil
		}
		built, err := r.build(ctx, userID, model.IdentityClaims{})
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		if existing, ok := r.stores[userID]; ok {
			built.Close()
			return existing, nil
		}
		r.stores[userID] = built
		return built, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Store), nil
}

func (r *Registry) lookup(userID string) (*Store, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.stores[userID]
	return s, ok
}

// Close はユーザーのStoreを破棄する。サインアウト時に呼ぶ。
func (r *Registry) Close(userID string) {
	r.mu.Lock()
	s, ok := r.stores[userID]
	delete(r.stores, userID)
	r.mu.Unlock()

	if ok {
		s.Close()
	}
}

// Len は保持しているStoreの数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.stores)
}

func (r *Registry) build(ctx context.Context, userID string, claims model.IdentityClaims) (*Store, error) {
	var catalog []model.Job
	if r.cfg.Catalog != nil {
		jobs, err := r.cfg.Catalog.ListRecent(ctx, r.cfg.CatalogLimit)
		if err != nil {
			// カタログが読めなくても見本求人で動作させる
			r.logger.Warn("カタログの読み込みに失敗しました",
				slog.String("error", err.Error()),
			)
		} else {
			catalog = jobs
		}
	}

	defaults := DefaultSeed(r.cfg.Demo, claims, catalog)
	s := New(userID, defaults, r.cfg.Searcher, r.cfg.Persistence,
		notify.NewChannel(notify.WithTTL(r.cfg.ToastTTL)), r.logger)

	if r.cfg.Persistence == nil {
		return s, nil
	}

	loaded, err := r.load(ctx, userID, defaults, claims)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.applySeed(loaded)
	return s, nil
}

// load は永続化層からユーザーデータを読み込む。
// プロフィールが未保存なら初回サインインとみなし、初期データを書き込んでそれを返す。
func (r *Registry) load(ctx context.Context, userID string, defaults Seed, claims model.IdentityClaims) (Seed, error) {
	p := r.cfg.Persistence
	if p.Profiles == nil {
		return defaults, nil
	}

	profile, err := p.Profiles.FindByUserID(ctx, userID)
	if err != nil {
		return Seed{}, fmt.Errorf("failed to load profile: %w", err)
	}

	if profile == nil {
		if err := r.persistDefaults(ctx, userID, defaults); err != nil {
			return Seed{}, err
		}
		return defaults, nil
	}

	loaded := Seed{
		Profile: *profile,
		Catalog: defaults.Catalog,
	}
	applyClaims(&loaded.Profile, model.IdentityClaims{AvatarURL: claims.AvatarURL})

	if p.Tracked != nil {
		tracked, err := p.Tracked.ListByUserID(ctx, userID)
		if err != nil {
			return Seed{}, fmt.Errorf("failed to load tracked jobs: %w", err)
		}
		loaded.Tracked = tracked
	}
	if p.Wishlist != nil {
		wishlist, err := p.Wishlist.ListByUserID(ctx, userID)
		if err != nil {
			return Seed{}, fmt.Errorf("failed to load wishlist: %w", err)
		}
		loaded.Wishlist = wishlist
	}
	return loaded, nil
}

func (r *Registry) persistDefaults(ctx context.Context, userID string, defaults Seed) error {
	p := r.cfg.Persistence
	if p.Data == nil {
		return errNoBulkWriter
	}
	if err := p.Data.Replace(ctx, userID, defaults.userData()); err != nil {
		return fmt.Errorf("failed to save initial data: %w", err)
	}
	return nil
}
