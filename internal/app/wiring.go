package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/jobassist/internal/config"
	"github.com/hitoshi/jobassist/internal/llm"
	"github.com/hitoshi/jobassist/internal/repository"
	"github.com/hitoshi/jobassist/internal/store"
	"github.com/hitoshi/jobassist/internal/user"
)

// newProvider は設定に応じた生成プロバイダーを構築する。
func newProvider(ctx context.Context, cfg *config.Config) (llm.Provider, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		p, err := llm.NewGeminiProvider(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini provider: %w", err)
		}
		return p, nil
	case config.ProviderVertex:
		p, err := llm.NewVertexProvider(ctx, cfg.VertexProjectID, cfg.VertexLocation, cfg.GeminiModel)
		if err != nil {
			return nil, fmt.Errorf("failed to create vertex provider: %w", err)
		}
		return p, nil
	case config.ProviderOpenAI:
		return llm.NewOpenAIProvider(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIModel), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider %q", cfg.LLMProvider)
	}
}

// repositories はサーバーが使うリポジトリ一式。
// DBを使わない場合、Persistence と Catalog は nil になる。
type repositories struct {
	users       repository.UserRepository
	identities  repository.IdentityRepository
	sessions    repository.SessionRepository
	persistence *store.Persistence
	catalog     store.CatalogLister
	deleters    []user.UserDataDeleter

	sweeper repository.SessionSweeper
}

// newRepositories はDBの有無に応じてリポジトリを構築する。
func newRepositories(db *sql.DB) *repositories {
	if db == nil {
		users := repository.NewMemoryUserRepo()
		sessions := repository.NewMemorySessionRepo()
		return &repositories{
			users:      users,
			identities: users,
			sessions:   sessions,
			sweeper:    sessions,
		}
	}

	accounts := repository.NewPostgresAccountRepo(db)
	sessions := repository.NewPostgresSessionRepo(db)
	tracked := repository.NewPostgresTrackedJobRepo(db)
	wishlist := repository.NewPostgresWishlistRepo(db)
	return &repositories{
		users:      accounts,
		identities: accounts,
		sessions:   sessions,
		sweeper:    sessions,
		persistence: &store.Persistence{
			Profiles: repository.NewPostgresProfileRepo(db),
			Tracked:  tracked,
			Wishlist: wishlist,
			Data:     repository.NewPostgresUserDataRepo(db),
		},
		catalog:  repository.NewPostgresCatalogJobRepo(db),
		deleters: []user.UserDataDeleter{tracked, wishlist},
	}
}

// sweepSessions は期限切れセッションを定期的に削除する。
func sweepSessions(ctx context.Context, repo repository.SessionSweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := repo.DeleteExpired(ctx)
			if err != nil {
				slog.Error("failed to delete expired sessions", slog.String("error", err.Error()))
				continue
			}
			if n > 0 {
				slog.Info("expired sessions deleted", slog.Int64("count", n))
			}
		}
	}
}
