package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/jobassist/internal/metrics"
	"github.com/hitoshi/jobassist/internal/middleware"
)

// HealthChecker はヘルスチェック用の疎通確認インターフェース。*sql.DB が満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 運用（HealthChecker が nil の場合はDB無しとして常に正常を返す）
	HealthChecker    HealthChecker
	MetricsCollector metrics.MetricsCollector
	Gatherer         prometheus.Gatherer

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// ユーザーごとのエンティティストア
	Registry StoreRegistry

	// 生成AI・取り込み・レンダリング
	Generator Generator
	Extractor PageExtractor
	PDF       PDFService

	// ユーザー
	UserService UserServiceInterface
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → SecurityHeaders → StatusRecorder → CORS
//	  → (保護ルートのみ) Session → CSRF → RateLimit(General)
//
// 生成AIを呼ぶルートには RateLimit(Generation) を追加で適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	collector := deps.MetricsCollector
	if collector == nil {
		collector = metrics.Nop{}
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(metrics.StatusRecorder(collector))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService, deps.Registry, deps.AuthConfig)
	profileHandler := NewProfileHandler(deps.Registry, deps.Generator)
	jobHandler := NewJobHandler(deps.Registry, deps.Generator, deps.Extractor)
	trackerHandler := NewTrackerHandler(deps.Registry)
	wishlistHandler := NewWishlistHandler(deps.Registry)
	searchHandler := NewSearchHandler(deps.Registry)
	toastHandler := NewToastHandler(deps.Registry)
	aiHandler := NewAIHandler(deps.Registry, deps.Generator, deps.PDF)
	userHandler := NewUserHandler(deps.UserService)

	// --- 認証不要のルート ---

	r.Get("/healthz", healthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}
	r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig).ServeHTTP)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.Login)
		r.Get("/google/callback", authHandler.Callback)
		r.Post("/guest", authHandler.Guest)
		r.Post("/logout", authHandler.Logout)
		r.Get("/me", authHandler.Me)
	})

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		generation := deps.RateLimiter.GenerationMiddleware()

		// プロフィール
		r.Route("/api/profile", func(r chi.Router) {
			r.Get("/", profileHandler.GetProfile)
			r.Put("/", profileHandler.UpdateProfile)
			r.With(generation).Post("/resume", profileHandler.UploadResume)
		})
		r.Post("/api/reset", profileHandler.ResetData)

		// 求人
		r.Route("/api/jobs", func(r chi.Router) {
			r.Get("/", jobHandler.ListJobs)
			r.With(generation).Post("/import", jobHandler.ImportJob)
			r.Get("/{id}", jobHandler.GetJob)
		})

		// 応募管理
		r.Route("/api/tracker", func(r chi.Router) {
			r.Get("/", trackerHandler.ListTracked)
			r.Post("/", trackerHandler.TrackJob)
			r.Get("/export", trackerHandler.Export)
			r.Put("/{id}/status", trackerHandler.UpdateStatus)
			r.Patch("/{id}", trackerHandler.SaveData)
		})

		// ウィッシュリスト
		r.Route("/api/wishlist", func(r chi.Router) {
			r.Get("/", wishlistHandler.ListWishlist)
			r.Post("/toggle", wishlistHandler.Toggle)
			r.Post("/bulk", wishlistHandler.AddAll)
		})

		// ライブ検索（取得チェーンが生成AIを呼ぶ場合がある）
		r.Route("/api/search", func(r chi.Router) {
			r.Get("/", searchHandler.GetSearch)
			r.With(generation).Post("/", searchHandler.Search)
			r.Delete("/", searchHandler.ClearSearch)
		})

		// トースト通知
		r.Route("/api/toasts", func(r chi.Router) {
			r.Get("/", toastHandler.ListToasts)
			r.Delete("/{id}", toastHandler.Dismiss)
		})

		// 生成AI
		r.With(generation).Post("/api/ai/{operation}", aiHandler.Generate)
		r.With(generation).Post("/api/resume/pdf", aiHandler.ResumePDF)

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Delete("/me", userHandler.Withdraw)
			r.Get("/me/export", userHandler.Export)
		})
	})

	return r
}

// healthHandler はDBへの疎通を確認するヘルスチェックハンドラーを返す。
// GET /healthz
func healthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := checker.PingContext(ctx); err != nil {
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
