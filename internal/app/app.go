package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/jobassist/internal/acquisition"
	"github.com/hitoshi/jobassist/internal/auth"
	"github.com/hitoshi/jobassist/internal/config"
	"github.com/hitoshi/jobassist/internal/database"
	"github.com/hitoshi/jobassist/internal/generation"
	"github.com/hitoshi/jobassist/internal/handler"
	"github.com/hitoshi/jobassist/internal/jobpage"
	"github.com/hitoshi/jobassist/internal/logger"
	"github.com/hitoshi/jobassist/internal/metrics"
	"github.com/hitoshi/jobassist/internal/middleware"
	"github.com/hitoshi/jobassist/internal/render"
	"github.com/hitoshi/jobassist/internal/repository"
	"github.com/hitoshi/jobassist/internal/security"
	"github.com/hitoshi/jobassist/internal/store"
	"github.com/hitoshi/jobassist/internal/user"
	"github.com/hitoshi/jobassist/internal/worker/catalog"
	"github.com/hitoshi/jobassist/internal/worker/cleanup"
)

// errDatabaseRequired はDBが必須のコマンドをDATABASE_URL無しで起動した場合のエラー。
var errDatabaseRequired = errors.New("DATABASE_URL is required for this command")

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.Install(w, logger.Options{Level: slog.LevelInfo, Service: "jobassist"})

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再セットアップ
	logger.Install(w, logger.Options{Level: logger.ParseLevel(cfg.LogLevel), Service: "jobassist"})

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	var migrateOpts MigrateOptions
	if cmd == CommandMigrate {
		opts, err := ParseMigrateArgs(args[1:])
		if err != nil {
			return err
		}
		migrateOpts = opts
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
		slog.String("llm_provider", cfg.LLMProvider),
		slog.Bool("in_memory", cfg.InMemory()),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, migrateOpts)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*sql.DB, error) {
	return database.Connect(context.Background(), cfg.DatabaseURL, 10*time.Second)
}

// runServe はAPIサーバーモードで起動する。
// DATABASE_URL が無い場合はデモデータを使うインメモリ構成で起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 1. DB接続（インメモリ構成では使わない）
	var db *sql.DB
	if !cfg.InMemory() {
		var err error
		db, err = openDatabase(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		slog.Info("database connection established")
	} else {
		slog.Warn("DATABASE_URL is not set; running in-memory with demo data")
	}

	// 2. リポジトリとメトリクスの初期化
	repos := newRepositories(db)
	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg)

	// 3. 生成AIゲートウェイと取得チェーン
	provider, err := newProvider(ctx, cfg)
	if err != nil {
		return err
	}
	gateway := generation.New(provider, slog.Default(), generation.WithMetrics(collector))
	chain := acquisition.NewChain(
		acquisition.NewScraper(acquisition.DefaultSources(time.Now), slog.Default()),
		gateway, slog.Default(),
		acquisition.WithMetrics(collector),
	)

	// 4. ユーザーごとのエンティティストア
	registry := store.NewRegistry(store.RegistryConfig{
		Searcher:    chain,
		Persistence: repos.persistence,
		Catalog:     repos.catalog,
		Demo:        cfg.DemoMode || cfg.InMemory(),
		Logger:      slog.Default(),
	})

	// 5. 認証（Googleの認証情報が無い場合はゲストサインインのみ）
	var oauthProvider auth.OAuthProvider
	if cfg.OAuthEnabled() {
		oauthProvider = auth.NewGoogleOAuthProvider(auth.GoogleOAuthConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		})
	}
	authService := auth.NewService(
		oauthProvider, repos.users, repos.identities, repos.sessions,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	userService := user.NewService(repos.users, repos.sessions, registry, repos.deleters...)

	// 6. 求人ページ取り込みと文書レンダリング
	extractor := jobpage.NewExtractor(security.NewSSRFGuard(), security.NewTextSanitizer())
	pdfService := render.NewService(render.NewChromeRenderer(render.ChromeOptions{
		ExecPath:  cfg.ChromePath,
		RemoteURL: cfg.ChromeRemoteURL,
	}))

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.PerMinuteRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitGeneration),
	)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		SessionFinder:     repos.sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		RateLimiter:      rateLimiter,
		Logger:           slog.Default(),
		MetricsCollector: collector,
		Gatherer:         promReg,

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			BaseURL:       cfg.BaseURL,
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionMaxAge,
			GuestEnabled:  cfg.DemoMode || cfg.InMemory(),
		},

		Registry:    registry,
		Generator:   gateway,
		Extractor:   extractor,
		PDF:         pdfService,
		UserService: userService,
	}
	if db != nil {
		deps.HealthChecker = db
	}
	if repos.sweeper != nil {
		go sweepSessions(ctx, repos.sweeper, time.Hour)
	}

	// 8. HTTPサーバーの起動（生成AIの応答待ちを考慮してWriteTimeoutを長めに取る）
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      handler.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return serveUntilSignal(server, "API server")
}

// serveUntilSignal はHTTPサーバーを起動し、SIGINT/SIGTERMで停止する。
func serveUntilSignal(server *http.Server, name string) error {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	errCh := make(chan error, 1)
	go func() {
		slog.Info(name+" starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("%s listen error: %w", name, err)
	case <-stop:
	}
	slog.Info("shutting down " + name + "...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("%s shutdown failed: %w", name, err)
	}

	slog.Info(name + " stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 求人カタログの取り込み元を登録し、取り込みスケジューラとクリーンアップジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	if cfg.InMemory() {
		return errDatabaseRequired
	}

	// 1. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	// 2. リポジトリとメトリクスの初期化
	feedRepo := repository.NewPostgresCatalogFeedRepo(db)
	jobRepo := repository.NewPostgresCatalogJobRepo(db)
	promReg := prometheus.NewRegistry()
	collector := metrics.NewCollector(promReg)

	// 3. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 4. 取り込み元の登録
	if cfg.CatalogSourcesFile != "" {
		feeds, err := catalog.LoadSources(cfg.CatalogSourcesFile, ssrfGuard)
		if err != nil {
			return err
		}
		if err := catalog.RegisterSources(ctx, feedRepo, feeds, slog.Default()); err != nil {
			return fmt.Errorf("failed to register catalog sources: %w", err)
		}
	} else {
		slog.Warn("CATALOG_SOURCES_FILE is not set; importing previously registered feeds only")
	}

	// 5. 取り込みとスケジューラ
	importer := catalog.NewImporter(feedRepo, jobRepo, ssrfGuard, sanitizer, collector, slog.Default(),
		catalog.ImporterConfig{Interval: cfg.CatalogFetchInterval},
	)
	scheduler := catalog.NewScheduler(feedRepo, importer, slog.Default(), cfg.CatalogMaxConcurrency)

	// 6. クリーンアップジョブ
	cleanupJob := cleanup.NewCleanupJob(db, collector, slog.Default())
	cleanupJob.RetentionDays = cleanup.RetentionDaysFor(cfg.CatalogRetention)

	// 7. ワーカー用のヘルスチェック・メトリクスエンドポイント
	mux := chi.NewRouter()
	mux.Handle("/metrics", metrics.Handler(promReg))
	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	server := &http.Server{Addr: ":" + cfg.ServerPort, Handler: mux, ReadTimeout: 5 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("worker metrics server error", slog.String("error", err.Error()))
		}
	}()
	defer server.Close()

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("fetch_interval", cfg.CatalogFetchInterval),
		slog.Int("max_concurrency", cfg.CatalogMaxConcurrency),
		slog.Int("retention_days", cleanupJob.RetentionDays),
	)

	go cleanupJob.Start(ctx, 24*time.Hour)

	// 取り込みスケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.CatalogFetchInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを適用、巻き戻し、またはバージョン表示する。
func runMigrate(cfg *config.Config, opts MigrateOptions) error {
	if cfg.InMemory() {
		return errDatabaseRequired
	}

	log := slog.With(
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.String("action", string(opts.Action)),
	)

	switch opts.Action {
	case MigrateDown:
		log.Info("rolling back database migrations", slog.Int("steps", opts.Steps))
		if err := database.RollbackMigrations(cfg.DatabaseURL, opts.Steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
	case MigrateVersion:
		status, err := database.CurrentMigration(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		log.Info("database migration version",
			slog.Bool("applied", status.Applied),
			slog.Uint64("version", uint64(status.Version)),
			slog.Bool("dirty", status.Dirty),
		)
		return nil
	default:
		log.Info("running database migrations")
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	log.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
