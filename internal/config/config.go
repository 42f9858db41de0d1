package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// 生成プロバイダーの種別
const (
	ProviderGemini = "gemini"
	ProviderVertex = "vertex"
	ProviderOpenAI = "openai"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Generation provider
	LLMProvider     string
	GeminiAPIKey    string
	GeminiModel     string
	VertexProjectID string
	VertexLocation  string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string

	// Database（空の場合はデモモードとしてインメモリで動作する）
	DatabaseURL string

	// OAuth（クライアントIDが空の場合はGoogleログインを無効にする）
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// Session
	SessionMaxAge int

	// Rate Limit（1分あたりのリクエスト数）
	RateLimitGeneral    int
	RateLimitGeneration int

	// Catalog
	CatalogSourcesFile    string
	CatalogFetchInterval  time.Duration
	CatalogMaxConcurrency int
	CatalogRetention      time.Duration

	// Rendering
	ChromePath      string
	ChromeRemoteURL string

	// DemoMode はサインイン時にデモ用の応募管理データを投入する。
	DemoMode bool

	// Logging
	LogLevel string

	// Server
	ServerPort string
	BaseURL    string

	// Cookie
	CookieSecure bool
	CookieDomain string

	// CORS
	CORSAllowedOrigin string
}

// InMemory はデータベースを使わずに動作する設定かどうかを返す。
func (c *Config) InMemory() bool {
	return c.DatabaseURL == ""
}

// OAuthEnabled はGoogleログインが設定されているかどうかを返す。
func (c *Config) OAuthEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// Load は.envと環境変数からConfigを読み込む。
// 必須環境変数や選択したプロバイダーの認証情報が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envが無い環境（コンテナ等）では環境変数のみを使う
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	cfg.LLMProvider = strings.ToLower(getEnvString("LLM_PROVIDER", ProviderGemini))
	switch cfg.LLMProvider {
	case ProviderGemini:
		cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
		if cfg.GeminiAPIKey == "" {
			missing = append(missing, "GEMINI_API_KEY")
		}
	case ProviderVertex:
		cfg.VertexProjectID = os.Getenv("VERTEX_PROJECT_ID")
		if cfg.VertexProjectID == "" {
			missing = append(missing, "VERTEX_PROJECT_ID")
		}
	case ProviderOpenAI:
		cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
		if cfg.OpenAIAPIKey == "" {
			missing = append(missing, "OPENAI_API_KEY")
		}
	default:
		return nil, fmt.Errorf("unsupported LLM_PROVIDER %q: must be one of gemini, vertex, openai", cfg.LLMProvider)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.GeminiModel = getEnvString("GEMINI_MODEL", "gemini-2.5-flash")
	cfg.VertexLocation = getEnvString("VERTEX_LOCATION", "us-central1")
	cfg.OpenAIBaseURL = getEnvString("OPENAI_BASE_URL", "https://api.openai.com/v1")
	cfg.OpenAIModel = getEnvString("OPENAI_MODEL", "gpt-4o-mini")

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	cfg.GoogleRedirectURL = getEnvString("GOOGLE_REDIRECT_URL", strings.TrimSuffix(cfg.BaseURL, "/")+"/auth/google/callback")

	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 7*24*60*60)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitGeneration = getEnvInt("RATE_LIMIT_GENERATION", 10)

	cfg.CatalogSourcesFile = getEnvString("CATALOG_SOURCES_FILE", "")
	cfg.CatalogFetchInterval = getEnvDuration("CATALOG_FETCH_INTERVAL", 30*time.Minute)
	cfg.CatalogMaxConcurrency = getEnvInt("CATALOG_MAX_CONCURRENCY", 4)
	cfg.CatalogRetention = getEnvDuration("CATALOG_RETENTION", 720*time.Hour)

	cfg.ChromePath = getEnvString("CHROME_PATH", "")
	cfg.ChromeRemoteURL = getEnvString("CHROME_REMOTE_URL", "")
	cfg.DemoMode = getEnvBool("DEMO_MODE", false)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	cfg.ServerPort = getEnvString("PORT", "8080")
	cfg.CookieSecure = strings.HasPrefix(cfg.BaseURL, "https://")
	cfg.CookieDomain = getEnvString("COOKIE_DOMAIN", "")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
