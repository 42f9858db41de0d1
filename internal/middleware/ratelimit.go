package middleware

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/hitoshi/jobassist/internal/model"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）
	GeneralBurst    int           // API全般のバーストサイズ
	GenerationRate  rate.Limit    // 生成AIを呼ぶAPIのレート（req/sec）
	GenerationBurst int           // 生成AIを呼ぶAPIのバーストサイズ
	CleanupInterval time.Duration // 使われなくなったリミッターの掃除間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、生成API 10 req/min/user。
func DefaultRateLimiterConfig() RateLimiterConfig {
	return PerMinuteRateLimiterConfig(120, 10)
}

// PerMinuteRateLimiterConfig は1分あたりの上限からレート制限設定を作る。
// バーストは1分ぶんの上限と同じにする。0以下の値は既定値を使う。
func PerMinuteRateLimiterConfig(generalPerMin, generationPerMin int) RateLimiterConfig {
	if generalPerMin <= 0 {
		generalPerMin = 120
	}
	if generationPerMin <= 0 {
		generationPerMin = 10
	}
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(generalPerMin) / 60.0),
		GeneralBurst:    generalPerMin,
		GenerationRate:  rate.Limit(float64(generationPerMin) / 60.0),
		GenerationBurst: generationPerMin,
		CleanupInterval: 5 * time.Minute,
	}
}

// limiterPool はユーザーIDごとのトークンバケットを1つの段（tier）について保持する。
type limiterPool struct {
	tier  string
	limit rate.Limit
	burst int

	mu      sync.Mutex
	entries map[string]*poolEntry
}

type poolEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

func newLimiterPool(tier string, limit rate.Limit, burst int) *limiterPool {
	return &limiterPool{tier: tier, limit: limit, burst: burst, entries: make(map[string]*poolEntry)}
}

// allow はユーザーのバケットからトークンを1つ取り出せたかを返す。
func (p *limiterPool) allow(userID string, now time.Time) bool {
	p.mu.Lock()
	e, ok := p.entries[userID]
	if !ok {
		e = &poolEntry{limiter: rate.NewLimiter(p.limit, p.burst)}
		p.entries[userID] = e
	}
	e.lastAccess = now
	p.mu.Unlock()
	return e.limiter.AllowN(now, 1)
}

// evictIdle は最終アクセスからttlを超えたバケットを捨てる。
func (p *limiterPool) evictIdle(now time.Time, ttl time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for userID, e := range p.entries {
		if now.Sub(e.lastAccess) > ttl {
			delete(p.entries, userID)
		}
	}
}

func (p *limiterPool) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// RateLimiter はユーザーごとのレート制限を管理する。
// API全般と生成AI呼び出しの2段を独立に持つ。
type RateLimiter struct {
	config     RateLimiterConfig
	general    *limiterPool
	generation *limiterPool

	stopOnce sync.Once
	stopCh   chan struct{}
}

// NewRateLimiter は新しいRateLimiterを生成し、バックグラウンドの掃除を開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = 5 * time.Minute
	}
	rl := &RateLimiter{
		config:     config,
		general:    newLimiterPool("general", config.GeneralRate, config.GeneralBurst),
		generation: newLimiterPool("generation", config.GenerationRate, config.GenerationBurst),
		stopCh:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はバックグラウンドの掃除を停止する。複数回呼んでもよい。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// SessionMiddlewareの後に配置する。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.general)
}

// GenerationMiddleware は生成AIを呼ぶルート用のレート制限ミドルウェアを返す。
// API全般の制限とは独立に数える。
func (rl *RateLimiter) GenerationMiddleware() func(next http.Handler) http.Handler {
	return rl.middleware(rl.generation)
}

func (rl *RateLimiter) middleware(pool *limiterPool) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := UserIDFromContext(r.Context())
			if err != nil {
				writeUnauthorized(w)
				return
			}

			if !pool.allow(userID, time.Now()) {
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("path", r.URL.Path),
					slog.String("limit_type", pool.tier),
				)
				writeRateLimitResponse(w, pool.limit)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GeneralLimiterCount は保持しているAPI全般のバケット数を返す。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// GenerationLimiterCount は保持している生成APIのバケット数を返す。
func (rl *RateLimiter) GenerationLimiterCount() int {
	return rl.generation.len()
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			rl.cleanup(now)
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセスがCleanupIntervalの2倍より古いバケットを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.general.evictIdle(now, ttl)
	rl.generation.evictIdle(now, ttl)
}

// writeRateLimitResponse は429 Too Many Requestsを書き込む。
// Retry-After にはトークンが1つ補充されるまでの秒数を入れる。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = max(1, int(math.Ceil(1.0/float64(r))))
	}

	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSec))
	WriteErrorResponse(w, http.StatusTooManyRequests, &model.APIError{
		Code:     "RATE_LIMIT_EXCEEDED",
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-After の秒数だけ待ってから再度お試しください。",
	})
}
