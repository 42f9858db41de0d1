package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// requestIDHeader はリクエストIDを受け渡すヘッダー。
const requestIDHeader = "X-Request-ID"

var requestInfoContextKey = contextKey("request_info")

// requestInfo はアクセスログ用にリクエスト単位で共有する情報。
// セッションミドルウェアは後段で実行されるため、ユーザーIDはここに書き戻す。
type requestInfo struct {
	id     string
	userID string
}

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードと書き込みバイト数を記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
	written    bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.bytes += n
	return n, err
}

// Flush はストリーミング応答のために下位のFlusherへ委譲する。
func (sr *statusRecorder) Flush() {
	if f, ok := sr.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// NewLoggingMiddleware はリクエストごとにJSON構造化のアクセスログを1行出力するミドルウェアを返す。
//
// リクエストIDは X-Request-ID ヘッダーを引き継ぎ、無ければUUIDを採番してレスポンスヘッダーに返す。
// ログには method, path, route, status, bytes, duration_ms, request_id と
// 認証済みであれば user_id を含む。/healthz と /metrics はDebugレベルで出力する。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			info := &requestInfo{id: r.Header.Get(requestIDHeader)}
			if info.id == "" || len(info.id) > 64 {
				info.id = uuid.NewString()
			}
			w.Header().Set(requestIDHeader, info.id)

			rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
			r = r.WithContext(context.WithValue(r.Context(), requestInfoContextKey, info))

			next.ServeHTTP(rec, r)

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Int("bytes", rec.bytes),
				slog.Float64("duration_ms", float64(time.Since(start).Nanoseconds())/float64(time.Millisecond)),
				slog.String("request_id", info.id),
			}
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if pattern := rc.RoutePattern(); pattern != "" {
					attrs = append(attrs, slog.String("route", pattern))
				}
			}
			if userID := loggedUserID(r.Context(), info); userID != "" {
				attrs = append(attrs, slog.String("user_id", userID))
			}

			logger.Log(r.Context(), accessLogLevel(r.URL.Path, rec.statusCode), "http_request", attrs...)
		})
	}
}

// accessLogLevel はステータスコードとパスからログレベルを決める。
func accessLogLevel(path string, status int) slog.Level {
	switch {
	case status >= 500:
		return slog.LevelError
	case status >= 400:
		return slog.LevelWarn
	case path == "/healthz" || path == "/metrics":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}

func loggedUserID(ctx context.Context, info *requestInfo) string {
	if info.userID != "" {
		return info.userID
	}
	if userID, err := UserIDFromContext(ctx); err == nil {
		return userID
	}
	return ""
}

// RequestIDFromContext はロギングミドルウェアが採番したリクエストIDを返す。
func RequestIDFromContext(ctx context.Context) string {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		return info.id
	}
	return ""
}

// recordUserID はアクセスログにユーザーIDを残す。
func recordUserID(ctx context.Context, userID string) {
	if info, ok := ctx.Value(requestInfoContextKey).(*requestInfo); ok {
		info.userID = userID
	}
}
