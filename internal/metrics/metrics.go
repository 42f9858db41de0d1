// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// 生成ゲートウェイ・取得チェーン・カタログ取り込みワーカー・HTTP層から利用する。
type MetricsCollector interface {
	RecordGeneration(operation, result string, duration time.Duration)
	RecordSearchStage(stage string)
	RecordCatalogImport(result string)
	RecordCatalogJobsUpserted(count int)
	RecordFetchLatency(duration time.Duration)
	RecordHTTPStatus(statusCode int)
	RecordCleanupDeleted(table string, count int64)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	generationRequests *prometheus.CounterVec
	generationDuration *prometheus.HistogramVec
	searchFallback     *prometheus.CounterVec
	catalogImport      *prometheus.CounterVec
	catalogUpserted    prometheus.Counter
	fetchLatency       prometheus.Histogram
	httpStatus         *prometheus.CounterVec
	cleanupDeleted     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		generationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobassist_generation_requests_total",
			Help: "生成リクエストの操作・結果別の合計数",
		}, []string{"operation", "result"}),
		generationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobassist_generation_duration_seconds",
			Help:    "生成リクエストのレイテンシ（秒）",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"operation"}),
		searchFallback: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobassist_search_fallback_total",
			Help: "求人検索で結果を返した取得段階別の合計数",
		}, []string{"stage"}),
		catalogImport: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobassist_catalog_import_total",
			Help: "求人フィード取り込みの結果別の合計数",
		}, []string{"result"}),
		catalogUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jobassist_catalog_jobs_upserted_total",
			Help: "アップサートされた取り込み求人の合計数",
		}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobassist_catalog_fetch_latency_seconds",
			Help:    "求人フィードフェッチのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobassist_http_requests_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		cleanupDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobassist_cleanup_deleted_rows_total",
			Help: "クリーンアップジョブが削除した行数（テーブル別）",
		}, []string{"table"}),
	}

	reg.MustRegister(
		c.generationRequests,
		c.generationDuration,
		c.searchFallback,
		c.catalogImport,
		c.catalogUpserted,
		c.fetchLatency,
		c.httpStatus,
		c.cleanupDeleted,
	)

	return c
}

// RecordGeneration は生成リクエストの結果とレイテンシを記録する。
func (c *Collector) RecordGeneration(operation, result string, duration time.Duration) {
	c.generationRequests.WithLabelValues(operation, result).Inc()
	c.generationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordSearchStage は求人検索で結果を返した段階を記録する。
func (c *Collector) RecordSearchStage(stage string) {
	c.searchFallback.WithLabelValues(stage).Inc()
}

// RecordCatalogImport はフィード取り込みの結果（success, fetch_error, parse_error, not_modified）を記録する。
func (c *Collector) RecordCatalogImport(result string) {
	c.catalogImport.WithLabelValues(result).Inc()
}

// RecordCatalogJobsUpserted はアップサートされた求人数を記録する。
func (c *Collector) RecordCatalogJobsUpserted(count int) {
	c.catalogUpserted.Add(float64(count))
}

// RecordFetchLatency はフェッチのレイテンシを記録する。
func (c *Collector) RecordFetchLatency(duration time.Duration) {
	c.fetchLatency.Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordCleanupDeleted はクリーンアップで削除した行数をテーブル別に記録する。
func (c *Collector) RecordCleanupDeleted(table string, count int64) {
	c.cleanupDeleted.WithLabelValues(table).Add(float64(count))
}

// Nop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Nop struct{}

func (Nop) RecordGeneration(string, string, time.Duration) {}
func (Nop) RecordSearchStage(string)                       {}
func (Nop) RecordCatalogImport(string)                     {}
func (Nop) RecordCatalogJobsUpserted(int)                  {}
func (Nop) RecordFetchLatency(time.Duration)               {}
func (Nop) RecordHTTPStatus(int)                           {}
func (Nop) RecordCleanupDeleted(string, int64)             {}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// StatusRecorder はレスポンスのステータスコードを記録するミドルウェアを返す。
func StatusRecorder(c MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(sw, r)
			c.RecordHTTPStatus(sw.status)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
