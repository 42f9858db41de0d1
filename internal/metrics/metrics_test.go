package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// findMetric は名前とラベル値の組み合わせに一致するメトリクスを返す。
func findMetric(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if labelsMatch(m, labels) {
				return m
			}
		}
	}
	return nil
}

func labelsMatch(m *dto.Metric, want map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range want {
		if got[k] != v {
			return false
		}
	}
	return true
}

// TestNewCollector_ReturnsNonNil はCollectorが正常に生成されることを検証する。
func TestNewCollector_ReturnsNonNil(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	if c == nil {
		t.Fatal("expected non-nil Collector")
	}
}

// TestRecordGeneration_CountsByOperationAndResult は生成リクエストが操作・結果別に集計されることを検証する。
func TestRecordGeneration_CountsByOperationAndResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGeneration("cover_letter", "success", 200*time.Millisecond)
	c.RecordGeneration("cover_letter", "success", 300*time.Millisecond)
	c.RecordGeneration("cover_letter", "blocked", 100*time.Millisecond)

	m := findMetric(t, reg, "jobassist_generation_requests_total", map[string]string{"operation": "cover_letter", "result": "success"})
	if m == nil {
		t.Fatal("generation_requests_total{success} not found")
	}
	if v := m.GetCounter().GetValue(); v != 2 {
		t.Errorf("generation_requests_total{success} = %v, want 2", v)
	}

	m = findMetric(t, reg, "jobassist_generation_requests_total", map[string]string{"operation": "cover_letter", "result": "blocked"})
	if m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("generation_requests_total{blocked} should be 1")
	}

	h := findMetric(t, reg, "jobassist_generation_duration_seconds", map[string]string{"operation": "cover_letter"})
	if h == nil {
		t.Fatal("generation_duration_seconds not found")
	}
	if h.GetHistogram().GetSampleCount() != 3 {
		t.Errorf("sample_count = %d, want 3", h.GetHistogram().GetSampleCount())
	}
}

// TestRecordSearchStage_CountsByStage は取得段階別に集計されることを検証する。
func TestRecordSearchStage_CountsByStage(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordSearchStage("scraper")
	c.RecordSearchStage("demo")
	c.RecordSearchStage("scraper")

	m := findMetric(t, reg, "jobassist_search_fallback_total", map[string]string{"stage": "scraper"})
	if m == nil || m.GetCounter().GetValue() != 2 {
		t.Errorf("search_fallback_total{scraper} = %v, want 2", m.GetCounter().GetValue())
	}
}

// TestRecordCatalogImport_CountsByResult はフィード取り込みの結果別に集計されることを検証する。
func TestRecordCatalogImport_CountsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCatalogImport("success")
	c.RecordCatalogImport("parse_error")
	c.RecordCatalogJobsUpserted(10)
	c.RecordCatalogJobsUpserted(5)

	if m := findMetric(t, reg, "jobassist_catalog_import_total", map[string]string{"result": "parse_error"}); m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("catalog_import_total{parse_error} should be 1")
	}
	m := findMetric(t, reg, "jobassist_catalog_jobs_upserted_total", nil)
	if m == nil || m.GetCounter().GetValue() != 15 {
		t.Error("catalog_jobs_upserted_total should be 15")
	}
}

func TestRecordCleanupDeleted_AccumulatesPerTable(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCleanupDeleted("sessions", 3)
	c.RecordCleanupDeleted("sessions", 0)
	c.RecordCleanupDeleted("catalog_jobs", 7)

	for table, want := range map[string]float64{"sessions": 3, "catalog_jobs": 7} {
		m := findMetric(t, reg, "jobassist_cleanup_deleted_rows_total", map[string]string{"table": table})
		if m == nil || m.GetCounter().GetValue() != want {
			t.Errorf("cleanup_deleted_rows_total{%s} = %v, want %v", table, m.GetCounter().GetValue(), want)
		}
	}
}

// TestRecordHTTPStatus_IncrementsCounterWithLabel はHTTPステータスカウンタがラベル付きで増加することを検証する。
func TestRecordHTTPStatus_IncrementsCounterWithLabel(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(404)

	if m := findMetric(t, reg, "jobassist_http_requests_total", map[string]string{"status_code": "200"}); m == nil || m.GetCounter().GetValue() != 2 {
		t.Error("http_requests_total{200} should be 2")
	}
	if m := findMetric(t, reg, "jobassist_http_requests_total", map[string]string{"status_code": "404"}); m == nil || m.GetCounter().GetValue() != 1 {
		t.Error("http_requests_total{404} should be 1")
	}
}

// TestRecordFetchLatency_ObservesHistogram はフェッチレイテンシのヒストグラムに値が記録されることを検証する。
func TestRecordFetchLatency_ObservesHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordFetchLatency(100 * time.Millisecond)
	c.RecordFetchLatency(2 * time.Second)

	m := findMetric(t, reg, "jobassist_catalog_fetch_latency_seconds", nil)
	if m == nil {
		t.Fatal("catalog_fetch_latency_seconds not found")
	}
	h := m.GetHistogram()
	if h.GetSampleCount() != 2 {
		t.Errorf("sample_count = %d, want 2", h.GetSampleCount())
	}
	// 合計は0.1 + 2.0 = 2.1秒
	if h.GetSampleSum() < 2.0 || h.GetSampleSum() > 2.2 {
		t.Errorf("sample_sum = %v, want ~2.1", h.GetSampleSum())
	}
}

// TestMetricsHandler_ReturnsPrometheusFormat は/metricsエンドポイントがPrometheus形式で返すことを検証する。
func TestMetricsHandler_ReturnsPrometheusFormat(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordGeneration("company_briefing", "success", time.Second)
	c.RecordSearchStage("ai")
	c.RecordCatalogImport("success")
	c.RecordHTTPStatus(200)

	handler := Handler(reg)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}

	body, _ := io.ReadAll(resp.Body)
	bodyStr := string(body)

	expectedMetrics := []string{
		"jobassist_generation_requests_total",
		"jobassist_generation_duration_seconds",
		"jobassist_search_fallback_total",
		"jobassist_catalog_import_total",
		"jobassist_http_requests_total",
	}
	for _, metric := range expectedMetrics {
		if !strings.Contains(bodyStr, metric) {
			t.Errorf("response body does not contain %q", metric)
		}
	}
}

// TestMultipleCollectors_IndependentRegistries は異なるレジストリで独立に動作することを検証する。
func TestMultipleCollectors_IndependentRegistries(t *testing.T) {
	reg1 := prometheus.NewRegistry()
	reg2 := prometheus.NewRegistry()
	c1 := NewCollector(reg1)
	c2 := NewCollector(reg2)

	c1.RecordSearchStage("scraper")
	c2.RecordSearchStage("scraper")
	c2.RecordSearchStage("scraper")

	v1 := findMetric(t, reg1, "jobassist_search_fallback_total", nil).GetCounter().GetValue()
	v2 := findMetric(t, reg2, "jobassist_search_fallback_total", nil).GetCounter().GetValue()
	if v1 != 1 {
		t.Errorf("reg1 search_fallback = %v, want 1", v1)
	}
	if v2 != 2 {
		t.Errorf("reg2 search_fallback = %v, want 2", v2)
	}
}
