package acquisition

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/jobassist/internal/metrics"
	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/store"
)

var _ store.JobSearcher = (*Chain)(nil)

// --- モック ---

type mockSource struct {
	name string
	jobs []model.Job
	err  error
}

func (m *mockSource) Name() string { return m.name }

func (m *mockSource) Fetch(ctx context.Context, q Query) ([]model.Job, error) {
	return m.jobs, m.err
}

type mockAI struct {
	mu    sync.Mutex
	calls int
	jobs  []model.Job
	err   error
}

func (m *mockAI) SearchJobs(ctx context.Context, term, location string, filter model.TimeFilter) ([]model.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.jobs, m.err
}

type stageRecorder struct {
	metrics.Nop
	stages []string
}

func (r *stageRecorder) RecordSearchStage(stage string) {
	r.stages = append(r.stages, stage)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

var fixedNow = time.UnixMilli(1700000000000)

func newTestChain(sources []Source, ai AISearcher) (*Chain, *stageRecorder) {
	rec := &stageRecorder{}
	var scraper *Scraper
	if sources != nil {
		scraper = NewScraper(sources, newTestLogger())
	}
	c := NewChain(scraper, ai, newTestLogger(),
		WithMetrics(rec),
		WithClock(func() time.Time { return fixedNow }),
	)
	return c, rec
}

// TestChain_Search_ScraperAnswers はスクレイパーが結果を返した場合にAI検索を呼ばないことを検証する。
func TestChain_Search_ScraperAnswers(t *testing.T) {
	ai := &mockAI{}
	c, rec := newTestChain(DefaultSources(func() time.Time { return fixedNow }), ai)

	jobs, stage, err := c.Search(context.Background(), "Backend", "Berlin", model.TimeFilterAny)
	if err != nil {
		t.Fatalf("Search がエラーを返した: %v", err)
	}
	if stage != model.StageScraper {
		t.Errorf("stage = %q, want scraper", stage)
	}
	if len(jobs) != 15 {
		t.Errorf("len = %d, want 15", len(jobs))
	}
	if ai.calls != 0 {
		t.Errorf("AI search called %d times, want 0", ai.calls)
	}
	if len(rec.stages) != 1 || rec.stages[0] != "scraper" {
		t.Errorf("stages = %v", rec.stages)
	}
}

// TestChain_Search_AIFallback はスクレイパーが0件の場合にAI検索の結果を返すことを検証する。
func TestChain_Search_AIFallback(t *testing.T) {
	ai := &mockAI{jobs: []model.Job{{ID: "ai-0-1", Title: "Data Engineer"}}}
	c, _ := newTestChain([]Source{&mockSource{name: "empty"}}, ai)

	jobs, stage, err := c.Search(context.Background(), "data", "", model.TimeFilterAny)
	if err != nil {
		t.Fatalf("Search がエラーを返した: %v", err)
	}
	if stage != model.StageAI || len(jobs) != 1 || ai.calls != 1 {
		t.Errorf("stage = %q, jobs = %d, calls = %d", stage, len(jobs), ai.calls)
	}
}

// TestChain_Search_ScraperFailureFallsThrough はスクレイパーの失敗でAI検索に進むことを検証する。
func TestChain_Search_ScraperFailureFallsThrough(t *testing.T) {
	ai := &mockAI{jobs: []model.Job{{ID: "ai-0-1"}}}
	c, _ := newTestChain([]Source{&mockSource{name: "broken", err: errors.New("boom")}}, ai)

	_, stage, err := c.Search(context.Background(), "data", "", model.TimeFilterAny)
	if err != nil || stage != model.StageAI {
		t.Errorf("stage = %q, err = %v, want ai", stage, err)
	}
}

// TestChain_Search_DemoFallback は全段階が失敗した場合に2件のデモ求人を返すことを検証する。
func TestChain_Search_DemoFallback(t *testing.T) {
	ai := &mockAI{err: errors.New("no key")}
	c, rec := newTestChain([]Source{&mockSource{name: "empty"}}, ai)

	jobs, stage, err := c.Search(context.Background(), "Rust", "", model.TimeFilterAny)
	if err != nil {
		t.Fatalf("Search がエラーを返した: %v", err)
	}
	if stage != model.StageDemo {
		t.Errorf("stage = %q, want demo", stage)
	}
	if len(jobs) != 2 {
		t.Fatalf("len = %d, want 2", len(jobs))
	}
	if jobs[0].ID != "demo-1-1700000000000" || jobs[1].ID != "demo-2-1700000000000" {
		t.Errorf("ids = %q, %q", jobs[0].ID, jobs[1].ID)
	}
	if !strings.Contains(jobs[0].Title, "Rust") || !strings.Contains(jobs[1].Title, "Rust") {
		t.Error("demo titles should reference the search term")
	}
	if jobs[0].Location != "Remote" {
		t.Errorf("Location = %q, want Remote", jobs[0].Location)
	}
	if rec.stages[0] != "demo" {
		t.Errorf("stages = %v", rec.stages)
	}
}

// TestChain_Search_AIEmptyFallsToDemo はAI検索が0件の場合もデモ求人を返すことを検証する。
func TestChain_Search_AIEmptyFallsToDemo(t *testing.T) {
	c, _ := newTestChain(nil, &mockAI{jobs: []model.Job{}})

	jobs, stage, _ := c.Search(context.Background(), "", "Tokyo", model.TimeFilterAny)
	if stage != model.StageDemo || len(jobs) != 2 || jobs[0].Location != "Tokyo" {
		t.Errorf("stage = %q, jobs = %+v", stage, jobs)
	}
}

// TestChain_Search_EmptyQuery は検索語と勤務地が空の場合にどの段階も呼ばないことを検証する。
func TestChain_Search_EmptyQuery(t *testing.T) {
	ai := &mockAI{}
	c, rec := newTestChain([]Source{&mockSource{name: "s", jobs: []model.Job{{ID: "x"}}}}, ai)

	jobs, _, err := c.Search(context.Background(), "  ", "", model.TimeFilterAny)
	if model.KindOf(err) != model.KindValidation {
		t.Fatalf("err = %v, want validation", err)
	}
	if model.UserMessage(err, "") != "Please enter a search term or location." {
		t.Errorf("message = %q", model.UserMessage(err, ""))
	}
	if jobs != nil || ai.calls != 0 || len(rec.stages) != 0 {
		t.Error("no stage should run for an empty query")
	}
}
