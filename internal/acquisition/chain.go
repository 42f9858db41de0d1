package acquisition

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/jobassist/internal/metrics"
	"github.com/hitoshi/jobassist/internal/model"
)

const msgMissingQuery = "Please enter a search term or location."

// AISearcher は生成AIによる求人検索。generation.Gateway が実装する。
type AISearcher interface {
	SearchJobs(ctx context.Context, term, location string, filter model.TimeFilter) ([]model.Job, error)
}

// Chain はスクレイパー、AI検索、デモ求人の順に求人を取得する。
type Chain struct {
	scraper *Scraper
	ai      AISearcher
	metrics metrics.MetricsCollector
	logger  *slog.Logger
	now     func() time.Time
}

// ChainOption はChainのオプション。
type ChainOption func(*Chain)

// WithMetrics はどの段階が結果を返したかの記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) ChainOption {
	return func(c *Chain) {
		c.metrics = m
	}
}

// WithClock はデモ求人のID採番に使う時刻関数を差し替える。
func WithClock(now func() time.Time) ChainOption {
	return func(c *Chain) {
		c.now = now
	}
}

// NewChain はChainを生成する。scraper や ai が nil の場合はその段階を飛ばす。
func NewChain(scraper *Scraper, ai AISearcher, logger *slog.Logger, opts ...ChainOption) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Chain{
		scraper: scraper,
		ai:      ai,
		metrics: metrics.Nop{},
		logger:  logger,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search は求人を検索し、結果を返した段階とともに返す。
// 検索語と勤務地がどちらも空の場合のみエラーを返し、それ以外は必ず1件以上を返す。
func (c *Chain) Search(ctx context.Context, term, location string, filter model.TimeFilter) ([]model.Job, model.SearchStage, error) {
	term = strings.TrimSpace(term)
	location = strings.TrimSpace(location)
	if term == "" && location == "" {
		return nil, "", model.NewAppError(model.KindValidation, msgMissingQuery, nil)
	}
	log := c.logger.With(slog.String("term", term), slog.String("location", location))

	if c.scraper != nil {
		jobs, err := c.scraper.Scrape(ctx, Query{Term: term, Location: location, Filter: filter})
		if err != nil {
			log.Warn("スクレイパーでの検索に失敗しました", slog.String("error", err.Error()))
		} else if len(jobs) > 0 {
			return c.answered(log, model.StageScraper, jobs), model.StageScraper, nil
		}
	}

	if c.ai != nil {
		jobs, err := c.ai.SearchJobs(ctx, term, location, filter)
		if err != nil {
			log.Warn("AIでの求人検索に失敗しました", slog.String("error", err.Error()))
		} else if len(jobs) > 0 {
			return c.answered(log, model.StageAI, jobs), model.StageAI, nil
		}
	}

	return c.answered(log, model.StageDemo, DemoJobs(term, location, c.now())), model.StageDemo, nil
}

func (c *Chain) answered(log *slog.Logger, stage model.SearchStage, jobs []model.Job) []model.Job {
	c.metrics.RecordSearchStage(string(stage))
	log.Info("求人検索が完了しました",
		slog.String("stage", string(stage)),
		slog.Int("count", len(jobs)),
	)
	return jobs
}

// DemoJobs は他の段階がすべて失敗した場合に返す2件のデモ求人を生成する。
func DemoJobs(term, location string, now time.Time) []model.Job {
	ms := now.UnixMilli()
	if location == "" {
		location = "Remote"
	}
	if term == "" {
		term = "Job"
	}
	return []model.Job{
		{
			ID:       fmt.Sprintf("demo-1-%d", ms),
			Title:    fmt.Sprintf("%s - Demo Position", term),
			Company:  "Demo Company",
			Location: location,
			Description: fmt.Sprintf("This is a demo job listing for %s. Live job sources and AI search are currently unavailable, "+
				"so this posting is shown as an example only.", term),
			Tags:       []string{"Demo", "Example", "Not Real"},
			Salary:     "Demo Salary",
			PostedDate: "Demo Date",
			SourceURL:  "https://example.com/demo-job",
		},
		{
			ID:          fmt.Sprintf("demo-2-%d", ms),
			Title:       fmt.Sprintf("Senior %s - Demo", term),
			Company:     "Example Corp",
			Location:    location,
			Description: "Another demo job listing. It is shown because real job data could not be retrieved.",
			Tags:        []string{"Demo", "Senior Level", "Example"},
			Salary:      "Demo Range",
			PostedDate:  "Demo Date",
			SourceURL:   "https://example.com/demo-job-2",
		},
	}
}
