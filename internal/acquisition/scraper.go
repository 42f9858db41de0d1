// Package acquisition はライブ検索の取得チェーンを提供する。
//
// 合成スクレイパー、生成AIによる検索、デモ求人の順に試し、
// 検索語か勤務地が指定されている限り必ず1件以上の求人を返す。
package acquisition

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/jobassist/internal/model"
)

// Query は検索条件。
type Query struct {
	Term     string
	Location string
	Filter   model.TimeFilter
}

// Source は求人の掲載元1つを表す。
type Source interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]model.Job, error)
}

// errAllSourcesFailed はすべての掲載元が失敗したことを表す。
var errAllSourcesFailed = errors.New("all scraper sources failed")

// Scraper は複数の掲載元を並行に呼び出して結果をまとめる。
type Scraper struct {
	sources []Source
	logger  *slog.Logger
	shuffle func(n int, swap func(i, j int))
}

// NewScraper はScraperを生成する。
func NewScraper(sources []Source, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scraper{
		sources: sources,
		logger:  logger,
		shuffle: rand.Shuffle,
	}
}

// Scrape は全掲載元から求人を取得し、連結してシャッフルした結果を返す。
// 失敗した掲載元はログに残して0件として扱う。全掲載元が失敗した場合のみエラーを返す。
func (s *Scraper) Scrape(ctx context.Context, q Query) ([]model.Job, error) {
	results := make([][]model.Job, len(s.sources))
	failed := make([]bool, len(s.sources))

	var g errgroup.Group
	for i, src := range s.sources {
		g.Go(func() error {
			jobs, err := src.Fetch(ctx, q)
			if err != nil {
				failed[i] = true
				s.logger.Warn("掲載元からの取得に失敗しました",
					slog.String("source", src.Name()),
					slog.String("error", err.Error()),
				)
				return nil
			}
			results[i] = jobs
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []model.Job
	failures := 0
	for i, jobs := range results {
		if failed[i] {
			failures++
		}
		all = append(all, jobs...)
	}
	if len(s.sources) > 0 && failures == len(s.sources) {
		return nil, errAllSourcesFailed
	}

	s.shuffle(len(all), func(i, j int) {
		all[i], all[j] = all[j], all[i]
	})
	return all, nil
}
