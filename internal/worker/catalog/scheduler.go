// Package catalog は求人カタログのバックグラウンド取り込み処理を提供する。
// スケジューラ、取り込み処理、リトライ/バックオフ戦略、取り込み元の読み込みを含む。
package catalog

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/repository"
)

// FeedImporter はフィード1件を取り込み、結果に応じてフィード状態を更新する。
type FeedImporter interface {
	Import(ctx context.Context, feed *model.CatalogFeed) error
}

// Scheduler は取り込み時刻を迎えたフィードを定期的に拾い、
// 最大 maxConcurrency 件ずつ並列に取り込む。
type Scheduler struct {
	feedRepo       repository.CatalogFeedRepository
	importer       FeedImporter
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler は Scheduler を返す。maxConcurrency が0以下なら4件ずつ取り込む。
func NewScheduler(
	feedRepo repository.CatalogFeedRepository,
	importer FeedImporter,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	if maxConcurrency <= 0 {
		maxConcurrency = 4
	}
	return &Scheduler{
		feedRepo:       feedRepo,
		importer:       importer,
		logger:         logger.With(slog.String("component", "catalog_scheduler")),
		maxConcurrency: maxConcurrency,
	}
}

// Start は起動直後と interval ごとに RunOnce を呼ぶ。ctx がキャンセルされると戻る。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	s.logger.Info("求人カタログの取り込みスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
	)
	defer s.logger.Info("求人カタログの取り込みスケジューラを停止しました")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("取り込みサイクルの実行に失敗しました", slog.String("error", err.Error()))
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// RunOnce は取り込み対象のフィードを一覧し、すべて取り込み終えるまで待つ。
// 個々のフィードの失敗はログに残して他のフィードの取り込みを続ける。
// 一覧の取得に失敗した場合だけエラーを返す。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	feeds, err := s.feedRepo.ListDueForFetch(ctx)
	if err != nil {
		return err
	}
	if len(feeds) == 0 {
		s.logger.Debug("取り込み対象のフィードはありません")
		return nil
	}

	s.logger.Info("取り込みサイクルを開始します", slog.Int("feed_count", len(feeds)))

	var failed atomic.Int32
	var g errgroup.Group
	g.SetLimit(s.maxConcurrency)
	for _, feed := range feeds {
		g.Go(func() error {
			if err := s.importer.Import(ctx, feed); err != nil {
				failed.Add(1)
				s.logger.Error("求人フィードの取り込みに失敗しました",
					slog.String("feed_id", feed.ID),
					slog.String("feed_url", feed.FeedURL),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.logger.Info("取り込みサイクルが完了しました",
		slog.Int("feed_count", len(feeds)),
		slog.Int("failed", int(failed.Load())),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}
