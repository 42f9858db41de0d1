// Package cleanup は期限切れデータを日次で削除するジョブを提供する。
//
// 対象は期限切れのセッションと、保持期間を過ぎたカタログ求人。
// 取り込み元フィードの設定とユーザーの保存データには触れない。
package cleanup

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/jobassist/internal/metrics"
)

// Executor は *sql.DB と *sql.Tx が満たす。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// DefaultRetentionDays はカタログ求人の既定の保持日数。
const DefaultRetentionDays = 30

// step は1テーブル分の削除。
type step struct {
	table string
	query string
	args  func(j *CleanupJob) []any
}

var steps = []step{
	{
		table: "sessions",
		query: `DELETE FROM sessions WHERE expires_at <= now()`,
	},
	{
		table: "catalog_jobs",
		query: `DELETE FROM catalog_jobs WHERE posted_at < now() - $1::interval`,
		args:  func(j *CleanupJob) []any { return []any{fmt.Sprintf("%d days", j.RetentionDays)} },
	},
}

// Report は1回の実行で削除した件数。
type Report struct {
	Deleted  map[string]int64
	Duration time.Duration
}

// CleanupJob は期限切れデータの削除ジョブ。何度実行しても結果は変わらない。
type CleanupJob struct {
	db      Executor
	metrics metrics.MetricsCollector
	logger  *slog.Logger

	RetentionDays int
}

// NewCleanupJob はCleanupJobを生成する。collectorがnilならメトリクスは記録しない。
func NewCleanupJob(db Executor, collector metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		db:            db,
		metrics:       collector,
		logger:        logger,
		RetentionDays: DefaultRetentionDays,
	}
}

// RetentionDaysFor は保持期間を日数に切り捨てる。1日未満は1日とする。
func RetentionDaysFor(retention time.Duration) int {
	return max(1, int(retention.Hours()/24))
}

// Run は全テーブルの削除を実行する。
// あるテーブルで失敗しても残りは続け、失敗をまとめて返す。
func (j *CleanupJob) Run(ctx context.Context) (Report, error) {
	start := time.Now()
	report := Report{Deleted: make(map[string]int64, len(steps))}

	var errs []error
	for _, st := range steps {
		var args []any
		if st.args != nil {
			args = st.args(j)
		}
		n, err := j.exec(ctx, st.table, st.query, args...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		report.Deleted[st.table] = n
		j.metrics.RecordCleanupDeleted(st.table, n)
	}
	report.Duration = time.Since(start)

	attrs := []any{
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(report.Duration.Microseconds())/1000),
	}
	for table, n := range report.Deleted {
		attrs = append(attrs, slog.Int64("deleted_"+table, n))
	}

	if err := errors.Join(errs...); err != nil {
		j.logger.Error("クリーンアップジョブの一部が失敗しました", append(attrs, slog.String("error", err.Error()))...)
		return report, err
	}
	j.logger.Info("クリーンアップジョブが完了しました", attrs...)
	return report, nil
}

// Start は起動直後に1回、以降intervalごとにRunを実行する。ctxが終わるまで戻らない。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		// 失敗はRun内でログに残るので次の周期まで待つ
		_, _ = j.Run(ctx)

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (j *CleanupJob) exec(ctx context.Context, table, query string, args ...any) (int64, error) {
	res, err := j.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s のクリーンアップに失敗: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s の削除件数の取得に失敗: %w", table, err)
	}
	return n, nil
}
