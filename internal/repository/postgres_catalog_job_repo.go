package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/jobassist/internal/model"
)

// PostgresCatalogJobRepo はPostgreSQLを使用した取り込み済み求人リポジトリ。
type PostgresCatalogJobRepo struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresCatalogJobRepo はPostgresCatalogJobRepoを生成する。
func NewPostgresCatalogJobRepo(db *sql.DB) *PostgresCatalogJobRepo {
	return &PostgresCatalogJobRepo{db: db, now: time.Now}
}

const catalogJobColumns = `id, feed_id, guid, title, company, location, description, tags,
		        salary, source_url, posted_at, created_at, updated_at`

// FindByFeedAndGUID はfeed_idとguidで求人を検索する。見つからない場合はnilを返す。
func (r *PostgresCatalogJobRepo) FindByFeedAndGUID(ctx context.Context, feedID, guid string) (*model.CatalogJob, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+catalogJobColumns+`
		 FROM catalog_jobs WHERE feed_id = $1 AND guid = $2`,
		feedID, guid,
	)
	job, err := r.scan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("取り込み済み求人の検索に失敗しました: %w", err)
	}
	return job, nil
}

// Create は求人を作成する。
func (r *PostgresCatalogJobRepo) Create(ctx context.Context, job *model.CatalogJob) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO catalog_jobs (id, feed_id, guid, title, company, location, description, tags,
		                           salary, source_url, posted_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		job.ID, job.FeedID, job.GUID, job.Title, job.Company, job.Location, job.Description,
		pq.Array(job.Tags), job.Salary, nullString(job.SourceURL), job.PostedAt,
		job.CreatedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("取り込み済み求人の作成に失敗しました: %w", err)
	}
	return nil
}

// Update は既存求人を上書き更新する。
func (r *PostgresCatalogJobRepo) Update(ctx context.Context, job *model.CatalogJob) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE catalog_jobs SET
		    title = $2, company = $3, location = $4, description = $5, tags = $6,
		    salary = $7, source_url = $8, posted_at = $9, updated_at = $10
		 WHERE id = $1`,
		job.ID, job.Title, job.Company, job.Location, job.Description, pq.Array(job.Tags),
		job.Salary, nullString(job.SourceURL), job.PostedAt, job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("取り込み済み求人の更新に失敗しました: %w", err)
	}
	return nil
}

// ListRecent は掲載日時の新しい順に最大limit件の求人を返す。
// 掲載日の表示文字列は取得時点の経過時間から求める。
func (r *PostgresCatalogJobRepo) ListRecent(ctx context.Context, limit int) ([]model.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+catalogJobColumns+`
		 FROM catalog_jobs
		 ORDER BY posted_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("取り込み済み求人一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	now := r.now()
	var jobs []model.Job
	for rows.Next() {
		job, err := r.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("取り込み済み求人の読み取りに失敗しました: %w", err)
		}
		j := job.Job
		j.PostedDate = model.PostedDateSince(job.PostedAt, now)
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("取り込み済み求人一覧の走査に失敗しました: %w", err)
	}
	return jobs, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *PostgresCatalogJobRepo) scan(row rowScanner) (*model.CatalogJob, error) {
	job := &model.CatalogJob{}
	var sourceURL sql.NullString
	if err := row.Scan(
		&job.ID, &job.FeedID, &job.GUID, &job.Title, &job.Company, &job.Location, &job.Description,
		pq.Array(&job.Tags), &job.Salary, &sourceURL, &job.PostedAt, &job.CreatedAt, &job.UpdatedAt,
	); err != nil {
		return nil, err
	}
	job.Tags = nonNilTags(job.Tags)
	job.SourceURL = nullStringValue(sourceURL)
	return job, nil
}

// compile-time interface check
var _ CatalogJobRepository = (*PostgresCatalogJobRepo)(nil)
