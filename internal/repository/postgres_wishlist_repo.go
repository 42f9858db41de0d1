package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/jobassist/internal/model"
)

// PostgresWishlistRepo はPostgreSQLを使用したウィッシュリストリポジトリ。
// 求人はコピーとして保存するため、元の取得元が消えても表示できる。
type PostgresWishlistRepo struct {
	db *sql.DB
}

// NewPostgresWishlistRepo はPostgresWishlistRepoを生成する。
func NewPostgresWishlistRepo(db *sql.DB) *PostgresWishlistRepo {
	return &PostgresWishlistRepo{db: db}
}

// ListByUserID はユーザーのウィッシュリストを追加順に返す。
func (r *PostgresWishlistRepo) ListByUserID(ctx context.Context, userID string) ([]model.Job, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT job_id, title, company, location, description, tags, salary, posted_date, source_url
		 FROM wishlist_entries
		 WHERE user_id = $1
		 ORDER BY created_at ASC, seq ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("ウィッシュリストの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		var j model.Job
		var sourceURL sql.NullString
		if err := rows.Scan(
			&j.ID, &j.Title, &j.Company, &j.Location, &j.Description,
			pq.Array(&j.Tags), &j.Salary, &j.PostedDate, &sourceURL,
		); err != nil {
			return nil, fmt.Errorf("ウィッシュリストの読み取りに失敗しました: %w", err)
		}
		j.Tags = nonNilTags(j.Tags)
		j.SourceURL = nullStringValue(sourceURL)
		j.IsWishlisted = true
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ウィッシュリストの走査に失敗しました: %w", err)
	}
	return jobs, nil
}

// AddMany は求人をまとめて追加する。既に存在する求人は無視する。
// 一括追加は1トランザクションで行い、途中で失敗した場合は何も追加しない。
func (r *PostgresWishlistRepo) AddMany(ctx context.Context, userID string, jobs []model.Job) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		return insertWishlistJobs(ctx, tx, userID, jobs)
	})
}

func insertWishlistJobs(ctx context.Context, ex execer, userID string, jobs []model.Job) error {
	for _, j := range jobs {
		_, err := ex.ExecContext(ctx,
			`INSERT INTO wishlist_entries (user_id, job_id, title, company, location, description,
			                               tags, salary, posted_date, source_url, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now())
			 ON CONFLICT (user_id, job_id) DO NOTHING`,
			userID, j.ID, j.Title, j.Company, j.Location, j.Description,
			pq.Array(nonNilTags(j.Tags)), j.Salary, j.PostedDate, nullString(j.SourceURL),
		)
		if err != nil {
			return fmt.Errorf("ウィッシュリストへの追加に失敗しました: %w", err)
		}
	}
	return nil
}

// Remove はウィッシュリストから求人を削除する。
func (r *PostgresWishlistRepo) Remove(ctx context.Context, userID, jobID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM wishlist_entries WHERE user_id = $1 AND job_id = $2`,
		userID, jobID,
	)
	if err != nil {
		return fmt.Errorf("ウィッシュリストからの削除に失敗しました: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーのウィッシュリストを全て削除する。
func (r *PostgresWishlistRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return deleteWishlistEntries(ctx, r.db, userID)
}

func deleteWishlistEntries(ctx context.Context, ex execer, userID string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM wishlist_entries WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("ウィッシュリストの削除に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ WishlistRepository = (*PostgresWishlistRepo)(nil)
