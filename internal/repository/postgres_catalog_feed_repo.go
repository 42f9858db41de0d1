package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/jobassist/internal/model"
)

// PostgresCatalogFeedRepo はPostgreSQLを使用した求人フィードリポジトリ。
type PostgresCatalogFeedRepo struct {
	db *sql.DB
}

// NewPostgresCatalogFeedRepo はPostgresCatalogFeedRepoを生成する。
func NewPostgresCatalogFeedRepo(db *sql.DB) *PostgresCatalogFeedRepo {
	return &PostgresCatalogFeedRepo{db: db}
}

// UpsertByURL はフィードURLをキーにフィード設定を作成または更新する。
// 既存フィードのフェッチ状態（エラー回数・次回フェッチ時刻など）は変更しない。
func (r *PostgresCatalogFeedRepo) UpsertByURL(ctx context.Context, feed *model.CatalogFeed) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO catalog_feeds (id, feed_url, title, company, location, tags,
		                            fetch_status, consecutive_errors, next_fetch_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, 'active', 0, now(), now(), now())
		 ON CONFLICT (feed_url) DO UPDATE SET
		    title = EXCLUDED.title,
		    company = EXCLUDED.company,
		    location = EXCLUDED.location,
		    tags = EXCLUDED.tags,
		    updated_at = now()
		 RETURNING id`,
		feed.ID, feed.FeedURL, feed.Title, nullString(feed.Company), nullString(feed.Location),
		pq.Array(feed.Tags),
	).Scan(&feed.ID)
	if err != nil {
		return fmt.Errorf("求人フィードの登録に失敗しました: %w", err)
	}
	return nil
}

// ListDueForFetch はフェッチ対象のフィードを取得する。
// next_fetch_at <= now() かつ fetch_status = 'active' のフィードを
// FOR UPDATE SKIP LOCKEDで排他的に取得する。
func (r *PostgresCatalogFeedRepo) ListDueForFetch(ctx context.Context) ([]*model.CatalogFeed, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, feed_url, title, company, location, tags,
		        etag, last_modified, fetch_status, consecutive_errors,
		        error_message, next_fetch_at, created_at, updated_at
		 FROM catalog_feeds
		 WHERE next_fetch_at <= now()
		   AND fetch_status = 'active'
		 ORDER BY next_fetch_at ASC
		 FOR UPDATE SKIP LOCKED`,
	)
	if err != nil {
		return nil, fmt.Errorf("フェッチ対象の求人フィードの取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var feeds []*model.CatalogFeed
	for rows.Next() {
		feed := &model.CatalogFeed{}
		var company, location, etag, lastModified, errorMessage sql.NullString

		if err := rows.Scan(
			&feed.ID, &feed.FeedURL, &feed.Title, &company, &location, pq.Array(&feed.Tags),
			&etag, &lastModified, &feed.FetchStatus, &feed.ConsecutiveErrors,
			&errorMessage, &feed.NextFetchAt, &feed.CreatedAt, &feed.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("求人フィードの読み取りに失敗しました: %w", err)
		}

		feed.Company = nullStringValue(company)
		feed.Location = nullStringValue(location)
		feed.ETag = nullStringValue(etag)
		feed.LastModified = nullStringValue(lastModified)
		feed.ErrorMessage = nullStringValue(errorMessage)

		feeds = append(feeds, feed)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("求人フィードの走査に失敗しました: %w", err)
	}

	return feeds, nil
}

// UpdateFetchState はフィードのフェッチ状態を更新する。
func (r *PostgresCatalogFeedRepo) UpdateFetchState(ctx context.Context, feed *model.CatalogFeed) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE catalog_feeds SET
		    fetch_status = $2,
		    consecutive_errors = $3,
		    error_message = $4,
		    next_fetch_at = $5,
		    etag = $6,
		    last_modified = $7,
		    updated_at = now()
		 WHERE id = $1`,
		feed.ID,
		feed.FetchStatus,
		feed.ConsecutiveErrors,
		nullString(feed.ErrorMessage),
		feed.NextFetchAt,
		nullString(feed.ETag),
		nullString(feed.LastModified),
	)
	if err != nil {
		return fmt.Errorf("フェッチ状態の更新に失敗しました: %w", err)
	}
	return nil
}

// nullString は空文字列をsql.NullStringに変換する。
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullStringValue はsql.NullStringから文字列を取得する。
func nullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// nonNilTags はNULLのタグ列を空スライスにそろえる。JSONでは null ではなく [] になる。
func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

// compile-time interface check
var _ CatalogFeedRepository = (*PostgresCatalogFeedRepo)(nil)
