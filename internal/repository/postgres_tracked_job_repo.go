package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/jobassist/internal/model"
)

// PostgresTrackedJobRepo はPostgreSQLを使用した応募管理リポジトリ。
// 構造化レジュメ・オファー条件・応募分析はJSONB列に保存する。
type PostgresTrackedJobRepo struct {
	db *sql.DB
}

// NewPostgresTrackedJobRepo はPostgresTrackedJobRepoを生成する。
func NewPostgresTrackedJobRepo(db *sql.DB) *PostgresTrackedJobRepo {
	return &PostgresTrackedJobRepo{db: db}
}

// ListByUserID はユーザーの応募管理一覧を追加日時の新しい順に返す。
func (r *PostgresTrackedJobRepo) ListByUserID(ctx context.Context, userID string) ([]model.TrackedJob, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT job_id, title, company, location, description, tags, salary, posted_date, source_url,
		        status, notes, tailored_resume, tailored_cover_letter,
		        structured_resume, offer_details, insights
		 FROM tracked_jobs
		 WHERE user_id = $1
		 ORDER BY created_at DESC, seq DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("応募管理一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var jobs []model.TrackedJob
	for rows.Next() {
		var t model.TrackedJob
		var sourceURL, tailoredResume, tailoredCoverLetter sql.NullString
		var structured, offer, insights []byte

		if err := rows.Scan(
			&t.ID, &t.Title, &t.Company, &t.Location, &t.Description,
			pq.Array(&t.Tags), &t.Salary, &t.PostedDate, &sourceURL,
			&t.Status, &t.Notes, &tailoredResume, &tailoredCoverLetter,
			&structured, &offer, &insights,
		); err != nil {
			return nil, fmt.Errorf("応募管理レコードの読み取りに失敗しました: %w", err)
		}

		t.Tags = nonNilTags(t.Tags)
		t.SourceURL = nullStringValue(sourceURL)
		t.TailoredResume = nullStringValue(tailoredResume)
		t.TailoredCoverLetter = nullStringValue(tailoredCoverLetter)

		if err := unmarshalNullableJSON(structured, &t.StructuredResume); err != nil {
			return nil, fmt.Errorf("構造化レジュメの復元に失敗しました: %w", err)
		}
		if err := unmarshalNullableJSON(offer, &t.OfferDetails); err != nil {
			return nil, fmt.Errorf("オファー条件の復元に失敗しました: %w", err)
		}
		if err := unmarshalNullableJSON(insights, &t.Insights); err != nil {
			return nil, fmt.Errorf("応募分析の復元に失敗しました: %w", err)
		}

		jobs = append(jobs, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("応募管理一覧の走査に失敗しました: %w", err)
	}
	return jobs, nil
}

// Create は応募管理レコードを作成する。
// UNIQUE(user_id, job_id)制約により同じ求人の二重登録はエラーになる。
func (r *PostgresTrackedJobRepo) Create(ctx context.Context, userID string, t *model.TrackedJob) error {
	return insertTrackedJob(ctx, r.db, userID, t)
}

func insertTrackedJob(ctx context.Context, ex execer, userID string, t *model.TrackedJob) error {
	structured, offer, insights, err := marshalTrackedJSON(t)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx,
		`INSERT INTO tracked_jobs (user_id, job_id, title, company, location, description, tags,
		                           salary, posted_date, source_url, status, notes,
		                           tailored_resume, tailored_cover_letter,
		                           structured_resume, offer_details, insights, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, now(), now())`,
		userID, t.ID, t.Title, t.Company, t.Location, t.Description, pq.Array(nonNilTags(t.Tags)),
		t.Salary, t.PostedDate, nullString(t.SourceURL), string(t.Status), t.Notes,
		nullString(t.TailoredResume), nullString(t.TailoredCoverLetter),
		structured, offer, insights,
	)
	if err != nil {
		return fmt.Errorf("応募管理レコードの作成に失敗しました: %w", err)
	}
	return nil
}

// Update は応募管理レコードを上書き更新する。求人本体の列は変更しない。
func (r *PostgresTrackedJobRepo) Update(ctx context.Context, userID string, t *model.TrackedJob) error {
	structured, offer, insights, err := marshalTrackedJSON(t)
	if err != nil {
		return err
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE tracked_jobs SET
		    status = $3,
		    notes = $4,
		    tailored_resume = $5,
		    tailored_cover_letter = $6,
		    structured_resume = $7,
		    offer_details = $8,
		    insights = $9,
		    updated_at = now()
		 WHERE user_id = $1 AND job_id = $2`,
		userID, t.ID, string(t.Status), t.Notes,
		nullString(t.TailoredResume), nullString(t.TailoredCoverLetter),
		structured, offer, insights,
	)
	if err != nil {
		return fmt.Errorf("応募管理レコードの更新に失敗しました: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("tracked job not found: %s", t.ID)
	}
	return nil
}

// DeleteByUserID はユーザーの応募管理レコードを全て削除する。
func (r *PostgresTrackedJobRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return deleteTrackedJobs(ctx, r.db, userID)
}

func deleteTrackedJobs(ctx context.Context, ex execer, userID string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM tracked_jobs WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("応募管理レコードの削除に失敗しました: %w", err)
	}
	return nil
}

// marshalTrackedJSON はJSONB列に保存する3項目をシリアライズする。nilはSQL NULLになる。
func marshalTrackedJSON(t *model.TrackedJob) (structured, offer, insights []byte, err error) {
	if structured, err = marshalNullableJSON(t.StructuredResume); err != nil {
		return nil, nil, nil, fmt.Errorf("構造化レジュメのシリアライズに失敗しました: %w", err)
	}
	if offer, err = marshalNullableJSON(t.OfferDetails); err != nil {
		return nil, nil, nil, fmt.Errorf("オファー条件のシリアライズに失敗しました: %w", err)
	}
	if insights, err = marshalNullableJSON(t.Insights); err != nil {
		return nil, nil, nil, fmt.Errorf("応募分析のシリアライズに失敗しました: %w", err)
	}
	return structured, offer, insights, nil
}

func marshalNullableJSON[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func unmarshalNullableJSON[T any](data []byte, dst **T) error {
	if len(data) == 0 {
		*dst = nil
		return nil
	}
	v := new(T)
	if err := json.Unmarshal(data, v); err != nil {
		return err
	}
	*dst = v
	return nil
}

// compile-time interface check
var _ TrackedJobRepository = (*PostgresTrackedJobRepo)(nil)
