package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/jobassist/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByUserID はユーザーのプロフィールを取得する。未保存の場合はnilを返す。
func (r *PostgresProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	var avatarURL, coverImageURL sql.NullString

	err := r.db.QueryRowContext(ctx,
		`SELECT name, email, phone, linkedin_url, github_url, portfolio_url,
		        bio, base_resume, avatar_url, cover_image_url
		 FROM profiles WHERE user_id = $1`,
		userID,
	).Scan(
		&p.Name, &p.Email, &p.Phone, &p.LinkedIn, &p.GitHub, &p.Portfolio,
		&p.Bio, &p.BaseResume, &avatarURL, &coverImageURL,
	)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}

	p.AvatarURL = nullStringValue(avatarURL)
	p.CoverImageURL = nullStringValue(coverImageURL)
	return p, nil
}

// Upsert はプロフィールを丸ごと保存する。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, userID string, p *model.UserProfile) error {
	return upsertProfile(ctx, r.db, userID, p)
}

func upsertProfile(ctx context.Context, ex execer, userID string, p *model.UserProfile) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO profiles (user_id, name, email, phone, linkedin_url, github_url, portfolio_url,
		                       bio, base_resume, avatar_url, cover_image_url, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		 ON CONFLICT (user_id) DO UPDATE SET
		    name = EXCLUDED.name,
		    email = EXCLUDED.email,
		    phone = EXCLUDED.phone,
		    linkedin_url = EXCLUDED.linkedin_url,
		    github_url = EXCLUDED.github_url,
		    portfolio_url = EXCLUDED.portfolio_url,
		    bio = EXCLUDED.bio,
		    base_resume = EXCLUDED.base_resume,
		    avatar_url = EXCLUDED.avatar_url,
		    cover_image_url = EXCLUDED.cover_image_url,
		    updated_at = now()`,
		userID, p.Name, p.Email, p.Phone, p.LinkedIn, p.GitHub, p.Portfolio,
		p.Bio, p.BaseResume, nullString(p.AvatarURL), nullString(p.CoverImageURL),
	)
	if err != nil {
		return fmt.Errorf("プロフィールの保存に失敗しました: %w", err)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
