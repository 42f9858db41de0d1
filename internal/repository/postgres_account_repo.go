package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/jobassist/internal/model"
)

const (
	selectUserByIDQuery = `
		SELECT id, email, name, avatar_url, created_at, updated_at
		FROM users
		WHERE id = $1`

	insertUserQuery = `
		INSERT INTO users (id, email, name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	insertIdentityQuery = `
		INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	selectIdentityQuery = `
		SELECT id, user_id, provider, provider_user_id, created_at
		FROM identities
		WHERE provider = $1 AND provider_user_id = $2`
)

// PostgresAccountRepo はusersとidentitiesを扱うリポジトリ。
// MemoryUserRepo と同じく UserRepository と IdentityRepository の両方を満たす。
type PostgresAccountRepo struct {
	db *sql.DB
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db *sql.DB) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresAccountRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	var (
		u      model.User
		avatar sql.NullString
	)
	err := r.db.QueryRowContext(ctx, selectUserByIDQuery, id).
		Scan(&u.ID, &u.Email, &u.Name, &avatar, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user %s: %w", id, err)
	}
	u.AvatarURL = nullStringValue(avatar)
	return &u, nil
}

// CreateWithIdentity はユーザーとidentityを1トランザクションで作成する。
// ゲストはサインインのたびに新しいユーザーになるため、identityの重複はOAuthユーザーでのみ起こる。
func (r *PostgresAccountRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if identity.UserID != user.ID {
		return fmt.Errorf("identity belongs to user %s, not %s", identity.UserID, user.ID)
	}

	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, insertUserQuery,
			user.ID, user.Email, user.Name, nullString(user.AvatarURL), user.CreatedAt, user.UpdatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		if _, err := tx.ExecContext(ctx, insertIdentityQuery,
			identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert %s identity: %w", identity.Provider, err)
		}
		return nil
	})
}

// DeleteByID はユーザーを削除する。identities以下の行はCASCADEで消える。
// 該当ユーザーがいなければ ErrNotFound を返す。
func (r *PostgresAccountRepo) DeleteByID(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return nil
}

// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
func (r *PostgresAccountRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	var ident model.Identity
	err := r.db.QueryRowContext(ctx, selectIdentityQuery, provider, providerUserID).
		Scan(&ident.ID, &ident.UserID, &ident.Provider, &ident.ProviderUserID, &ident.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find %s identity: %w", provider, err)
	}
	return &ident, nil
}

// execer は *sql.DB と *sql.Tx の共通部分。
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// withTx はfnをトランザクション内で実行し、エラーがなければコミットする。
func withTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

var (
	_ UserRepository     = (*PostgresAccountRepo)(nil)
	_ IdentityRepository = (*PostgresAccountRepo)(nil)
)
