package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresUserDataRepo はプロフィール・応募管理・ウィッシュリストをまとめて書き換えるリポジトリ。
// データのリセットと初回サインイン時の初期データ書き込みで使う。
type PostgresUserDataRepo struct {
	db *sql.DB
}

// NewPostgresUserDataRepo はPostgresUserDataRepoを生成する。
func NewPostgresUserDataRepo(db *sql.DB) *PostgresUserDataRepo {
	return &PostgresUserDataRepo{db: db}
}

// Replace はユーザーデータ一式を1トランザクションで置き換える。
// 応募管理は created_at の新しい順で読まれるので、古いものから挿入する。
func (r *PostgresUserDataRepo) Replace(ctx context.Context, userID string, data UserData) error {
	return withTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := deleteTrackedJobs(ctx, tx, userID); err != nil {
			return err
		}
		if err := deleteWishlistEntries(ctx, tx, userID); err != nil {
			return err
		}
		for i := len(data.Tracked) - 1; i >= 0; i-- {
			if err := insertTrackedJob(ctx, tx, userID, &data.Tracked[i]); err != nil {
				return fmt.Errorf("job %s: %w", data.Tracked[i].ID, err)
			}
		}
		if err := insertWishlistJobs(ctx, tx, userID, data.Wishlist); err != nil {
			return err
		}
		profile := data.Profile
		return upsertProfile(ctx, tx, userID, &profile)
	})
}

// compile-time interface check
var _ UserDataRepository = (*PostgresUserDataRepo)(nil)
