// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/jobassist/internal/model"
)

// ErrNotFound は更新や削除の対象が存在しないことを表す。
var ErrNotFound = errors.New("not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// CreateWithIdentity はユーザーとidentityを同一トランザクションで作成する。
	CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error

	// DeleteByID は指定IDのユーザーを削除する。存在しなければ ErrNotFound を返す。
	// 関連するidentities、profiles、tracked_jobs、wishlist_entriesはCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// IdentityRepository は外部IdP紐付け情報の永続化インターフェース。
type IdentityRepository interface {
	// FindByProviderAndProviderUserID はproviderとprovider_user_idでidentityを検索する。
	// 見つからない場合はnilを返す。
	FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SessionSweeper は期限切れセッションを掃除できるリポジトリ。
type SessionSweeper interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// ProfileRepository はプロフィールの永続化インターフェース。
type ProfileRepository interface {
	// FindByUserID はユーザーのプロフィールを取得する。未保存の場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.UserProfile, error)

	// Upsert はプロフィールを丸ごと保存する。
	Upsert(ctx context.Context, userID string, profile *model.UserProfile) error
}

// TrackedJobRepository は応募管理データの永続化インターフェース。
type TrackedJobRepository interface {
	// ListByUserID はユーザーの応募管理一覧を追加日時の新しい順に返す。
	ListByUserID(ctx context.Context, userID string) ([]model.TrackedJob, error)

	// Create は応募管理レコードを作成する。同じ求人IDが既にある場合はエラーを返す。
	Create(ctx context.Context, userID string, job *model.TrackedJob) error

	// Update は応募管理レコードを上書き更新する。
	Update(ctx context.Context, userID string, job *model.TrackedJob) error

	// DeleteByUserID はユーザーの応募管理レコードを全て削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// WishlistRepository はウィッシュリストの永続化インターフェース。
type WishlistRepository interface {
	// ListByUserID はユーザーのウィッシュリストを追加順に返す。
	ListByUserID(ctx context.Context, userID string) ([]model.Job, error)

	// AddMany は求人をまとめて追加する。既に存在する求人は無視する。
	AddMany(ctx context.Context, userID string, jobs []model.Job) error

	// Remove はウィッシュリストから求人を削除する。
	Remove(ctx context.Context, userID, jobID string) error

	// DeleteByUserID はユーザーのウィッシュリストを全て削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// UserData はユーザー1人分のプロフィール・応募管理・ウィッシュリスト。
// Tracked は新しい順、Wishlist は追加順に並べる。
type UserData struct {
	Profile  model.UserProfile
	Tracked  []model.TrackedJob
	Wishlist []model.Job
}

// UserDataRepository はユーザーデータ一式をまとめて書き換える。
type UserDataRepository interface {
	// Replace は既存の応募管理とウィッシュリストを消してdataで置き換え、プロフィールも上書きする。
	// 全体を1トランザクションで行い、失敗した場合は何も変更しない。
	Replace(ctx context.Context, userID string, data UserData) error
}

// CatalogFeedRepository は求人カタログの取り込み元フィードの永続化インターフェース。
type CatalogFeedRepository interface {
	// UpsertByURL はフィードURLをキーにフィード設定を作成または更新する。
	// 既存フィードのフェッチ状態は変更しない。
	UpsertByURL(ctx context.Context, feed *model.CatalogFeed) error

	// ListDueForFetch はフェッチ対象のフィードを取得する。
	// next_fetch_at <= now() かつ fetch_status = 'active' のフィードを
	// FOR UPDATE SKIP LOCKEDで排他的に取得する。
	ListDueForFetch(ctx context.Context) ([]*model.CatalogFeed, error)

	// UpdateFetchState はフィードのフェッチ状態を更新する。
	UpdateFetchState(ctx context.Context, feed *model.CatalogFeed) error
}

// CatalogJobRepository は取り込み済み求人の永続化インターフェース。
type CatalogJobRepository interface {
	// FindByFeedAndGUID はfeed_idとguidで求人を検索する。見つからない場合はnilを返す。
	FindByFeedAndGUID(ctx context.Context, feedID, guid string) (*model.CatalogJob, error)

	// Create は求人を作成する。
	Create(ctx context.Context, job *model.CatalogJob) error

	// Update は既存求人を上書き更新する。
	Update(ctx context.Context, job *model.CatalogJob) error

	// ListRecent は掲載日時の新しい順に最大limit件の求人を返す。
	ListRecent(ctx context.Context, limit int) ([]model.Job, error)
}
