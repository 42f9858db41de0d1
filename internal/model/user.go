// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザー。ゲストは google のidentityを持たない。
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Identity は外部IdPのアカウントとUserの紐付け。
// Provider は google か、デモ用の guest。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はCookieで指されるログインセッション。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Expired はnowの時点でセッションが期限切れかを返す。ExpiresAtが未設定なら期限なし。
func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !s.ExpiresAt.After(now)
}

// AccountExport はユーザーが持ち出せる自分のデータ一式。
// 共有の求人カタログや検索結果は含めない。
type AccountExport struct {
	ExportedAt time.Time    `json:"exportedAt"`
	User       User         `json:"user"`
	Profile    UserProfile  `json:"profile"`
	Tracked    []TrackedJob `json:"trackedJobs"`
	Wishlist   []Job        `json:"wishlist"`
}
