package model

import (
	"fmt"
	"time"
)

// CatalogFeed は求人カタログの取り込み元となるRSS/Atomフィードを表す。
// Company・Location・Tags はフィード内の項目に値が無い場合の既定値。
type CatalogFeed struct {
	ID                string
	FeedURL           string
	Title             string
	Company           string
	Location          string
	Tags              []string
	ETag              string
	LastModified      string
	FetchStatus       FetchStatus
	ConsecutiveErrors int
	ErrorMessage      string
	NextFetchAt       time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// FetchStatus はフィードのフェッチ状態を表す。
type FetchStatus string

const (
	// FetchStatusActive はアクティブなフェッチ状態。
	FetchStatusActive FetchStatus = "active"
	// FetchStatusStopped は停止されたフェッチ状態。
	FetchStatusStopped FetchStatus = "stopped"
)

// CatalogJob はフィードから取り込んだ求人。
type CatalogJob struct {
	Job
	FeedID    string
	GUID      string
	PostedAt  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// FormatPostedDays は経過日数を「N days ago」形式の表示文字列にする。
// 7日で「1 week ago」、それ以上は週単位に切り捨てる。
func FormatPostedDays(days int) string {
	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "1 day ago"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	case days == 7:
		return "1 week ago"
	case days < 14:
		return "1 week ago"
	default:
		return fmt.Sprintf("%d weeks ago", days/7)
	}
}

// PostedDateSince は掲載日時から表示用の相対日付を求める。
func PostedDateSince(postedAt, now time.Time) string {
	if postedAt.IsZero() {
		return "Recently"
	}
	elapsed := now.Sub(postedAt)
	if elapsed < time.Hour {
		return "Just now"
	}
	if elapsed < 24*time.Hour {
		hours := int(elapsed / time.Hour)
		if hours == 1 {
			return "Posted 1 hour ago"
		}
		return fmt.Sprintf("Posted %d hours ago", hours)
	}
	return FormatPostedDays(int(elapsed / (24 * time.Hour)))
}
