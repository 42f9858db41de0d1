package catalog

import (
	"fmt"
	"net/http"
	"time"

	"github.com/hitoshi/jobassist/internal/model"
)

// Verdict はフィードのHTTP応答に対する取り込み判定。
type Verdict string

const (
	// VerdictImport は本文をパースして求人を取り込む。
	VerdictImport Verdict = "import"
	// VerdictUnchanged は条件付きGETで未変更だった。
	VerdictUnchanged Verdict = "unchanged"
	// VerdictStop は取り込み元が消えたか拒否しているため停止する。
	VerdictStop Verdict = "stop"
	// VerdictRetry は一時的な失敗としてバックオフ後に再試行する。
	VerdictRetry Verdict = "retry"
)

// 取り込み結果の集計ラベル
const (
	resultImported    = "imported"
	resultNotModified = "not_modified"
	resultStopped     = "stopped"
	resultBackoff     = "backoff"
	resultParseError  = "parse_error"
)

// JudgeStatus はステータスコードから取り込み判定を返す。
// 想定外のコードは再試行扱い。
func JudgeStatus(statusCode int) Verdict {
	switch statusCode {
	case http.StatusOK:
		return VerdictImport
	case http.StatusNotModified:
		return VerdictUnchanged
	case http.StatusNotFound, http.StatusGone, http.StatusUnauthorized, http.StatusForbidden:
		return VerdictStop
	}
	return VerdictRetry
}

// RetryPolicy はフィード単位の失敗時の扱いを決める。
type RetryPolicy struct {
	// BaseDelay は1回目の失敗後の待ち時間。以降は倍々に延ばす。
	BaseDelay time.Duration
	// MaxDelay は待ち時間の上限。
	MaxDelay time.Duration
	// MaxParseFailures はパース失敗が連続したときに停止する回数。
	MaxParseFailures int
}

// DefaultRetryPolicy は30分始まり、上限12時間、パース失敗10回で停止する設定を返す。
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:        30 * time.Minute,
		MaxDelay:         12 * time.Hour,
		MaxParseFailures: 10,
	}
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = max(def.MaxDelay, p.BaseDelay)
	}
	if p.MaxParseFailures <= 0 {
		p.MaxParseFailures = def.MaxParseFailures
	}
	return p
}

// Delay は直前までの失敗回数 failures から次回までの待ち時間を返す。
func (p RetryPolicy) Delay(failures int) time.Duration {
	if failures <= 0 {
		return min(p.BaseDelay, p.MaxDelay)
	}
	// 20回を超えるシフトは int64 を溢れさせる
	if failures >= 20 {
		return p.MaxDelay
	}
	return min(p.BaseDelay<<failures, p.MaxDelay)
}

// Stop はフィードを停止状態にする。管理者が戻すまで取り込まれない。
func (p RetryPolicy) Stop(feed *model.CatalogFeed, reason string, now time.Time) {
	feed.FetchStatus = model.FetchStatusStopped
	feed.ErrorMessage = reason
	feed.UpdatedAt = now
}

// Defer は失敗を1回数え、バックオフ後を次回フェッチ時刻にする。
func (p RetryPolicy) Defer(feed *model.CatalogFeed, reason string, now time.Time) {
	feed.ConsecutiveErrors++
	feed.ErrorMessage = reason
	feed.NextFetchAt = now.Add(p.Delay(feed.ConsecutiveErrors - 1))
	feed.UpdatedAt = now
}

// Reset は失敗の記録を消し、interval 後を次回フェッチ時刻にする。
func (p RetryPolicy) Reset(feed *model.CatalogFeed, interval time.Duration, now time.Time) {
	feed.ConsecutiveErrors = 0
	feed.ErrorMessage = ""
	feed.NextFetchAt = now.Add(interval)
	feed.UpdatedAt = now
}

// ParseFailed はパース失敗を Defer と同じく数え、上限に達したら停止する。
func (p RetryPolicy) ParseFailed(feed *model.CatalogFeed, reason string, now time.Time) {
	p.Defer(feed, fmt.Sprintf("パース失敗 (%d回連続): %s", feed.ConsecutiveErrors+1, reason), now)
	if feed.ConsecutiveErrors < p.MaxParseFailures {
		return
	}
	p.Stop(feed, fmt.Sprintf("パース失敗が%d回連続したため取り込みを停止しました: %s", feed.ConsecutiveErrors, reason), now)
}
