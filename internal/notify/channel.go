// Package notify はユーザー単位のトースト通知キューを提供する。
// 通知は一定時間後に自動で消え、明示的に閉じることもできる。
package notify

import (
	"sort"
	"sync"
	"time"

	"github.com/hitoshi/jobassist/internal/model"
)

// DefaultTTL はトーストが自動で消えるまでの時間。
const DefaultTTL = 5 * time.Second

// Notifier はトーストを発行するインターフェース。
// Store や各ハンドラーはこのインターフェースにのみ依存する。
type Notifier interface {
	// Show はトーストを追加し、採番したIDを返す。
	Show(message string, typ model.ToastType) int64
}

// Channel はトースト通知のキュー。
// 1ユーザーにつき1つ生成し、複数のゴルーチンから安全に利用できる。
type Channel struct {
	mu     sync.Mutex
	toasts map[int64]model.Toast
	timers map[int64]*time.Timer
	lastID int64
	ttl    time.Duration
	now    func() time.Time
	closed bool
}

// Option はChannelの設定を変更する関数。
type Option func(*Channel)

// WithTTL は自動消滅までの時間を設定する。
func WithTTL(ttl time.Duration) Option {
	return func(c *Channel) {
		c.ttl = ttl
	}
}

// WithClock はID採番に使う時刻関数を差し替える（テスト用）。
func WithClock(now func() time.Time) Option {
	return func(c *Channel) {
		c.now = now
	}
}

// NewChannel は空のChannelを生成する。
func NewChannel(opts ...Option) *Channel {
	c := &Channel{
		toasts: make(map[int64]model.Toast),
		timers: make(map[int64]*time.Timer),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Show はトーストを追加し、TTL経過後に自動で削除する。
// IDは現在時刻のミリ秒値だが、同一ミリ秒内でも前回より必ず大きくなる。
func (c *Channel) Show(message string, typ model.ToastType) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.now().UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id

	if c.closed {
		return id
	}

	c.toasts[id] = model.Toast{ID: id, Message: message, Type: typ}
	c.timers[id] = time.AfterFunc(c.ttl, func() {
		c.Dismiss(id)
	})
	return id
}

// Dismiss は指定IDのトーストを削除する。
// 既に消えている場合は false を返す。
func (c *Channel) Dismiss(id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.toasts[id]; !ok {
		return false
	}
	delete(c.toasts, id)
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	return true
}

// List は表示中のトーストをID昇順で返す。
func (c *Channel) List() []model.Toast {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.Toast, 0, len(c.toasts))
	for _, t := range c.toasts {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Close は全てのタイマーを停止し、以後のトーストを破棄する。
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for id, t := range c.timers {
		t.Stop()
		delete(c.timers, id)
	}
	c.toasts = make(map[int64]model.Toast)
	c.closed = true
}

var _ Notifier = (*Channel)(nil)
