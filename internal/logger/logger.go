// Package logger はslogのJSON構造化ログを組み立てる。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Redacted は伏せ字にした属性値。
const Redacted = "[REDACTED]"

// sensitiveKeys は値をログに残さない属性キー。
// 職務経歴書や応募書類の本文は個人情報なので含める。
var sensitiveKeys = map[string]bool{
	"api_key":       true,
	"authorization": true,
	"cookie":        true,
	"password":      true,
	"token":         true,
	"resume":        true,
	"resume_text":   true,
	"cover_letter":  true,
}

// Options はロガーの出力設定。
type Options struct {
	Level slog.Level
	// Service は全レコードに service 属性として付く。空なら付けない。
	Service string
}

// New は w にJSONで書き出す slog.Logger を返す。
// sensitiveKeys に当たる属性は値を Redacted に置き換える。
func New(w io.Writer, opts Options) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       opts.Level,
		ReplaceAttr: redact,
	})
	l := slog.New(handler)
	if opts.Service != "" {
		l = l.With(slog.String("service", opts.Service))
	}
	return l
}

// Install は New で作ったロガーをグローバルロガーにして返す。
func Install(w io.Writer, opts Options) *slog.Logger {
	l := New(w, opts)
	slog.SetDefault(l)
	return l
}

func redact(groups []string, a slog.Attr) slog.Attr {
	if sensitiveKeys[strings.ToLower(a.Key)] {
		return slog.String(a.Key, Redacted)
	}
	return a
}

// ParseLevel はLOG_LEVELの値（debug/info/warn/error）をslog.Levelに変換する。
// 不明な値はINFOとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
