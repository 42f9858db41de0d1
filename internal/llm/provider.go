// Package llm は生成AIプロバイダへの薄いアダプタを提供する。
//
// プロバイダごとの差異（SDK・ブロック理由・空応答の扱い）をここで吸収し、
// 呼び出し側にはテキスト応答、*BlockedError、ErrEmptyResponse のいずれかを返す。
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse はプロバイダが候補やテキストを1件も返さなかった場合のエラー。
var ErrEmptyResponse = errors.New("llm: empty response")

// BlockedError はプロバイダの安全性フィルタなどで生成が拒否された場合のエラー。
type BlockedError struct {
	Reason string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("llm: request blocked: %s", e.Reason)
}

// Part はプロンプトに添付するバイナリデータ（PDF・画像など）。
type Part struct {
	MIMEType string
	Data     []byte
}

// Request は1回の生成リクエスト。
type Request struct {
	Prompt string
	Parts  []Part
	// Search が true の場合、最新の公開情報に基づく回答を求める。
	Search bool
	// JSON が true の場合、応答をJSONのみに制限するよう要求する。
	JSON bool
}

// Provider は生成AIプロバイダのインターフェース。
type Provider interface {
	// Generate はリクエストを送信し、応答テキストを返す。
	Generate(ctx context.Context, req Request) (string, error)
	// Name はログとメトリクスに使うプロバイダ名を返す。
	Name() string
}

const searchHint = "\n\nUse current, publicly available information from the web when answering. " +
	"Prefer recent sources and do not invent facts you cannot verify."

// promptText は Search 指定に応じてヒントを付加したプロンプトを返す。
func promptText(req Request) string {
	if !req.Search {
		return req.Prompt
	}
	return strings.TrimRight(req.Prompt, "\n") + searchHint
}

// IsBlocked は err がブロックエラーであればその理由を返す。
func IsBlocked(err error) (string, bool) {
	var be *BlockedError
	if errors.As(err, &be) {
		return be.Reason, true
	}
	return "", false
}
