package security

import (
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer は取り込んだHTMLを表示・生成入力用の平文に変換する。
// カタログフィードの求人本文と求人ページの本文抽出で使用する。
type TextSanitizer interface {
	// PlainText はすべてのタグを除去し、実体参照を戻した平文を返す。
	// script と style の中身は出力しない。段落や改行の境界は改行として残す。
	PlainText(rawHTML string) string
}

// blockBoundary は改行として扱う要素の開始・終了タグ。
var blockBoundary = regexp.MustCompile(`(?i)<(/?(p|div|br|li|ul|ol|h[1-6]|tr|section|article|header|footer)\b)`)

var spaces = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)

// textSanitizer はTextSanitizerの実装。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はbluemondayのStrictPolicyを使うTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// PlainText はHTMLを平文に変換する。
func (s *textSanitizer) PlainText(rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}
	marked := blockBoundary.ReplaceAllString(rawHTML, "\n<$1")
	text := html.UnescapeString(s.policy.Sanitize(marked))

	lines := strings.Split(text, "\n")
	out := lines[:0]
	for _, line := range lines {
		line = strings.TrimSpace(spaces.ReplaceAllString(line, " "))
		if line != "" {
			out = append(out, line)
		}
	}
	return strings.Join(out, "\n")
}
