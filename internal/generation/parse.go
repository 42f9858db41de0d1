package generation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	errNotJSON    = errors.New("response is not valid JSON")
	errWrongShape = errors.New("response has an unexpected shape")
)

var fencedBlock = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*(.*?)\\s*```")

// parseJSON は応答テキストを型なしの中間表現に変換する。
// コードフェンス内のJSONを優先し、無ければテキスト全体をJSONとして扱う。
func parseJSON(text string) (any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errNotJSON
	}

	if m := fencedBlock.FindStringSubmatch(text); m != nil && m[1] != "" {
		var v any
		if err := json.Unmarshal([]byte(m[1]), &v); err == nil {
			return v, nil
		}
	}

	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("%w: %v", errNotJSON, err)
	}
	return v, nil
}

// parseObject はJSONオブジェクトとして解釈する。
func parseObject(text string) (map[string]any, error) {
	v, err := parseJSON(text)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, errWrongShape
	}
	return obj, nil
}

// parseArray はJSON配列として解釈する。
// オブジェクトで包まれている場合は keys のいずれかに入った配列を取り出す。
func parseArray(text string, keys ...string) ([]any, error) {
	v, err := parseJSON(text)
	if err != nil {
		return nil, err
	}
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		for _, k := range keys {
			if arr, ok := t[k].([]any); ok {
				return arr, nil
			}
		}
	}
	return nil, errWrongShape
}

// --- 中間表現からの値の取り出し ---

// str は m[key] を文字列として返す。空・欠落・非文字列の場合は def を返す。
func str(m map[string]any, key, def string) string {
	switch v := m[key].(type) {
	case string:
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	case float64:
		return fmt.Sprintf("%g", v)
	}
	return def
}

// strs は m[key] を文字列スライスとして返す。
// カンマ区切りの文字列も受け付ける。欠落時は空スライス（nilではない）を返す。
func strs(m map[string]any, key string) []string {
	out := []string{}
	switch v := m[key].(type) {
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
	case string:
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}

// objects は配列要素のうちオブジェクトだけを返す。
func objects(arr []any) []map[string]any {
	out := make([]map[string]any, 0, len(arr))
	for _, e := range arr {
		if m, ok := e.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// firstStr は keys を順に試して最初に見つかった文字列を返す。
func firstStr(m map[string]any, def string, keys ...string) string {
	for _, k := range keys {
		if s := str(m, k, ""); s != "" {
			return s
		}
	}
	return def
}
