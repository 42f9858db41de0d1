// Package jobpage は求人ページURLから本文テキストを取り出す。
// 取り出したテキストは求人インポートの生成入力として使う。
package jobpage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/security"
)

const (
	fetchTimeout = 10 * time.Second
	maxBodySize  = 5 * 1024 * 1024
	// maxTextRunes は生成入力に渡す本文の上限文字数。
	maxTextRunes = 15000
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Page は求人ページから抽出した内容。
type Page struct {
	URL   string
	Title string
	Text  string
}

// Content は生成入力用に URL・タイトル・本文を連結した文字列を返す。
func (p *Page) Content() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Source URL: %s\n", p.URL)
	if p.Title != "" {
		fmt.Fprintf(&b, "Page title: %s\n", p.Title)
	}
	b.WriteString("\n")
	b.WriteString(p.Text)
	return b.String()
}

// Extractor は求人ページを取得して本文を抽出する。
type Extractor struct {
	ssrfGuard SSRFValidator
	sanitizer security.TextSanitizer
}

// NewExtractor はExtractorの新しいインスタンスを生成する。
func NewExtractor(ssrfGuard SSRFValidator, sanitizer security.TextSanitizer) *Extractor {
	return &Extractor{ssrfGuard: ssrfGuard, sanitizer: sanitizer}
}

// Extract はURLを取得し、HTMLから本文テキストを抽出する。
// 構造化データ（JSON-LD の JobPosting）があればその説明文を優先する。
func (e *Extractor) Extract(ctx context.Context, rawURL string) (*Page, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, model.NewInvalidURLError("URLが入力されていません")
	}
	if err := e.ssrfGuard.ValidateURL(rawURL); err != nil {
		return nil, model.NewSSRFBlockedError()
	}

	client := e.ssrfGuard.NewSafeClient(fetchTimeout, maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, model.NewInvalidURLError(err.Error())
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; JobAssist/1.0)")
	req.Header.Set("Accept", "text/html, application/xhtml+xml, text/plain;q=0.8, */*;q=0.5")

	resp, err := client.Do(req)
	if err != nil {
		return nil, model.NewFetchFailedError(err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewFetchFailedError(fmt.Sprintf("HTTPステータス %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, model.NewFetchFailedError(fmt.Sprintf("レスポンスの読み取りに失敗: %v", err))
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	var page *Page
	switch {
	case mediaType == "text/plain":
		page = &Page{URL: rawURL, Text: strings.TrimSpace(string(body))}
	case mediaType == "" || strings.Contains(mediaType, "html"):
		page, err = e.parseHTML(body, rawURL)
		if err != nil {
			return nil, model.NewFetchFailedError(fmt.Sprintf("HTMLの解析に失敗: %v", err))
		}
	default:
		return nil, model.NewFetchFailedError(fmt.Sprintf("未対応のContent-Typeです: %s", mediaType))
	}

	if page.Text == "" {
		return nil, model.NewFetchFailedError("ページから本文を抽出できませんでした")
	}
	page.Text = truncateRunes(page.Text, maxTextRunes)
	return page, nil
}

// parseHTML はHTMLからタイトルと本文を取り出す。
func (e *Extractor) parseHTML(body []byte, pageURL string) (*Page, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	page := &Page{URL: pageURL}
	var (
		main       *html.Node
		bodyNode   *html.Node
		postingTxt string
	)

	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Title:
				if page.Title == "" && n.FirstChild != nil {
					page.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case atom.Script:
				if attr(n, "type") == "application/ld+json" && n.FirstChild != nil && postingTxt == "" {
					postingTxt = jobPostingText(n.FirstChild.Data)
				}
				return
			case atom.Main:
				if main == nil {
					main = n
				}
			case atom.Body:
				bodyNode = n
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if postingTxt != "" {
		page.Text = e.sanitizer.PlainText(postingTxt)
		return page, nil
	}

	root := main
	if root == nil {
		root = bodyNode
	}
	if root == nil {
		return page, nil
	}
	stripChrome(root)

	var buf bytes.Buffer
	if err := html.Render(&buf, root); err != nil {
		return nil, err
	}
	page.Text = e.sanitizer.PlainText(buf.String())
	return page, nil
}

// stripChrome はナビゲーションなど本文以外の要素を取り除く。
func stripChrome(n *html.Node) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		if c.Type == html.ElementNode {
			switch c.DataAtom {
			case atom.Nav, atom.Header, atom.Footer, atom.Aside, atom.Form, atom.Noscript, atom.Svg:
				n.RemoveChild(c)
				c = next
				continue
			}
		}
		stripChrome(c)
		c = next
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return strings.ToLower(strings.TrimSpace(a.Val))
		}
	}
	return ""
}

// jobPosting はJSON-LDのJobPostingから使う項目。
type jobPosting struct {
	Type               any    `json:"@type"`
	Title              string `json:"title"`
	Description        string `json:"description"`
	HiringOrganization struct {
		Name string `json:"name"`
	} `json:"hiringOrganization"`
}

// jobPostingText はJSON-LDからJobPostingを探し、タイトル・会社名・説明文を連結して返す。
// 配列と @graph の両方の形式を受け付ける。
func jobPostingText(raw string) string {
	var candidates []json.RawMessage
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal([]byte(trimmed), &candidates); err != nil {
			return ""
		}
	} else {
		var graph struct {
			Graph []json.RawMessage `json:"@graph"`
		}
		if err := json.Unmarshal([]byte(trimmed), &graph); err != nil {
			return ""
		}
		candidates = append(graph.Graph, json.RawMessage(trimmed))
	}

	for _, c := range candidates {
		var p jobPosting
		if err := json.Unmarshal(c, &p); err != nil || !isJobPosting(p.Type) || p.Description == "" {
			continue
		}
		var parts []string
		if p.Title != "" {
			parts = append(parts, "<p>"+html.EscapeString(p.Title)+"</p>")
		}
		if p.HiringOrganization.Name != "" {
			parts = append(parts, "<p>"+html.EscapeString(p.HiringOrganization.Name)+"</p>")
		}
		parts = append(parts, p.Description)
		return strings.Join(parts, "\n")
	}
	return ""
}

func isJobPosting(t any) bool {
	switch v := t.(type) {
	case string:
		return v == "JobPosting"
	case []any:
		for _, x := range v {
			if s, ok := x.(string); ok && s == "JobPosting" {
				return true
			}
		}
	}
	return false
}

func truncateRunes(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return string(r[:limit])
}
