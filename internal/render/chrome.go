package render

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

const defaultRenderTimeout = 60 * time.Second

// ChromeOptions はブラウザの起動方法。
// RemoteURL があればそのDevTools（例: ws://chrome:9222）に接続し、無ければローカルで起動する。
type ChromeOptions struct {
	ExecPath  string
	RemoteURL string
	Timeout   time.Duration
}

// ChromeRenderer はヘッドレスChromeでHTMLをPDFに変換する。
type ChromeRenderer struct {
	opts ChromeOptions
}

// NewChromeRenderer はChromeRendererを生成する。
// ExecPathが空ならchromedpの既定の探索に従う。
func NewChromeRenderer(opts ChromeOptions) *ChromeRenderer {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultRenderTimeout
	}
	return &ChromeRenderer{opts: opts}
}

// allocator はブラウザへの接続を用意する。
func (r *ChromeRenderer) allocator(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.opts.RemoteURL != "" {
		return chromedp.NewRemoteAllocator(ctx, r.opts.RemoteURL)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if r.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(r.opts.ExecPath))
	}
	return chromedp.NewExecAllocator(ctx, opts...)
}

// RenderHTMLToPDF はHTMLをA4のPDFに変換する。
func (r *ChromeRenderer) RenderHTMLToPDF(ctx context.Context, html string) ([]byte, error) {
	allocCtx, cancelAlloc := r.allocator(ctx)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	runCtx, cancel := context.WithTimeout(browserCtx, r.opts.Timeout)
	defer cancel()

	var pdf []byte
	err := chromedp.Run(runCtx,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, html).Do(ctx)
		}),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			// A4: 8.27 x 11.69 inch
			pdf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(8.27).
				WithPaperHeight(11.69).
				WithPreferCSSPageSize(true).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("chromedp: %w", err)
	}
	return pdf, nil
}
