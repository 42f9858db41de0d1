package catalog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/jobassist/internal/metrics"
	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/repository"
	"github.com/hitoshi/jobassist/internal/security"
)

// SSRFValidator はSSRF検証のインターフェース。
type SSRFValidator interface {
	ValidateURL(rawURL string) error
	NewSafeClient(timeout time.Duration, maxResponseSize int64) *http.Client
}

// Importer は求人フィード1件をフェッチし、項目を求人カタログに取り込む。
// ETag/Last-Modifiedによる条件付きGET、SSRF検証、gofeedによるパース、
// 本文の平文化を行い、(feed_id, guid) をキーに作成または更新する。
type Importer struct {
	feedRepo    repository.CatalogFeedRepository
	jobRepo     repository.CatalogJobRepository
	ssrfGuard   SSRFValidator
	sanitizer   security.TextSanitizer
	metrics     metrics.MetricsCollector
	logger      *slog.Logger
	timeout     time.Duration
	maxBodySize int64
	interval    time.Duration
	retry       RetryPolicy
	now         func() time.Time
}

// ImporterConfig はImporterの設定値。
type ImporterConfig struct {
	Timeout     time.Duration
	MaxBodySize int64
	// Interval は取り込み成功後、次回フェッチまでの間隔。
	Interval time.Duration
	// Retry は失敗時の扱い。ゼロ値の項目は DefaultRetryPolicy の値になる。
	Retry RetryPolicy
}

// NewImporter はImporterの新しいインスタンスを生成する。
func NewImporter(
	feedRepo repository.CatalogFeedRepository,
	jobRepo repository.CatalogJobRepository,
	ssrfGuard SSRFValidator,
	sanitizer security.TextSanitizer,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
	cfg ImporterConfig,
) *Importer {
	if collector == nil {
		collector = metrics.Nop{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxBodySize <= 0 {
		cfg.MaxBodySize = 5 * 1024 * 1024
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	return &Importer{
		feedRepo:    feedRepo,
		jobRepo:     jobRepo,
		ssrfGuard:   ssrfGuard,
		sanitizer:   sanitizer,
		metrics:     collector,
		logger:      logger,
		timeout:     cfg.Timeout,
		maxBodySize: cfg.MaxBodySize,
		interval:    cfg.Interval,
		retry:       cfg.Retry.withDefaults(),
		now:         time.Now,
	}
}

// Import はフィードをフェッチし、結果に応じてフィード状態を更新する。
// FeedImporterインターフェースを実装する。
func (im *Importer) Import(ctx context.Context, feed *model.CatalogFeed) error {
	start := im.now()
	log := im.logger.With(slog.String("feed_id", feed.ID), slog.String("feed_url", feed.FeedURL))

	if err := im.ssrfGuard.ValidateURL(feed.FeedURL); err != nil {
		log.Error("SSRF検証に失敗しました", slog.String("error", err.Error()))
		im.retry.Stop(feed, fmt.Sprintf("SSRF検証失敗: %s", err.Error()), im.now())
		im.saveState(ctx, log, feed)
		im.metrics.RecordCatalogImport(resultStopped)
		return fmt.Errorf("SSRF検証に失敗: %w", err)
	}

	client := im.ssrfGuard.NewSafeClient(im.timeout, im.maxBodySize)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feed.FeedURL, nil)
	if err != nil {
		return fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "JobAssist/1.0 Catalog Importer")
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml, text/xml, */*")
	if feed.ETag != "" {
		req.Header.Set("If-None-Match", feed.ETag)
	}
	if feed.LastModified != "" {
		req.Header.Set("If-Modified-Since", feed.LastModified)
	}

	resp, err := client.Do(req)
	if err != nil {
		log.Error("HTTPリクエストに失敗しました", slog.String("error", err.Error()))
		im.retry.Defer(feed, fmt.Sprintf("HTTPリクエスト失敗: %s", err.Error()), im.now())
		im.saveState(ctx, log, feed)
		im.metrics.RecordCatalogImport(resultBackoff)
		return fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	latency := im.now().Sub(start)
	im.metrics.RecordFetchLatency(latency)

	switch JudgeStatus(resp.StatusCode) {
	case VerdictImport:
	case VerdictUnchanged:
		log.Info("フィードは未変更です（304）", slog.Float64("duration_ms", float64(latency.Milliseconds())))
		im.retry.Reset(feed, im.interval, im.now())
		im.metrics.RecordCatalogImport(resultNotModified)
		return im.feedRepo.UpdateFetchState(ctx, feed)
	case VerdictStop:
		reason := fmt.Sprintf("HTTPステータス %d により取り込みを停止しました", resp.StatusCode)
		log.Warn("フィードの取り込みを停止します", slog.Int("http_status", resp.StatusCode))
		im.retry.Stop(feed, reason, im.now())
		im.metrics.RecordCatalogImport(resultStopped)
		return im.feedRepo.UpdateFetchState(ctx, feed)
	default:
		reason := fmt.Sprintf("HTTPステータス %d によりバックオフを適用しました", resp.StatusCode)
		log.Warn("フィードの取り込みにバックオフを適用します",
			slog.Int("http_status", resp.StatusCode),
			slog.Int("consecutive_errors", feed.ConsecutiveErrors+1),
		)
		im.retry.Defer(feed, reason, im.now())
		im.metrics.RecordCatalogImport(resultBackoff)
		return im.feedRepo.UpdateFetchState(ctx, feed)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Error("レスポンスボディの読み取りに失敗しました", slog.String("error", err.Error()))
		im.retry.Defer(feed, fmt.Sprintf("レスポンス読み取り失敗: %s", err.Error()), im.now())
		im.metrics.RecordCatalogImport(resultBackoff)
		return im.feedRepo.UpdateFetchState(ctx, feed)
	}

	if etag := resp.Header.Get("ETag"); etag != "" {
		feed.ETag = etag
	}
	if lastMod := resp.Header.Get("Last-Modified"); lastMod != "" {
		feed.LastModified = lastMod
	}

	parsed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		log.Error("フィードのパースに失敗しました", slog.String("error", err.Error()))
		im.retry.ParseFailed(feed, err.Error(), im.now())
		im.saveState(ctx, log, feed)
		im.metrics.RecordCatalogImport(resultParseError)
		// パース失敗はカウントして継続する
		return nil
	}

	created, updated, err := im.upsertJobs(ctx, feed, parsed.Items)
	if err != nil {
		log.Error("求人の保存に失敗しました", slog.String("error", err.Error()))
		im.retry.ParseFailed(feed, fmt.Sprintf("求人保存失敗: %s", err.Error()), im.now())
		im.saveState(ctx, log, feed)
		im.metrics.RecordCatalogImport(resultParseError)
		return nil
	}

	im.retry.Reset(feed, im.interval, im.now())
	if err := im.feedRepo.UpdateFetchState(ctx, feed); err != nil {
		log.Error("フィード状態の更新に失敗しました", slog.String("error", err.Error()))
		return err
	}

	im.metrics.RecordCatalogImport(resultImported)
	im.metrics.RecordCatalogJobsUpserted(created + updated)
	log.Info("求人フィードの取り込みが完了しました",
		slog.Int("http_status", resp.StatusCode),
		slog.Int("jobs_created", created),
		slog.Int("jobs_updated", updated),
		slog.Int("items_total", len(parsed.Items)),
		slog.Float64("duration_ms", float64(latency.Milliseconds())),
	)
	return nil
}

func (im *Importer) saveState(ctx context.Context, log *slog.Logger, feed *model.CatalogFeed) {
	if err := im.feedRepo.UpdateFetchState(ctx, feed); err != nil {
		log.Error("フィード状態の更新に失敗しました", slog.String("error", err.Error()))
	}
}

// upsertJobs は項目を (feed_id, guid) で照合し、作成または更新する。
func (im *Importer) upsertJobs(ctx context.Context, feed *model.CatalogFeed, items []*gofeed.Item) (created, updated int, err error) {
	now := im.now()
	for _, item := range items {
		job, ok := im.convertItem(feed, item, now)
		if !ok {
			continue
		}

		existing, err := im.jobRepo.FindByFeedAndGUID(ctx, feed.ID, job.GUID)
		if err != nil {
			return created, updated, err
		}
		if existing != nil {
			job.ID = existing.ID
			job.CreatedAt = existing.CreatedAt
			if err := im.jobRepo.Update(ctx, job); err != nil {
				return created, updated, err
			}
			updated++
			continue
		}
		if err := im.jobRepo.Create(ctx, job); err != nil {
			return created, updated, err
		}
		created++
	}
	return created, updated, nil
}

// convertItem はフィード項目を求人に変換する。GUIDもリンクも無い項目は取り込まない。
func (im *Importer) convertItem(feed *model.CatalogFeed, item *gofeed.Item, now time.Time) (*model.CatalogJob, bool) {
	if item == nil {
		return nil, false
	}
	guid := strings.TrimSpace(item.GUID)
	link := strings.TrimSpace(item.Link)
	if guid == "" {
		guid = link
	}
	if guid == "" {
		return nil, false
	}
	if link == "" && (strings.HasPrefix(guid, "http://") || strings.HasPrefix(guid, "https://")) {
		link = guid
	}

	description := im.sanitizer.PlainText(item.Content)
	if description == "" {
		description = im.sanitizer.PlainText(item.Description)
	}

	postedAt := now
	if item.PublishedParsed != nil {
		postedAt = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		postedAt = *item.UpdatedParsed
	}

	return &model.CatalogJob{
		Job: model.Job{
			ID:          "catalog-" + uuid.NewString(),
			Title:       firstNonEmpty(im.sanitizer.PlainText(item.Title), "Untitled Job"),
			Company:     firstNonEmpty(feed.Company, itemAuthor(item), feed.Title, "Unknown Company"),
			Location:    firstNonEmpty(feed.Location, "Unknown Location"),
			Description: firstNonEmpty(description, "No description found."),
			Tags:        mergeTags(feed.Tags, item.Categories),
			Salary:      "Not specified",
			SourceURL:   link,
		},
		FeedID:    feed.ID,
		GUID:      guid,
		PostedAt:  postedAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, true
}

func itemAuthor(item *gofeed.Item) string {
	if item.Author != nil && item.Author.Name != "" {
		return item.Author.Name
	}
	if len(item.Authors) > 0 && item.Authors[0] != nil {
		return item.Authors[0].Name
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// mergeTags はフィードの既定タグと項目のカテゴリを重複なく連結する。
func mergeTags(defaults, categories []string) []string {
	tags := make([]string, 0, len(defaults)+len(categories))
	for _, t := range slices.Concat(defaults, categories) {
		t = strings.TrimSpace(t)
		if t == "" || slices.ContainsFunc(tags, func(s string) bool { return strings.EqualFold(s, t) }) {
			continue
		}
		tags = append(tags, t)
	}
	return tags
}
