package catalog

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/jobassist/internal/metrics"
	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/security"
)

// --- モック定義 ---

type mockFeedRepo struct {
	mu                   sync.Mutex
	listDueForFetchFunc  func(ctx context.Context) ([]*model.CatalogFeed, error)
	updateFetchStateFunc func(ctx context.Context, feed *model.CatalogFeed) error
	upserted             []*model.CatalogFeed
	stateUpdates         int
}

func (m *mockFeedRepo) UpsertByURL(ctx context.Context, feed *model.CatalogFeed) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.upserted = append(m.upserted, feed)
	return nil
}

func (m *mockFeedRepo) ListDueForFetch(ctx context.Context) ([]*model.CatalogFeed, error) {
	if m.listDueForFetchFunc != nil {
		return m.listDueForFetchFunc(ctx)
	}
	return nil, nil
}

func (m *mockFeedRepo) UpdateFetchState(ctx context.Context, feed *model.CatalogFeed) error {
	m.mu.Lock()
	m.stateUpdates++
	m.mu.Unlock()
	if m.updateFetchStateFunc != nil {
		return m.updateFetchStateFunc(ctx, feed)
	}
	return nil
}

type mockJobRepo struct {
	existing map[string]*model.CatalogJob // guid -> job
	created  []*model.CatalogJob
	updated  []*model.CatalogJob
	createFn func(job *model.CatalogJob) error
}

func (m *mockJobRepo) FindByFeedAndGUID(ctx context.Context, feedID, guid string) (*model.CatalogJob, error) {
	return m.existing[guid], nil
}

func (m *mockJobRepo) Create(ctx context.Context, job *model.CatalogJob) error {
	if m.createFn != nil {
		if err := m.createFn(job); err != nil {
			return err
		}
	}
	m.created = append(m.created, job)
	return nil
}

func (m *mockJobRepo) Update(ctx context.Context, job *model.CatalogJob) error {
	m.updated = append(m.updated, job)
	return nil
}

func (m *mockJobRepo) ListRecent(ctx context.Context, limit int) ([]model.Job, error) {
	return nil, nil
}

// mockSSRFGuard はhttptestサーバーに接続できる通常のクライアントを返す。
type mockSSRFGuard struct {
	validateErr error
}

func (m *mockSSRFGuard) NewSafeClient(timeout time.Duration, _ int64) *http.Client {
	return &http.Client{Timeout: timeout}
}

func (m *mockSSRFGuard) ValidateURL(_ string) error {
	return m.validateErr
}

type importRecorder struct {
	metrics.Nop
	mu       sync.Mutex
	results  []string
	upserted int
}

func (r *importRecorder) RecordCatalogImport(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

func (r *importRecorder) RecordCatalogJobsUpserted(count int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserted += count
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestImporter(feedRepo *mockFeedRepo, jobRepo *mockJobRepo, guard *mockSSRFGuard) (*Importer, *importRecorder) {
	var buf bytes.Buffer
	rec := &importRecorder{}
	im := NewImporter(feedRepo, jobRepo, guard, security.NewTextSanitizer(), rec, newTestLogger(&buf),
		ImporterConfig{Timeout: 5 * time.Second, Interval: time.Hour})
	im.now = func() time.Time { return testNow }
	return im, rec
}

const jobsRSS = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Go Jobs Board</title>
    <item>
      <title>Backend Engineer (Go)</title>
      <link>https://jobs.example.com/1</link>
      <guid>job-1</guid>
      <category>Go</category>
      <category>remote</category>
      <description>&lt;p&gt;Build &lt;b&gt;APIs&lt;/b&gt;.&lt;/p&gt;&lt;script&gt;x()&lt;/script&gt;</description>
      <pubDate>Thu, 29 May 2025 09:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Platform Engineer</title>
      <guid>https://jobs.example.com/2</guid>
    </item>
    <item>
      <title>No identity</title>
    </item>
  </channel>
</rss>`

// TestImporter_Import_Success は項目が求人として取り込まれることを検証する。
func TestImporter_Import_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("ETag", `"v1"`)
		w.Header().Set("Last-Modified", "Wed, 01 Jan 2025 00:00:00 GMT")
		fmt.Fprint(w, jobsRSS)
	}))
	defer server.Close()

	feedRepo := &mockFeedRepo{}
	jobRepo := &mockJobRepo{existing: map[string]*model.CatalogJob{}}
	im, rec := newTestImporter(feedRepo, jobRepo, &mockSSRFGuard{})

	feed := &model.CatalogFeed{ID: "feed-1", FeedURL: server.URL, Location: "Remote", Tags: []string{"go", "Backend"}, ConsecutiveErrors: 2}
	if err := im.Import(context.Background(), feed); err != nil {
		t.Fatalf("Import がエラーを返した: %v", err)
	}

	if len(jobRepo.created) != 2 {
		t.Fatalf("created = %d, want 2", len(jobRepo.created))
	}
	first := jobRepo.created[0]
	if !strings.HasPrefix(first.ID, "catalog-") {
		t.Errorf("ID = %q, want catalog- prefix", first.ID)
	}
	if first.Description != "Build APIs." {
		t.Errorf("Description = %q", first.Description)
	}
	if first.Company != "Unknown Company" {
		t.Errorf("Company = %q, want Unknown Company", first.Company)
	}
	if first.Location != "Remote" || first.Salary != "Not specified" {
		t.Errorf("job = %+v", first.Job)
	}
	if got := strings.Join(first.Tags, ","); got != "go,Backend,remote" {
		t.Errorf("Tags = %q, want go,Backend,remote", got)
	}
	if !first.PostedAt.Equal(time.Date(2025, 5, 29, 9, 0, 0, 0, time.UTC)) {
		t.Errorf("PostedAt = %v", first.PostedAt)
	}

	second := jobRepo.created[1]
	if second.SourceURL != "https://jobs.example.com/2" || second.Description != "No description found." {
		t.Errorf("second = %+v", second.Job)
	}
	if !second.PostedAt.Equal(testNow) {
		t.Errorf("PostedAt = %v, want now", second.PostedAt)
	}

	if feed.ETag != `"v1"` || feed.LastModified == "" {
		t.Errorf("conditional headers not stored: %+v", feed)
	}
	if feed.ConsecutiveErrors != 0 || !feed.NextFetchAt.Equal(testNow.Add(time.Hour)) {
		t.Errorf("feed state = %+v", feed)
	}
	if rec.results[0] != resultImported || rec.upserted != 2 {
		t.Errorf("metrics = %v upserted=%d", rec.results, rec.upserted)
	}
}

// TestImporter_Import_UpdatesExisting は同じGUIDの求人を更新し、IDを維持することを検証する。
func TestImporter_Import_UpdatesExisting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, jobsRSS)
	}))
	defer server.Close()

	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	jobRepo := &mockJobRepo{existing: map[string]*model.CatalogJob{
		"job-1": {Job: model.Job{ID: "catalog-existing"}, CreatedAt: created},
	}}
	im, _ := newTestImporter(&mockFeedRepo{}, jobRepo, &mockSSRFGuard{})

	if err := im.Import(context.Background(), &model.CatalogFeed{ID: "feed-1", FeedURL: server.URL}); err != nil {
		t.Fatalf("Import がエラーを返した: %v", err)
	}
	if len(jobRepo.updated) != 1 || len(jobRepo.created) != 1 {
		t.Fatalf("updated = %d, created = %d", len(jobRepo.updated), len(jobRepo.created))
	}
	if jobRepo.updated[0].ID != "catalog-existing" || !jobRepo.updated[0].CreatedAt.Equal(created) {
		t.Errorf("updated = %+v", jobRepo.updated[0])
	}
}

// TestImporter_Import_ConditionalGET は保存済みのETagとLast-Modifiedを送信することを検証する。
func TestImporter_Import_ConditionalGET(t *testing.T) {
	var gotETag, gotModified string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotETag = r.Header.Get("If-None-Match")
		gotModified = r.Header.Get("If-Modified-Since")
		w.WriteHeader(http.StatusNotModified)
	}))
	defer server.Close()

	jobRepo := &mockJobRepo{}
	feedRepo := &mockFeedRepo{}
	im, rec := newTestImporter(feedRepo, jobRepo, &mockSSRFGuard{})
	feed := &model.CatalogFeed{ID: "feed-1", FeedURL: server.URL, ETag: `"v1"`, LastModified: "Wed, 01 Jan 2025 00:00:00 GMT"}

	if err := im.Import(context.Background(), feed); err != nil {
		t.Fatalf("Import がエラーを返した: %v", err)
	}
	if gotETag != `"v1"` || gotModified != "Wed, 01 Jan 2025 00:00:00 GMT" {
		t.Errorf("If-None-Match = %q, If-Modified-Since = %q", gotETag, gotModified)
	}
	if len(jobRepo.created) != 0 || feedRepo.stateUpdates != 1 {
		t.Errorf("304 should only update fetch state")
	}
	if rec.results[0] != resultNotModified {
		t.Errorf("metrics = %v", rec.results)
	}
}

// TestImporter_Import_StatusHandling はHTTPステータスごとのフィード状態を検証する。
func TestImporter_Import_StatusHandling(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		wantStatus model.FetchStatus
		wantErrors int
		wantResult string
	}{
		{"404で停止", http.StatusNotFound, model.FetchStatusStopped, 0, resultStopped},
		{"403で停止", http.StatusForbidden, model.FetchStatusStopped, 0, resultStopped},
		{"429でバックオフ", http.StatusTooManyRequests, model.FetchStatusActive, 1, resultBackoff},
		{"503でバックオフ", http.StatusServiceUnavailable, model.FetchStatusActive, 1, resultBackoff},
		{"未知のステータスもバックオフ", http.StatusTeapot, model.FetchStatusActive, 1, resultBackoff},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			im, rec := newTestImporter(&mockFeedRepo{}, &mockJobRepo{}, &mockSSRFGuard{})
			feed := &model.CatalogFeed{ID: "feed-1", FeedURL: server.URL, FetchStatus: model.FetchStatusActive}

			if err := im.Import(context.Background(), feed); err != nil {
				t.Fatalf("Import がエラーを返した: %v", err)
			}
			if feed.FetchStatus != tt.wantStatus || feed.ConsecutiveErrors != tt.wantErrors {
				t.Errorf("feed = %+v", feed)
			}
			if rec.results[0] != tt.wantResult {
				t.Errorf("metrics = %v", rec.results)
			}
		})
	}
}

// TestImporter_Import_SSRFBlocked はSSRF検証に失敗したフィードを停止することを検証する。
func TestImporter_Import_SSRFBlocked(t *testing.T) {
	feedRepo := &mockFeedRepo{}
	im, _ := newTestImporter(feedRepo, &mockJobRepo{}, &mockSSRFGuard{validateErr: errors.New("blocked IP address")})
	feed := &model.CatalogFeed{ID: "feed-1", FeedURL: "http://10.0.0.1/jobs.rss", FetchStatus: model.FetchStatusActive}

	if err := im.Import(context.Background(), feed); err == nil {
		t.Fatal("Import should return an error")
	}
	if feed.FetchStatus != model.FetchStatusStopped || feedRepo.stateUpdates != 1 {
		t.Errorf("feed = %+v, updates = %d", feed, feedRepo.stateUpdates)
	}
}

// TestImporter_Import_ParseFailure はパース失敗をエラーにせず連続エラーとして数えることを検証する。
func TestImporter_Import_ParseFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "this is not a feed")
	}))
	defer server.Close()

	im, rec := newTestImporter(&mockFeedRepo{}, &mockJobRepo{}, &mockSSRFGuard{})
	feed := &model.CatalogFeed{ID: "feed-1", FeedURL: server.URL, FetchStatus: model.FetchStatusActive}

	if err := im.Import(context.Background(), feed); err != nil {
		t.Fatalf("Import がエラーを返した: %v", err)
	}
	if feed.ConsecutiveErrors != 1 || !strings.Contains(feed.ErrorMessage, "パース失敗") {
		t.Errorf("feed = %+v", feed)
	}
	if rec.results[0] != resultParseError {
		t.Errorf("metrics = %v", rec.results)
	}
}

// TestImporter_Import_RepositoryFailure は保存失敗時に成功扱いにしないことを検証する。
func TestImporter_Import_RepositoryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, jobsRSS)
	}))
	defer server.Close()

	jobRepo := &mockJobRepo{existing: map[string]*model.CatalogJob{}, createFn: func(*model.CatalogJob) error {
		return errors.New("db down")
	}}
	im, rec := newTestImporter(&mockFeedRepo{}, jobRepo, &mockSSRFGuard{})
	feed := &model.CatalogFeed{ID: "feed-1", FeedURL: server.URL}

	if err := im.Import(context.Background(), feed); err != nil {
		t.Fatalf("Import がエラーを返した: %v", err)
	}
	if feed.ConsecutiveErrors != 1 || rec.upserted != 0 {
		t.Errorf("feed = %+v, upserted = %d", feed, rec.upserted)
	}
}

// TestMergeTags は既定タグとカテゴリを大文字小文字を区別せず重複排除することを検証する。
func TestMergeTags(t *testing.T) {
	got := mergeTags([]string{"Go", " "}, []string{"go", "Remote", "remote", "SQL"})
	if strings.Join(got, ",") != "Go,Remote,SQL" {
		t.Errorf("mergeTags = %v", got)
	}
}
