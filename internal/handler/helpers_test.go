package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobassist/internal/middleware"
	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/store"
)

const testUserID = "user-test-1"

// stubSearcher はライブ検索のテスト用の取得チェーン。
type stubSearcher struct {
	searchFn func(ctx context.Context, term, location string, filter model.TimeFilter) ([]model.Job, model.SearchStage, error)
}

func (s *stubSearcher) Search(ctx context.Context, term, location string, filter model.TimeFilter) ([]model.Job, model.SearchStage, error) {
	if s.searchFn != nil {
		return s.searchFn(ctx, term, location, filter)
	}
	return nil, "", nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestRegistry はメモリ上で動作するRegistryを生成する。
func newTestRegistry(t *testing.T, searcher store.JobSearcher, demo bool) *store.Registry {
	t.Helper()
	if searcher == nil {
		searcher = &stubSearcher{}
	}
	return store.NewRegistry(store.RegistryConfig{
		Searcher: searcher,
		Demo:     demo,
		ToastTTL: time.Minute,
		Logger:   discardLogger(),
	})
}

// openTestStore はテストユーザーのストアを生成する。
func openTestStore(t *testing.T, reg *store.Registry) *store.Store {
	t.Helper()
	st, err := reg.Open(context.Background(), testUserID, model.IdentityClaims{Name: "Test User"})
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { reg.Close(testUserID) })
	return st
}

// authedRequest はテストユーザーとして認証済みのリクエストを生成する。
func authedRequest(method, target string, body any) *http.Request {
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		data, _ := json.Marshal(b)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.ContextWithUserID(req.Context(), testUserID))
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response body: %v\nraw: %s", err, w.Body.String())
	}
	return v
}

func assertErrorCode(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Errorf("status = %d, want %d (body: %s)", w.Code, status, w.Body.String())
	}
	body := decodeBody[middleware.ErrorResponseBody](t, w)
	if body.Code != code {
		t.Errorf("code = %q, want %q", body.Code, code)
	}
}

func lastToast(st *store.Store) model.Toast {
	toasts := st.Toasts().List()
	if len(toasts) == 0 {
		return model.Toast{}
	}
	return toasts[len(toasts)-1]
}

// withUserID はセッションミドルウェアを通過した状態のリクエストを作る。
func withUserID(r *http.Request, userID string) *http.Request {
	return r.WithContext(middleware.ContextWithUserID(r.Context(), userID))
}

// serveRoute はURLパラメータを解決するためにchiを経由してハンドラーを呼ぶ。
func serveRoute(method, pattern string, h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.MethodFunc(method, pattern, h)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}
