package middleware

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/jobassist/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

func TestWriteErrorResponse_WritesUnifiedFormat(t *testing.T) {
	tests := []struct {
		name   string
		status int
		err    *model.APIError
	}{
		{"validation", http.StatusBadRequest, &model.APIError{Code: "VALIDATION_FAILED", Message: "入力が不正です。", Category: "validation", Action: "入力内容を確認してください。"}},
		{"not found", http.StatusNotFound, &model.APIError{Code: "JOB_NOT_FOUND", Message: "求人が見つかりません。", Category: "job"}},
		{"generation", http.StatusBadGateway, &model.APIError{Code: "GENERATION_PARSE_FAILED", Message: "応答を解析できませんでした。", Category: "generation"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteErrorResponse(w, tt.status, tt.err)

			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}
			body := decodeErrorBody(t, w)
			if body.Code != tt.err.Code || body.Message != tt.err.Message || body.Category != tt.err.Category || body.Action != tt.err.Action {
				t.Errorf("body = %+v, want %+v", body, tt.err)
			}
			if body.RequestID != "" {
				t.Errorf("requestId = %q, want empty outside the logging middleware", body.RequestID)
			}
		})
	}
}

// ロギングミドルウェア配下ではリクエストIDをエラー本文に含める
func TestWriteErrorResponse_IncludesRequestID(t *testing.T) {
	h := NewLoggingMiddleware(discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		WriteInternalServerError(w)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/jobs", nil)
	req.Header.Set(requestIDHeader, "req-err-1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	body := decodeErrorBody(t, w)
	if body.Code != "INTERNAL_ERROR" || body.Category != "system" {
		t.Errorf("body = %+v, want INTERNAL_ERROR/system", body)
	}
	if body.RequestID != "req-err-1" {
		t.Errorf("requestId = %q, want req-err-1", body.RequestID)
	}
}
