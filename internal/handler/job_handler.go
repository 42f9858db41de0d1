package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobassist/internal/jobpage"
	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/store"
)

// PageExtractor は求人ページのURLから本文を取り出すインターフェース。
type PageExtractor interface {
	Extract(ctx context.Context, rawURL string) (*jobpage.Page, error)
}

// JobHandler は求人カタログと求人取り込みのHTTPハンドラー。
type JobHandler struct {
	registry  StoreRegistry
	generator Generator
	extractor PageExtractor
}

// NewJobHandler はJobHandlerを生成する。
func NewJobHandler(registry StoreRegistry, generator Generator, extractor PageExtractor) *JobHandler {
	return &JobHandler{registry: registry, generator: generator, extractor: extractor}
}

// jobLookupResponse は求人1件の検索結果。
type jobLookupResponse struct {
	Job    *model.Job   `json:"job"`
	Origin store.Origin `json:"origin"`
}

// importJobRequest は求人取り込みリクエストのボディ。text・url・image のいずれかが必要。
type importJobRequest struct {
	Text  string        `json:"text"`
	URL   string        `json:"url"`
	Image *mediaPayload `json:"image"`
}

// ListJobs は求人カタログを返す。
// GET /api/jobs
func (h *JobHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.Catalog())
}

// GetJob はIDから求人を探す。応募管理・ライブ検索・ウィッシュリスト・カタログの順に探索する。
// GET /api/jobs/{id}
func (h *JobHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	id := chi.URLParam(r, "id")
	job, origin := st.GetJobByID(id)
	if job == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewJobNotFoundError(id))
		return
	}
	writeJSON(w, http.StatusOK, jobLookupResponse{Job: job, Origin: origin})
}

// ImportJob は貼り付けテキスト・スクリーンショット・求人ページURLから求人を抽出し、応募管理に追加する。
// POST /api/jobs/import
func (h *JobHandler) ImportJob(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	var req importJobRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	text := strings.TrimSpace(req.Text)
	pageURL := strings.TrimSpace(req.URL)
	if pageURL != "" {
		page, err := h.extractor.Extract(r.Context(), pageURL)
		if err != nil {
			st.Toasts().Show("Could not read the job page. Try pasting the posting text instead.", model.ToastError)
			handleServiceError(w, err)
			return
		}
		if text != "" {
			text = page.Content() + "\n\n" + text
		} else {
			text = page.Content()
		}
	}

	job, err := h.generator.ParseJobFromContent(r.Context(), text, req.Image.part())
	if err != nil {
		st.Toasts().Show(model.UserMessage(err, msgGenerationFailed), model.ToastError)
		handleServiceError(w, err)
		return
	}
	if job.SourceURL == "" {
		job.SourceURL = pageURL
	}

	tracked, _, err := st.TrackJob(r.Context(), *job)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, tracked)
}
