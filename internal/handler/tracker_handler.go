package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/jobassist/internal/export"
	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/store"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// TrackerHandler は応募管理のHTTPハンドラー。
type TrackerHandler struct {
	registry StoreRegistry
	now      func() time.Time
}

// NewTrackerHandler はTrackerHandlerを生成する。
func NewTrackerHandler(registry StoreRegistry) *TrackerHandler {
	return &TrackerHandler{registry: registry, now: time.Now}
}

// jobRefRequest は求人IDまたは求人本体で対象を指定するリクエスト。
// 両方ある場合はストア内の求人を優先する。
type jobRefRequest struct {
	JobID string     `json:"jobId"`
	Job   *model.Job `json:"job"`
}

// resolve はストアから対象の求人を解決する。見つからない場合は nil。
func (req jobRefRequest) resolve(st *store.Store) *model.Job {
	id := req.JobID
	if id == "" && req.Job != nil {
		id = req.Job.ID
	}
	if id == "" {
		return nil
	}
	job, _ := st.ResolveJob(id, req.Job)
	return job
}

func (req jobRefRequest) id() string {
	if req.JobID == "" && req.Job != nil {
		return req.Job.ID
	}
	return req.JobID
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type trackResponse struct {
	Job     *model.TrackedJob `json:"job"`
	Created bool              `json:"created"`
}

// ListTracked は応募管理一覧を返す。
// GET /api/tracker
func (h *TrackerHandler) ListTracked(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.Tracked())
}

// TrackJob は求人を応募管理に追加する。既に追加済みの場合は既存のレコードを200で返す。
// POST /api/tracker
func (h *TrackerHandler) TrackJob(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	var req jobRefRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	job := req.resolve(st)
	if job == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewJobNotFoundError(req.id()))
		return
	}

	tracked, created, err := st.TrackJob(r.Context(), *job)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, trackResponse{Job: tracked, Created: created})
}

// UpdateStatus は応募ステータスを更新する。
// PUT /api/tracker/{id}/status
func (h *TrackerHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	var req updateStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status, valid := model.ParseApplicationStatus(req.Status)
	if !valid {
		// ストア側でエラートーストを出すため、未知の値もそのまま渡す
		status = model.ApplicationStatus(req.Status)
	}
	updated, err := st.UpdateJobStatus(r.Context(), chi.URLParam(r, "id"), status)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// SaveData はメモや生成文書などを部分更新する。
// PATCH /api/tracker/{id}
func (h *TrackerHandler) SaveData(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	var patch model.TrackedJobPatch
	if !decodeJSON(w, r, &patch) {
		return
	}
	updated, err := st.SaveTrackedJobData(r.Context(), chi.URLParam(r, "id"), patch)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// Export は応募管理一覧をExcelファイルとして返す。
// GET /api/tracker/export
func (h *TrackerHandler) Export(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	now := h.now()
	data, err := export.TrackerWorkbook(st.Tracked(), now)
	if err != nil {
		slog.Error("応募管理のエクスポートに失敗しました",
			slog.String("user_id", st.UserID()),
			slog.String("error", err.Error()),
		)
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="job-tracker-%s.xlsx"`, now.Format("20060102")))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
