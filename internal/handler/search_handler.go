package handler

import (
	"net/http"

	"github.com/hitoshi/jobassist/internal/model"
)

// SearchHandler はライブ求人検索のHTTPハンドラー。
type SearchHandler struct {
	registry StoreRegistry
}

// NewSearchHandler はSearchHandlerを生成する。
func NewSearchHandler(registry StoreRegistry) *SearchHandler {
	return &SearchHandler{registry: registry}
}

type searchRequest struct {
	Term       string `json:"term"`
	Location   string `json:"location"`
	TimeFilter string `json:"timeFilter"`
}

// Search は取得チェーンで検索を実行し、確定した検索状態を返す。
// 失敗も検索状態（status=error）として200で返す。
// POST /api/search
func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	var req searchRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	state := st.PerformLiveSearch(r.Context(), req.Term, req.Location, model.ParseTimeFilter(req.TimeFilter))
	writeJSON(w, http.StatusOK, state)
}

// GetSearch は現在の検索状態を返す。
// GET /api/search
func (h *SearchHandler) GetSearch(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.LiveSearch())
}

// ClearSearch は検索結果をクリアする。
// DELETE /api/search
func (h *SearchHandler) ClearSearch(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}
	st.ClearLiveSearch()
	writeJSON(w, http.StatusOK, st.LiveSearch())
}
