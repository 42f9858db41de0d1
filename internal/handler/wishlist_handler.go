package handler

import (
	"net/http"

	"github.com/hitoshi/jobassist/internal/model"
)

// WishlistHandler はウィッシュリストのHTTPハンドラー。
type WishlistHandler struct {
	registry StoreRegistry
}

// NewWishlistHandler はWishlistHandlerを生成する。
func NewWishlistHandler(registry StoreRegistry) *WishlistHandler {
	return &WishlistHandler{registry: registry}
}

// bulkWishlistRequest は一括追加リクエスト。
// FromSearch が true の場合は現在のライブ検索結果を対象にする。
type bulkWishlistRequest struct {
	Jobs       []model.Job `json:"jobs"`
	FromSearch bool        `json:"fromSearch"`
}

// ListWishlist はウィッシュリストを返す。
// GET /api/wishlist
func (h *WishlistHandler) ListWishlist(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.Wishlist())
}

// Toggle はウィッシュリストへの登録状態を反転する。
// POST /api/wishlist/toggle
func (h *WishlistHandler) Toggle(w http.ResponseWriter, r *http.Request) {
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

	listed, err := st.ToggleWishlist(r.Context(), *job)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobId":        job.ID,
		"isWishlisted": listed,
	})
}

// AddAll は未登録の求人をまとめてウィッシュリストに追加する。
// POST /api/wishlist/bulk
func (h *WishlistHandler) AddAll(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	var req bulkWishlistRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	jobs := req.Jobs
	if req.FromSearch {
		jobs = st.LiveSearch().Results
	}

	added, err := st.AddAllToWishlist(r.Context(), jobs)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"added": added})
}
