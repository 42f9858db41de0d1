package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
)

// ToastHandler はトースト通知のHTTPハンドラー。
type ToastHandler struct {
	registry StoreRegistry
}

// NewToastHandler はToastHandlerを生成する。
func NewToastHandler(registry StoreRegistry) *ToastHandler {
	return &ToastHandler{registry: registry}
}

// ListToasts は表示中のトーストを古い順に返す。
// GET /api/toasts
func (h *ToastHandler) ListToasts(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.Toasts().List())
}

// Dismiss はトーストを閉じる。既に消えている場合は404。
// DELETE /api/toasts/{id}
func (h *ToastHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, errInvalidRequest)
		return
	}
	if !st.Toasts().Dismiss(id) {
		http.NotFound(w, r)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
