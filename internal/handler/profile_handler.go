package handler

import (
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/jobassist/internal/llm"
	"github.com/hitoshi/jobassist/internal/model"
	"github.com/hitoshi/jobassist/internal/store"
)

// maxResumeUploadSize は職務経歴書アップロードの上限（10MB）。
const maxResumeUploadSize = 10 << 20

// ProfileHandler はプロフィール管理のHTTPハンドラー。
type ProfileHandler struct {
	registry  StoreRegistry
	generator Generator
}

// NewProfileHandler はProfileHandlerを生成する。
func NewProfileHandler(registry StoreRegistry, generator Generator) *ProfileHandler {
	return &ProfileHandler{registry: registry, generator: generator}
}

// GetProfile はプロフィールを返す。
// GET /api/profile
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, st.Profile())
}

// UpdateProfile はプロフィールを丸ごと上書きする。
// PUT /api/profile
func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	var profile model.UserProfile
	if !decodeJSON(w, r, &profile) {
		return
	}

	saved, err := st.UpdateProfile(r.Context(), profile)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// UploadResume は職務経歴書ファイルを解析し、抽出した項目をプロフィールに反映する。
// POST /api/profile/resume (multipart/form-data, field: file)
func (h *ProfileHandler) UploadResume(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}

	part, apiErr := readUploadedFile(w, r, "file", maxResumeUploadSize)
	if apiErr != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, apiErr)
		return
	}

	parsed, err := h.generator.ParseResume(r.Context(), *part)
	if err != nil {
		st.Toasts().Show(model.UserMessage(err, msgGenerationFailed), model.ToastError)
		handleServiceError(w, err)
		return
	}

	profile := mergeParsedResume(st.Profile(), parsed)
	saved, err := st.UpdateProfile(r.Context(), profile)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// ResetData はストアの全コレクションを初期状態に戻す。
// POST /api/reset
func (h *ProfileHandler) ResetData(w http.ResponseWriter, r *http.Request) {
	st, ok := currentStore(w, r, h.registry)
	if !ok {
		return
	}
	if err := st.Reset(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// mergeParsedResume は抽出できた項目だけをプロフィールに上書きする。
func mergeParsedResume(p model.UserProfile, parsed *model.ParsedResume) model.UserProfile {
	if parsed == nil {
		return p
	}
	if v := strings.TrimSpace(parsed.Name); v != "" {
		p.Name = v
	}
	if v := strings.TrimSpace(parsed.Bio); v != "" {
		p.Bio = v
	}
	if v := strings.TrimSpace(parsed.BaseResume); v != "" {
		p.BaseResume = v
	}
	return p
}

// readUploadedFile はmultipartフォームからファイルを読み取る。
// Content-Typeが無い場合は内容から推定する。
func readUploadedFile(w http.ResponseWriter, r *http.Request, field string, maxSize int64) (*llm.Part, *model.APIError) {
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+1<<20)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		return nil, uploadError("ファイルの読み込みに失敗しました。")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, uploadError("ファイルが指定されていません。")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		slog.Warn("アップロードファイルの読み込みに失敗しました", slog.String("error", err.Error()))
		return nil, uploadError("ファイルの読み込みに失敗しました。")
	}
	if int64(len(data)) > maxSize {
		return nil, uploadError("ファイルサイズが大きすぎます。")
	}
	if len(data) == 0 {
		return nil, uploadError("ファイルが空です。")
	}

	mimeType := header.Header.Get("Content-Type")
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	return &llm.Part{MIMEType: mimeType, Data: data}, nil
}

func uploadError(msg string) *model.APIError {
	return &model.APIError{
		Code:     model.ErrCodeValidation,
		Message:  msg,
		Category: "validation",
		Action:   "PDF・画像・テキスト形式のファイルを10MB以内で選択してください。",
	}
}

var _ StoreRegistry = (*store.Registry)(nil)
