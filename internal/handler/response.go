package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/jobassist/internal/middleware"
	"github.com/hitoshi/jobassist/internal/model"
)

// maxJSONBodySize はJSONリクエストボディの上限（動画・画像のbase64を含む）。
const maxJSONBodySize = 32 << 20

var (
	errUnauthorized = &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
	errInvalidRequest = &model.APIError{
		Code:     "INVALID_REQUEST",
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
)

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("レスポンスの書き込みに失敗しました", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをJSONとして読み取る。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, errInvalidRequest)
		return false
	}
	return true
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, statusCode, apiErr)
}

// handleServiceError はサービス層やストアから返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	var appErr *model.AppError
	if errors.As(err, &appErr) {
		writeAPIErrorResponse(w, mapErrorKindToHTTPStatus(appErr.Kind), model.ToAPIError(appErr))
		return
	}

	// 種別を持たないエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeInvalidURL, model.ErrCodeInvalidStatus, model.ErrCodeValidation, "INVALID_REQUEST":
		return http.StatusBadRequest
	case "UNAUTHORIZED":
		return http.StatusUnauthorized
	case model.ErrCodeSSRFBlocked:
		return http.StatusForbidden
	case model.ErrCodeJobNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeGenerationBlock:
		return http.StatusUnprocessableEntity
	case model.ErrCodeFetchFailed, model.ErrCodeGenerationEmpty, model.ErrCodeGenerationParse:
		return http.StatusBadGateway
	case model.ErrCodeGenerationFailed:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// mapErrorKindToHTTPStatus はドメインエラー種別からHTTPステータスコードにマッピングする。
func mapErrorKindToHTTPStatus(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindBlocked:
		return http.StatusUnprocessableEntity
	case model.KindParse, model.KindEmpty:
		return http.StatusBadGateway
	case model.KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
