package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/vidshare/internal/middleware"
	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/repository"
	"github.com/hitoshi/vidshare/internal/storage"
	"github.com/hitoshi/vidshare/internal/user"
	"github.com/hitoshi/vidshare/internal/video"
)

// maxJSONBodySize はJSON APIのリクエストボディ上限（バイト）。
const maxJSONBodySize = 64 << 10

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// decodeJSON はリクエストボディをvにデコードする。不正なJSONの場合は400を書き込んでfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("body", "不正なJSONです"))
		return false
	}
	return true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
// resourceID はNotFound系のメッセージに含める識別子。
func handleServiceError(w http.ResponseWriter, err error, resourceID string) {
	status, apiErr := classifyError(err, resourceID)
	if status == http.StatusInternalServerError {
		slog.Error("internal server error", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	middleware.WriteErrorResponse(w, status, apiErr)
}

// classifyError はドメインエラーをHTTPステータスとAPIErrorに対応付ける。
// 対応するものがなければ500とnilを返す。
func classifyError(err error, resourceID string) (int, *model.APIError) {
	var apiErr *model.APIError
	switch {
	case errors.As(err, &apiErr):
		return http.StatusBadRequest, apiErr
	case errors.Is(err, video.ErrVideoNotFound):
		return http.StatusNotFound, model.NewVideoNotFoundError(resourceID)
	case errors.Is(err, video.ErrCommentNotFound):
		return http.StatusNotFound, model.NewCommentNotFoundError(resourceID)
	case errors.Is(err, user.ErrChannelNotFound):
		return http.StatusNotFound, model.NewChannelNotFoundError(resourceID)
	case errors.Is(err, video.ErrInvalidComment):
		return http.StatusBadRequest, model.NewInvalidCommentError(err.Error())
	case errors.Is(err, video.ErrInvalidInput), errors.Is(err, user.ErrInvalidProfile):
		return http.StatusBadRequest, model.NewInvalidInputError("input", err.Error())
	case errors.Is(err, user.ErrSelfSubscription):
		return http.StatusBadRequest, model.NewSelfSubscriptionError()
	case errors.Is(err, repository.ErrUsernameTaken):
		return http.StatusConflict, model.NewUsernameTakenError(resourceID)
	case errors.Is(err, storage.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, model.NewUploadTooLargeError(0)
	case errors.Is(err, storage.ErrEmptyFile):
		return http.StatusBadRequest, model.NewInvalidInputError("file", "ファイルが空です")
	case errors.Is(err, video.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, model.NewStorageUnavailableError()
	}
	return http.StatusInternalServerError, nil
}

// userMessage はフォームに表示するエラーメッセージを返す。
func userMessage(err error) string {
	status, apiErr := classifyError(err, "")
	if status == http.StatusInternalServerError {
		return "Something went wrong. Please try again."
	}
	switch status {
	case http.StatusRequestEntityTooLarge:
		return "The file is too large."
	case http.StatusServiceUnavailable:
		return "File storage is not configured."
	case http.StatusConflict:
		return "That username is already taken."
	}
	if errors.Is(err, storage.ErrEmptyFile) {
		return "The selected file is empty."
	}
	if errors.Is(err, video.ErrInvalidInput) || errors.Is(err, user.ErrInvalidProfile) {
		return errorDetail(err)
	}
	return apiErr.Message
}

// errorDetail は "invalid input: title is required" の形式から詳細部分を取り出す。
func errorDetail(err error) string {
	msg := err.Error()
	if _, detail, ok := strings.Cut(msg, ": "); ok {
		return detail
	}
	return msg
}
