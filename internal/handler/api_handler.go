package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/vidshare/internal/interaction"
	"github.com/hitoshi/vidshare/internal/middleware"
	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/user"
	"github.com/hitoshi/vidshare/internal/video"
)

// VideoActionServiceInterface は動画・コメントに対する操作のサービスインターフェース。
type VideoActionServiceInterface interface {
	RecordView(ctx context.Context, videoID, viewerID string) (int64, error)
	UpdateWatchDuration(ctx context.Context, userID, videoID string, seconds int) error
	SetVideoLike(ctx context.Context, userID, videoID string, liked bool) (*video.ToggleResult, error)
	SetCommentLike(ctx context.Context, userID, commentID string, liked bool) (*video.ToggleResult, error)
	SetWatchLater(ctx context.Context, userID, videoID string, add bool) (*video.ToggleResult, error)
	AddComment(ctx context.Context, userID, videoID, content string) (*model.Comment, error)
}

// SubscriptionServiceInterface はチャンネル購読のサービスインターフェース。
type SubscriptionServiceInterface interface {
	SetSubscription(ctx context.Context, subscriberID, channelID string, subscribed bool) (*user.SubscriptionResult, error)
}

// APIHandler は /api 配下の更新操作のHTTPハンドラー。
type APIHandler struct {
	videos        VideoActionServiceInterface
	subscriptions SubscriptionServiceInterface
}

// NewAPIHandler はAPIHandlerを生成する。
func NewAPIHandler(videos VideoActionServiceInterface, subscriptions SubscriptionServiceInterface) *APIHandler {
	return &APIHandler{
		videos:        videos,
		subscriptions: subscriptions,
	}
}

// --- リクエスト・レスポンス型 ---

type likeRequest struct {
	Liked *bool `json:"liked"`
}

type subscriptionRequest struct {
	Subscribed *bool `json:"subscribed"`
}

type watchLaterRequest struct {
	Add *bool `json:"add"`
}

type watchDurationRequest struct {
	Duration *int `json:"duration"`
}

type commentRequest struct {
	Content string `json:"content"`
}

// toggleResponse はトグル操作の確定結果。
// 失敗時はphaseがrolled_backとなり、valueとcountは操作前の値を示す。
type toggleResponse struct {
	Phase interaction.Phase             `json:"phase"`
	Value bool                          `json:"value"`
	Count *int                          `json:"count,omitempty"`
	Error *middleware.ErrorResponseBody `json:"error,omitempty"`
}

type viewResponse struct {
	VideoID string `json:"video_id"`
	Views   int64  `json:"views"`
}

type authorResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
}

type commentResponse struct {
	ID           string         `json:"id"`
	Content      string         `json:"content"`
	UserID       string         `json:"user_id"`
	VideoID      string         `json:"video_id"`
	CreatedAt    time.Time      `json:"created_at"`
	Author       authorResponse `json:"author"`
	LikesCount   int            `json:"likes_count"`
	UserHasLiked bool           `json:"user_has_liked"`
}

// RecordView は再生回数を1増やす。ログイン中であれば視聴履歴も記録する。
// POST /api/videos/{id}/view
func (h *APIHandler) RecordView(w http.ResponseWriter, r *http.Request) {
	videoID, ok := apiUUIDParam(w, r, "id")
	if !ok {
		return
	}
	views, err := h.videos.RecordView(r.Context(), videoID, viewerID(r))
	if err != nil {
		handleServiceError(w, err, videoID)
		return
	}
	writeJSON(w, http.StatusOK, viewResponse{VideoID: videoID, Views: views})
}

// UpdateWatchDuration は視聴時間を更新する。
// PUT /api/videos/{id}/watch-duration {"duration": 120}
func (h *APIHandler) UpdateWatchDuration(w http.ResponseWriter, r *http.Request) {
	userID, videoID, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	var req watchDurationRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Duration == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("duration", "必須です"))
		return
	}
	if err := h.videos.UpdateWatchDuration(r.Context(), userID, videoID, *req.Duration); err != nil {
		handleServiceError(w, err, videoID)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SetVideoLike は動画の高評価を設定する。
// PUT /api/videos/{id}/like {"liked": true}
func (h *APIHandler) SetVideoLike(w http.ResponseWriter, r *http.Request) {
	userID, videoID, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	var req likeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Liked == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("liked", "必須です"))
		return
	}
	res, err := h.videos.SetVideoLike(r.Context(), userID, videoID, *req.Liked)
	writeToggle(w, res, err, videoID, "高評価", true)
}

// SetCommentLike はコメントの高評価を設定する。
// PUT /api/comments/{id}/like {"liked": true}
func (h *APIHandler) SetCommentLike(w http.ResponseWriter, r *http.Request) {
	userID, commentID, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	var req likeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Liked == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("liked", "必須です"))
		return
	}
	res, err := h.videos.SetCommentLike(r.Context(), userID, commentID, *req.Liked)
	writeToggle(w, res, err, commentID, "高評価", false)
}

// SetWatchLater は「後で見る」への追加・削除を行う。
// PUT /api/videos/{id}/watch-later {"add": true}
func (h *APIHandler) SetWatchLater(w http.ResponseWriter, r *http.Request) {
	userID, videoID, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	var req watchLaterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Add == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("add", "必須です"))
		return
	}
	res, err := h.videos.SetWatchLater(r.Context(), userID, videoID, *req.Add)
	writeToggle(w, res, err, videoID, "後で見る", false)
}

// SetSubscription はチャンネルの購読状態を設定する。
// PUT /api/channels/{id}/subscription {"subscribed": true}
func (h *APIHandler) SetSubscription(w http.ResponseWriter, r *http.Request) {
	userID, channelID, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	var req subscriptionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Subscribed == nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError("subscribed", "必須です"))
		return
	}
	res, err := h.subscriptions.SetSubscription(r.Context(), userID, channelID, *req.Subscribed)
	var toggle *video.ToggleResult
	if res != nil {
		toggle = &video.ToggleResult{Phase: res.Phase, Value: res.Subscribed, Count: res.SubscribersCount}
	}
	writeToggle(w, toggle, err, channelID, "購読", true)
}

// AddComment は動画にコメントを投稿する。
// POST /api/videos/{id}/comments {"content": "..."}
func (h *APIHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	userID, videoID, ok := h.userAndID(w, r)
	if !ok {
		return
	}
	var req commentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	c, err := h.videos.AddComment(r.Context(), userID, videoID, req.Content)
	if err != nil {
		handleServiceError(w, err, videoID)
		return
	}
	writeJSON(w, http.StatusCreated, commentResponse{
		ID:        c.ID,
		Content:   c.Content,
		UserID:    c.UserID,
		VideoID:   c.VideoID,
		CreatedAt: c.CreatedAt,
		Author: authorResponse{
			ID:        c.Author.ID,
			Username:  c.Author.Username,
			AvatarURL: c.Author.AvatarURL,
		},
		LikesCount:   c.LikesCount,
		UserHasLiked: c.UserHasLiked,
	})
}

// userAndID はログイン中のユーザーIDとURLパラメータのUUIDを取り出す。
func (h *APIHandler) userAndID(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return "", "", false
	}
	id, ok := apiUUIDParam(w, r, "id")
	if !ok {
		return "", "", false
	}
	return userID, id, true
}

// apiUUIDParam はURLパラメータをUUIDとして検証する。不正な場合は400を書き込む。
func apiUUIDParam(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	id := chi.URLParam(r, key)
	if _, err := uuid.Parse(id); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewInvalidInputError(key, "UUIDではありません"))
		return "", false
	}
	return id, true
}

// writeToggle はトグル操作の結果を書き込む。
// 永続化に失敗した場合は502と、巻き戻した値を含むレスポンスを返す。
func writeToggle(w http.ResponseWriter, res *video.ToggleResult, err error, resourceID, what string, withCount bool) {
	if err != nil && (res == nil || res.Phase != interaction.PhaseRolledBack) {
		handleServiceError(w, err, resourceID)
		return
	}

	body := toggleResponse{Phase: res.Phase, Value: res.Value}
	if withCount {
		count := res.Count
		body.Count = &count
	}
	if err != nil {
		body.Error = middleware.NewErrorResponseBody(model.NewMutationFailedError(what))
		writeJSON(w, http.StatusBadGateway, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
