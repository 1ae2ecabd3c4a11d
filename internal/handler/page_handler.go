package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hitoshi/vidshare/internal/auth"
	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/user"
	"github.com/hitoshi/vidshare/internal/video"
)

// VideoPageServiceInterface は閲覧ページが必要とする動画サービスのインターフェース。
type VideoPageServiceInterface interface {
	Latest(ctx context.Context) ([]model.Video, error)
	Popular(ctx context.Context) ([]model.Video, error)
	Search(ctx context.Context, query string) ([]model.Video, error)
	ByUser(ctx context.Context, userID string) ([]model.Video, error)
	History(ctx context.Context, userID string) ([]model.WatchHistoryEntry, error)
	Liked(ctx context.Context, userID string) ([]model.Video, error)
	WatchLater(ctx context.Context, userID string) ([]model.Video, error)
	Watch(ctx context.Context, videoID, viewerID string) (*video.WatchPage, error)
	Library(ctx context.Context, userID string) (*video.Library, error)
}

// ChannelServiceInterface はチャンネル・購読・プロフィールのサービスインターフェース。
type ChannelServiceInterface interface {
	Channel(ctx context.Context, channelID, viewerID string) (*user.ChannelPage, error)
	Subscriptions(ctx context.Context, userID string) (*user.SubscriptionsPage, error)
	Profile(ctx context.Context, userID string) (*model.Profile, error)
	UpdateProfile(ctx context.Context, userID string, in user.ProfileInput) (*model.Profile, error)
}

// PageHandler は閲覧ページのHTTPハンドラー。
type PageHandler struct {
	videos   VideoPageServiceInterface
	channels ChannelServiceInterface
	renderer *Renderer
	baseURL  string
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(videos VideoPageServiceInterface, channels ChannelServiceInterface, renderer *Renderer, baseURL string) *PageHandler {
	return &PageHandler{
		videos:   videos,
		channels: channels,
		renderer: renderer,
		baseURL:  baseURL,
	}
}

// Home は新着動画を表示する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	videos, err := h.videos.Latest(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageHome, pageData{Title: "Home", Data: videos})
}

// Explore は再生回数の多い動画を表示する。
// GET /explore
func (h *PageHandler) Explore(w http.ResponseWriter, r *http.Request) {
	videos, err := h.videos.Popular(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageHome, pageData{Title: "Explore", Data: videos})
}

// Search はタイトルと説明文で動画を検索する。
// GET /search?q=xxx
func (h *PageHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	videos, err := h.videos.Search(r.Context(), query)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageSearch, pageData{Title: "Search", Query: query, Data: videos})
}

// Watch は視聴ページを表示する。
// GET /video/{id}
func (h *PageHandler) Watch(w http.ResponseWriter, r *http.Request) {
	videoID, ok := h.uuidParam(w, r, "id")
	if !ok {
		return
	}
	page, err := h.videos.Watch(r.Context(), videoID, viewerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageWatch, pageData{Title: page.Video.Title, Data: page})
}

// Channel はチャンネルページを表示する。
// GET /channel/{id}
func (h *PageHandler) Channel(w http.ResponseWriter, r *http.Request) {
	channelID, ok := h.uuidParam(w, r, "id")
	if !ok {
		return
	}
	page, err := h.channels.Channel(r.Context(), channelID, viewerID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageChannel, pageData{Title: page.Channel.Username, Data: page})
}

// MyChannel は自分のチャンネルへリダイレクトする。未ログインの場合はサインインへ。
// GET /channel/me
func (h *PageHandler) MyChannel(w http.ResponseWriter, r *http.Request) {
	id := viewerID(r)
	if id == "" {
		http.Redirect(w, r, auth.SignInURL(h.baseURL, url.Values{"returnUrl": {r.URL.Path}}), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/channel/"+id, http.StatusSeeOther)
}

// YourVideos は自分が投稿した動画を表示する。
// GET /your-videos
func (h *PageHandler) YourVideos(w http.ResponseWriter, r *http.Request) {
	h.userVideos(w, r, "Your videos", h.videos.ByUser)
}

// LikedVideos は高評価した動画を表示する。
// GET /liked-videos
func (h *PageHandler) LikedVideos(w http.ResponseWriter, r *http.Request) {
	h.userVideos(w, r, "Liked videos", h.videos.Liked)
}

// WatchLater は「後で見る」の動画を表示する。
// GET /watch-later
func (h *PageHandler) WatchLater(w http.ResponseWriter, r *http.Request) {
	h.userVideos(w, r, "Watch later", h.videos.WatchLater)
}

// History は視聴履歴を表示する。
// GET /history
func (h *PageHandler) History(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	entries, err := h.videos.History(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageHistory, pageData{Title: "History", Data: entries})
}

// Subscriptions は購読中のチャンネルと新着動画を表示する。
// GET /subscriptions
func (h *PageHandler) Subscriptions(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	page, err := h.channels.Subscriptions(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageSubscriptions, pageData{Title: "Subscriptions", Data: page})
}

// Library はライブラリを表示する。
// GET /library
func (h *PageHandler) Library(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	lib, err := h.videos.Library(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageLibrary, pageData{Title: "Library", Data: lib})
}

// NotFound は存在しないページへのアクセスに404ページを返す。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderError(w, r, http.StatusNotFound, "The page you are looking for does not exist.")
}

func (h *PageHandler) userVideos(w http.ResponseWriter, r *http.Request, title string, list func(ctx context.Context, userID string) ([]model.Video, error)) {
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	videos, err := list(r.Context(), userID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.renderer.render(w, r, http.StatusOK, pageHome, pageData{Title: title, Data: videos})
}

// requireUser はログイン中のユーザーIDを返す。
// 保護ページはルートガードを通過しているため、通常は未ログインにならない。
func (h *PageHandler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := viewerID(r)
	if id == "" {
		http.Redirect(w, r, auth.SignInURL(h.baseURL, url.Values{"returnUrl": {pathWithQuery(r)}}), http.StatusSeeOther)
		return "", false
	}
	return id, true
}

// uuidParam はURLパラメータをUUIDとして検証する。不正な場合は404を描画する。
func (h *PageHandler) uuidParam(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	id := chi.URLParam(r, key)
	if _, err := uuid.Parse(id); err != nil {
		h.NotFound(w, r)
		return "", false
	}
	return id, true
}

// fail はサービス層のエラーをエラーページとして描画する。
func (h *PageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, video.ErrVideoNotFound):
		h.renderer.renderError(w, r, http.StatusNotFound, "This video is not available.")
	case errors.Is(err, user.ErrChannelNotFound):
		h.renderer.renderError(w, r, http.StatusNotFound, "This channel does not exist.")
	default:
		slog.Error("failed to load page",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		h.renderer.renderError(w, r, http.StatusInternalServerError, "Something went wrong. Please reload the page.")
	}
}

// viewerID はログイン中のユーザーIDを返す。未ログインの場合は空文字列。
func viewerID(r *http.Request) string {
	if s := auth.SessionFromContext(r.Context()); s != nil {
		return s.UserID
	}
	return ""
}

func pathWithQuery(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}
