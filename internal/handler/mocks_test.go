package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/vidshare/internal/auth"
	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/security"
	"github.com/hitoshi/vidshare/internal/user"
	"github.com/hitoshi/vidshare/internal/video"
)

// --- モック定義 ---

// mockVideoService はVideoServiceInterfaceのモック実装。
type mockVideoService struct {
	latestFn         func(ctx context.Context) ([]model.Video, error)
	searchFn         func(ctx context.Context, query string) ([]model.Video, error)
	byUserFn         func(ctx context.Context, userID string) ([]model.Video, error)
	watchFn          func(ctx context.Context, videoID, viewerID string) (*video.WatchPage, error)
	libraryFn        func(ctx context.Context, userID string) (*video.Library, error)
	uploadFn         func(ctx context.Context, userID string, in video.UploadInput) (*model.Video, error)
	maxUploadSize    int64
	recordViewFn     func(ctx context.Context, videoID, viewerID string) (int64, error)
	watchDurationFn  func(ctx context.Context, userID, videoID string, seconds int) error
	setVideoLikeFn   func(ctx context.Context, userID, videoID string, liked bool) (*video.ToggleResult, error)
	setCommentLikeFn func(ctx context.Context, userID, commentID string, liked bool) (*video.ToggleResult, error)
	setWatchLaterFn  func(ctx context.Context, userID, videoID string, add bool) (*video.ToggleResult, error)
	addCommentFn     func(ctx context.Context, userID, videoID, content string) (*model.Comment, error)
}

func (m *mockVideoService) Latest(ctx context.Context) ([]model.Video, error) {
	if m.latestFn != nil {
		return m.latestFn(ctx)
	}
	return nil, nil
}

func (m *mockVideoService) Popular(ctx context.Context) ([]model.Video, error) {
	return m.Latest(ctx)
}

func (m *mockVideoService) Search(ctx context.Context, query string) ([]model.Video, error) {
	if m.searchFn != nil {
		return m.searchFn(ctx, query)
	}
	return nil, nil
}

func (m *mockVideoService) ByUser(ctx context.Context, userID string) ([]model.Video, error) {
	if m.byUserFn != nil {
		return m.byUserFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockVideoService) History(ctx context.Context, userID string) ([]model.WatchHistoryEntry, error) {
	return nil, nil
}

func (m *mockVideoService) Liked(ctx context.Context, userID string) ([]model.Video, error) {
	return m.ByUser(ctx, userID)
}

func (m *mockVideoService) WatchLater(ctx context.Context, userID string) ([]model.Video, error) {
	return m.ByUser(ctx, userID)
}

func (m *mockVideoService) Watch(ctx context.Context, videoID, viewerID string) (*video.WatchPage, error) {
	if m.watchFn != nil {
		return m.watchFn(ctx, videoID, viewerID)
	}
	return nil, video.ErrVideoNotFound
}

func (m *mockVideoService) Library(ctx context.Context, userID string) (*video.Library, error) {
	if m.libraryFn != nil {
		return m.libraryFn(ctx, userID)
	}
	return &video.Library{}, nil
}

func (m *mockVideoService) Upload(ctx context.Context, userID string, in video.UploadInput) (*model.Video, error) {
	if m.uploadFn != nil {
		return m.uploadFn(ctx, userID, in)
	}
	return nil, nil
}

func (m *mockVideoService) MaxUploadSize() int64 {
	return m.maxUploadSize
}

func (m *mockVideoService) RecordView(ctx context.Context, videoID, viewerID string) (int64, error) {
	if m.recordViewFn != nil {
		return m.recordViewFn(ctx, videoID, viewerID)
	}
	return 0, nil
}

func (m *mockVideoService) UpdateWatchDuration(ctx context.Context, userID, videoID string, seconds int) error {
	if m.watchDurationFn != nil {
		return m.watchDurationFn(ctx, userID, videoID, seconds)
	}
	return nil
}

func (m *mockVideoService) SetVideoLike(ctx context.Context, userID, videoID string, liked bool) (*video.ToggleResult, error) {
	if m.setVideoLikeFn != nil {
		return m.setVideoLikeFn(ctx, userID, videoID, liked)
	}
	return nil, nil
}

func (m *mockVideoService) SetCommentLike(ctx context.Context, userID, commentID string, liked bool) (*video.ToggleResult, error) {
	if m.setCommentLikeFn != nil {
		return m.setCommentLikeFn(ctx, userID, commentID, liked)
	}
	return nil, nil
}

func (m *mockVideoService) SetWatchLater(ctx context.Context, userID, videoID string, add bool) (*video.ToggleResult, error) {
	if m.setWatchLaterFn != nil {
		return m.setWatchLaterFn(ctx, userID, videoID, add)
	}
	return nil, nil
}

func (m *mockVideoService) AddComment(ctx context.Context, userID, videoID, content string) (*model.Comment, error) {
	if m.addCommentFn != nil {
		return m.addCommentFn(ctx, userID, videoID, content)
	}
	return nil, nil
}

// mockUserService はUserServiceInterfaceのモック実装。
type mockUserService struct {
	channelFn         func(ctx context.Context, channelID, viewerID string) (*user.ChannelPage, error)
	subscriptionsFn   func(ctx context.Context, userID string) (*user.SubscriptionsPage, error)
	profileFn         func(ctx context.Context, userID string) (*model.Profile, error)
	updateProfileFn   func(ctx context.Context, userID string, in user.ProfileInput) (*model.Profile, error)
	setSubscriptionFn func(ctx context.Context, subscriberID, channelID string, subscribed bool) (*user.SubscriptionResult, error)
}

func (m *mockUserService) Channel(ctx context.Context, channelID, viewerID string) (*user.ChannelPage, error) {
	if m.channelFn != nil {
		return m.channelFn(ctx, channelID, viewerID)
	}
	return nil, user.ErrChannelNotFound
}

func (m *mockUserService) Subscriptions(ctx context.Context, userID string) (*user.SubscriptionsPage, error) {
	if m.subscriptionsFn != nil {
		return m.subscriptionsFn(ctx, userID)
	}
	return &user.SubscriptionsPage{}, nil
}

func (m *mockUserService) Profile(ctx context.Context, userID string) (*model.Profile, error) {
	if m.profileFn != nil {
		return m.profileFn(ctx, userID)
	}
	return &model.Profile{ID: userID, Username: "alice"}, nil
}

func (m *mockUserService) UpdateProfile(ctx context.Context, userID string, in user.ProfileInput) (*model.Profile, error) {
	if m.updateProfileFn != nil {
		return m.updateProfileFn(ctx, userID, in)
	}
	return &model.Profile{ID: userID, Username: in.Username}, nil
}

func (m *mockUserService) SetSubscription(ctx context.Context, subscriberID, channelID string, subscribed bool) (*user.SubscriptionResult, error) {
	if m.setSubscriptionFn != nil {
		return m.setSubscriptionFn(ctx, subscriberID, channelID, subscribed)
	}
	return nil, nil
}

// mockAuthService はAuthServiceInterfaceのモック実装。
type mockAuthService struct {
	signInFn     func(ctx context.Context, email, password string) (*model.Session, error)
	signUpFn     func(ctx context.Context, in auth.SignUpInput) (*auth.SignUpOutcome, error)
	resendFn     func(ctx context.Context, email, emailRedirectTo string) error
	signOutCalls int
}

func (m *mockAuthService) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, nil
}

func (m *mockAuthService) SignUp(ctx context.Context, in auth.SignUpInput) (*auth.SignUpOutcome, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, in)
	}
	return nil, nil
}

func (m *mockAuthService) SignOut(ctx context.Context, session *model.Session) {
	m.signOutCalls++
}

func (m *mockAuthService) ResendConfirmation(ctx context.Context, email, emailRedirectTo string) error {
	if m.resendFn != nil {
		return m.resendFn(ctx, email, emailRedirectTo)
	}
	return nil
}

// mockCompleter はAuthCompleterのモック実装。
type mockCompleter struct {
	completeFn func(ctx context.Context, code, codeVerifier string) (*auth.Completion, error)
}

func (m *mockCompleter) Complete(ctx context.Context, code, codeVerifier string) (*auth.Completion, error) {
	if m.completeFn != nil {
		return m.completeFn(ctx, code, codeVerifier)
	}
	return nil, nil
}

// recordingCallbacks はCallbackRecorderの記録用実装。
type recordingCallbacks struct {
	outcomes []string
}

func (r *recordingCallbacks) RecordAuthCallback(outcome string) {
	r.outcomes = append(r.outcomes, outcome)
}

// --- テストヘルパー ---

const (
	testUserID  = "11111111-1111-1111-1111-111111111111"
	testVideoID = "22222222-2222-2222-2222-222222222222"
	testOtherID = "33333333-3333-3333-3333-333333333333"
)

func newTestRenderer(t *testing.T) *Renderer {
	t.Helper()
	rd, err := NewRenderer(security.NewSanitizer())
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}
	return rd
}

// withSession はテスト用にリクエストコンテキストにセッションを注入するヘルパー。
func withSession(r *http.Request, userID string) *http.Request {
	ctx := auth.ContextWithSession(r.Context(), &model.Session{
		AccessToken:  "access",
		RefreshToken: "refresh",
		UserID:       userID,
		Email:        "alice@example.com",
		Username:     "alice",
	})
	return r.WithContext(ctx)
}

// withChiURLParam はテスト用にchiのURLパラメータを注入するヘルパー。
func withChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}

// findCookie はレスポンスから指定名のCookieを探す。
func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// decodeBody はレスポンスボディをJSONとして読み取るヘルパー。
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
}
