package video

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/repository"
	"github.com/hitoshi/vidshare/internal/security"
	"github.com/hitoshi/vidshare/internal/storage"
)

// --- モック定義 ---

type mockVideoRepo struct {
	createFn         func(ctx context.Context, v *model.NewVideo) (*model.Video, error)
	findByIDFn       func(ctx context.Context, id string) (*model.Video, error)
	listFn           func(ctx context.Context, kind string, arg string, limit int) ([]model.Video, error)
	incrementViewsFn func(ctx context.Context, id string) (int64, bool, error)
}

func (m *mockVideoRepo) Create(ctx context.Context, v *model.NewVideo) (*model.Video, error) {
	if m.createFn != nil {
		return m.createFn(ctx, v)
	}
	return &model.Video{ID: v.ID, Title: v.Title, UserID: v.UserID, VideoURL: v.VideoURL, ThumbnailURL: v.ThumbnailURL}, nil
}
func (m *mockVideoRepo) FindByID(ctx context.Context, id string) (*model.Video, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockVideoRepo) list(ctx context.Context, kind, arg string, limit int) ([]model.Video, error) {
	if m.listFn != nil {
		return m.listFn(ctx, kind, arg, limit)
	}
	return []model.Video{}, nil
}
func (m *mockVideoRepo) ListRecent(ctx context.Context, limit int) ([]model.Video, error) {
	return m.list(ctx, "recent", "", limit)
}
func (m *mockVideoRepo) ListPopular(ctx context.Context, limit int) ([]model.Video, error) {
	return m.list(ctx, "popular", "", limit)
}
func (m *mockVideoRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.Video, error) {
	return m.list(ctx, "user", userID, limit)
}
func (m *mockVideoRepo) ListRelated(ctx context.Context, excludeID string, limit int) ([]model.Video, error) {
	return m.list(ctx, "related", excludeID, limit)
}
func (m *mockVideoRepo) ListFromSubscriptions(ctx context.Context, subscriberID string, limit int) ([]model.Video, error) {
	return m.list(ctx, "subscriptions", subscriberID, limit)
}
func (m *mockVideoRepo) ListLikedBy(ctx context.Context, userID string, limit int) ([]model.Video, error) {
	return m.list(ctx, "liked", userID, limit)
}
func (m *mockVideoRepo) Search(ctx context.Context, query string, limit int) ([]model.Video, error) {
	return m.list(ctx, "search", query, limit)
}
func (m *mockVideoRepo) IncrementViews(ctx context.Context, id string) (int64, bool, error) {
	if m.incrementViewsFn != nil {
		return m.incrementViewsFn(ctx, id)
	}
	return 1, true, nil
}

type mockCommentRepo struct {
	listByVideoFn func(ctx context.Context, videoID, viewerID string) ([]model.Comment, error)
	existsFn      func(ctx context.Context, id string) (bool, error)
	createFn      func(ctx context.Context, c *model.Comment) (*model.Comment, error)
}

func (m *mockCommentRepo) ListByVideo(ctx context.Context, videoID, viewerID string) ([]model.Comment, error) {
	if m.listByVideoFn != nil {
		return m.listByVideoFn(ctx, videoID, viewerID)
	}
	return []model.Comment{}, nil
}
func (m *mockCommentRepo) Exists(ctx context.Context, id string) (bool, error) {
	if m.existsFn != nil {
		return m.existsFn(ctx, id)
	}
	return true, nil
}
func (m *mockCommentRepo) Create(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	if m.createFn != nil {
		return m.createFn(ctx, c)
	}
	created := *c
	created.Author = model.Author{ID: c.UserID, Username: "author"}
	return &created, nil
}

type mockLikeRepo struct {
	countFn          func(ctx context.Context, videoID string) (int, error)
	hasLikedFn       func(ctx context.Context, userID, videoID string) (bool, error)
	setVideoLikeFn   func(ctx context.Context, userID, videoID string, liked bool) error
	setCommentLikeFn func(ctx context.Context, userID, commentID string, liked bool) error
	setCalls         int
}

func (m *mockLikeRepo) CountForVideo(ctx context.Context, videoID string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, videoID)
	}
	return 0, nil
}
func (m *mockLikeRepo) HasLikedVideo(ctx context.Context, userID, videoID string) (bool, error) {
	if m.hasLikedFn != nil {
		return m.hasLikedFn(ctx, userID, videoID)
	}
	return false, nil
}
func (m *mockLikeRepo) SetVideoLike(ctx context.Context, userID, videoID string, liked bool) error {
	m.setCalls++
	if m.setVideoLikeFn != nil {
		return m.setVideoLikeFn(ctx, userID, videoID, liked)
	}
	return nil
}
func (m *mockLikeRepo) SetCommentLike(ctx context.Context, userID, commentID string, liked bool) error {
	m.setCalls++
	if m.setCommentLikeFn != nil {
		return m.setCommentLikeFn(ctx, userID, commentID, liked)
	}
	return nil
}

type mockSubRepo struct {
	countFn        func(ctx context.Context, channelID string) (int, error)
	isSubscribedFn func(ctx context.Context, subscriberID, channelID string) (bool, error)
}

func (m *mockSubRepo) CountSubscribers(ctx context.Context, channelID string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, channelID)
	}
	return 0, nil
}
func (m *mockSubRepo) IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error) {
	if m.isSubscribedFn != nil {
		return m.isSubscribedFn(ctx, subscriberID, channelID)
	}
	return false, nil
}
func (m *mockSubRepo) SetSubscribed(ctx context.Context, subscriberID, channelID string, subscribed bool) error {
	return nil
}
func (m *mockSubRepo) ListChannels(ctx context.Context, subscriberID string) ([]model.Profile, error) {
	return []model.Profile{}, nil
}

type mockHistoryRepo struct {
	mu               sync.Mutex
	recorded         []string
	recordFn         func(ctx context.Context, userID, videoID string, at time.Time) error
	updateDurationFn func(ctx context.Context, userID, videoID string, seconds int) error
}

func (m *mockHistoryRepo) Record(ctx context.Context, userID, videoID string, at time.Time) error {
	m.mu.Lock()
	m.recorded = append(m.recorded, userID+":"+videoID)
	m.mu.Unlock()
	if m.recordFn != nil {
		return m.recordFn(ctx, userID, videoID, at)
	}
	return nil
}
func (m *mockHistoryRepo) UpdateDuration(ctx context.Context, userID, videoID string, seconds int) error {
	if m.updateDurationFn != nil {
		return m.updateDurationFn(ctx, userID, videoID, seconds)
	}
	return nil
}
func (m *mockHistoryRepo) List(ctx context.Context, userID string, limit int) ([]model.WatchHistoryEntry, error) {
	return []model.WatchHistoryEntry{}, nil
}

// memPlaylistRepo はメモリ上の再生リスト実装。
type memPlaylistRepo struct {
	mu        sync.Mutex
	playlists map[string]*model.Playlist // key: userID + "/" + title
	videos    map[string]map[string]bool // playlistID -> videoID
	setErr    error
}

func newMemPlaylistRepo() *memPlaylistRepo {
	return &memPlaylistRepo{
		playlists: make(map[string]*model.Playlist),
		videos:    make(map[string]map[string]bool),
	}
}

func (m *memPlaylistRepo) EnsureByTitle(ctx context.Context, userID, title string) (*model.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := userID + "/" + title
	if p, ok := m.playlists[key]; ok {
		return p, nil
	}
	p := &model.Playlist{ID: "pl-" + userID, Title: title, UserID: userID}
	m.playlists[key] = p
	m.videos[p.ID] = make(map[string]bool)
	return p, nil
}
func (m *memPlaylistRepo) ListByUser(ctx context.Context, userID string) ([]model.Playlist, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Playlist{}
	for _, p := range m.playlists {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}
func (m *memPlaylistRepo) Contains(ctx context.Context, playlistID, videoID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videos[playlistID][videoID], nil
}
func (m *memPlaylistRepo) SetVideo(ctx context.Context, playlistID, videoID string, present bool) error {
	if m.setErr != nil {
		return m.setErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if present {
		m.videos[playlistID][videoID] = true
	} else {
		delete(m.videos[playlistID], videoID)
	}
	return nil
}
func (m *memPlaylistRepo) ListVideos(ctx context.Context, playlistID string) ([]model.Video, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Video{}
	for id := range m.videos[playlistID] {
		out = append(out, model.Video{ID: id})
	}
	return out, nil
}

type mockUploader struct {
	mu       sync.Mutex
	uploadFn func(ctx context.Context, bucket, userID string, f storage.File) (*storage.Object, error)
	buckets  []string
}

func (m *mockUploader) Upload(ctx context.Context, bucket, userID string, f storage.File) (*storage.Object, error) {
	m.mu.Lock()
	m.buckets = append(m.buckets, bucket)
	m.mu.Unlock()
	if m.uploadFn != nil {
		return m.uploadFn(ctx, bucket, userID, f)
	}
	key := userID + "/" + f.Name
	return &storage.Object{Bucket: bucket, Key: key, URL: "https://cdn.example.com/" + bucket + "/" + key}, nil
}
func (m *mockUploader) MaxSize() int64 { return 1 << 20 }

type recordingRecorder struct {
	mu        sync.Mutex
	mutations []string
	uploads   []string
}

func (r *recordingRecorder) RecordMutation(kind, phase string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mutations = append(r.mutations, kind+":"+phase)
}
func (r *recordingRecorder) RecordUpload(bucket, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.uploads = append(r.uploads, bucket+":"+outcome)
}

// fixture はテスト用のサービスと差し替え可能なリポジトリをまとめる。
type fixture struct {
	videos    *mockVideoRepo
	comments  *mockCommentRepo
	likes     *mockLikeRepo
	subs      *mockSubRepo
	history   *mockHistoryRepo
	playlists *memPlaylistRepo
	uploader  *mockUploader
	recorder  *recordingRecorder
}

func newFixture() *fixture {
	return &fixture{
		videos: &mockVideoRepo{
			findByIDFn: func(ctx context.Context, id string) (*model.Video, error) {
				if id == "missing" {
					return nil, nil
				}
				return &model.Video{ID: id, UserID: "owner-1", Title: "title"}, nil
			},
		},
		comments:  &mockCommentRepo{},
		likes:     &mockLikeRepo{},
		subs:      &mockSubRepo{},
		history:   &mockHistoryRepo{},
		playlists: newMemPlaylistRepo(),
		uploader:  &mockUploader{},
		recorder:  &recordingRecorder{},
	}
}

func (f *fixture) service() *Service {
	return NewService(Repositories{
		Videos:    f.videos,
		Comments:  f.comments,
		Likes:     f.likes,
		Subs:      f.subs,
		History:   f.history,
		Playlists: f.playlists,
	}, f.uploader, security.NewSanitizer(), f.recorder)
}

var (
	_ repository.VideoRepository        = (*mockVideoRepo)(nil)
	_ repository.CommentRepository      = (*mockCommentRepo)(nil)
	_ repository.LikeRepository         = (*mockLikeRepo)(nil)
	_ repository.SubscriptionRepository = (*mockSubRepo)(nil)
	_ repository.WatchHistoryRepository = (*mockHistoryRepo)(nil)
	_ repository.PlaylistRepository     = (*memPlaylistRepo)(nil)
)
