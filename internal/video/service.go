// Package video は動画の一覧・視聴ページ・アップロード・視聴者操作のドメインロジックを提供する。
package video

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/repository"
	"github.com/hitoshi/vidshare/internal/security"
	"github.com/hitoshi/vidshare/internal/storage"
)

// WatchLaterTitle は「後で見る」再生リストのタイトル。ユーザーごとに1つ作られる。
const WatchLaterTitle = "Watch later"

// 一覧の件数
const (
	PageSize       = 24
	relatedLimit   = 12
	librarySection = 10
)

var (
	// ErrVideoNotFound は動画が存在しないことを表す。
	ErrVideoNotFound = errors.New("video not found")
	// ErrCommentNotFound はコメントが存在しないことを表す。
	ErrCommentNotFound = errors.New("comment not found")
	// ErrInvalidComment はコメント本文が空または長すぎることを表す。
	ErrInvalidComment = errors.New("invalid comment")
	// ErrInvalidInput はタイトルなどの入力値が不正であることを表す。
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorageUnavailable はファイルストレージが設定されていないことを表す。
	ErrStorageUnavailable = errors.New("storage is not configured")
)

// Uploader はファイルをストレージに保存する。*storage.Store が満たす。
type Uploader interface {
	Upload(ctx context.Context, bucket, userID string, f storage.File) (*storage.Object, error)
	MaxSize() int64
}

// Recorder は操作結果を記録する。*metrics.Collector が満たす。
type Recorder interface {
	RecordMutation(kind, phase string)
	RecordUpload(bucket, outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordMutation(string, string) {}
func (nopRecorder) RecordUpload(string, string)   {}

// Repositories はServiceが使うリポジトリの集合。
type Repositories struct {
	Videos    repository.VideoRepository
	Comments  repository.CommentRepository
	Likes     repository.LikeRepository
	Subs      repository.SubscriptionRepository
	History   repository.WatchHistoryRepository
	Playlists repository.PlaylistRepository
}

// Service は動画ドメインのサービス層。
type Service struct {
	repos     Repositories
	uploader  Uploader
	sanitizer security.ContentSanitizer
	recorder  Recorder
	now       func() time.Time
}

// NewService はServiceを生成する。
// uploaderがnilの場合、アップロードはErrStorageUnavailableを返す。
func NewService(repos Repositories, uploader Uploader, sanitizer security.ContentSanitizer, recorder Recorder) *Service {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{
		repos:     repos,
		uploader:  uploader,
		sanitizer: sanitizer,
		recorder:  recorder,
		now:       time.Now,
	}
}

// Latest は新着動画を返す。
func (s *Service) Latest(ctx context.Context) ([]model.Video, error) {
	return s.repos.Videos.ListRecent(ctx, PageSize)
}

// Popular は再生回数の多い動画を返す。
func (s *Service) Popular(ctx context.Context) ([]model.Video, error) {
	return s.repos.Videos.ListPopular(ctx, PageSize)
}

// Search はキーワードで動画を検索する。空のキーワードは空の結果を返す。
func (s *Service) Search(ctx context.Context, query string) ([]model.Video, error) {
	if query == "" {
		return []model.Video{}, nil
	}
	return s.repos.Videos.Search(ctx, query, PageSize)
}

// ByUser は指定ユーザーが投稿した動画を返す。
func (s *Service) ByUser(ctx context.Context, userID string) ([]model.Video, error) {
	return s.repos.Videos.ListByUser(ctx, userID, PageSize)
}

// History は視聴履歴を返す。
func (s *Service) History(ctx context.Context, userID string) ([]model.WatchHistoryEntry, error) {
	return s.repos.History.List(ctx, userID, PageSize)
}

// Liked は高評価した動画を返す。
func (s *Service) Liked(ctx context.Context, userID string) ([]model.Video, error) {
	return s.repos.Videos.ListLikedBy(ctx, userID, PageSize)
}

// FromSubscriptions は購読中チャンネルの新着動画を返す。
func (s *Service) FromSubscriptions(ctx context.Context, userID string) ([]model.Video, error) {
	return s.repos.Videos.ListFromSubscriptions(ctx, userID, PageSize)
}

// WatchLater は「後で見る」の動画を返す。
func (s *Service) WatchLater(ctx context.Context, userID string) ([]model.Video, error) {
	playlist, err := s.repos.Playlists.EnsureByTitle(ctx, userID, WatchLaterTitle)
	if err != nil {
		return nil, err
	}
	return s.repos.Playlists.ListVideos(ctx, playlist.ID)
}

// WatchPage は視聴ページに表示するデータ。
type WatchPage struct {
	Video    model.VideoDetail
	Comments []model.Comment
	Related  []model.Video
	IsOwner  bool
}

// Watch は視聴ページのデータを取得する。
// 動画を取得した後、集計値・閲覧者の状態・コメント・関連動画を並行に取得して結合する。
// 閲覧者ごとの状態の取得失敗はログに記録して未設定として扱う。
func (s *Service) Watch(ctx context.Context, videoID, viewerID string) (*WatchPage, error) {
	v, err := s.repos.Videos.FindByID(ctx, videoID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrVideoNotFound
	}

	page := &WatchPage{
		Video:   model.VideoDetail{Video: *v},
		IsOwner: viewerID != "" && viewerID == v.UserID,
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	run := func(name string, required bool, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				if !required {
					slog.Warn("failed to load viewer state",
						slog.String("part", name),
						slog.String("video_id", videoID),
						slog.String("error", err.Error()),
					)
					return
				}
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", name, err))
				mu.Unlock()
			}
		}()
	}

	run("likes", true, func() (err error) {
		page.Video.LikesCount, err = s.repos.Likes.CountForVideo(ctx, videoID)
		return err
	})
	run("subscribers", true, func() (err error) {
		page.Video.SubscribersCount, err = s.repos.Subs.CountSubscribers(ctx, v.UserID)
		return err
	})
	run("comments", true, func() (err error) {
		page.Comments, err = s.repos.Comments.ListByVideo(ctx, videoID, viewerID)
		return err
	})
	run("related", true, func() (err error) {
		page.Related, err = s.repos.Videos.ListRelated(ctx, videoID, relatedLimit)
		return err
	})
	if viewerID != "" {
		run("liked", false, func() (err error) {
			page.Video.UserHasLiked, err = s.repos.Likes.HasLikedVideo(ctx, viewerID, videoID)
			return err
		})
		if !page.IsOwner {
			run("subscribed", false, func() (err error) {
				page.Video.UserHasSubscribed, err = s.repos.Subs.IsSubscribed(ctx, viewerID, v.UserID)
				return err
			})
		}
		run("watch_later", false, func() (err error) {
			page.Video.InWatchLater, err = s.inWatchLater(ctx, viewerID, videoID)
			return err
		})
	}
	wg.Wait()

	if len(errs) > 0 {
		return nil, fmt.Errorf("視聴ページの取得に失敗しました: %w", errors.Join(errs...))
	}
	return page, nil
}

// inWatchLater は再生リストを作成せずに「後で見る」への登録有無を確認する。
func (s *Service) inWatchLater(ctx context.Context, userID, videoID string) (bool, error) {
	playlists, err := s.repos.Playlists.ListByUser(ctx, userID)
	if err != nil {
		return false, err
	}
	for _, p := range playlists {
		if p.Title == WatchLaterTitle {
			return s.repos.Playlists.Contains(ctx, p.ID, videoID)
		}
	}
	return false, nil
}

// Library はライブラリページに表示するデータ。
type Library struct {
	History    []model.WatchHistoryEntry
	Liked      []model.Video
	WatchLater []model.Video
	Playlists  []model.Playlist
}

// Library は履歴・高評価・後で見る・再生リストをまとめて返す。
func (s *Service) Library(ctx context.Context, userID string) (*Library, error) {
	lib := &Library{}
	var err error

	if lib.History, err = s.repos.History.List(ctx, userID, librarySection); err != nil {
		return nil, err
	}
	if lib.Liked, err = s.repos.Videos.ListLikedBy(ctx, userID, librarySection); err != nil {
		return nil, err
	}
	if lib.WatchLater, err = s.WatchLater(ctx, userID); err != nil {
		return nil, err
	}
	if len(lib.WatchLater) > librarySection {
		lib.WatchLater = lib.WatchLater[:librarySection]
	}
	if lib.Playlists, err = s.repos.Playlists.ListByUser(ctx, userID); err != nil {
		return nil, err
	}
	return lib, nil
}
