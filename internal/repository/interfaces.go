// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/vidshare/internal/model"
)

// ErrUsernameTaken はprofiles.usernameの一意制約に違反したことを表す。
var ErrUsernameTaken = errors.New("username already taken")

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// CreateIfAbsent はプロフィールを作成する。
	// 同じIDの行が既に存在する場合は何もせずfalseを返す。
	// ユーザー名が他の行と重複する場合はErrUsernameTakenを返す。
	CreateIfAbsent(ctx context.Context, profile *model.Profile) (bool, error)

	// Update はプロフィールを更新する。ユーザー名の重複はErrUsernameTakenを返す。
	Update(ctx context.Context, id string, update model.ProfileUpdate) (*model.Profile, error)
}

// VideoRepository は動画データの永続化インターフェース。
type VideoRepository interface {
	// Create は動画を作成する。
	Create(ctx context.Context, video *model.NewVideo) (*model.Video, error)

	// FindByID は指定IDの動画を投稿者情報付きで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Video, error)

	// ListRecent は新着順に動画を返す。
	ListRecent(ctx context.Context, limit int) ([]model.Video, error)

	// ListPopular は再生回数順に動画を返す。
	ListPopular(ctx context.Context, limit int) ([]model.Video, error)

	// ListByUser は指定ユーザーが投稿した動画を新着順に返す。
	ListByUser(ctx context.Context, userID string, limit int) ([]model.Video, error)

	// ListRelated は指定動画を除いた新着動画を返す。
	ListRelated(ctx context.Context, excludeID string, limit int) ([]model.Video, error)

	// ListFromSubscriptions は購読中チャンネルの動画を新着順に返す。
	ListFromSubscriptions(ctx context.Context, subscriberID string, limit int) ([]model.Video, error)

	// ListLikedBy は指定ユーザーが高評価した動画を返す。
	ListLikedBy(ctx context.Context, userID string, limit int) ([]model.Video, error)

	// Search はタイトルと説明文の部分一致で動画を検索する。
	Search(ctx context.Context, query string, limit int) ([]model.Video, error)

	// IncrementViews は再生回数を1増やし、更新後の値を返す。
	// 動画が存在しない場合はnilとfalseを返す。
	IncrementViews(ctx context.Context, id string) (int64, bool, error)
}

// CommentRepository はコメントデータの永続化インターフェース。
type CommentRepository interface {
	// ListByVideo は動画のコメントを新しい順に返す。
	// viewerIDが空でない場合はUserHasLikedを設定する。
	ListByVideo(ctx context.Context, videoID, viewerID string) ([]model.Comment, error)

	// Exists はコメントが存在するかを返す。
	Exists(ctx context.Context, id string) (bool, error)

	// Create はコメントを作成し、投稿者情報付きで返す。
	Create(ctx context.Context, comment *model.Comment) (*model.Comment, error)
}

// LikeRepository は動画とコメントの高評価の永続化インターフェース。
type LikeRepository interface {
	// CountForVideo は動画の高評価数を返す。
	CountForVideo(ctx context.Context, videoID string) (int, error)

	// HasLikedVideo はユーザーが動画を高評価済みかを返す。
	HasLikedVideo(ctx context.Context, userID, videoID string) (bool, error)

	// SetVideoLike は動画の高評価状態を設定する。既に目的の状態なら何もしない。
	SetVideoLike(ctx context.Context, userID, videoID string, liked bool) error

	// SetCommentLike はコメントの高評価状態を設定する。既に目的の状態なら何もしない。
	SetCommentLike(ctx context.Context, userID, commentID string, liked bool) error
}

// SubscriptionRepository はチャンネル購読の永続化インターフェース。
type SubscriptionRepository interface {
	// CountSubscribers はチャンネルの購読者数を返す。
	CountSubscribers(ctx context.Context, channelID string) (int, error)

	// IsSubscribed はsubscriberIDがchannelIDを購読中かを返す。
	IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error)

	// SetSubscribed は購読状態を設定する。既に目的の状態なら何もしない。
	SetSubscribed(ctx context.Context, subscriberID, channelID string, subscribed bool) error

	// ListChannels は購読中チャンネルのプロフィールを返す。
	ListChannels(ctx context.Context, subscriberID string) ([]model.Profile, error)
}

// WatchHistoryRepository は視聴履歴の永続化インターフェース。
type WatchHistoryRepository interface {
	// Record は視聴を記録する。同じ動画の既存行は視聴日時のみ更新する。
	Record(ctx context.Context, userID, videoID string, watchedAt time.Time) error

	// UpdateDuration は視聴時間（秒）を更新する。
	UpdateDuration(ctx context.Context, userID, videoID string, seconds int) error

	// List は視聴履歴を新しい順に返す。
	List(ctx context.Context, userID string, limit int) ([]model.WatchHistoryEntry, error)
}

// PlaylistRepository は再生リストの永続化インターフェース。
type PlaylistRepository interface {
	// EnsureByTitle は指定タイトルの再生リストを取得し、存在しなければ作成する。
	EnsureByTitle(ctx context.Context, userID, title string) (*model.Playlist, error)

	// ListByUser はユーザーの再生リストを返す。
	ListByUser(ctx context.Context, userID string) ([]model.Playlist, error)

	// Contains は再生リストに動画が含まれるかを返す。
	Contains(ctx context.Context, playlistID, videoID string) (bool, error)

	// SetVideo は再生リストへの動画の追加・削除を行う。既に目的の状態なら何もしない。
	SetVideo(ctx context.Context, playlistID, videoID string, present bool) error

	// ListVideos は再生リストの動画を追加順に返す。
	ListVideos(ctx context.Context, playlistID string) ([]model.Video, error)
}
