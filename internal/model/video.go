package model

import "time"

// Author は動画・コメントに埋め込む投稿者情報。
type Author struct {
	ID        string
	Username  string
	AvatarURL string
}

// Video は動画を表す。
type Video struct {
	ID           string
	Title        string
	Description  string
	UserID       string
	VideoURL     string
	ThumbnailURL string
	Duration     int // 秒。不明な場合は0
	Views        int64
	CreatedAt    time.Time
	UpdatedAt    time.Time

	Author Author
}

// VideoDetail は視聴ページに表示する動画と集計値、閲覧者ごとの状態。
type VideoDetail struct {
	Video
	LikesCount        int
	SubscribersCount  int
	UserHasLiked      bool
	UserHasSubscribed bool
	InWatchLater      bool
}

// Comment は動画へのコメントを表す。
type Comment struct {
	ID        string
	Content   string
	UserID    string
	VideoID   string
	ParentID  string
	CreatedAt time.Time
	UpdatedAt time.Time

	Author       Author
	LikesCount   int
	UserHasLiked bool
}

// WatchHistoryEntry は視聴履歴の1件。
type WatchHistoryEntry struct {
	Video         Video
	WatchedAt     time.Time
	WatchDuration int
}

// Playlist は再生リストを表す。
// 「後で見る」はユーザーごとに1つ作られる非公開の再生リストとして扱う。
type Playlist struct {
	ID          string
	Title       string
	Description string
	UserID      string
	IsPublic    bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewVideo は動画アップロード時に作成するレコード。
type NewVideo struct {
	ID           string
	UserID       string
	Title        string
	Description  string
	VideoURL     string
	ThumbnailURL string
}
