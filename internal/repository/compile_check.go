package repository

// 各実装がインターフェースを満たすことをコンパイル時に検証する。
var (
	_ ProfileRepository      = (*PostgresProfileRepo)(nil)
	_ VideoRepository        = (*PostgresVideoRepo)(nil)
	_ CommentRepository      = (*PostgresCommentRepo)(nil)
	_ LikeRepository         = (*PostgresLikeRepo)(nil)
	_ SubscriptionRepository = (*PostgresSubscriptionRepo)(nil)
	_ WatchHistoryRepository = (*PostgresWatchHistoryRepo)(nil)
	_ PlaylistRepository     = (*PostgresPlaylistRepo)(nil)
)
