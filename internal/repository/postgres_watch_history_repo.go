package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/hitoshi/vidshare/internal/model"
)

// PostgresWatchHistoryRepo はPostgreSQLを使用した視聴履歴リポジトリ。
type PostgresWatchHistoryRepo struct {
	db *sql.DB
}

// NewPostgresWatchHistoryRepo はPostgresWatchHistoryRepoを生成する。
func NewPostgresWatchHistoryRepo(db *sql.DB) *PostgresWatchHistoryRepo {
	return &PostgresWatchHistoryRepo{db: db}
}

// Record は視聴を記録する。
// UNIQUE(user_id, video_id)制約を利用したUPSERTで、既存行は視聴日時のみ更新する。
func (r *PostgresWatchHistoryRepo) Record(ctx context.Context, userID, videoID string, watchedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watch_history (user_id, video_id, watched_at) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, video_id) DO UPDATE SET watched_at = EXCLUDED.watched_at`,
		userID, videoID, watchedAt,
	)
	if err != nil {
		return fmt.Errorf("視聴履歴の記録に失敗しました: %w", err)
	}
	return nil
}

// UpdateDuration は視聴時間（秒）を更新する。履歴がない場合は作成する。
func (r *PostgresWatchHistoryRepo) UpdateDuration(ctx context.Context, userID, videoID string, seconds int) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO watch_history (user_id, video_id, watch_duration) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, video_id) DO UPDATE SET watch_duration = EXCLUDED.watch_duration`,
		userID, videoID, seconds,
	)
	if err != nil {
		return fmt.Errorf("視聴時間の更新に失敗しました: %w", err)
	}
	return nil
}

// List は視聴履歴を視聴日時の新しい順に返す。
func (r *PostgresWatchHistoryRepo) List(ctx context.Context, userID string, limit int) ([]model.WatchHistoryEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT v.id, v.title, COALESCE(v.description, ''), v.user_id, v.video_url,
			COALESCE(v.thumbnail_url, ''), COALESCE(v.duration, 0), v.views, v.created_at, v.updated_at,
			p.id, p.username, COALESCE(p.avatar_url, ''),
			h.watched_at, h.watch_duration
		 FROM watch_history h
		 JOIN videos v ON v.id = h.video_id
		 JOIN profiles p ON p.id = v.user_id
		 WHERE h.user_id = $1
		 ORDER BY h.watched_at DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("視聴履歴の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	entries := []model.WatchHistoryEntry{}
	for rows.Next() {
		var e model.WatchHistoryEntry
		v := &e.Video
		if err := rows.Scan(
			&v.ID, &v.Title, &v.Description, &v.UserID, &v.VideoURL,
			&v.ThumbnailURL, &v.Duration, &v.Views, &v.CreatedAt, &v.UpdatedAt,
			&v.Author.ID, &v.Author.Username, &v.Author.AvatarURL,
			&e.WatchedAt, &e.WatchDuration,
		); err != nil {
			return nil, fmt.Errorf("視聴履歴行の読み取りに失敗しました: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("視聴履歴の走査に失敗しました: %w", err)
	}
	return entries, nil
}
