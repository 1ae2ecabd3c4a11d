package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/vidshare/internal/model"
)

const playlistColumns = `id, title, COALESCE(description, ''), user_id, is_public, created_at, updated_at`

// PostgresPlaylistRepo はPostgreSQLを使用した再生リストリポジトリ。
type PostgresPlaylistRepo struct {
	db *sql.DB
}

// NewPostgresPlaylistRepo はPostgresPlaylistRepoを生成する。
func NewPostgresPlaylistRepo(db *sql.DB) *PostgresPlaylistRepo {
	return &PostgresPlaylistRepo{db: db}
}

func scanPlaylist(row interface{ Scan(...any) error }, p *model.Playlist) error {
	return row.Scan(&p.ID, &p.Title, &p.Description, &p.UserID, &p.IsPublic, &p.CreatedAt, &p.UpdatedAt)
}

// EnsureByTitle は指定タイトルの再生リストを取得し、存在しなければ非公開で作成する。
// UNIQUE(user_id, title)制約により並行呼び出しでも1件になる。
func (r *PostgresPlaylistRepo) EnsureByTitle(ctx context.Context, userID, title string) (*model.Playlist, error) {
	p := &model.Playlist{}
	// DO UPDATEで既存行もRETURNINGに含める
	err := scanPlaylist(r.db.QueryRowContext(ctx,
		`INSERT INTO playlists (title, user_id, is_public) VALUES ($1, $2, FALSE)
		 ON CONFLICT (user_id, title) DO UPDATE SET title = EXCLUDED.title
		 RETURNING `+playlistColumns,
		title, userID,
	), p)
	if err != nil {
		return nil, fmt.Errorf("再生リストの取得または作成に失敗しました: %w", err)
	}
	return p, nil
}

// ListByUser はユーザーの再生リストを作成日時順に返す。
func (r *PostgresPlaylistRepo) ListByUser(ctx context.Context, userID string) ([]model.Playlist, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+playlistColumns+` FROM playlists WHERE user_id = $1 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("再生リスト一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	playlists := []model.Playlist{}
	for rows.Next() {
		var p model.Playlist
		if err := scanPlaylist(rows, &p); err != nil {
			return nil, fmt.Errorf("再生リスト行の読み取りに失敗しました: %w", err)
		}
		playlists = append(playlists, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("再生リスト一覧の走査に失敗しました: %w", err)
	}
	return playlists, nil
}

// Contains は再生リストに動画が含まれるかを返す。
func (r *PostgresPlaylistRepo) Contains(ctx context.Context, playlistID, videoID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2)`,
		playlistID, videoID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("再生リストの確認に失敗しました: %w", err)
	}
	return exists, nil
}

// SetVideo は再生リストへの動画の追加・削除を行う。追加時は末尾に配置する。
func (r *PostgresPlaylistRepo) SetVideo(ctx context.Context, playlistID, videoID string, present bool) error {
	var err error
	if present {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO playlist_videos (playlist_id, video_id, position)
			 VALUES ($1, $2, (SELECT COALESCE(MAX(position), 0) + 1 FROM playlist_videos WHERE playlist_id = $1))
			 ON CONFLICT (playlist_id, video_id) DO NOTHING`,
			playlistID, videoID,
		)
	} else {
		_, err = r.db.ExecContext(ctx,
			`DELETE FROM playlist_videos WHERE playlist_id = $1 AND video_id = $2`,
			playlistID, videoID,
		)
	}
	if err != nil {
		return fmt.Errorf("再生リストの更新に失敗しました: %w", err)
	}
	return nil
}

// ListVideos は再生リストの動画を並び順に返す。
func (r *PostgresPlaylistRepo) ListVideos(ctx context.Context, playlistID string) ([]model.Video, error) {
	return queryVideos(ctx, r.db, "再生リストの動画",
		videoSelect+`
		 JOIN playlist_videos pv ON pv.video_id = v.id
		 WHERE pv.playlist_id = $1
		 ORDER BY pv.position ASC`, playlistID)
}
