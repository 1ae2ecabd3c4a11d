package repository

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresLikeRepo はPostgreSQLを使用した高評価リポジトリ。
type PostgresLikeRepo struct {
	db *sql.DB
}

// NewPostgresLikeRepo はPostgresLikeRepoを生成する。
func NewPostgresLikeRepo(db *sql.DB) *PostgresLikeRepo {
	return &PostgresLikeRepo{db: db}
}

// CountForVideo は動画の高評価数を返す。
func (r *PostgresLikeRepo) CountForVideo(ctx context.Context, videoID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE video_id = $1`,
		videoID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("高評価数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// HasLikedVideo はユーザーが動画を高評価済みかを返す。
func (r *PostgresLikeRepo) HasLikedVideo(ctx context.Context, userID, videoID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM likes WHERE user_id = $1 AND video_id = $2)`,
		userID, videoID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("高評価状態の取得に失敗しました: %w", err)
	}
	return exists, nil
}

// SetVideoLike は動画の高評価状態を設定する。
// 部分ユニークインデックスを利用したINSERT ON CONFLICTで冪等に追加する。
func (r *PostgresLikeRepo) SetVideoLike(ctx context.Context, userID, videoID string, liked bool) error {
	var err error
	if liked {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO likes (user_id, video_id) VALUES ($1, $2)
			 ON CONFLICT (user_id, video_id) WHERE video_id IS NOT NULL DO NOTHING`,
			userID, videoID,
		)
	} else {
		_, err = r.db.ExecContext(ctx,
			`DELETE FROM likes WHERE user_id = $1 AND video_id = $2`,
			userID, videoID,
		)
	}
	if err != nil {
		return fmt.Errorf("動画の高評価の更新に失敗しました: %w", err)
	}
	return nil
}

// SetCommentLike はコメントの高評価状態を設定する。
func (r *PostgresLikeRepo) SetCommentLike(ctx context.Context, userID, commentID string, liked bool) error {
	var err error
	if liked {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO likes (user_id, comment_id) VALUES ($1, $2)
			 ON CONFLICT (user_id, comment_id) WHERE comment_id IS NOT NULL DO NOTHING`,
			userID, commentID,
		)
	} else {
		_, err = r.db.ExecContext(ctx,
			`DELETE FROM likes WHERE user_id = $1 AND comment_id = $2`,
			userID, commentID,
		)
	}
	if err != nil {
		return fmt.Errorf("コメントの高評価の更新に失敗しました: %w", err)
	}
	return nil
}
