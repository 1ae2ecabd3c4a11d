package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/vidshare/internal/model"
)

// PostgresCommentRepo はPostgreSQLを使用したコメントリポジトリ。
type PostgresCommentRepo struct {
	db *sql.DB
}

// NewPostgresCommentRepo はPostgresCommentRepoを生成する。
func NewPostgresCommentRepo(db *sql.DB) *PostgresCommentRepo {
	return &PostgresCommentRepo{db: db}
}

// ListByVideo は動画のコメントを新しい順に、投稿者・高評価数・閲覧者の高評価状態付きで返す。
func (r *PostgresCommentRepo) ListByVideo(ctx context.Context, videoID, viewerID string) ([]model.Comment, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT c.id, c.content, c.user_id, c.video_id, COALESCE(c.parent_id::text, ''),
			c.created_at, c.updated_at,
			p.id, p.username, COALESCE(p.avatar_url, ''),
			(SELECT COUNT(*) FROM likes l WHERE l.comment_id = c.id),
			EXISTS (SELECT 1 FROM likes l WHERE l.comment_id = c.id AND l.user_id::text = $2)
		 FROM comments c
		 JOIN profiles p ON p.id = c.user_id
		 WHERE c.video_id = $1
		 ORDER BY c.created_at DESC`,
		videoID, viewerID,
	)
	if err != nil {
		return nil, fmt.Errorf("コメント一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	comments := []model.Comment{}
	for rows.Next() {
		var c model.Comment
		if err := rows.Scan(
			&c.ID, &c.Content, &c.UserID, &c.VideoID, &c.ParentID,
			&c.CreatedAt, &c.UpdatedAt,
			&c.Author.ID, &c.Author.Username, &c.Author.AvatarURL,
			&c.LikesCount, &c.UserHasLiked,
		); err != nil {
			return nil, fmt.Errorf("コメント行の読み取りに失敗しました: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("コメント一覧の走査に失敗しました: %w", err)
	}
	return comments, nil
}

// Exists はコメントが存在するかを返す。
func (r *PostgresCommentRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM comments WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("コメントの存在確認に失敗しました: %w", err)
	}
	return exists, nil
}

// Create はコメントを作成し、投稿者情報付きで返す。
func (r *PostgresCommentRepo) Create(ctx context.Context, c *model.Comment) (*model.Comment, error) {
	created := *c
	err := r.db.QueryRowContext(ctx,
		`WITH inserted AS (
			INSERT INTO comments (id, content, user_id, video_id, parent_id, created_at, updated_at)
			VALUES ($1, $2, $3, $4, NULLIF($5, '')::uuid, $6, $6)
			RETURNING user_id, created_at, updated_at
		 )
		 SELECT i.created_at, i.updated_at, p.id, p.username, COALESCE(p.avatar_url, '')
		 FROM inserted i JOIN profiles p ON p.id = i.user_id`,
		c.ID, c.Content, c.UserID, c.VideoID, c.ParentID, c.CreatedAt,
	).Scan(&created.CreatedAt, &created.UpdatedAt, &created.Author.ID, &created.Author.Username, &created.Author.AvatarURL)
	if err != nil {
		return nil, fmt.Errorf("コメントの作成に失敗しました: %w", err)
	}

	created.LikesCount = 0
	created.UserHasLiked = false
	return &created, nil
}
