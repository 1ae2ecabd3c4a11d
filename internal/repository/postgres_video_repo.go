package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hitoshi/vidshare/internal/model"
)

// videoSelect は動画と投稿者を結合して取得するSELECT句。
const videoSelect = `SELECT v.id, v.title, COALESCE(v.description, ''), v.user_id, v.video_url,
	COALESCE(v.thumbnail_url, ''), COALESCE(v.duration, 0), v.views, v.created_at, v.updated_at,
	p.id, p.username, COALESCE(p.avatar_url, '')
	FROM videos v
	JOIN profiles p ON p.id = v.user_id`

// PostgresVideoRepo はPostgreSQLを使用した動画リポジトリ。
type PostgresVideoRepo struct {
	db *sql.DB
}

// NewPostgresVideoRepo はPostgresVideoRepoを生成する。
func NewPostgresVideoRepo(db *sql.DB) *PostgresVideoRepo {
	return &PostgresVideoRepo{db: db}
}

func scanVideo(row interface{ Scan(...any) error }, v *model.Video) error {
	return row.Scan(
		&v.ID, &v.Title, &v.Description, &v.UserID, &v.VideoURL,
		&v.ThumbnailURL, &v.Duration, &v.Views, &v.CreatedAt, &v.UpdatedAt,
		&v.Author.ID, &v.Author.Username, &v.Author.AvatarURL,
	)
}

// queryVideos は動画一覧を取得する共通処理。
func queryVideos(ctx context.Context, db *sql.DB, what, query string, args ...any) ([]model.Video, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%sの取得に失敗しました: %w", what, err)
	}
	defer rows.Close()

	videos := []model.Video{}
	for rows.Next() {
		var v model.Video
		if err := scanVideo(rows, &v); err != nil {
			return nil, fmt.Errorf("動画行の読み取りに失敗しました: %w", err)
		}
		videos = append(videos, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%sの走査に失敗しました: %w", what, err)
	}
	return videos, nil
}

// Create は動画を作成し、投稿者情報付きで返す。
func (r *PostgresVideoRepo) Create(ctx context.Context, nv *model.NewVideo) (*model.Video, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO videos (id, title, description, user_id, video_url, thumbnail_url)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''))`,
		nv.ID, nv.Title, nv.Description, nv.UserID, nv.VideoURL, nv.ThumbnailURL,
	)
	if err != nil {
		return nil, fmt.Errorf("動画の作成に失敗しました: %w", err)
	}

	v, err := r.FindByID(ctx, nv.ID)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, fmt.Errorf("作成した動画が見つかりません: %s", nv.ID)
	}
	return v, nil
}

// FindByID は指定IDの動画を取得する。見つからない場合はnilを返す。
func (r *PostgresVideoRepo) FindByID(ctx context.Context, id string) (*model.Video, error) {
	v := &model.Video{}
	err := scanVideo(r.db.QueryRowContext(ctx, videoSelect+` WHERE v.id = $1`, id), v)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("動画の取得に失敗しました: %w", err)
	}
	return v, nil
}

// ListRecent は新着順に動画を返す。
func (r *PostgresVideoRepo) ListRecent(ctx context.Context, limit int) ([]model.Video, error) {
	return queryVideos(ctx, r.db, "新着動画",
		videoSelect+` ORDER BY v.created_at DESC LIMIT $1`, limit)
}

// ListPopular は再生回数順に動画を返す。
func (r *PostgresVideoRepo) ListPopular(ctx context.Context, limit int) ([]model.Video, error) {
	return queryVideos(ctx, r.db, "人気動画",
		videoSelect+` ORDER BY v.views DESC, v.created_at DESC LIMIT $1`, limit)
}

// ListByUser は指定ユーザーが投稿した動画を新着順に返す。
func (r *PostgresVideoRepo) ListByUser(ctx context.Context, userID string, limit int) ([]model.Video, error) {
	return queryVideos(ctx, r.db, "投稿動画",
		videoSelect+` WHERE v.user_id = $1 ORDER BY v.created_at DESC LIMIT $2`, userID, limit)
}

// ListRelated は指定動画を除いた新着動画を返す。
func (r *PostgresVideoRepo) ListRelated(ctx context.Context, excludeID string, limit int) ([]model.Video, error) {
	return queryVideos(ctx, r.db, "おすすめ動画",
		videoSelect+` WHERE v.id <> $1 ORDER BY v.created_at DESC LIMIT $2`, excludeID, limit)
}

// ListFromSubscriptions は購読中チャンネルの動画を新着順に返す。
func (r *PostgresVideoRepo) ListFromSubscriptions(ctx context.Context, subscriberID string, limit int) ([]model.Video, error) {
	return queryVideos(ctx, r.db, "購読チャンネルの動画",
		videoSelect+`
		 WHERE v.user_id IN (SELECT channel_id FROM subscriptions WHERE subscriber_id = $1)
		 ORDER BY v.created_at DESC LIMIT $2`, subscriberID, limit)
}

// ListLikedBy は指定ユーザーが高評価した動画を高評価が新しい順に返す。
func (r *PostgresVideoRepo) ListLikedBy(ctx context.Context, userID string, limit int) ([]model.Video, error) {
	return queryVideos(ctx, r.db, "高評価した動画",
		videoSelect+`
		 JOIN likes l ON l.video_id = v.id
		 WHERE l.user_id = $1
		 ORDER BY l.created_at DESC LIMIT $2`, userID, limit)
}

// Search はタイトルと説明文の部分一致（大文字小文字を区別しない）で動画を検索する。
func (r *PostgresVideoRepo) Search(ctx context.Context, query string, limit int) ([]model.Video, error) {
	pattern := "%" + escapeLike(strings.TrimSpace(query)) + "%"
	return queryVideos(ctx, r.db, "検索結果",
		videoSelect+`
		 WHERE v.title ILIKE $1 OR v.description ILIKE $1
		 ORDER BY v.created_at DESC LIMIT $2`, pattern, limit)
}

// IncrementViews は再生回数を1増やし、更新後の値を返す。
func (r *PostgresVideoRepo) IncrementViews(ctx context.Context, id string) (int64, bool, error) {
	var views int64
	err := r.db.QueryRowContext(ctx,
		`UPDATE videos SET views = views + 1 WHERE id = $1 RETURNING views`,
		id,
	).Scan(&views)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("再生回数の更新に失敗しました: %w", err)
	}
	return views, true, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike はLIKEパターンのメタ文字をエスケープする。
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
