package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/vidshare/internal/model"
)

const profileUsernameConstraint = "profiles_username_key"

const profileColumns = `id, username, COALESCE(full_name, ''), COALESCE(avatar_url, ''),
	COALESCE(banner_url, ''), COALESCE(bio, ''), created_at, updated_at`

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

func scanProfile(row interface{ Scan(...any) error }, p *model.Profile) error {
	return row.Scan(&p.ID, &p.Username, &p.FullName, &p.AvatarURL, &p.BannerURL, &p.Bio, &p.CreatedAt, &p.UpdatedAt)
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	p := &model.Profile{}
	err := scanProfile(r.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = $1`,
		id,
	), p)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗しました: %w", err)
	}
	return p, nil
}

// CreateIfAbsent はプロフィールを作成する。
// ON CONFLICT (id) DO NOTHING により、同じIDの行が既にあればfalseを返す。
func (r *PostgresProfileRepo) CreateIfAbsent(ctx context.Context, p *model.Profile) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, username, full_name, avatar_url, banner_url, bio, created_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), NULLIF($6, ''), $7, $8)
		 ON CONFLICT (id) DO NOTHING`,
		p.ID, p.Username, p.FullName, p.AvatarURL, p.BannerURL, p.Bio, p.CreatedAt, p.UpdatedAt,
	)
	if isUniqueViolation(err, profileUsernameConstraint) {
		return false, ErrUsernameTaken
	}
	if err != nil {
		return false, fmt.Errorf("プロフィールの作成に失敗しました: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("作成結果の取得に失敗しました: %w", err)
	}
	return rowsAffected == 1, nil
}

// Update はプロフィールを更新する。
// AvatarURL、BannerURLが空の場合は既存の値を維持する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) Update(ctx context.Context, id string, u model.ProfileUpdate) (*model.Profile, error) {
	p := &model.Profile{}
	err := scanProfile(r.db.QueryRowContext(ctx,
		`UPDATE profiles SET
			username = $2,
			full_name = NULLIF($3, ''),
			bio = NULLIF($4, ''),
			avatar_url = COALESCE(NULLIF($5, ''), avatar_url),
			banner_url = COALESCE(NULLIF($6, ''), banner_url),
			updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+profileColumns,
		id, u.Username, u.FullName, u.Bio, u.AvatarURL, u.BannerURL,
	), p)

	if isUniqueViolation(err, profileUsernameConstraint) {
		return nil, ErrUsernameTaken
	}
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの更新に失敗しました: %w", err)
	}
	return p, nil
}
