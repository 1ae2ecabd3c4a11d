package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/vidshare/internal/model"
)

// PostgresSubscriptionRepo はPostgreSQLを使用したチャンネル購読リポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

// CountSubscribers はチャンネルの購読者数を返す。
func (r *PostgresSubscriptionRepo) CountSubscribers(ctx context.Context, channelID string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM subscriptions WHERE channel_id = $1`,
		channelID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("購読者数の取得に失敗しました: %w", err)
	}
	return count, nil
}

// IsSubscribed はsubscriberIDがchannelIDを購読中かを返す。
func (r *PostgresSubscriptionRepo) IsSubscribed(ctx context.Context, subscriberID, channelID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2)`,
		subscriberID, channelID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("購読状態の取得に失敗しました: %w", err)
	}
	return exists, nil
}

// SetSubscribed は購読状態を設定する。
// UNIQUE(subscriber_id, channel_id)制約を利用したINSERT ON CONFLICTで冪等に追加する。
func (r *PostgresSubscriptionRepo) SetSubscribed(ctx context.Context, subscriberID, channelID string, subscribed bool) error {
	var err error
	if subscribed {
		_, err = r.db.ExecContext(ctx,
			`INSERT INTO subscriptions (subscriber_id, channel_id) VALUES ($1, $2)
			 ON CONFLICT (subscriber_id, channel_id) DO NOTHING`,
			subscriberID, channelID,
		)
	} else {
		_, err = r.db.ExecContext(ctx,
			`DELETE FROM subscriptions WHERE subscriber_id = $1 AND channel_id = $2`,
			subscriberID, channelID,
		)
	}
	if err != nil {
		return fmt.Errorf("購読状態の更新に失敗しました: %w", err)
	}
	return nil
}

// ListChannels は購読中チャンネルのプロフィールを購読日時の新しい順に返す。
func (r *PostgresSubscriptionRepo) ListChannels(ctx context.Context, subscriberID string) ([]model.Profile, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT p.id, p.username, COALESCE(p.full_name, ''), COALESCE(p.avatar_url, ''),
			COALESCE(p.banner_url, ''), COALESCE(p.bio, ''), p.created_at, p.updated_at
		 FROM subscriptions s
		 JOIN profiles p ON p.id = s.channel_id
		 WHERE s.subscriber_id = $1
		 ORDER BY s.created_at DESC`,
		subscriberID,
	)
	if err != nil {
		return nil, fmt.Errorf("購読チャンネル一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	channels := []model.Profile{}
	for rows.Next() {
		var p model.Profile
		if err := scanProfile(rows, &p); err != nil {
			return nil, fmt.Errorf("購読チャンネル行の読み取りに失敗しました: %w", err)
		}
		channels = append(channels, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読チャンネル一覧の走査に失敗しました: %w", err)
	}
	return channels, nil
}
