// Package model はドメインモデルを定義する。
package model

import "time"

// Session は認証基盤が発行したログインセッションを表す。
// アプリケーションはCookie経由でトークンを保持するだけで、サーバー側には保存しない。
type Session struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	UserID       string
	Email        string
	// Username はサインアップ時に user_metadata.username として渡された値。
	Username string
}

// ExpiresWithin はセッションの有効期限が now から window 以内に到来するかを判定する。
// window が0の場合は期限切れかどうかのみを判定する。
func (s *Session) ExpiresWithin(now time.Time, window time.Duration) bool {
	return !s.ExpiresAt.After(now.Add(window))
}

// Profile はユーザーごとに1行存在するチャンネル情報を表す。
// IDは認証基盤のユーザーIDと一致する。
type Profile struct {
	ID        string
	Username  string
	FullName  string
	AvatarURL string
	BannerURL string
	Bio       string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileUpdate はプロフィール編集で変更するフィールド。
// 空のAvatarURL/BannerURLは既存値を維持する。
type ProfileUpdate struct {
	Username  string
	FullName  string
	Bio       string
	AvatarURL string
	BannerURL string
}

// Channel はチャンネルページに表示するプロフィールと購読状態。
type Channel struct {
	Profile
	SubscribersCount  int
	UserHasSubscribed bool
}
