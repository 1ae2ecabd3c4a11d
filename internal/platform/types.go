package platform

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// User は認証基盤上のユーザー。
type User struct {
	ID               string
	Email            string
	EmailConfirmedAt *time.Time
	Metadata         map[string]any
}

// Username は user_metadata.username を返す。未設定の場合は空文字列。
func (u *User) Username() string {
	if u == nil || u.Metadata == nil {
		return ""
	}
	v, _ := u.Metadata["username"].(string)
	return strings.TrimSpace(v)
}

// Session は認証基盤が発行したトークンペア。
type Session struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    time.Time
	User         User
}

type userResponse struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at"`
	UserMetadata     map[string]any `json:"user_metadata"`
}

func (r userResponse) toUser() (*User, error) {
	if r.ID == "" || r.ID == uuid.Nil.String() {
		return nil, fmt.Errorf("empty user id in response")
	}
	confirmedAt := r.EmailConfirmedAt
	if confirmedAt != nil && confirmedAt.IsZero() {
		confirmedAt = nil
	}
	return &User{
		ID:               r.ID,
		Email:            r.Email,
		EmailConfirmedAt: confirmedAt,
		Metadata:         r.UserMetadata,
	}, nil
}

type sessionResponse struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type"`
	ExpiresIn    int64         `json:"expires_in"`
	ExpiresAt    int64         `json:"expires_at"`
	User         *userResponse `json:"user"`
}

// toSession はレスポンスを境界で検証してSessionに変換する。
func (r sessionResponse) toSession() (*Session, error) {
	if r.AccessToken == "" {
		return nil, fmt.Errorf("empty access token in response")
	}
	if r.RefreshToken == "" {
		return nil, fmt.Errorf("empty refresh token in response")
	}
	if r.User == nil {
		return nil, fmt.Errorf("missing user in session response")
	}
	user, err := r.User.toUser()
	if err != nil {
		return nil, err
	}

	var expiresAt time.Time
	switch {
	case r.ExpiresAt > 0:
		expiresAt = time.Unix(r.ExpiresAt, 0)
	case r.ExpiresIn > 0:
		expiresAt = time.Now().Add(time.Duration(r.ExpiresIn) * time.Second)
	default:
		return nil, fmt.Errorf("missing expiry in session response")
	}

	return &Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresAt:    expiresAt,
		User:         *user,
	}, nil
}
