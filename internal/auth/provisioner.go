package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/repository"
)

// maxUsernameAttempts はユーザー名重複時の作成試行回数。
const maxUsernameAttempts = 3

// Identity はプロフィール作成に使う認証済みユーザーの情報。
type Identity struct {
	UserID   string
	Email    string
	Username string // user_metadata.username
}

// Provisioner は認証済みユーザーのプロフィール行を用意する。
type Provisioner struct {
	profiles repository.ProfileRepository
	now      func() time.Time
}

// NewProvisioner はProvisionerを生成する。
func NewProvisioner(profiles repository.ProfileRepository) *Provisioner {
	return &Provisioner{profiles: profiles, now: time.Now}
}

// EnsureProfile はプロフィールが存在することを保証する。
// 同じユーザーに対して並行に呼ばれても行は1つだけ作られる。
func (p *Provisioner) EnsureProfile(ctx context.Context, id Identity) (*model.Profile, error) {
	existing, err := p.profiles.FindByID(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}
	if existing != nil {
		return existing, nil
	}

	base := DeriveUsername(id.Username, id.Email)
	username := base
	for attempt := 1; attempt <= maxUsernameAttempts; attempt++ {
		now := p.now()
		profile := &model.Profile{
			ID:        id.UserID,
			Username:  username,
			CreatedAt: now,
			UpdatedAt: now,
		}

		created, err := p.profiles.CreateIfAbsent(ctx, profile)
		if errors.Is(err, repository.ErrUsernameTaken) {
			slog.Info("username already taken, retrying with suffix",
				slog.String("user_id", id.UserID),
				slog.String("username", username),
				slog.Int("attempt", attempt),
			)
			username = withSuffix(base)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create profile: %w", err)
		}
		if !created {
			// 並行リクエストが先に作成した
			existing, err := p.profiles.FindByID(ctx, id.UserID)
			if err != nil {
				return nil, fmt.Errorf("failed to find profile: %w", err)
			}
			if existing == nil {
				return nil, fmt.Errorf("profile %s vanished after conflict", id.UserID)
			}
			return existing, nil
		}

		slog.Info("profile created",
			slog.String("user_id", id.UserID),
			slog.String("username", username),
		)
		return profile, nil
	}

	return nil, fmt.Errorf("failed to create profile after %d attempts: %w", maxUsernameAttempts, repository.ErrUsernameTaken)
}
