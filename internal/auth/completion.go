package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/platform"
)

// 認証完了処理の失敗理由
var (
	ErrExchangeFailed         = errors.New("code exchange failed")
	ErrSessionNotEstablished  = errors.New("session not established")
	ErrProfileProvisionFailed = errors.New("profile provisioning failed")
)

// コールバック結果のラベル
const (
	CallbackNoCode        = "no_code"
	CallbackSuccess       = "success"
	CallbackExchangeError = "exchange_failed"
	CallbackNoSession     = "no_session"
	CallbackProfileError  = "profile_failed"
)

// CompletionPlatform は認証完了に必要な認証基盤の操作。
type CompletionPlatform interface {
	ExchangeCodeForSession(ctx context.Context, code, codeVerifier string) (*platform.Session, error)
	GetUser(ctx context.Context, accessToken string) (*platform.User, error)
}

// Completion は認証完了の結果。
type Completion struct {
	Session *model.Session
	Profile *model.Profile
}

// Completer はメール確認リンク等から戻ってきた交換コードをセッションに変換する。
type Completer struct {
	platform    CompletionPlatform
	provisioner *Provisioner
	recorder    Recorder
}

// NewCompleter はCompleterを生成する。
func NewCompleter(p CompletionPlatform, provisioner *Provisioner, recorder Recorder) *Completer {
	return &Completer{
		platform:    p,
		provisioner: provisioner,
		recorder:    recorderOrNop(recorder),
	}
}

// Complete は交換コードをセッションに交換し、セッションの確立を再確認してからプロフィールを用意する。
// 失敗理由はErrExchangeFailed、ErrSessionNotEstablished、ErrProfileProvisionFailedのいずれかでラップされる。
func (c *Completer) Complete(ctx context.Context, code, codeVerifier string) (*Completion, error) {
	ps, err := c.platform.ExchangeCodeForSession(ctx, code, codeVerifier)
	if err != nil {
		c.recorder.RecordAuthCallback(CallbackExchangeError)
		return nil, fmt.Errorf("%w: %w", ErrExchangeFailed, err)
	}

	// 交換が成功と報告されても、トークンでユーザーを取得できなければ失敗とする
	user, err := c.platform.GetUser(ctx, ps.AccessToken)
	if err != nil || user == nil || user.ID == "" {
		c.recorder.RecordAuthCallback(CallbackNoSession)
		if err == nil {
			err = errors.New("empty user")
		}
		return nil, fmt.Errorf("%w: %w", ErrSessionNotEstablished, err)
	}

	session := SessionFromPlatform(ps)
	session.UserID = user.ID
	session.Email = user.Email
	if u := user.Username(); u != "" {
		session.Username = u
	}

	profile, err := c.provisioner.EnsureProfile(ctx, Identity{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username(),
	})
	if err != nil {
		c.recorder.RecordAuthCallback(CallbackProfileError)
		return nil, fmt.Errorf("%w: %w", ErrProfileProvisionFailed, err)
	}

	c.recorder.RecordAuthCallback(CallbackSuccess)
	c.recorder.RecordSessionEvent(EventSignedIn)
	slog.Info("auth callback completed", slog.String("user_id", user.ID))

	return &Completion{Session: session, Profile: profile}, nil
}
