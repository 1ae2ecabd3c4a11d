package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/platform"
)

// ErrMissingCredentials はメールアドレスまたはパスワードが空であることを表す。
var ErrMissingCredentials = errors.New("email and password are required")

// PasswordPlatform はパスワード認証フローに必要な認証基盤の操作。
type PasswordPlatform interface {
	SignUp(ctx context.Context, p platform.SignUpParams) (*platform.SignUpResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*platform.Session, error)
	SignOut(ctx context.Context, accessToken string) error
	Resend(ctx context.Context, email, emailRedirectTo string) error
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// RequireEmailVerification が真の場合、サインアップ直後にはログインさせない。
	RequireEmailVerification bool
}

// SignUpInput はサインアップフォームの入力。
type SignUpInput struct {
	Email           string
	Password        string
	Username        string
	EmailRedirectTo string
}

// SignUpOutcome はサインアップの結果。
type SignUpOutcome struct {
	// Session は即時ログインできる場合のみ設定される。
	Session *model.Session
	// CodeVerifier は確認メールのリンクからの交換に使うPKCEベリファイア。
	CodeVerifier string
	// ConfirmationRequired はメール確認が必要なことを示す。
	ConfirmationRequired bool
}

// Service はパスワードによるサインイン・サインアップ・サインアウトを提供する。
type Service struct {
	platform    PasswordPlatform
	provisioner *Provisioner
	config      ServiceConfig
	recorder    Recorder
}

// NewService はServiceを生成する。
func NewService(p PasswordPlatform, provisioner *Provisioner, config ServiceConfig, recorder Recorder) *Service {
	return &Service{
		platform:    p,
		provisioner: provisioner,
		config:      config,
		recorder:    recorderOrNop(recorder),
	}
}

// SignIn はパスワードでサインインし、プロフィールを用意する。
// メール未確認の場合は platform.IsEmailNotConfirmed で判定できるエラーを返す。
func (s *Service) SignIn(ctx context.Context, email, password string) (*model.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredentials
	}

	ps, err := s.platform.SignInWithPassword(ctx, email, password)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}

	session := SessionFromPlatform(ps)
	if _, err := s.provisioner.EnsureProfile(ctx, Identity{
		UserID:   session.UserID,
		Email:    session.Email,
		Username: session.Username,
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileProvisionFailed, err)
	}

	s.recorder.RecordSessionEvent(EventSignedIn)
	slog.Info("user signed in", slog.String("user_id", session.UserID))
	return session, nil
}

// SignUp はアカウントを作成する。
// ユーザー名が空の場合はメールアドレスのローカル部を使う。
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*SignUpOutcome, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, ErrMissingCredentials
	}
	username := strings.TrimSpace(in.Username)
	if username == "" {
		username = DeriveUsername("", email)
	}

	verifier, err := platform.NewCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}

	result, err := s.platform.SignUp(ctx, platform.SignUpParams{
		Email:           email,
		Password:        in.Password,
		Username:        username,
		EmailRedirectTo: in.EmailRedirectTo,
		CodeChallenge:   platform.CodeChallenge(verifier),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}

	outcome := &SignUpOutcome{CodeVerifier: verifier}
	if s.config.RequireEmailVerification || result.Session == nil {
		outcome.ConfirmationRequired = true
		slog.Info("user signed up, confirmation required", slog.String("user_id", result.User.ID))
		return outcome, nil
	}

	session := SessionFromPlatform(result.Session)
	if _, err := s.provisioner.EnsureProfile(ctx, Identity{
		UserID:   session.UserID,
		Email:    session.Email,
		Username: username,
	}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileProvisionFailed, err)
	}
	outcome.Session = session

	s.recorder.RecordSessionEvent(EventSignedIn)
	slog.Info("user signed up", slog.String("user_id", session.UserID))
	return outcome, nil
}

// SignOut は認証基盤のセッションを失効させる。
// 失効に失敗しても呼び出し側はCookieを削除してよいため、エラーはログのみとする。
func (s *Service) SignOut(ctx context.Context, session *model.Session) {
	if session == nil {
		return
	}
	if err := s.platform.SignOut(ctx, session.AccessToken); err != nil {
		slog.Warn("platform sign out failed",
			slog.String("user_id", session.UserID),
			slog.String("error", err.Error()),
		)
	}
	s.recorder.RecordSessionEvent(EventSignedOut)
	slog.Info("user signed out", slog.String("user_id", session.UserID))
}

// ResendConfirmation は確認メールを再送する。
func (s *Service) ResendConfirmation(ctx context.Context, email, emailRedirectTo string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return ErrMissingCredentials
	}
	if err := s.platform.Resend(ctx, email, emailRedirectTo); err != nil {
		return fmt.Errorf("failed to resend confirmation: %w", err)
	}
	return nil
}
