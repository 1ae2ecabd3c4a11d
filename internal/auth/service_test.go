package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/vidshare/internal/platform"
)

func TestService_SignIn(t *testing.T) {
	repo := newMemProfileRepo()
	rec := &recordingRecorder{}
	p := &mockPlatform{
		signInFn: func(_ context.Context, email, password string) (*platform.Session, error) {
			if email != "alice@example.com" || password != "secret" {
				return nil, &platform.Error{Status: 400, Message: "Invalid login credentials"}
			}
			return &platform.Session{
				AccessToken:  "access",
				RefreshToken: "refresh",
				ExpiresAt:    time.Now().Add(time.Hour),
				User:         platform.User{ID: "user-1", Email: email},
			}, nil
		},
	}
	svc := NewService(p, NewProvisioner(repo), ServiceConfig{}, rec)

	session, err := svc.SignIn(context.Background(), " alice@example.com ", "secret")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.UserID != "user-1" {
		t.Errorf("user id = %q", session.UserID)
	}
	if repo.inserts != 1 {
		t.Errorf("profile inserts = %d, want 1", repo.inserts)
	}
	if len(rec.events) != 1 || rec.events[0] != EventSignedIn {
		t.Errorf("events = %v", rec.events)
	}

	if _, err := svc.SignIn(context.Background(), "alice@example.com", "wrong"); err == nil {
		t.Error("expected error for wrong password")
	}
}

func TestService_SignInEmailNotConfirmed(t *testing.T) {
	p := &mockPlatform{
		signInFn: func(context.Context, string, string) (*platform.Session, error) {
			return nil, &platform.Error{Status: 400, Code: "email_not_confirmed", Message: "Email not confirmed"}
		},
	}
	svc := NewService(p, NewProvisioner(newMemProfileRepo()), ServiceConfig{}, nil)

	_, err := svc.SignIn(context.Background(), "alice@example.com", "secret")
	if !platform.IsEmailNotConfirmed(err) {
		t.Errorf("expected email-not-confirmed error, got %v", err)
	}
}

func TestService_SignInMissingCredentials(t *testing.T) {
	svc := NewService(&mockPlatform{}, NewProvisioner(newMemProfileRepo()), ServiceConfig{}, nil)
	if _, err := svc.SignIn(context.Background(), "", "secret"); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}

func TestService_SignUp(t *testing.T) {
	autoConfirmed := func(_ context.Context, p platform.SignUpParams) (*platform.SignUpResult, error) {
		s := &platform.Session{
			AccessToken:  "access",
			RefreshToken: "refresh",
			ExpiresAt:    time.Now().Add(time.Hour),
			User:         platform.User{ID: "user-1", Email: p.Email},
		}
		return &platform.SignUpResult{User: &s.User, Session: s}, nil
	}
	confirmationPending := func(_ context.Context, p platform.SignUpParams) (*platform.SignUpResult, error) {
		return &platform.SignUpResult{User: &platform.User{ID: "user-1", Email: p.Email}}, nil
	}

	tests := []struct {
		name            string
		signUp          func(context.Context, platform.SignUpParams) (*platform.SignUpResult, error)
		requireVerify   bool
		wantSession     bool
		wantConfirm     bool
		wantProfileRows int
	}{
		{name: "auto confirmed", signUp: autoConfirmed, wantSession: true, wantProfileRows: 1},
		{name: "verification required by config", signUp: autoConfirmed, requireVerify: true, wantConfirm: true},
		{name: "platform requires confirmation", signUp: confirmationPending, wantConfirm: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got platform.SignUpParams
			p := &mockPlatform{
				signUpFn: func(ctx context.Context, params platform.SignUpParams) (*platform.SignUpResult, error) {
					got = params
					return tt.signUp(ctx, params)
				},
			}
			repo := newMemProfileRepo()
			svc := NewService(p, NewProvisioner(repo), ServiceConfig{RequireEmailVerification: tt.requireVerify}, nil)

			out, err := svc.SignUp(context.Background(), SignUpInput{
				Email:           "henry@example.com",
				Password:        "secret",
				EmailRedirectTo: "http://localhost:3000/auth/callback",
			})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if (out.Session != nil) != tt.wantSession {
				t.Errorf("session present = %v, want %v", out.Session != nil, tt.wantSession)
			}
			if out.ConfirmationRequired != tt.wantConfirm {
				t.Errorf("ConfirmationRequired = %v, want %v", out.ConfirmationRequired, tt.wantConfirm)
			}
			if got.Username != "henry" {
				t.Errorf("username sent = %q, want henry", got.Username)
			}
			if got.CodeChallenge != platform.CodeChallenge(out.CodeVerifier) {
				t.Error("code challenge does not match returned verifier")
			}
			if repo.inserts != tt.wantProfileRows {
				t.Errorf("profile inserts = %d, want %d", repo.inserts, tt.wantProfileRows)
			}
		})
	}
}

func TestService_SignOutIgnoresPlatformFailure(t *testing.T) {
	rec := &recordingRecorder{}
	called := false
	p := &mockPlatform{
		signOutFn: func(_ context.Context, token string) error {
			called = true
			if token != "access" {
				t.Errorf("token = %q", token)
			}
			return errors.New("network down")
		},
	}
	svc := NewService(p, NewProvisioner(newMemProfileRepo()), ServiceConfig{}, rec)

	svc.SignOut(context.Background(), nil)
	if called {
		t.Error("SignOut without session should not call platform")
	}

	svc.SignOut(context.Background(), sessionFor("user-1", "access"))
	if !called {
		t.Error("expected platform sign out")
	}
	if len(rec.events) != 1 || rec.events[0] != EventSignedOut {
		t.Errorf("events = %v", rec.events)
	}
}

func TestService_ResendConfirmation(t *testing.T) {
	var gotEmail string
	p := &mockPlatform{
		resendFn: func(_ context.Context, email, _ string) error {
			gotEmail = email
			return nil
		},
	}
	svc := NewService(p, NewProvisioner(newMemProfileRepo()), ServiceConfig{}, nil)

	if err := svc.ResendConfirmation(context.Background(), " ivy@example.com", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotEmail != "ivy@example.com" {
		t.Errorf("email = %q", gotEmail)
	}
	if err := svc.ResendConfirmation(context.Background(), "", ""); !errors.Is(err, ErrMissingCredentials) {
		t.Errorf("expected ErrMissingCredentials, got %v", err)
	}
}
