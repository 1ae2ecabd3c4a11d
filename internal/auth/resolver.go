// Package auth はセッション解決、認証完了、パスワード認証フローを提供する。
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/vidshare/internal/model"
	"github.com/hitoshi/vidshare/internal/platform"
)

// SessionPlatform はセッション解決に必要な認証基盤の操作。
type SessionPlatform interface {
	RefreshSession(ctx context.Context, refreshToken string) (*platform.Session, error)
	GetUser(ctx context.Context, accessToken string) (*platform.User, error)
}

// セッション解決結果のラベル
const (
	ResolutionAnonymous     = "anonymous"
	ResolutionValid         = "valid"
	ResolutionRefreshed     = "refreshed"
	ResolutionInvalid       = "invalid"
	ResolutionLookupFailed  = "lookup_failed"
	ResolutionRefreshFailed = "refresh_failed"
)

// Resolution はリクエスト1件分のセッション解決結果。
type Resolution struct {
	// Session は認証済みセッション。未認証の場合はnil。
	Session *model.Session
	// Refreshed はトークンが更新されたことを示す。呼び出し側はCookieを書き換える。
	Refreshed bool
	// Clear は認証基盤がトークンを拒否したことを示す。呼び出し側はCookieを削除する。
	Clear bool
}

// ResolverConfig はセッション解決の設定。
type ResolverConfig struct {
	// RefreshLookahead は有効期限がこの時間以内に迫っていればリフレッシュする。
	RefreshLookahead time.Duration
	// Now はテスト用の時刻関数。nilの場合はtime.Now。
	Now func() time.Time
}

// Resolver はリクエストのCookieから現在のセッションを解決する。
// 参照時の失敗は未認証として扱い（fail open）、リフレッシュの失敗もセッションなしとする（fail closed）。
type Resolver struct {
	platform SessionPlatform
	decoder  *TokenDecoder
	config   ResolverConfig
	recorder Recorder
}

// NewResolver はResolverを生成する。
func NewResolver(p SessionPlatform, decoder *TokenDecoder, config ResolverConfig, recorder Recorder) *Resolver {
	if config.Now == nil {
		config.Now = time.Now
	}
	return &Resolver{
		platform: p,
		decoder:  decoder,
		config:   config,
		recorder: recorderOrNop(recorder),
	}
}

// Resolve はCookieのトークンからセッションを解決する。エラーは返さない。
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) Resolution {
	accessToken := CookieValue(req, AccessTokenCookie)
	refreshToken := CookieValue(req, RefreshTokenCookie)

	if accessToken == "" && refreshToken == "" {
		r.recorder.RecordSessionResolution(ResolutionAnonymous)
		return Resolution{}
	}
	if accessToken == "" {
		return r.refresh(ctx, refreshToken)
	}

	claims, err := r.decoder.Decode(accessToken)
	if err != nil {
		slog.Warn("failed to decode access token", slog.String("error", err.Error()))
		// 署名鍵の更新などで読めなくなったアクセストークンは、リフレッシュトークンで置き換える
		if refreshToken != "" {
			return r.refresh(ctx, refreshToken)
		}
		r.recorder.RecordSessionResolution(ResolutionInvalid)
		return Resolution{Clear: true}
	}

	session := sessionFromClaims(claims, accessToken, refreshToken)
	if session.ExpiresWithin(r.config.Now(), r.config.RefreshLookahead) {
		if refreshToken == "" {
			r.recorder.RecordSessionResolution(ResolutionInvalid)
			return Resolution{Clear: !session.ExpiresAt.After(r.config.Now())}
		}
		return r.refresh(ctx, refreshToken)
	}

	if !r.decoder.VerifiesSignature() {
		user, err := r.platform.GetUser(ctx, accessToken)
		if err != nil {
			if platform.IsTransient(err) {
				slog.Warn("session lookup failed",
					slog.String("user_id", session.UserID),
					slog.String("error", err.Error()),
				)
				r.recorder.RecordSessionResolution(ResolutionLookupFailed)
				return Resolution{}
			}
			slog.Info("access token rejected by platform",
				slog.String("user_id", session.UserID),
				slog.String("error", err.Error()),
			)
			r.recorder.RecordSessionResolution(ResolutionInvalid)
			return Resolution{Clear: true}
		}
		session.UserID = user.ID
		session.Email = user.Email
		if u := user.Username(); u != "" {
			session.Username = u
		}
	}

	r.recorder.RecordSessionResolution(ResolutionValid)
	return Resolution{Session: session}
}

func (r *Resolver) refresh(ctx context.Context, refreshToken string) Resolution {
	ps, err := r.platform.RefreshSession(ctx, refreshToken)
	if err != nil {
		slog.Warn("session refresh failed", slog.String("error", err.Error()))
		r.recorder.RecordSessionResolution(ResolutionRefreshFailed)
		return Resolution{Clear: !platform.IsTransient(err)}
	}
	r.recorder.RecordSessionResolution(ResolutionRefreshed)
	r.recorder.RecordSessionEvent(EventTokenRefreshed)
	slog.Info("session refreshed", slog.String("user_id", ps.User.ID))
	return Resolution{Session: SessionFromPlatform(ps), Refreshed: true}
}

// SessionFromPlatform は認証基盤のセッションをドメインモデルに変換する。
func SessionFromPlatform(ps *platform.Session) *model.Session {
	return &model.Session{
		AccessToken:  ps.AccessToken,
		RefreshToken: ps.RefreshToken,
		ExpiresAt:    ps.ExpiresAt,
		UserID:       ps.User.ID,
		Email:        ps.User.Email,
		Username:     ps.User.Username(),
	}
}
