package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/vidshare/internal/auth"
	"github.com/hitoshi/vidshare/internal/model"
)

// --- モック定義 ---

type mockResolver struct {
	resolveFn func(ctx context.Context, r *http.Request) auth.Resolution
	calls     int
}

func (m *mockResolver) Resolve(ctx context.Context, r *http.Request) auth.Resolution {
	m.calls++
	if m.resolveFn != nil {
		return m.resolveFn(ctx, r)
	}
	return auth.Resolution{}
}

type mockGuardRecorder struct {
	rules []string
}

func (m *mockGuardRecorder) RecordGuardRedirect(rule string) {
	m.rules = append(m.rules, rule)
}

func testSession(userID string) *model.Session {
	return &model.Session{
		AccessToken:  "access-" + userID,
		RefreshToken: "refresh-" + userID,
		ExpiresAt:    time.Now().Add(time.Hour),
		UserID:       userID,
		Email:        userID + "@example.com",
	}
}

// resolverFor は常に指定のセッションを返すリゾルバーを生成する。nilなら未認証。
func resolverFor(s *model.Session) *mockResolver {
	return &mockResolver{
		resolveFn: func(ctx context.Context, r *http.Request) auth.Resolution {
			return auth.Resolution{Session: s}
		},
	}
}

var testCookies = auth.CookieConfig{SessionMaxAge: 604800, ReturnPathMaxAge: 3600}

// findSetCookie はレスポンスのSet-Cookieから指定名のCookieを探す。
func findSetCookie(header http.Header, name string) *http.Cookie {
	for _, c := range (&http.Response{Header: header}).Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
