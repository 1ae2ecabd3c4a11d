// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/hitoshi/vidshare/internal/auth"
	"github.com/hitoshi/vidshare/internal/model"
)

// ErrNoSession はコンテキストに認証済みセッションが無いことを示す。
var ErrNoSession = errors.New("session not found in context")

// SessionResolver はリクエストのCookieからセッションを解決する。
// auth.Resolverの部分集合として定義する。
type SessionResolver interface {
	Resolve(ctx context.Context, r *http.Request) auth.Resolution
}

// NewSessionMiddleware はCookieのトークンからセッションを解決し、
// リクエストコンテキストに注入するミドルウェアを返す。
// 未認証でも後続のハンドラーを呼び出す。認可はNewRequireSessionMiddlewareで行う。
func NewSessionMiddleware(resolver SessionResolver, cookies auth.CookieConfig) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := resolver.Resolve(r.Context(), r)
			r = applyResolution(w, r, res, cookies)
			next.ServeHTTP(w, r)
		})
	}
}

// NewRequireSessionMiddleware はセッションが無いリクエストに401 JSONを返すミドルウェアを返す。
// NewSessionMiddlewareの後に配置する。
func NewRequireSessionMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if auth.SessionFromContext(r.Context()) == nil {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// applyResolution は解決結果に応じてCookieを書き換え、セッションをコンテキストに注入する。
func applyResolution(w http.ResponseWriter, r *http.Request, res auth.Resolution, cookies auth.CookieConfig) *http.Request {
	switch {
	case res.Session != nil && res.Refreshed:
		cookies.SetSession(w, res.Session)
	case res.Session == nil && res.Clear:
		cookies.ClearSession(w)
	}

	ctx := r.Context()
	if res.Session != nil {
		ctx = auth.ContextWithSession(ctx, res.Session)
		setLogUserID(ctx, res.Session.UserID)
	}
	return r.WithContext(ctx)
}

// UserIDFromContext はリクエストコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	s := auth.SessionFromContext(ctx)
	if s == nil || s.UserID == "" {
		return "", ErrNoSession
	}
	return s.UserID, nil
}
