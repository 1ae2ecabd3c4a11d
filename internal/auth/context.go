package auth

import (
	"context"

	"github.com/hitoshi/vidshare/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var (
	sessionContextKey    = contextKey("session")
	returnPathContextKey = contextKey("previous_return_path")
)

// ContextWithSession はリクエスト単位で解決済みのセッションをコンテキストに注入する。
func ContextWithSession(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// SessionFromContext はコンテキストからセッションを取得する。
// 未認証の場合はnilを返す。
func SessionFromContext(ctx context.Context) *model.Session {
	s, _ := ctx.Value(sessionContextKey).(*model.Session)
	return s
}

// ContextWithPreviousReturnPath は今回のリクエストで上書きされる前の戻り先マーカーを注入する。
func ContextWithPreviousReturnPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, returnPathContextKey, path)
}

// PreviousReturnPath は上書き前の戻り先マーカーを返す。
func PreviousReturnPath(ctx context.Context) string {
	p, _ := ctx.Value(returnPathContextKey).(string)
	return p
}
