package middleware

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hitoshi/vidshare/internal/auth"
)

// ガードのリダイレクト理由（メトリクスのラベル）
const (
	GuardRuleConfig    = "config"
	GuardRuleProtected = "protected"
	GuardRuleAuthEntry = "auth_entry"
)

// ConfigErrorPath は認証基盤の接続情報が不足している場合の誘導先。
const ConfigErrorPath = "/supabase-error"

// DebugPath は設定の有無を表示する診断ページ。
const DebugPath = "/debug"

// ProtectedPaths はログインが必要なページのパス。配下のパスも含む。
var ProtectedPaths = []string{
	"/upload",
	"/your-videos",
	"/history",
	"/liked-videos",
	"/watch-later",
	"/subscriptions",
	"/library",
	"/profile",
}

// AuthEntryPaths はログイン済みユーザーには不要な認証ページのパス。
var AuthEntryPaths = []string{
	"/login",
	"/register",
	"/auth/signin",
	"/auth/signup",
}

// guardExcludedPrefixes はガードを通さないパスの接頭辞。
var guardExcludedPrefixes = []string{
	"/static/",
	"/_image",
	"/favicon.ico",
	"/api/",
	"/metrics",
	"/health",
}

// GuardRecorder はガードによるリダイレクトを記録する。
type GuardRecorder interface {
	RecordGuardRedirect(rule string)
}

// GuardConfig はルートガードの設定。
type GuardConfig struct {
	// BaseURL はリダイレクト先の組み立てに使う公開ベースURL。
	BaseURL string
	// ConfigCheck は認証基盤の接続情報を検証する。不足していればエラーを返す。
	ConfigCheck func() error
	Cookies     auth.CookieConfig
}

// NewGuardMiddleware はページリクエストごとにセッションを解決し、
// アクセス制御と戻り先マーカーの記録を行うミドルウェアを返す。
//
// 判定順序:
//  1. 除外パスはそのまま通す
//  2. 接続情報が不足していれば設定エラーページへ
//  3. 保護ページに未認証でアクセスした場合はサインインへ
//  4. 認証ページに認証済みでアクセスした場合はトップへ
//  5. それ以外は戻り先マーカーを書き込んで通す
func NewGuardMiddleware(config GuardConfig, resolver SessionResolver, recorder GuardRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path
			if isGuardExcluded(path) {
				next.ServeHTTP(w, r)
				return
			}

			if config.ConfigCheck != nil && path != ConfigErrorPath && path != DebugPath {
				if err := config.ConfigCheck(); err != nil {
					slog.Warn("platform configuration missing",
						slog.String("path", path),
						slog.String("error", err.Error()),
					)
					recordRedirect(recorder, GuardRuleConfig)
					http.Redirect(w, r, ConfigErrorPath, http.StatusTemporaryRedirect)
					return
				}
			}

			previous := auth.ReturnPath(r)
			r = r.WithContext(auth.ContextWithPreviousReturnPath(r.Context(), previous))

			res := resolver.Resolve(r.Context(), r)
			r = applyResolution(w, r, res, config.Cookies)
			authenticated := res.Session != nil

			if !authenticated && IsProtectedPath(path) {
				recordRedirect(recorder, GuardRuleProtected)
				target := auth.SignInURL(config.BaseURL, url.Values{"returnUrl": {pathWithQuery(r)}})
				http.Redirect(w, r, target, guardRedirectStatus(r))
				return
			}

			if authenticated && IsAuthEntryPath(path) {
				recordRedirect(recorder, GuardRuleAuthEntry)
				http.Redirect(w, r, config.BaseURL+"/", guardRedirectStatus(r))
				return
			}

			if !IsAuthEntryPath(path) && !strings.HasPrefix(path, "/auth/") {
				config.Cookies.SetReturnPath(w, pathWithQuery(r))
			}

			next.ServeHTTP(w, r)
		})
	}
}

// guardRedirectStatus はGET/HEADには307を、それ以外には303を返す。
// 307ではフォーム送信がPOSTのまま本文ごと転送先へ再送される。
func guardRedirectStatus(r *http.Request) int {
	if r.Method == http.MethodGet || r.Method == http.MethodHead {
		return http.StatusTemporaryRedirect
	}
	return http.StatusSeeOther
}

// IsProtectedPath はパスがログイン必須ページかを判定する。
// "/profile" は "/profile/edit" に一致するが "/profiles" には一致しない。
func IsProtectedPath(path string) bool {
	return matchesAny(path, ProtectedPaths)
}

// IsAuthEntryPath はパスが認証ページかを判定する。
func IsAuthEntryPath(path string) bool {
	return matchesAny(path, AuthEntryPaths)
}

func matchesAny(path string, prefixes []string) bool {
	for _, p := range prefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

func isGuardExcluded(path string) bool {
	for _, p := range guardExcludedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

func pathWithQuery(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

func recordRedirect(recorder GuardRecorder, rule string) {
	if recorder != nil {
		recorder.RecordGuardRedirect(rule)
	}
}
