package auth

import (
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/vidshare/internal/model"
)

// Cookie名
const (
	AccessTokenCookie  = "sb-access-token"
	RefreshTokenCookie = "sb-refresh-token"
	CodeVerifierCookie = "sb-code-verifier"
	// ReturnPathCookie は直前に要求されたパスを記録する戻り先マーカー。
	ReturnPathCookie = "next-url"
)

// codeVerifierMaxAge はPKCEベリファイアCookieの有効期間（秒）。
// 確認メールのリンクを開くまでの猶予として1日を確保する。
const codeVerifierMaxAge = 60 * 60 * 24

// CookieConfig はCookie属性の設定。
type CookieConfig struct {
	Domain           string
	Secure           bool
	SessionMaxAge    int // セッションCookieの有効期間（秒）
	ReturnPathMaxAge int // 戻り先マーカーの有効期間（秒）
}

// SetSession はアクセストークンとリフレッシュトークンをHTTP Only Cookieに設定する。
func (c CookieConfig) SetSession(w http.ResponseWriter, s *model.Session) {
	c.set(w, AccessTokenCookie, s.AccessToken, c.SessionMaxAge)
	c.set(w, RefreshTokenCookie, s.RefreshToken, c.SessionMaxAge)
}

// ClearSession はセッションCookieを削除する。
func (c CookieConfig) ClearSession(w http.ResponseWriter) {
	c.set(w, AccessTokenCookie, "", -1)
	c.set(w, RefreshTokenCookie, "", -1)
}

// SetReturnPath は戻り先マーカーを書き込む。
// クエリに含まれる ; " \ などはCookie値に使えないため、エスケープして保存する。
func (c CookieConfig) SetReturnPath(w http.ResponseWriter, path string) {
	c.set(w, ReturnPathCookie, url.QueryEscape(path), c.ReturnPathMaxAge)
}

// ReturnPath は戻り先マーカーを復元して返す。存在しないか復元できない場合は空文字列。
func ReturnPath(r *http.Request) string {
	path, err := url.QueryUnescape(CookieValue(r, ReturnPathCookie))
	if err != nil {
		return ""
	}
	return path
}

// SetCodeVerifier はPKCEベリファイアを保存する。
func (c CookieConfig) SetCodeVerifier(w http.ResponseWriter, verifier string) {
	c.set(w, CodeVerifierCookie, verifier, codeVerifierMaxAge)
}

// ClearCodeVerifier はPKCEベリファイアCookieを削除する。
func (c CookieConfig) ClearCodeVerifier(w http.ResponseWriter) {
	c.set(w, CodeVerifierCookie, "", -1)
}

func (c CookieConfig) set(w http.ResponseWriter, name, value string, maxAge int) {
	cookie := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if maxAge > 0 {
		cookie.Expires = time.Now().Add(time.Duration(maxAge) * time.Second)
	}
	http.SetCookie(w, cookie)
}

// CookieValue はリクエストから指定Cookieの値を読み取る。存在しない場合は空文字列。
func CookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
