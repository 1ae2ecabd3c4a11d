package auth

import (
	"net/url"
	"strings"
)

// SanitizeReturnURL は認証後の戻り先をサイト内パスに限定する。
// 空、絶対URL、プロトコル相対（//host）、バックスラッシュを含むものは "/" にする。
func SanitizeReturnURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") {
		return "/"
	}
	if strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return raw
}

// SignInURL はサインインページへのURLを組み立てる。
// params の値は1回だけパーセントエンコードされる。
func SignInURL(baseURL string, params url.Values) string {
	u := baseURL + "/auth/signin"
	if len(params) > 0 {
		u += "?" + strings.ReplaceAll(params.Encode(), "+", "%20")
	}
	return u
}
