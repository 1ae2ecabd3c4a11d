package auth

import (
	"strings"

	"github.com/google/uuid"
)

// generatedHandlePrefix は自動生成ユーザー名の接頭辞。
const generatedHandlePrefix = "user_"

const maxUsernameLength = 50

// DeriveUsername はプロフィール作成時のユーザー名を決定する。
// 優先順位は メタデータのusername > メールアドレスのローカル部 > 自動生成。
func DeriveUsername(metadataUsername, email string) string {
	if u := normalizeUsername(metadataUsername); u != "" {
		return u
	}
	if at := strings.IndexByte(email, '@'); at > 0 {
		if u := normalizeUsername(email[:at]); u != "" {
			return u
		}
	}
	return GenerateHandle()
}

// GenerateHandle は "user_" + 16進8文字のユーザー名を生成する。
func GenerateHandle() string {
	return generatedHandlePrefix + randomHex(8)
}

// withSuffix はユーザー名重複時の再試行用に "_" + 16進4文字を付与する。
func withSuffix(username string) string {
	return username + "_" + randomHex(4)
}

func randomHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}

func normalizeUsername(s string) string {
	s = strings.TrimSpace(s)
	if r := []rune(s); len(r) > maxUsernameLength {
		s = string(r[:maxUsernameLength])
	}
	return s
}
