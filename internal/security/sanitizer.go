// Package security はユーザー入力のサニタイズを提供する。
//
// コメント、タイトル、ユーザー名などのプレーンテキストは全タグを除去して保存し、
// 動画の説明文とプロフィールの自己紹介は表示時に許可リストでサニタイズする。
// いずれもbluemondayのポリシーで処理する。
package security

import (
	"html"
	"html/template"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizer はユーザー入力のサニタイズ機能のインターフェース。
type ContentSanitizer interface {
	// PlainText は全てのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// エンティティは元の文字に戻すため、表示側で1回だけエスケープすればよい。
	PlainText(raw string) string

	// RichText は説明文を表示用の安全なHTMLに変換する。
	// 改行は<br>に変換し、http(s)のURLはリンクにする。
	RichText(raw string) template.HTML
}

// Sanitizer はContentSanitizerの実装。ポリシーはスレッドセーフに共有される。
type Sanitizer struct {
	strict *bluemonday.Policy
	rich   *bluemonday.Policy
}

var _ ContentSanitizer = (*Sanitizer)(nil)

var urlPattern = regexp.MustCompile(`https?://[^\s<>"']+`)

// NewSanitizer はSanitizerを生成する。
// 説明文のポリシー:
//   - 許可タグ: p, br, a, ul, ol, li, strong, em
//   - aタグ: http/httpsのhrefのみ、target="_blank"、rel="nofollow noreferrer noopener"
//   - script, iframe, style, on*属性は許可リスト外のため除去される
func NewSanitizer() *Sanitizer {
	rich := bluemonday.NewPolicy()
	rich.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")
	rich.AllowAttrs("href").OnElements("a")
	rich.AllowURLSchemes("http", "https")
	rich.AllowRelativeURLs(false)
	rich.RequireParseableURLs(true)
	rich.AddTargetBlankToFullyQualifiedLinks(true)
	rich.RequireNoFollowOnLinks(true)
	rich.RequireNoReferrerOnLinks(true)

	return &Sanitizer{
		strict: bluemonday.StrictPolicy(),
		rich:   rich,
	}
}

// PlainText は全てのHTMLタグを除去したテキストを返す。
func (s *Sanitizer) PlainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(raw)))
}

// RichText は説明文を表示用の安全なHTMLに変換する。
func (s *Sanitizer) RichText(raw string) template.HTML {
	if strings.TrimSpace(raw) == "" {
		return ""
	}
	escaped := template.HTMLEscapeString(s.PlainText(raw))
	linked := urlPattern.ReplaceAllStringFunc(escaped, func(u string) string {
		return `<a href="` + u + `">` + u + `</a>`
	})
	withBreaks := strings.ReplaceAll(linked, "\n", "<br>")
	return template.HTML(s.rich.Sanitize(withBreaks))
}
