// Package security は投稿本文のサニタイズと添付ファイル取得時のSSRF防止を提供する。
//
// 投稿本文はバックエンドから受け取ったままの文字列であり、
// 表示前に必ずPostSanitizerを通してからテンプレートに渡す。
package security

import (
	"html/template"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService は投稿・コメント本文のサニタイズ機能のインターフェースを定義する。
type ContentSanitizerService interface {
	// Sanitize はHTMLをサニタイズして安全なHTML文字列を返す。
	Sanitize(rawHTML string) string

	// Render はサニタイズした本文の改行を<br>に変換し、テンプレートにそのまま埋め込めるHTMLを返す。
	Render(content string) template.HTML
}

// PostSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーは並行利用に安全なので1つを共有する。
type PostSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer は投稿本文用のポリシーを構築する。
//   - 許可タグ: p, br, a, ul, ol, li, blockquote, pre, code, strong, em, img
//   - aのhref: 絶対URLのみ。target="_blank"とrel="noopener noreferrer"を付与
//   - imgのsrc: httpsのみ
func NewContentSanitizer() *PostSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"blockquote", "pre", "code",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})

	return &PostSanitizer{policy: p}
}

// Sanitize はHTMLをサニタイズする。同一入力には常に同一出力を返す。
func (s *PostSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}

var newlineReplacer = strings.NewReplacer("\r\n", "<br>\n", "\n", "<br>\n")

// Render は本文をサニタイズし、テキストエリアで入力された改行を<br>に置き換える。
func (s *PostSanitizer) Render(content string) template.HTML {
	if content == "" {
		return ""
	}
	return template.HTML(newlineReplacer.Replace(s.Sanitize(content)))
}
