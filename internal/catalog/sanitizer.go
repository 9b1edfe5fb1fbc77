// Package catalog は教材モジュールとパッケージのカタログ管理を提供する。
//
// 管理者が入力する説明文HTMLはサニタイズしてから保存し、
// XSS攻撃などのセキュリティリスクからユーザーを保護する。
// bluemondayライブラリを使用した許可リストベースのポリシーで、
// 安全なタグと属性のみを通過させる。
package catalog

import (
	"net/url"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer はHTMLコンテンツのサニタイズ機能のインターフェースを定義する。
// モジュール説明文の保存前に使用される。
type Sanitizer interface {
	// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
	// 許可タグのみを通過させ、script, iframe, styleタグおよび
	// on*イベント属性を除去する。
	// imgタグのsrc属性はhttpsスキームのみ許可される。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(rawHTML string) string
}

// descriptionSanitizer はSanitizerの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type descriptionSanitizer struct {
	policy *bluemonday.Policy
}

var _ Sanitizer = (*descriptionSanitizer)(nil)

// NewSanitizer はSanitizerの新しいインスタンスを生成する。
// 初期化時にbluemondayのカスタムポリシーを構築する。
// ポリシーの内容:
//   - 許可タグ: p, br, a, ul, ol, li, h2, h3, blockquote, strong, em, img
//   - 禁止タグ: script, iframe, style および全てのon*イベント属性
//   - imgのsrc属性: httpsスキームのみ許可
//   - aタグ: target="_blank" と rel="noopener noreferrer" を自動付与
func NewSanitizer() *descriptionSanitizer {
	p := bluemonday.NewPolicy()

	// 説明文で使う基本タグのみ許可する。
	// script, iframe, style等は許可リストに含めないことで自動的に除去される。
	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"h2", "h3", "blockquote",
		"strong", "em",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	p.AllowAttrs("src").OnElements("img")
	p.AllowAttrs("alt").OnElements("img")
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return true
	})

	return &descriptionSanitizer{
		policy: p,
	}
}

// Sanitize はHTMLコンテンツをサニタイズして安全なHTMLを返す。
func (s *descriptionSanitizer) Sanitize(rawHTML string) string {
	return s.policy.Sanitize(rawHTML)
}
