// Package security はアプリケーションのセキュリティ機能を提供する。
//
// EmailSanitizer は通知メールに埋め込むHTMLを許可リストで浄化する。
// 申請フォームの氏名など、利用者が入力した文字列がそのままメール本文に
// 入るため、送信前に必ず通す。
package security

import (
	"html"
	"net/url"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// EmailSanitizer はメール本文のサニタイズ機能のインターフェースを定義する。
type EmailSanitizer interface {
	// SanitizeHTML はメール本文として安全なHTMLを返す。
	// 許可タグ（h1, h2, p, br, strong, em, ul, li, a）のみを通過させ、
	// aタグのhrefはhttpsスキームのみ許可する。
	SanitizeHTML(rawHTML string) string

	// StripTags は全てのタグを除去したプレーンテキストを返す。
	// 氏名など1行の入力値に使用する。
	StripTags(text string) string
}

type emailSanitizer struct {
	body   *bluemonday.Policy
	strict *bluemonday.Policy
}

// NewEmailSanitizer はEmailSanitizerの新しいインスタンスを生成する。
func NewEmailSanitizer() *emailSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"h1", "h2", "p", "br",
		"strong", "em", "ul", "li",
	)

	// 会議リンクとパスワード再設定リンク用
	p.AllowAttrs("href").OnElements("a")
	p.AllowRelativeURLs(false)
	p.AllowURLSchemeWithCustomPolicy("https", func(u *url.URL) bool {
		return u.Host != ""
	})
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &emailSanitizer{
		body:   p,
		strict: bluemonday.StrictPolicy(),
	}
}

// SanitizeHTML はメール本文として安全なHTMLを返す。
func (s *emailSanitizer) SanitizeHTML(rawHTML string) string {
	return s.body.Sanitize(rawHTML)
}

// StripTags は全てのタグを除去し、前後の空白を取り除く。
// StrictPolicyのエスケープは戻す（html/templateで再度エスケープされるため）。
func (s *emailSanitizer) StripTags(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.strict.Sanitize(text)))
}

// compile-time interface check
var _ EmailSanitizer = (*emailSanitizer)(nil)
