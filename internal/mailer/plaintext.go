package mailer

import (
	"strings"

	"golang.org/x/net/html"
)

// blockTags は終了時に改行を入れる要素。
var blockTags = map[string]bool{
	"h1": true, "h2": true, "p": true, "li": true, "ul": true,
}

// PlainText はメールHTMLからテキスト版の本文を生成する。
// リンクはテキストの後ろにURLを括弧書きで付ける。
func PlainText(body string) string {
	var sb strings.Builder
	tokenizer := html.NewTokenizer(strings.NewReader(body))
	var href string

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return tidyLines(sb.String())

		case html.TextToken:
			sb.WriteString(string(tokenizer.Text()))

		case html.StartTagToken, html.SelfClosingTagToken:
			tn, hasAttr := tokenizer.TagName()
			switch string(tn) {
			case "br":
				sb.WriteString("\n")
			case "li":
				sb.WriteString("- ")
			case "a":
				href = ""
				for hasAttr {
					key, val, more := tokenizer.TagAttr()
					if string(key) == "href" {
						href = string(val)
					}
					hasAttr = more
				}
			}

		case html.EndTagToken:
			tn, _ := tokenizer.TagName()
			name := string(tn)
			if name == "a" && href != "" {
				sb.WriteString(" (" + href + ")")
				href = ""
			}
			if blockTags[name] {
				sb.WriteString("\n")
			}
		}
	}
}

// tidyLines は各行の前後空白を除き、連続する空行を1つにまとめる。
func tidyLines(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	blank := false
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			if !blank && len(out) > 0 {
				out = append(out, "")
			}
			blank = true
			continue
		}
		out = append(out, line)
		blank = false
	}
	return strings.TrimSpace(strings.Join(out, "\n"))
}
