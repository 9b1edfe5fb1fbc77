package catalog

import (
	"strings"

	"golang.org/x/net/html"
)

// summaryMaxRunes は一覧表示用サマリーの最大文字数。
const summaryMaxRunes = 120

// ExtractSummary は説明文HTMLからタグを除いたプレーンテキストの
// サマリーを生成する。連続する空白は1つにまとめ、summaryMaxRunesを
// 超える場合は末尾に省略記号を付けて切り詰める。
func ExtractSummary(descriptionHTML string) string {
	if descriptionHTML == "" {
		return ""
	}

	tokenizer := html.NewTokenizer(strings.NewReader(descriptionHTML))
	var b strings.Builder

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt != html.TextToken {
			continue
		}
		text := strings.TrimSpace(string(tokenizer.Text()))
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(text)
	}

	summary := strings.Join(strings.Fields(b.String()), " ")
	runes := []rune(summary)
	if len(runes) > summaryMaxRunes {
		summary = string(runes[:summaryMaxRunes]) + "…"
	}
	return summary
}
