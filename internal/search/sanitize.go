package search

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// CleanText reduces HTML-looking snippets to their visible text and collapses whitespace.
func CleanText(s string) string {
	if looksLikeHTML(s) {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(s)); err == nil {
			doc.Find("script, style, noscript").Remove()
			// Separate adjacent block elements so their words do not run together.
			doc.Find("*").AppendHtml(" ")
			s = doc.Text()
		}
	}
	return strings.Join(strings.Fields(s), " ")
}

func looksLikeHTML(s string) bool {
	i := strings.IndexByte(s, '<')
	return i >= 0 && strings.IndexByte(s[i:], '>') > 0
}
