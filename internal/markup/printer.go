package markup

import (
	"fmt"
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/tdewolff/minify/v2"
	minhtml "github.com/tdewolff/minify/v2/html"
)

var minifier = newMinifier()

var stripPolicy = bluemonday.StrictPolicy()

func newMinifier() *minify.M {
	m := minify.New()
	m.Add("text/html", &minhtml.Minifier{
		KeepEndTags: true,
		KeepQuotes:  true,
	})
	return m
}

// Minify compacts printed HTML. End tags and attribute quotes are kept so the
// output parses back to the same element structure.
func Minify(s string) (string, error) {
	out, err := minifier.String("text/html", s)
	if err != nil {
		return "", fmt.Errorf("minify html: %w", err)
	}
	return out, nil
}

// PlainText strips all tags from printed HTML and returns unescaped text with
// runs of whitespace collapsed.
func PlainText(s string) string {
	stripped := html.UnescapeString(stripPolicy.Sanitize(s))
	return strings.Join(strings.Fields(stripped), " ")
}

// Excerpt is PlainText cut to at most n runes.
func Excerpt(s string, n int) string {
	text := PlainText(s)
	runes := []rune(text)
	if n <= 0 || len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[:n])) + "…"
}
