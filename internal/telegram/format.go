package telegram

import (
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

// htmlPolicy keeps only the tags Telegram accepts with parse_mode HTML
var htmlPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("b", "strong", "i", "em", "u", "s", "del", "code", "pre", "blockquote")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "tg")
	p.RequireParseableURLs(true)
	return p
}()

var blankLines = regexp.MustCompile(`\n{3,}`)

// FormatHTML converts markdown to the HTML subset Telegram renders.
// Block elements collapse to plain text and list items become bullets.
func FormatHTML(markdown string) string {
	rendered := blackfriday.Run([]byte(markdown),
		blackfriday.WithExtensions(blackfriday.CommonExtensions|blackfriday.HardLineBreak))

	html := strings.NewReplacer(
		"<li>", "<li>• ",
		"<br />\n", "\n",
		"<br>\n", "\n",
		"<br />", "\n",
		"<br>", "\n",
	).Replace(string(rendered))

	safe := htmlPolicy.Sanitize(html)
	return strings.TrimSpace(blankLines.ReplaceAllString(safe, "\n\n"))
}
