package render

import (
	"html/template"

	"github.com/microcosm-cc/bluemonday"
	"github.com/russross/blackfriday/v2"
)

var ugcPolicy = bluemonday.UGCPolicy()

// Markdown renders an admin message as sanitized HTML for the message
// history preview
func Markdown(markdown string) template.HTML {
	unsafe := blackfriday.Run([]byte(markdown))
	return template.HTML(ugcPolicy.SanitizeBytes(unsafe))
}
