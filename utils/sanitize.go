package utils

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.UGCPolicy()

// Sanitize strips markup the UGC policy does not allow from user supplied post
// text. Entities the policy writes for plain text are decoded again, so
// "Tom & Jerry" stays "Tom & Jerry".
func Sanitize(input string) string {
	return html.UnescapeString(sanitizer.Sanitize(input))
}
