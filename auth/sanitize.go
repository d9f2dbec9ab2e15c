package auth

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// SanitizeName strips markup from a display name and trims whitespace.
func SanitizeName(name string) string {
	return strings.TrimSpace(policy.Sanitize(name))
}

func SanitizeString(input string) string {
	return strings.TrimSpace(policy.Sanitize(input))
}
