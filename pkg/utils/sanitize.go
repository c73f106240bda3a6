package utils

import (
	"regexp"
	"strings"
)

var invalidPathChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`) // Characters invalid in Windows/Unix filenames
var repeatedUnderscores = regexp.MustCompile(`_+`)

const maxPathComponentLength = 80

// SanitizePathComponent cleans a string (e.g. a product identifier) so it is
// safe to use as a single directory or file name component.
func SanitizePathComponent(name string) string {
	sanitized := invalidPathChars.ReplaceAllString(name, "_")
	sanitized = repeatedUnderscores.ReplaceAllString(sanitized, "_")
	sanitized = strings.Trim(sanitized, "_ ")

	if len(sanitized) > maxPathComponentLength {
		sanitized = strings.Trim(sanitized[:maxPathComponentLength], "_ ")
	}

	if sanitized == "" {
		sanitized = "unnamed"
	}
	return sanitized
}
