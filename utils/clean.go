package utils

import (
	"regexp"
	"strings"
)

var unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1F]`)

// CleanFileName removes characters that are not allowed in file names on
// common file systems.
func CleanFileName(input string) string {
	cleaned := unsafeFileChars.ReplaceAllString(input, "")
	cleaned = strings.TrimSpace(cleaned)
	cleaned = strings.TrimRight(cleaned, ". ")
	if cleaned == "" {
		return "untitled"
	}
	return cleaned
}
