package proofread

import (
	"html"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	tagRegexp    = regexp.MustCompile(`<[^>]*>`)
	entityRegexp = regexp.MustCompile(`&(?:#[0-9]+|#[xX][0-9a-fA-F]+|[A-Za-z][A-Za-z0-9]*);`)
	// asciiRunRegexp matches runs of half-width letters, digits and sentence
	// punctuation. Entities count as part of the run.
	asciiRunRegexp = regexp.MustCompile(`(?:[A-Za-z0-9_.,!?'" :;-]|&(?:#[0-9]+|#[xX][0-9a-fA-F]+|[A-Za-z][A-Za-z0-9]*);)+`)
)

const tcyOpen = `<span class="tcy">`

// englishMinLength is the run length from which a single word containing a
// letter is kept half-width.
const englishMinLength = 8

// mapText calls fn for every text segment between tags. inTcy reports
// whether the segment is inside a tate-chu-yoko span.
func mapText(s string, fn func(text string, inTcy bool) string) string {
	var b strings.Builder
	b.Grow(len(s))
	inTcy := false
	last := 0
	for _, loc := range tagRegexp.FindAllStringIndex(s, -1) {
		if loc[0] > last {
			b.WriteString(fn(s[last:loc[0]], inTcy))
		}
		tag := s[loc[0]:loc[1]]
		switch {
		case tag == tcyOpen:
			inTcy = true
		case inTcy && tag == "</span>":
			inTcy = false
		}
		b.WriteString(tag)
		last = loc[1]
	}
	if last < len(s) {
		b.WriteString(fn(s[last:], inTcy))
	}
	return b.String()
}

// mapPlain calls fn for the parts of s that are not character references.
func mapPlain(s string, fn func(string) string) string {
	locs := entityRegexp.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		return fn(s)
	}
	var b strings.Builder
	last := 0
	for _, loc := range locs {
		if loc[0] > last {
			b.WriteString(fn(s[last:loc[0]]))
		}
		b.WriteString(s[loc[0]:loc[1]])
		last = loc[1]
	}
	if last < len(s) {
		b.WriteString(fn(s[last:]))
	}
	return b.String()
}

func hasASCIILetter(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') {
			return true
		}
	}
	return false
}

// isEnglish reports whether an ASCII run reads as an English phrase: two or
// more words, or at least englishMinLength characters with a letter.
func isEnglish(run string) bool {
	plain := html.UnescapeString(run)
	if !hasASCIILetter(plain) {
		return false
	}
	if len(strings.Fields(plain)) >= 2 {
		return true
	}
	return utf8.RuneCountInString(plain) >= englishMinLength
}
