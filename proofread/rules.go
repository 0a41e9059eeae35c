package proofread

import (
	"regexp"

	"golang.org/x/text/width"
)

const rubyTarget = `[\x{3400}-\x{9FFF}\x{F900}-\x{FAFF}々〇〻]`

var (
	sesameRegexp       = regexp.MustCompile(`《《([^《》<>]+?)》》`)
	explicitRubyRegexp = regexp.MustCompile(`[｜|]([^｜|《》<>]+?)《([^《》<>]+?)》`)
	autoRubyRegexp     = regexp.MustCompile(`(` + rubyTarget + `+)《([^《》<>]+?)》`)
	pairRegexp         = regexp.MustCompile(`[!！?？][!！?？]`)
	digitRunRegexp     = regexp.MustCompile(`[0-9]+`)
	letterRegexp       = regexp.MustCompile(`[A-Za-z]`)
)

func rubyTag(base, reading string) string {
	return "<ruby>" + base + "<rp>（</rp><rt>" + reading + "</rt><rp>）</rp></ruby>"
}

// Sesame turns 《《text》》 into emphasis dots.
func Sesame(s string) string {
	return sesameRegexp.ReplaceAllString(s, `<em class="sesame">$1</em>`)
}

// ExplicitRuby converts ｜base《reading》 notation.
func ExplicitRuby(s string) string {
	return explicitRubyRegexp.ReplaceAllStringFunc(s, func(m string) string {
		sub := explicitRubyRegexp.FindStringSubmatch(m)
		return rubyTag(sub[1], sub[2])
	})
}

// AutoRuby converts a kanji run directly followed by 《reading》.
func AutoRuby(s string) string {
	return autoRubyRegexp.ReplaceAllStringFunc(s, func(m string) string {
		sub := autoRubyRegexp.FindStringSubmatch(m)
		return rubyTag(sub[1], sub[2])
	})
}

var pairs = map[string]string{
	"!!": "‼",
	"!?": "⁉",
	"?!": "⁈",
	"??": "⁇",
}

// PairedPunctuation joins doubled exclamation and question marks into the
// single glyphs that stay upright in vertical text.
func PairedPunctuation(s string) string {
	return mapText(s, func(text string, _ bool) string {
		return pairRegexp.ReplaceAllStringFunc(text, func(m string) string {
			key := width.Narrow.String(m)
			if r, ok := pairs[key]; ok {
				return r
			}
			return m
		})
	})
}

// LatinLetters widens short runs of half-width letters. English phrases keep
// their half-width form.
func LatinLetters(s string) string {
	return mapText(s, func(text string, _ bool) string {
		return asciiRunRegexp.ReplaceAllStringFunc(text, func(run string) string {
			if isEnglish(run) {
				return run
			}
			return mapPlain(run, func(p string) string {
				return letterRegexp.ReplaceAllStringFunc(p, width.Widen.String)
			})
		})
	})
}

// VerticalDigits renders two-digit numbers as tate-chu-yoko and widens single
// digits and longer numbers. Digits inside English phrases are kept.
func VerticalDigits(s string) string {
	return mapText(s, func(text string, inTcy bool) string {
		if inTcy {
			return text
		}
		return asciiRunRegexp.ReplaceAllStringFunc(text, func(run string) string {
			if isEnglish(run) {
				return run
			}
			return mapPlain(run, func(p string) string {
				return digitRunRegexp.ReplaceAllStringFunc(p, convertDigits)
			})
		})
	})
}

func convertDigits(num string) string {
	if len(num) == 2 {
		return tcyOpen + num + "</span>"
	}
	return width.Widen.String(num)
}
