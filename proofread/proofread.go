// Package proofread rewrites chapter HTML for vertical Japanese typesetting.
//
// A Proofreader is an ordered list of rules. Every rule is a pure function
// from HTML to HTML and must be idempotent, so proofreading already
// proofread text changes nothing. Raw chapters are kept in the cache and
// proofread at assembly time, which means a new rule also applies to
// previously downloaded chapters.
package proofread

import "narou2epub/model"

// Rule is a single named text transformation.
type Rule struct {
	Name  string
	Apply func(html string) string
}

// DefaultRules returns the built-in rules in application order.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "sesame", Apply: Sesame},
		{Name: "explicit-ruby", Apply: ExplicitRuby},
		{Name: "auto-ruby", Apply: AutoRuby},
		{Name: "paired-punctuation", Apply: PairedPunctuation},
		{Name: "latin-letters", Apply: LatinLetters},
		{Name: "vertical-digits", Apply: VerticalDigits},
	}
}

type Proofreader struct {
	rules []Rule
}

// New returns a Proofreader applying rules in order. Without rules the
// default set is used.
func New(rules ...Rule) *Proofreader {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Proofreader{rules: rules}
}

// Rules lists the rule names in application order.
func (p *Proofreader) Rules() []string {
	names := make([]string, 0, len(p.rules))
	for _, r := range p.rules {
		names = append(names, r.Name)
	}
	return names
}

// Transform applies every rule to text.
func (p *Proofreader) Transform(text string) string {
	for _, r := range p.rules {
		text = r.Apply(text)
	}
	return text
}

// Chapter returns a copy of ch with a proofread body. Titles are plain text
// and are left alone.
func (p *Proofreader) Chapter(ch model.Chapter) model.Chapter {
	return ch.WithBody(p.Transform(ch.Body))
}
