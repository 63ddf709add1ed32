// Package filter decides whether a chat message may be spoken.
//
// A message is rejected when it contains a banned term or a link. Banned
// terms are matched three ways, all case-insensitive: as a whole word, with
// separators (whitespace, '.', '-', '_') wedged between the characters, and
// as the entire message once those separators are stripped out.
package filter

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Reason identifies why a message was rejected.
type Reason string

const (
	// ReasonNone means the message passed.
	ReasonNone Reason = ""
	// ReasonBanned means a banned term matched.
	ReasonBanned Reason = "banned"
	// ReasonLink means the message carries a URL.
	ReasonLink Reason = "link"
)

var (
	linkPattern      = regexp.MustCompile(`(?i)https?://|\bwww\.`)
	separatorPattern = regexp.MustCompile(`[\s.\-_]`)
)

// separator is what the tolerant pattern allows between two characters:
// any run of whitespace, periods, hyphens and underscores.
const separator = `[\s.\-_]*`

type term struct {
	word     string
	literal  *regexp.Regexp
	tolerant *regexp.Regexp
}

// Filter holds a compiled banned-term list. It is immutable once built and
// safe for concurrent use.
type Filter struct {
	terms []term
}

// New compiles the given banned terms. Empty terms are ignored.
func New(words []string) *Filter {
	f := &Filter{terms: make([]term, 0, len(words))}
	for _, w := range words {
		w = fold(strings.TrimSpace(w))
		if w == "" {
			continue
		}
		f.terms = append(f.terms, term{
			word:     w,
			literal:  regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`),
			tolerant: regexp.MustCompile(`(?i)` + tolerantPattern(w)),
		})
	}
	return f
}

func tolerantPattern(w string) string {
	parts := make([]string, 0, len(w))
	for _, r := range w {
		parts = append(parts, regexp.QuoteMeta(string(r)))
	}
	return strings.Join(parts, separator)
}

// fold lowercases s after NFKC normalization, so full-width and other
// compatibility forms compare equal to their plain spelling.
func fold(s string) string {
	return strings.ToLower(norm.NFKC.String(s))
}

// Len returns the number of active terms.
func (f *Filter) Len() int {
	return len(f.terms)
}

// IsBanned reports whether text contains any banned term, including
// obfuscated spellings.
func (f *Filter) IsBanned(text string) bool {
	if len(f.terms) == 0 {
		return false
	}
	lower := fold(text)
	stripped := separatorPattern.ReplaceAllString(lower, "")
	for _, t := range f.terms {
		if t.literal.MatchString(lower) || t.tolerant.MatchString(lower) || stripped == t.word {
			return true
		}
	}
	return false
}

// HasLink reports whether text contains an http:// or https:// scheme or a
// www. token, even with nothing after it.
func HasLink(text string) bool {
	return linkPattern.MatchString(text)
}

// Check runs every rule and returns the first reason text is rejected.
// The boolean is true when text may be spoken.
func (f *Filter) Check(text string) (Reason, bool) {
	switch {
	case f.IsBanned(text):
		return ReasonBanned, false
	case HasLink(text):
		return ReasonLink, false
	default:
		return ReasonNone, true
	}
}
