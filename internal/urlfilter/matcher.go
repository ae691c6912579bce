package urlfilter

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// MatchKind tells how a Matcher compares its pattern.
type MatchKind int

const (
	// MatchRegex compiles the pattern as a case-insensitive regular expression.
	MatchRegex MatchKind = iota

	// MatchSubstring checks for the pattern as a case-insensitive substring.
	// Patterns that do not compile as regular expressions fall back to it.
	MatchSubstring
)

// String returns the name of the kind.
func (k MatchKind) String() string {
	switch k {
	case MatchRegex:
		return "regex"
	case MatchSubstring:
		return "substring"
	default:
		return "unknown"
	}
}

// Matcher is a compiled pattern.
type Matcher interface {
	// Match reports whether s matches the pattern.
	Match(s string) bool

	// Kind reports which strategy the matcher uses.
	Kind() MatchKind

	// Pattern returns the pattern as written by the user.
	Pattern() string
}

// CompileMatcher compiles pattern as a case-insensitive regular expression.
// If compilation fails the returned Matcher does a case-insensitive
// substring match instead. It never returns nil.
func CompileMatcher(pattern string) Matcher {
	re, err := regexp.Compile("(?i)" + pattern)
	if err != nil {
		return substringMatcher{pattern: pattern, folded: fold(pattern)}
	}
	return regexMatcher{pattern: pattern, re: re}
}

// NewSubstringMatcher returns a case-insensitive substring Matcher.
func NewSubstringMatcher(pattern string) Matcher {
	return substringMatcher{pattern: pattern, folded: fold(pattern)}
}

type regexMatcher struct {
	pattern string
	re      *regexp.Regexp
}

func (m regexMatcher) Match(s string) bool { return m.re.MatchString(s) }
func (m regexMatcher) Kind() MatchKind     { return MatchRegex }
func (m regexMatcher) Pattern() string     { return m.pattern }

type substringMatcher struct {
	pattern string
	folded  string
}

func (m substringMatcher) Match(s string) bool {
	return strings.Contains(fold(s), m.folded)
}
func (m substringMatcher) Kind() MatchKind { return MatchSubstring }
func (m substringMatcher) Pattern() string { return m.pattern }

// fold returns the Unicode case folded form of s.
// A Caser keeps state, so a fresh one is created per call.
func fold(s string) string {
	return cases.Fold().String(s)
}
