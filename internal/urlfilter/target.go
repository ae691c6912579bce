package urlfilter

import (
	"net/url"
	"strings"
)

// IsTargetURL reports whether u points at the same page as target.
// Scheme, host, query and fragment must be equal; paths are compared with
// a trailing slash removed, so "/blog" and "/blog/" are the same page.
// If either URL cannot be parsed the raw strings are compared.
func IsTargetURL(u, target string) bool {
	a, errA := url.Parse(u)
	b, errB := url.Parse(target)
	if errA != nil || errB != nil {
		return u == target
	}

	return strings.EqualFold(a.Scheme, b.Scheme) &&
		strings.EqualFold(a.Host, b.Host) &&
		trimPath(a.EscapedPath()) == trimPath(b.EscapedPath()) &&
		a.RawQuery == b.RawQuery &&
		a.Fragment == b.Fragment
}

func trimPath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	return strings.TrimSuffix(p, "/")
}

// ExcludedURLs returns the URLs matching any of patterns. Each pattern is
// a case-insensitive regular expression or, when it does not compile, a
// substring.
func ExcludedURLs(urls, patterns []string) []string {
	matchers := compileAll(patterns)
	var out []string
	for _, u := range urls {
		if matchAny(matchers, u) {
			out = append(out, u)
		}
	}
	return out
}

// ExcludePatterns returns urls without the ones matching any of patterns,
// preserving order.
func ExcludePatterns(urls, patterns []string) []string {
	if len(patterns) == 0 {
		return urls
	}
	matchers := compileAll(patterns)
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if !matchAny(matchers, u) {
			out = append(out, u)
		}
	}
	return out
}

func compileAll(patterns []string) []Matcher {
	matchers := make([]Matcher, 0, len(patterns))
	for _, p := range patterns {
		if p == "" {
			continue
		}
		matchers = append(matchers, CompileMatcher(p))
	}
	return matchers
}

func matchAny(matchers []Matcher, s string) bool {
	for _, m := range matchers {
		if m.Match(s) {
			return true
		}
	}
	return false
}
