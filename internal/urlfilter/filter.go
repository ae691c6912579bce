package urlfilter

import (
	"net/url"
	"strings"

	"github.com/nao1215/linkcollector/internal/model"
)

// Filter is a compiled set of filter rules. It is immutable after New and
// safe for concurrent use.
type Filter struct {
	include []rule
	exclude []rule
}

// rule is a compiled model.FilterRule.
type rule struct {
	domains  []string
	prefixes []string
	patterns []Matcher
	keywords []string
}

// New compiles rules into a Filter. Rules without any condition are
// ignored, so an empty inclusion rule does not turn the filter into an
// allow-list that rejects everything.
func New(rules []model.FilterRule) *Filter {
	f := &Filter{}
	for _, r := range rules {
		if r.IsEmpty() {
			continue
		}
		compiled := compileRule(r)
		if r.Exclude {
			f.exclude = append(f.exclude, compiled)
		} else {
			f.include = append(f.include, compiled)
		}
	}
	return f
}

// IsAllowed compiles rules and checks rawURL against them.
// Callers checking many URLs should compile once with New.
func IsAllowed(rawURL string, rules []model.FilterRule) bool {
	return New(rules).Allowed(rawURL)
}

// Allowed reports whether rawURL passes the filter.
func (f *Filter) Allowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	target := newTarget(rawURL, u)

	for _, r := range f.exclude {
		if r.match(target) {
			return false
		}
	}

	if len(f.include) == 0 {
		return true
	}
	for _, r := range f.include {
		if r.match(target) {
			return true
		}
	}
	return false
}

// HasInclusions reports whether the filter acts as an allow-list.
func (f *Filter) HasInclusions() bool {
	return len(f.include) > 0
}

// target holds the pre-folded parts of a URL that rules compare against.
type target struct {
	raw  string
	full string
	host string
	path string
}

func newTarget(rawURL string, u *url.URL) target {
	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	return target{
		raw:  rawURL,
		full: fold(rawURL),
		host: fold(u.Hostname()),
		path: fold(path),
	}
}

func compileRule(r model.FilterRule) rule {
	var c rule
	for _, d := range r.Domain {
		c.domains = append(c.domains, fold(cleanDomain(d)))
	}
	for _, p := range r.PathPrefix {
		if !strings.HasPrefix(p, "/") {
			p = "/" + p
		}
		c.prefixes = append(c.prefixes, fold(p))
	}
	for _, p := range r.Regex {
		c.patterns = append(c.patterns, CompileMatcher(p))
	}
	for _, k := range r.Keywords {
		c.keywords = append(c.keywords, fold(k))
	}
	return c
}

// match reports whether any condition of the rule matches t.
func (r rule) match(t target) bool {
	for _, d := range r.domains {
		if t.host == d || strings.HasSuffix(t.host, "."+d) {
			return true
		}
	}
	for _, p := range r.prefixes {
		if strings.HasPrefix(t.path, p) {
			return true
		}
	}
	for _, m := range r.patterns {
		if m.Match(t.raw) {
			return true
		}
	}
	for _, k := range r.keywords {
		if strings.Contains(t.full, k) {
			return true
		}
	}
	return false
}

// cleanDomain accepts "example.com", ".example.com" and
// "https://example.com/" and returns the bare host name.
func cleanDomain(d string) string {
	d = strings.TrimSpace(d)
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.Trim(d, ".")
}
