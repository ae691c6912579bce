package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Default values applied to CollectionOptions when a field is left at its
// zero value. They mirror what the HTTP API has always applied to requests.
const (
	// DefaultDepth is the default maximum crawl depth.
	// Depth 1 fetches the seed page and the pages it links to directly.
	DefaultDepth = 1

	// DefaultDelayMs is the default wait between consecutive fetches.
	DefaultDelayMs = 1000

	// DefaultMaxPages caps the number of fetch attempts in a single crawl.
	DefaultMaxPages = 500
)

// SelectorScope controls which pages the CSS scope selector applies to.
type SelectorScope string

const (
	// SelectorScopeSeed applies the selector to the seed page only.
	// Pages fetched at depth 1 and beyond are scanned in full.
	SelectorScopeSeed SelectorScope = "seed"

	// SelectorScopeAll applies the selector to every fetched page.
	SelectorScopeAll SelectorScope = "all"
)

// Valid reports whether s is a known scope. The empty scope is valid and
// means SelectorScopeSeed.
func (s SelectorScope) Valid() bool {
	switch s {
	case "", SelectorScopeSeed, SelectorScopeAll:
		return true
	default:
		return false
	}
}

// ParseSelectorScope converts a user supplied string into a SelectorScope.
func ParseSelectorScope(s string) (SelectorScope, error) {
	scope := SelectorScope(strings.ToLower(strings.TrimSpace(s)))
	if !scope.Valid() {
		return "", fmt.Errorf("unknown selector scope %q: must be %q or %q", s, SelectorScopeSeed, SelectorScopeAll)
	}
	if scope == "" {
		return SelectorScopeSeed, nil
	}
	return scope, nil
}

// CollectionOptions holds the options of a single crawl.
// Use NewCollectionOptions for a value populated with defaults.
type CollectionOptions struct {
	// Selector restricts link extraction to the subtree matched by this
	// CSS selector. Empty means the whole document.
	Selector string `json:"selector,omitempty" yaml:"selector,omitempty"`

	// SelectorScope decides whether Selector applies to the seed page only
	// or to every fetched page.
	SelectorScope SelectorScope `json:"selectorScope,omitempty" yaml:"selectorScope,omitempty"`

	// Depth is the maximum number of link hops from the seed to fetch.
	// Depth 0 fetches only the seed page but still collects its links.
	Depth int `json:"depth,omitempty" yaml:"depth,omitempty"`

	// DelayMs is the wait in milliseconds between the completion of one
	// fetch and the start of the next.
	DelayMs int `json:"delayMs,omitempty" yaml:"delayMs,omitempty"`

	// Filters are applied to every discovered URL after normalization.
	Filters []FilterRule `json:"filters,omitempty" yaml:"filters,omitempty"`

	// SkipQueryURLs strips the query string from discovered URLs.
	SkipQueryURLs bool `json:"skipQueryUrls,omitempty" yaml:"skipQueryUrls,omitempty"`

	// SkipHashURLs strips the fragment from discovered URLs.
	// A nil value means true, since fragments never change the fetched document.
	SkipHashURLs *bool `json:"skipHashUrls,omitempty" yaml:"skipHashUrls,omitempty"`

	// MaxPages is the global safety limit on fetch attempts.
	// Zero means DefaultMaxPages.
	MaxPages int `json:"maxPages,omitempty" yaml:"maxPages,omitempty"`

	// LogLevel is accepted for compatibility with older API clients.
	// Logging verbosity is controlled by the host process.
	LogLevel string `json:"logLevel,omitempty" yaml:"logLevel,omitempty"`
}

// NewCollectionOptions returns options populated with the default depth,
// delay and page limit.
func NewCollectionOptions() CollectionOptions {
	return CollectionOptions{
		Depth:         DefaultDepth,
		DelayMs:       DefaultDelayMs,
		MaxPages:      DefaultMaxPages,
		SelectorScope: SelectorScopeSeed,
	}
}

// Validate checks the options for configuration errors.
func (o CollectionOptions) Validate() error {
	if o.Depth < 0 {
		return fmt.Errorf("invalid depth %d: must be non-negative", o.Depth)
	}
	if o.DelayMs < 0 {
		return fmt.Errorf("invalid delayMs %d: must be non-negative", o.DelayMs)
	}
	if o.MaxPages < 0 {
		return fmt.Errorf("invalid maxPages %d: must be non-negative", o.MaxPages)
	}
	if !o.SelectorScope.Valid() {
		return fmt.Errorf("unknown selector scope %q", o.SelectorScope)
	}
	return nil
}

// SkipHash reports the effective fragment stripping policy.
func (o CollectionOptions) SkipHash() bool {
	if o.SkipHashURLs == nil {
		return true
	}
	return *o.SkipHashURLs
}

// Delay returns DelayMs as a time.Duration.
func (o CollectionOptions) Delay() time.Duration {
	return time.Duration(o.DelayMs) * time.Millisecond
}

// FilterRule is a single inclusion or exclusion rule.
// Every populated field contributes match conditions and the conditions are
// OR'd together: a URL matches the rule when any one of them matches.
type FilterRule struct {
	// Domain matches the URL host or any of its subdomains.
	Domain StringList `json:"domain,omitempty" yaml:"domain,omitempty"`

	// PathPrefix matches URLs whose path starts with one of the prefixes.
	PathPrefix StringList `json:"pathPrefix,omitempty" yaml:"pathPrefix,omitempty"`

	// Regex matches the full URL against a regular expression. A pattern
	// that does not compile is matched as a plain substring instead.
	Regex StringList `json:"regex,omitempty" yaml:"regex,omitempty"`

	// Keywords matches URLs containing one of the keywords.
	Keywords StringList `json:"keywords,omitempty" yaml:"keywords,omitempty"`

	// Exclude turns the rule into an exclusion rule.
	// Rules are inclusion rules by default.
	Exclude bool `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// IsEmpty reports whether the rule has no match conditions at all.
func (r FilterRule) IsEmpty() bool {
	return len(r.Domain) == 0 && len(r.PathPrefix) == 0 && len(r.Regex) == 0 && len(r.Keywords) == 0
}

// StringList is a list of strings that also accepts a single string when
// decoded from JSON or YAML, so that both {"domain": "a.com"} and
// {"domain": ["a.com", "b.com"]} are valid.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*l = compactStrings([]string{single})
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("expected a string or an array of strings: %w", err)
	}
	*l = compactStrings(many)
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *StringList) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		*l = compactStrings([]string{value.Value})
		return nil
	case yaml.SequenceNode:
		var many []string
		if err := value.Decode(&many); err != nil {
			return err
		}
		*l = compactStrings(many)
		return nil
	default:
		return fmt.Errorf("line %d: expected a string or a list of strings", value.Line)
	}
}

// compactStrings trims every entry and drops the empty ones.
func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
