package config

import (
	"strings"

	"github.com/nao1215/linkcollector/internal/model"
)

// SiteConfig holds site-specific crawl settings for a single host.
type SiteConfig struct {
	// Selector overrides the CSS scope selector for this site.
	Selector string `yaml:"selector,omitempty"`

	// SelectorScope overrides whether the selector applies to the seed page
	// only or to every page.
	SelectorScope model.SelectorScope `yaml:"selectorScope,omitempty"`

	// Depth overrides the crawl depth. Zero keeps the global value.
	Depth int `yaml:"depth,omitempty"`

	// DelayMs overrides the delay between fetches. Zero keeps the global value.
	DelayMs int `yaml:"delayMs,omitempty"`

	// MaxPages overrides the page limit. Zero keeps the global value.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Filters are appended to the filters given on the command line.
	Filters []model.FilterRule `yaml:"filters,omitempty"`

	// SkipQueryURLs strips query strings when set to true.
	SkipQueryURLs *bool `yaml:"skipQueryUrls,omitempty"`

	// SkipHashURLs strips fragments when set to true and keeps them when
	// set to false.
	SkipHashURLs *bool `yaml:"skipHashUrls,omitempty"`

	// Cookie is an HTTP cookie to send to this site.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are custom HTTP headers to send to this site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// RespectRobots enables robots.txt checks for this site.
	RespectRobots bool `yaml:"respectRobots,omitempty"`
}

// File represents the structure of the .linkcollector configuration file.
type File struct {
	// Sites maps host names (e.g. "docs.example.com") to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for host, merged with defaults.
// Host matching is case-insensitive.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	result.Filters = append([]model.FilterRule(nil), cf.Defaults.Filters...)
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	site, ok := cf.lookup(host)
	if !ok {
		return result
	}

	if site.Selector != "" {
		result.Selector = site.Selector
	}
	if site.SelectorScope != "" {
		result.SelectorScope = site.SelectorScope
	}
	if site.Depth != 0 {
		result.Depth = site.Depth
	}
	if site.DelayMs != 0 {
		result.DelayMs = site.DelayMs
	}
	if site.MaxPages != 0 {
		result.MaxPages = site.MaxPages
	}
	if site.SkipQueryURLs != nil {
		result.SkipQueryURLs = site.SkipQueryURLs
	}
	if site.SkipHashURLs != nil {
		result.SkipHashURLs = site.SkipHashURLs
	}
	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.RespectRobots {
		result.RespectRobots = true
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range site.Headers {
			result.Headers[k] = v
		}
	}
	result.Filters = append(result.Filters, site.Filters...)

	return result
}

func (cf *File) lookup(host string) (SiteConfig, bool) {
	if site, ok := cf.Sites[host]; ok {
		return site, true
	}
	for name, site := range cf.Sites {
		if strings.EqualFold(name, host) {
			return site, true
		}
	}
	return SiteConfig{}, false
}

// Apply overlays the site settings on opts and returns the result.
func (s SiteConfig) Apply(opts model.CollectionOptions) model.CollectionOptions {
	if s.Selector != "" {
		opts.Selector = s.Selector
	}
	if s.SelectorScope != "" {
		opts.SelectorScope = s.SelectorScope
	}
	if s.Depth != 0 {
		opts.Depth = s.Depth
	}
	if s.DelayMs != 0 {
		opts.DelayMs = s.DelayMs
	}
	if s.MaxPages != 0 {
		opts.MaxPages = s.MaxPages
	}
	if s.SkipQueryURLs != nil {
		opts.SkipQueryURLs = *s.SkipQueryURLs
	}
	if s.SkipHashURLs != nil {
		skip := *s.SkipHashURLs
		opts.SkipHashURLs = &skip
	}
	if len(s.Filters) > 0 {
		opts.Filters = append(append([]model.FilterRule(nil), opts.Filters...), s.Filters...)
	}
	return opts
}
