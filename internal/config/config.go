package config

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"

	"github.com/nao1215/linkcollector/internal/model"
)

// Default configuration values.
const (
	// DefaultTimeout bounds a single page fetch.
	DefaultTimeout = 30 * time.Second

	// DefaultCrawlDepth fetches the seed page and the pages it links to.
	// This matches what the HTTP API has always applied when a request
	// leaves depth unset.
	DefaultCrawlDepth = model.DefaultDepth

	// DefaultCrawlDelay is the politeness delay between two fetches.
	DefaultCrawlDelay = time.Duration(model.DefaultDelayMs) * time.Millisecond

	// DefaultMaxPages caps the fetch attempts of a single crawl so that
	// sites generating endless URLs cannot keep a crawl alive forever.
	DefaultMaxPages = model.DefaultMaxPages

	// DefaultBatchSize is the number of seeds crawled concurrently.
	// Crawls of different seeds are independent; each one stays sequential.
	DefaultBatchSize = 4

	// AppName is the application name used for XDG directory paths.
	AppName = "linkcollector"

	// DefaultUserAgent identifies linkcollector in HTTP requests.
	DefaultUserAgent = "LinkCollector/1.0 (+https://github.com/nao1215/linkcollector)"

	// DefaultMaxBodySize limits the response body read per page.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultListenAddr is the address the API server listens on.
	DefaultListenAddr = ":7071"

	// DefaultRequestTimeout bounds a crawl started through the API.
	// Long crawls are cancelled and return what was collected so far.
	DefaultRequestTimeout = 5 * time.Minute

	// DefaultListSeparator separates URLs in list output.
	DefaultListSeparator = "newline"
)

// Config holds all configuration options for linkcollector.
// It is populated from CLI flags and passed explicitly to the components
// that need it.
type Config struct {
	// Timeout is the timeout for a single HTTP request.
	Timeout time.Duration

	// CrawlDepth is the maximum number of link hops from the seed.
	// Depth 0 fetches only the seed page but still collects its links.
	CrawlDepth int

	// MaxPages limits the fetch attempts per crawl. 0 disables the limit.
	MaxPages int

	// CrawlDelay is the delay between the completion of one fetch and the
	// start of the next.
	CrawlDelay time.Duration

	// RateLimit optionally caps requests per second in addition to
	// CrawlDelay. 0 disables it.
	RateLimit float64

	// BatchSize is the number of seeds crawled concurrently.
	BatchSize int

	// UserAgent is the User-Agent header sent with HTTP requests.
	UserAgent string

	// MaxBodySize is the maximum response body size in bytes to read.
	MaxBodySize int64

	// ProxyURL routes requests through an HTTP or SOCKS5 proxy.
	ProxyURL string

	// Selector restricts link extraction to elements matching this CSS
	// selector.
	Selector string

	// SelectorScope decides whether Selector applies to the seed page only
	// ("seed") or to every page ("all").
	SelectorScope model.SelectorScope

	// Filters are the inclusion and exclusion rules built from flags.
	// Rules from the configuration file are appended per site.
	Filters []model.FilterRule

	// SkipQueryURLs strips query strings from discovered URLs.
	SkipQueryURLs bool

	// SkipHashURLs strips fragments from discovered URLs.
	SkipHashURLs bool

	// RespectRobots enables robots.txt checks.
	RespectRobots bool

	// Verbose enables debug logging.
	Verbose bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .linkcollector is searched in the current directory and
	// then in the home directory.
	ConfigFilePath string

	// SiteConfigs holds the per-site settings loaded from the config file.
	SiteConfigs *File

	// JSONReport selects JSON output.
	JSONReport bool

	// MarkdownReport selects Markdown output.
	MarkdownReport bool

	// ListReport selects plain URL list output.
	ListReport bool

	// ListSeparator is "newline" or "space" for list output.
	ListSeparator string

	// IncludeSource adds the page each URL was first found on to list output.
	IncludeSource bool

	// IncludeTitle adds the page title of each URL to list output when the
	// page was scanned.
	IncludeTitle bool

	// ExcludePatterns removes matching URLs from the printed report.
	// Each pattern is a regular expression or, if it does not compile, a
	// substring. The crawl itself is unaffected.
	ExcludePatterns []string

	// ReportFile is the output file path for the report.
	ReportFile string

	// Targets are the seed URLs to crawl.
	Targets []string

	// DBDir is the directory of the SQLite history database.
	DBDir string

	// SaveToDB stores crawl results in the history database.
	SaveToDB bool

	// ListenAddr is the address the API server listens on.
	ListenAddr string

	// RequestTimeout bounds crawls started through the API.
	RequestTimeout time.Duration
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Timeout:        DefaultTimeout,
		CrawlDepth:     DefaultCrawlDepth,
		MaxPages:       DefaultMaxPages,
		CrawlDelay:     DefaultCrawlDelay,
		BatchSize:      DefaultBatchSize,
		UserAgent:      DefaultUserAgent,
		MaxBodySize:    DefaultMaxBodySize,
		SelectorScope:  model.SelectorScopeSeed,
		SkipHashURLs:   true,
		ListSeparator:  DefaultListSeparator,
		DBDir:          XDGDataDir(),
		SaveToDB:       true,
		ListenAddr:     DefaultListenAddr,
		RequestTimeout: DefaultRequestTimeout,
	}
}

// XDGDataDir returns the XDG data directory for linkcollector.
// On Linux: ~/.local/share/linkcollector
// On macOS: ~/Library/Application Support/linkcollector
// On Windows: %LOCALAPPDATA%\linkcollector
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for linkcollector.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks the configuration used by the collect command and
// returns the first problem found.
func (c *Config) Validate() error {
	if len(c.Targets) == 0 {
		return ErrNoTarget
	}
	if err := c.validateCrawl(); err != nil {
		return err
	}
	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	formats := 0
	for _, on := range []bool{c.JSONReport, c.MarkdownReport, c.ListReport} {
		if on {
			formats++
		}
	}
	if formats > 1 {
		return ErrConflictingReportFormats
	}

	if _, err := ParseSeparator(c.ListSeparator); err != nil {
		return err
	}
	return nil
}

// ValidateServer checks the configuration used by the serve command.
func (c *Config) ValidateServer() error {
	if strings.TrimSpace(c.ListenAddr) == "" {
		return ErrNoListenAddr
	}
	if c.RequestTimeout <= 0 {
		return ErrInvalidRequestTimeout
	}
	return c.validateCrawl()
}

// validateCrawl checks the settings shared by every command that crawls.
func (c *Config) validateCrawl() error {
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.CrawlDepth < 0 {
		return ErrInvalidDepth
	}
	if c.MaxPages < 0 {
		return ErrInvalidMaxPages
	}
	if c.CrawlDelay < 0 {
		return ErrInvalidCrawlDelay
	}
	if c.RateLimit < 0 {
		return ErrInvalidRateLimit
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if !c.SelectorScope.Valid() {
		return ErrInvalidSelectorScope
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			return ErrInvalidProxyURL
		}
	}
	return nil
}

// CollectionOptionsFor returns the crawl options for seed, merging the
// global settings with the configuration file entry for the seed's host.
func (c *Config) CollectionOptionsFor(seed string) model.CollectionOptions {
	skipHash := c.SkipHashURLs
	opts := model.CollectionOptions{
		Selector:      c.Selector,
		SelectorScope: c.SelectorScope,
		Depth:         c.CrawlDepth,
		DelayMs:       int(c.CrawlDelay / time.Millisecond),
		Filters:       append([]model.FilterRule(nil), c.Filters...),
		SkipQueryURLs: c.SkipQueryURLs,
		SkipHashURLs:  &skipHash,
		MaxPages:      c.MaxPages,
	}

	if c.SiteConfigs == nil {
		return opts
	}
	return c.SiteConfigs.GetSiteConfig(HostOf(seed)).Apply(opts)
}

// SiteFor returns the configuration file entry for seed's host.
func (c *Config) SiteFor(seed string) SiteConfig {
	if c.SiteConfigs == nil {
		return SiteConfig{}
	}
	return c.SiteConfigs.GetSiteConfig(HostOf(seed))
}

// HostOf returns the lowercased host of rawURL, or "" if it has none.
func HostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// Separator is the delimiter used between URLs in list output.
type Separator string

const (
	// SeparatorNewline puts one URL per line.
	SeparatorNewline Separator = "newline"

	// SeparatorSpace puts all URLs on one line separated by spaces.
	SeparatorSpace Separator = "space"
)

// String returns the literal delimiter.
func (s Separator) String() string {
	if s == SeparatorSpace {
		return " "
	}
	return "\n"
}

// ParseSeparator converts a flag value into a Separator. The empty string
// means SeparatorNewline.
func ParseSeparator(s string) (Separator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "newline", "line", "lines":
		return SeparatorNewline, nil
	case "space", "spaces":
		return SeparatorSpace, nil
	default:
		return "", ErrInvalidSeparator
	}
}
