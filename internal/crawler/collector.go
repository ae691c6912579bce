package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/linkcollector/internal/model"
	"github.com/nao1215/linkcollector/internal/urlfilter"
)

// Collector runs breadth-first link collection crawls.
//
// A Collector only holds configuration. Each call to Collect creates its
// own traversal state, so one Collector may run any number of independent
// crawls concurrently.
type Collector struct {
	// fetcher retrieves pages. It may be shared between crawls.
	fetcher Fetcher

	// maxDepth is the deepest level that is fetched.
	// 0 fetches only the seed page, 1 also fetches the pages it links to.
	maxDepth int

	// maxPages limits the fetch attempts of a single crawl.
	// 0 disables the limit.
	maxPages int

	// delay is the pause between the completion of one fetch and the start
	// of the next.
	delay time.Duration

	// ratePerSecond optionally caps requests per second on top of delay.
	ratePerSecond float64

	// selector restricts link extraction to a part of the page.
	selector string

	// selectorScope decides which pages selector applies to.
	selectorScope model.SelectorScope

	// filters are applied to every normalized link.
	filters []model.FilterRule

	// normalize controls query and fragment stripping.
	normalize urlfilter.Options

	// robots, when set, blocks URLs disallowed by robots.txt.
	robots *RobotsAgent

	// progress is called after every fetch attempt.
	progress func(Progress)

	logger *slog.Logger
}

// Progress is a snapshot of a running crawl, reported after each fetch.
type Progress struct {
	CrawlID string
	URL     string
	Depth   int

	// OK is false when the fetch failed.
	OK bool

	Scanned   int
	Errors    int
	Collected int

	// Queued is the number of frontier entries not yet dequeued.
	Queued int
}

// Option configures a Collector.
type Option func(*Collector)

// WithMaxDepth sets the maximum crawl depth.
func WithMaxDepth(depth int) Option {
	return func(c *Collector) {
		c.maxDepth = depth
	}
}

// WithMaxPages sets the global limit on fetch attempts per crawl.
func WithMaxPages(maxPages int) Option {
	return func(c *Collector) {
		c.maxPages = maxPages
	}
}

// WithDelay sets the politeness delay between fetches.
func WithDelay(d time.Duration) Option {
	return func(c *Collector) {
		c.delay = d
	}
}

// WithRateLimit caps the number of requests per second. Zero disables it.
func WithRateLimit(perSecond float64) Option {
	return func(c *Collector) {
		c.ratePerSecond = perSecond
	}
}

// WithSelector restricts link extraction to elements matching the CSS
// selector.
func WithSelector(selector string) Option {
	return func(c *Collector) {
		c.selector = selector
	}
}

// WithSelectorScope sets which pages the selector applies to.
func WithSelectorScope(scope model.SelectorScope) Option {
	return func(c *Collector) {
		c.selectorScope = scope
	}
}

// WithFilters sets the inclusion and exclusion rules.
func WithFilters(rules []model.FilterRule) Option {
	return func(c *Collector) {
		c.filters = rules
	}
}

// WithSkipQueryURLs strips query strings from discovered URLs.
func WithSkipQueryURLs(skip bool) Option {
	return func(c *Collector) {
		c.normalize.SkipQuery = skip
	}
}

// WithSkipHashURLs strips fragments from discovered URLs.
func WithSkipHashURLs(skip bool) Option {
	return func(c *Collector) {
		c.normalize.SkipHash = skip
	}
}

// WithRobots makes the crawl honour robots.txt through agent.
func WithRobots(agent *RobotsAgent) Option {
	return func(c *Collector) {
		c.robots = agent
	}
}

// WithProgress registers fn to be called after every fetch attempt.
// fn runs on the crawling goroutine and must not block.
func WithProgress(fn func(Progress)) Option {
	return func(c *Collector) {
		c.progress = fn
	}
}

// WithLogger sets the logger for crawl events.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Collector) {
		c.logger = logger
	}
}

// OptionsFrom translates collection options into Collector options.
func OptionsFrom(opts model.CollectionOptions) []Option {
	return []Option{
		WithMaxDepth(opts.Depth),
		WithMaxPages(opts.MaxPages),
		WithDelay(opts.Delay()),
		WithSelector(opts.Selector),
		WithSelectorScope(opts.SelectorScope),
		WithFilters(opts.Filters),
		WithSkipQueryURLs(opts.SkipQueryURLs),
		WithSkipHashURLs(opts.SkipHash()),
	}
}

// NewCollector creates a Collector that fetches pages with fetcher.
// Defaults: depth 1, 500 pages, 1 second delay, selector applied to the
// seed page only, fragments stripped.
func NewCollector(fetcher Fetcher, opts ...Option) *Collector {
	c := &Collector{
		fetcher:       fetcher,
		maxDepth:      model.DefaultDepth,
		maxPages:      model.DefaultMaxPages,
		delay:         time.Duration(model.DefaultDelayMs) * time.Millisecond,
		selectorScope: model.SelectorScopeSeed,
		normalize:     urlfilter.Options{SkipHash: true},
		logger:        slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.selectorScope == "" {
		c.selectorScope = model.SelectorScopeSeed
	}
	return c
}

// Collect is the single-call form of NewCollector(...).Collect using
// collection options.
func Collect(ctx context.Context, seed string, opts model.CollectionOptions, fetcher Fetcher, extra ...Option) (*model.CrawlResult, error) {
	if opts.MaxPages == 0 {
		opts.MaxPages = model.DefaultMaxPages
	}
	all := append(OptionsFrom(opts), extra...)
	return NewCollector(fetcher, all...).Collect(ctx, seed)
}

// Collect crawls breadth-first from seed and returns the collected links.
//
// Configuration errors (an invalid seed, selector or option) are returned
// before anything is fetched, with a nil result. Per-page failures never
// stop the crawl; they are recorded in the result's Errors.
//
// If ctx is cancelled the crawl stops between fetches and Collect returns
// the partial result with Status CrawlStatusCancelled together with
// ctx.Err().
func (c *Collector) Collect(ctx context.Context, seed string) (*model.CrawlResult, error) {
	t, err := c.newTraversal(seed)
	if err != nil {
		return nil, err
	}

	c.logger.Info("crawl started",
		"crawl_id", t.id,
		"url", t.seed,
		"depth", c.maxDepth,
		"delay", c.delay,
	)

	runErr := t.run(ctx)
	result := aggregate(t)

	if runErr != nil {
		c.logger.Warn("crawl cancelled",
			"crawl_id", t.id,
			"url", t.seed,
			"scanned", result.Stats.TotalURLsScanned,
			"error", runErr,
		)
		return result, runErr
	}

	c.logger.Info("crawl completed",
		"crawl_id", t.id,
		"url", t.seed,
		"scanned", result.Stats.TotalURLsScanned,
		"collected", len(result.AllCollectedURLs),
		"errors", len(result.Errors),
		"duration_ms", result.Stats.DurationMs,
	)
	return result, nil
}

// validate checks the configuration that does not depend on the seed.
func (c *Collector) validate() error {
	if c.fetcher == nil {
		return ErrNilFetcher
	}
	if c.maxDepth < 0 {
		return fmt.Errorf("%w: depth %d must be non-negative", ErrInvalidOptions, c.maxDepth)
	}
	if c.maxPages < 0 {
		return fmt.Errorf("%w: max pages %d must be non-negative", ErrInvalidOptions, c.maxPages)
	}
	if c.delay < 0 {
		return fmt.Errorf("%w: delay %s must be non-negative", ErrInvalidOptions, c.delay)
	}
	if !c.selectorScope.Valid() {
		return fmt.Errorf("%w: unknown selector scope %q", ErrInvalidOptions, c.selectorScope)
	}
	return nil
}

// normalizeSeed validates and canonicalizes the seed URL.
func (c *Collector) normalizeSeed(seed string) (string, error) {
	if seed == "" {
		return "", fmt.Errorf("%w: empty URL", ErrInvalidSeedURL)
	}
	normalized, ok := urlfilter.Normalize(seed, "", c.normalize)
	if !ok {
		return "", fmt.Errorf("%w: %q must be an absolute http or https URL", ErrInvalidSeedURL, seed)
	}
	return normalized, nil
}

// IsConfigError reports whether err is a configuration error returned by
// Collect before the crawl started.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidSeedURL) ||
		errors.Is(err, ErrInvalidSelector) ||
		errors.Is(err, ErrInvalidOptions) ||
		errors.Is(err, ErrNilFetcher)
}

// newID returns a fresh crawl identifier.
func newID() string {
	return uuid.NewString()
}
