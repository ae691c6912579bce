package crawler

import (
	"context"
	"time"

	"github.com/nao1215/linkcollector/internal/model"
	"github.com/nao1215/linkcollector/internal/urlfilter"
)

// state is the lifecycle of a traversal.
type state int

const (
	stateIdle state = iota
	stateRunning
	stateCompleted
	stateCancelled
)

// traversal is the mutable state of exactly one crawl. It is created by
// Collect, owned by a single goroutine and discarded once the result has
// been aggregated.
type traversal struct {
	c          *Collector
	id         string
	seed       string
	extractor  *Extractor
	filter     *urlfilter.Filter
	normalizer urlfilter.Normalizer
	pacer      *pacer
	state      state

	// frontier is a FIFO queue; head is the index of the next entry.
	frontier []model.FrontierEntry
	head     int

	// visited holds the seed and every discovered URL, whether or not the
	// depth bound let it be enqueued. A URL enters it at most once.
	visited map[string]struct{}

	// seedAliases are the URLs the seed redirected to.
	seedAliases []string

	// redirected holds the URLs earlier fetches ended on after redirects.
	// Frontier entries for them are not fetched again.
	redirected map[string]struct{}

	// collected lists discovered URLs in first-discovery order.
	collected []string

	relationships []model.LinkRelationship
	pairs         map[model.LinkRelationship]struct{}

	errors []model.CrawlError

	// titles maps scanned page URLs to their <title>.
	titles map[string]string

	// hashes maps scanned page URLs to the hash of their HTML.
	hashes map[string]string

	scanned         int
	rawLinks        int
	attempts        int
	maxDepthReached int
	truncated       bool

	startTime time.Time
	endTime   time.Time
}

// newTraversal validates the configuration and seed and returns an idle
// traversal. Nothing is fetched.
func (c *Collector) newTraversal(seed string) (*traversal, error) {
	if err := c.validate(); err != nil {
		return nil, err
	}
	normalizedSeed, err := c.normalizeSeed(seed)
	if err != nil {
		return nil, err
	}
	extractor, err := NewExtractor(c.selector)
	if err != nil {
		return nil, err
	}

	t := &traversal{
		c:          c,
		id:         newID(),
		seed:       normalizedSeed,
		extractor:  extractor,
		filter:     urlfilter.New(c.filters),
		normalizer: urlfilter.NewNormalizer(c.normalize),
		pacer:      newPacer(c.delay, c.ratePerSecond),
		state:      stateIdle,
		visited:    map[string]struct{}{normalizedSeed: {}},
		pairs:      make(map[model.LinkRelationship]struct{}),
		titles:     make(map[string]string),
		hashes:     make(map[string]string),
		redirected: make(map[string]struct{}),
	}
	t.frontier = append(t.frontier, model.FrontierEntry{URL: normalizedSeed, Depth: 0})
	return t, nil
}

// run drains the frontier. It returns a non-nil error only when ctx is
// cancelled; the traversal state is complete up to that point either way.
func (t *traversal) run(ctx context.Context) error {
	t.state = stateRunning
	t.startTime = time.Now()
	defer func() {
		t.endTime = time.Now()
	}()

	for t.head < len(t.frontier) {
		if err := ctx.Err(); err != nil {
			t.state = stateCancelled
			return err
		}

		entry := t.frontier[t.head]
		t.head++

		if entry.Depth > t.c.maxDepth {
			continue
		}
		if _, done := t.redirected[entry.URL]; done {
			continue
		}
		if t.c.maxPages > 0 && t.attempts >= t.c.maxPages {
			t.truncated = true
			t.c.logger.Warn("page limit reached",
				"crawl_id", t.id,
				"max_pages", t.c.maxPages,
				"pending", len(t.frontier)-t.head+1,
			)
			break
		}
		if t.c.robots != nil && !t.c.robots.Allowed(ctx, entry.URL) {
			t.recordError(model.CrawlError{
				URL:       entry.URL,
				ErrorType: model.ErrorTypeRobots,
				Message:   "disallowed by robots.txt",
			})
			continue
		}

		if err := t.pacer.Wait(ctx); err != nil {
			t.state = stateCancelled
			return err
		}

		t.attempts++
		page, err := t.c.fetcher.Fetch(ctx, entry.URL)
		t.pacer.Done()

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				t.state = stateCancelled
				return ctxErr
			}
			t.recordError(toCrawlError(entry.URL, err))
			t.notify(entry, false)
			continue
		}

		t.scan(entry, page)
		t.notify(entry, true)
	}

	t.state = stateCompleted
	return nil
}

func (t *traversal) notify(entry model.FrontierEntry, ok bool) {
	if t.c.progress == nil {
		return
	}
	t.c.progress(Progress{
		CrawlID:   t.id,
		URL:       entry.URL,
		Depth:     entry.Depth,
		OK:        ok,
		Scanned:   t.scanned,
		Errors:    len(t.errors),
		Collected: len(t.collected),
		Queued:    len(t.frontier) - t.head,
	})
}

// scan extracts the links of a fetched page and feeds them to the frontier.
func (t *traversal) scan(entry model.FrontierEntry, page *model.Page) {
	t.markRedirect(entry, page)

	scoped := t.c.selectorScope == model.SelectorScopeAll || entry.Depth == 0
	doc, err := t.extractor.Extract(page.HTML, scoped)
	if err != nil {
		t.recordError(model.CrawlError{
			URL:       entry.URL,
			ErrorType: model.ErrorTypeParse,
			Message:   err.Error(),
		})
		return
	}

	t.scanned++
	t.rawLinks += len(doc.Links)
	if doc.Title != "" {
		t.titles[entry.URL] = doc.Title
	}
	if page.Hash != "" {
		t.hashes[entry.URL] = page.Hash
	}
	if entry.Depth > t.maxDepthReached {
		t.maxDepthReached = entry.Depth
	}

	base := page.BaseURL()
	if doc.BaseHref != "" {
		if resolved, ok := urlfilter.Normalize(doc.BaseHref, base, urlfilter.Options{}); ok {
			base = resolved
		}
	}

	for _, raw := range doc.Links {
		found, ok := t.normalizer.Normalize(raw, base)
		if !ok {
			continue
		}
		if !t.filter.Allowed(found) {
			continue
		}
		t.discover(entry, found)
	}

	t.c.logger.Debug("page scanned",
		"crawl_id", t.id,
		"url", entry.URL,
		"depth", entry.Depth,
		"links", len(doc.Links),
		"queued", len(t.frontier)-t.head,
	)
}

// discover records that found was linked from entry and enqueues it the
// first time it is seen.
func (t *traversal) discover(entry model.FrontierEntry, found string) {
	t.addRelationship(entry.URL, found)

	if _, seen := t.visited[found]; seen {
		return
	}
	t.visited[found] = struct{}{}

	if t.isSeed(found) {
		return
	}
	t.collected = append(t.collected, found)

	if entry.Depth+1 <= t.c.maxDepth {
		t.frontier = append(t.frontier, model.FrontierEntry{
			URL:            found,
			Depth:          entry.Depth + 1,
			DiscoveredFrom: entry.URL,
		})
	}
}

// markRedirect records the URL a fetch ended on as visited, so the page is
// neither collected again nor fetched twice when other pages link to it.
func (t *traversal) markRedirect(entry model.FrontierEntry, page *model.Page) {
	if page.FinalURL == "" || page.FinalURL == entry.URL {
		return
	}
	final, ok := t.normalizer.Normalize(page.FinalURL, "")
	if !ok || final == entry.URL {
		return
	}
	t.visited[final] = struct{}{}
	t.redirected[final] = struct{}{}
	if entry.Depth == 0 {
		t.seedAliases = append(t.seedAliases, final)
	}
}

// isSeed reports whether u is the seed, a variant of it such as a trailing
// slash, or a variant of the page the seed redirected to.
func (t *traversal) isSeed(u string) bool {
	if urlfilter.IsTargetURL(u, t.seed) {
		return true
	}
	for _, alias := range t.seedAliases {
		if urlfilter.IsTargetURL(u, alias) {
			return true
		}
	}
	return false
}

func (t *traversal) addRelationship(source, found string) {
	rel := model.LinkRelationship{Source: source, Found: found}
	if _, dup := t.pairs[rel]; dup {
		return
	}
	t.pairs[rel] = struct{}{}
	t.relationships = append(t.relationships, rel)
}

func (t *traversal) recordError(ce model.CrawlError) {
	t.errors = append(t.errors, ce)
	t.c.logger.Warn("fetch failed",
		"crawl_id", t.id,
		"url", ce.URL,
		"error_type", ce.ErrorType,
		"error", ce.Message,
	)
}

// status maps the traversal state to the public crawl status.
func (t *traversal) status() model.CrawlStatus {
	switch t.state {
	case stateCompleted:
		return model.CrawlStatusCompleted
	case stateCancelled, stateRunning:
		// A traversal left running was interrupted mid-crawl.
		return model.CrawlStatusCancelled
	default:
		return model.CrawlStatusFailed
	}
}
