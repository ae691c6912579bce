// Package crawler implements breadth-first link collection.
//
// # Architecture
//
// A crawl is driven by a Collector, which holds only configuration. Each
// call to Collector.Collect creates a private traversal holding the
// frontier queue, the visited set, the relationship graph and the error
// list, so independent crawls can run concurrently on one Collector.
//
// # Components
//
//   - Fetcher / HTTPFetcher: downloads one page and classifies failures as
//     network, http, unsupported-content-type, too-large or parse errors
//   - Extractor: parses HTML with goquery and returns anchor hrefs in
//     document order, optionally restricted to a CSS selector scope
//   - RobotsAgent: optional robots.txt checks with a per-host cache
//   - pacer: waits the politeness delay after each fetch completes
//   - aggregate: builds the CrawlResult from the final traversal state
//
// # Traversal
//
// The seed is fetched at depth 0. Every link on a fetched page is
// normalized and filtered; the (source, found) pair is recorded even when
// found was already seen, while only unseen URLs are added to the collected
// list and, if depth+1 does not exceed the maximum depth, to the frontier.
// The seed itself is never part of the collected list.
//
// Fetches are strictly sequential. A failing page is recorded and the
// crawl continues with the next frontier entry.
//
// # Usage
//
//	fetcher, err := crawler.NewHTTPFetcher(crawler.FetcherOptions{})
//	if err != nil {
//		return err
//	}
//	c := crawler.NewCollector(fetcher,
//		crawler.WithMaxDepth(2),
//		crawler.WithDelay(time.Second),
//		crawler.WithSelector("main"),
//	)
//	result, err := c.Collect(ctx, "https://example.com/docs/")
package crawler
