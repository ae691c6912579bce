// Package model defines the data structures shared by every stage of a
// link collection crawl.
//
// This package contains the following main types:
//   - CollectionOptions: caller-facing options for one crawl
//   - FilterRule: an inclusion or exclusion rule applied to discovered URLs
//   - FrontierEntry: a URL waiting to be fetched, with its depth
//   - Page: the decoded HTML document returned by the fetcher
//   - LinkRelationship: a (source, found) discovery edge
//   - CrawlError: a non-fatal per-page failure
//   - CrawlResult and CrawlStats: the terminal output of a crawl
//   - CollectResponse: the JSON envelope returned by the HTTP API
//
// Models live in their own package so that crawler, database, report and
// server can share them without import cycles. JSON field names follow the
// camelCase wire format consumed by existing API clients.
package model
