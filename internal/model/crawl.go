package model

import (
	"fmt"
	"time"
)

// FrontierEntry is a URL queued for fetching.
type FrontierEntry struct {
	// URL is the normalized absolute URL.
	URL string

	// Depth is the number of link hops from the seed. The seed has depth 0.
	Depth int

	// DiscoveredFrom is the page that linked to URL. Empty for the seed.
	DiscoveredFrom string
}

// LinkRelationship records that Found was discovered as a link on Source.
type LinkRelationship struct {
	Source string `json:"source"`
	Found  string `json:"found"`
}

// ErrorType classifies a per-page failure.
type ErrorType string

const (
	// ErrorTypeNetwork covers DNS failures, refused connections and timeouts.
	ErrorTypeNetwork ErrorType = "network"

	// ErrorTypeHTTP is a response with a non-2xx status code.
	ErrorTypeHTTP ErrorType = "http"

	// ErrorTypeUnsupportedContentType is a response that is not HTML.
	ErrorTypeUnsupportedContentType ErrorType = "unsupported-content-type"

	// ErrorTypeTooLarge is a response body over the configured size limit.
	ErrorTypeTooLarge ErrorType = "too-large"

	// ErrorTypeParse is a body that could not be decoded or parsed.
	ErrorTypeParse ErrorType = "parse"

	// ErrorTypeRobots is a URL disallowed by the site's robots.txt.
	// Only produced when robots.txt support is enabled.
	ErrorTypeRobots ErrorType = "robots"
)

// String returns the wire name of the error type.
func (t ErrorType) String() string {
	return string(t)
}

// ErrorTypes returns every known error type in display order.
func ErrorTypes() []ErrorType {
	return []ErrorType{
		ErrorTypeNetwork,
		ErrorTypeHTTP,
		ErrorTypeUnsupportedContentType,
		ErrorTypeTooLarge,
		ErrorTypeParse,
		ErrorTypeRobots,
	}
}

// CrawlError is a non-fatal failure recorded for a single URL.
type CrawlError struct {
	URL       string    `json:"url"`
	ErrorType ErrorType `json:"errorType"`
	Message   string    `json:"message"`
}

// Error implements the error interface so a CrawlError can be logged or
// wrapped like any other error.
func (e CrawlError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.ErrorType, e.URL, e.Message)
}

// CrawlStatus is the terminal state of a crawl.
type CrawlStatus string

const (
	// CrawlStatusCompleted means the frontier was exhausted or the page
	// limit was reached.
	CrawlStatusCompleted CrawlStatus = "completed"

	// CrawlStatusCancelled means the context was cancelled and the result
	// holds everything collected up to that point.
	CrawlStatusCancelled CrawlStatus = "cancelled"

	// CrawlStatusFailed means the crawl never started because of a
	// configuration error.
	CrawlStatusFailed CrawlStatus = "failed"
)

// CrawlStats summarizes a finished crawl.
type CrawlStats struct {
	StartTime  time.Time `json:"startTime"`
	EndTime    time.Time `json:"endTime"`
	DurationMs int64     `json:"durationMs"`

	// TotalURLsScanned is the number of pages fetched and parsed successfully.
	TotalURLsScanned int `json:"totalUrlsScanned"`

	// TotalURLsCollected is the number of raw link occurrences extracted
	// from scanned pages, before normalization and deduplication.
	TotalURLsCollected int `json:"totalUrlsCollected"`

	// UniqueLinks is the number of distinct URLs in AllCollectedURLs.
	UniqueLinks int `json:"uniqueLinks"`

	// MaxDepthReached is the highest depth of any successfully scanned page.
	MaxDepthReached int `json:"maxDepthReached"`
}

// CrawlResult is the terminal output of a crawl.
type CrawlResult struct {
	// ID identifies the crawl. It is assigned by the collector and used as
	// the key in the history database.
	ID string `json:"id,omitempty"`

	// InitialURL is the normalized seed URL.
	InitialURL string `json:"initialUrl"`

	// Depth is the configured maximum depth.
	Depth int `json:"depth"`

	// Status is the terminal state of the crawl.
	Status CrawlStatus `json:"status"`

	// Truncated is true when the crawl stopped at the page limit with URLs
	// still in the frontier.
	Truncated bool `json:"truncated,omitempty"`

	// AllCollectedURLs holds every discovered URL in first-discovery order,
	// deduplicated and excluding the seed.
	AllCollectedURLs []string `json:"allCollectedUrls"`

	// LinkRelationships holds one entry per distinct (source, found) pair.
	LinkRelationships []LinkRelationship `json:"linkRelationships"`

	// Errors holds the per-page failures in the order they occurred.
	Errors []CrawlError `json:"errors"`

	// PageTitles maps each scanned page to its document title.
	PageTitles map[string]string `json:"pageTitles,omitempty"`

	// PageHashes maps each scanned page to the SHA-256 of its HTML.
	// History comparisons use it to report pages whose content changed.
	PageHashes map[string]string `json:"pageHashes,omitempty"`

	Stats CrawlStats `json:"stats"`
}

// ChangedPages returns the pages scanned by both r and previous whose
// content hash differs, in r's collection order with the seed first.
func (r *CrawlResult) ChangedPages(previous *CrawlResult) []string {
	changed := []string{}
	if previous == nil {
		return changed
	}
	check := func(u string) {
		cur, ok := r.PageHashes[u]
		if !ok {
			return
		}
		if prev, ok := previous.PageHashes[u]; ok && prev != cur {
			changed = append(changed, u)
		}
	}
	check(r.InitialURL)
	for _, u := range r.AllCollectedURLs {
		if u != r.InitialURL {
			check(u)
		}
	}
	return changed
}

// ErrorCounts returns the number of errors per error type.
func (r *CrawlResult) ErrorCounts() map[ErrorType]int {
	counts := make(map[ErrorType]int)
	for _, e := range r.Errors {
		counts[e.ErrorType]++
	}
	return counts
}

// SourcesOf returns the pages on which found was discovered, in the order
// the relationships were recorded.
func (r *CrawlResult) SourcesOf(found string) []string {
	var sources []string
	for _, rel := range r.LinkRelationships {
		if rel.Found == found {
			sources = append(sources, rel.Source)
		}
	}
	return sources
}

// FirstSources maps every collected URL to the page it was first found on.
func (r *CrawlResult) FirstSources() map[string]string {
	first := make(map[string]string, len(r.AllCollectedURLs))
	for _, rel := range r.LinkRelationships {
		if _, ok := first[rel.Found]; !ok {
			first[rel.Found] = rel.Source
		}
	}
	return first
}
