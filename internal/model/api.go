package model

import "time"

// isoTimestamp is the millisecond UTC layout API clients parse collectedAt with.
const isoTimestamp = "2006-01-02T15:04:05.000Z"

// CollectRequest is the body of a link collection API call.
type CollectRequest struct {
	URL      string            `json:"url"`
	Selector string            `json:"selector,omitempty"`
	Options  CollectionOptions `json:"options"`
}

// Summary holds the statistics returned by the API.
type Summary struct {
	// TotalPages is the number of recorded link relationships.
	// API clients have always received this value under this name.
	TotalPages int `json:"totalPages"`

	// TotalLinks is the number of collected URLs.
	TotalLinks int `json:"totalLinks"`

	// UniqueLinks is the number of distinct collected URLs.
	UniqueLinks int `json:"uniqueLinks"`

	// ProcessingTime is the crawl duration in milliseconds.
	ProcessingTime int64 `json:"processingTime"`
}

// Summary derives the API statistics from the result.
func (r *CrawlResult) Summary() Summary {
	unique := make(map[string]struct{}, len(r.AllCollectedURLs))
	for _, u := range r.AllCollectedURLs {
		unique[u] = struct{}{}
	}
	return Summary{
		TotalPages:     len(r.LinkRelationships),
		TotalLinks:     len(r.AllCollectedURLs),
		UniqueLinks:    len(unique),
		ProcessingTime: r.Stats.DurationMs,
	}
}

// CollectData is the payload of a successful API response.
type CollectData struct {
	AllCollectedURLs  []string           `json:"allCollectedUrls"`
	LinkRelationships []LinkRelationship `json:"linkRelationships"`
	Errors            []CrawlError       `json:"errors,omitempty"`
	Stats             Summary            `json:"stats"`
}

// CollectResponse is the JSON envelope returned by the API.
// Data and CollectedAt are set on success, Error on failure.
type CollectResponse struct {
	Success     bool         `json:"success"`
	Data        *CollectData `json:"data,omitempty"`
	Error       string       `json:"error,omitempty"`
	CollectedAt string       `json:"collectedAt,omitempty"`
}

// NewCollectResponse wraps a crawl result in a success envelope.
func NewCollectResponse(r *CrawlResult, collectedAt time.Time) CollectResponse {
	urls := r.AllCollectedURLs
	if urls == nil {
		urls = []string{}
	}
	rels := r.LinkRelationships
	if rels == nil {
		rels = []LinkRelationship{}
	}
	return CollectResponse{
		Success: true,
		Data: &CollectData{
			AllCollectedURLs:  urls,
			LinkRelationships: rels,
			Errors:            r.Errors,
			Stats:             r.Summary(),
		},
		CollectedAt: collectedAt.UTC().Format(isoTimestamp),
	}
}

// NewErrorResponse builds a failure envelope.
func NewErrorResponse(msg string) CollectResponse {
	return CollectResponse{Success: false, Error: msg}
}
