package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate and Config.ValidateServer
// so that callers can match them with errors.Is.
var (
	// ErrNoTarget is returned when no seed URL is specified.
	ErrNoTarget = errors.New("no target specified: provide at least one URL")

	// ErrInvalidTimeout is returned when the timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDepth is returned when the depth is negative.
	ErrInvalidDepth = errors.New("invalid depth: must be non-negative")

	// ErrInvalidMaxPages is returned when the page limit is negative.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when more than one of --json,
	// --markdown and --list is specified.
	ErrConflictingReportFormats = errors.New("conflicting report formats: use only one of --json, --markdown and --list")

	// ErrInvalidCrawlDelay is returned when the crawl delay is negative.
	ErrInvalidCrawlDelay = errors.New("invalid crawl delay: must be non-negative")

	// ErrInvalidRateLimit is returned when the rate limit is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidSelectorScope is returned for a scope other than seed or all.
	ErrInvalidSelectorScope = errors.New("invalid selector scope: must be \"seed\" or \"all\"")

	// ErrInvalidSeparator is returned for a list separator other than
	// newline or space.
	ErrInvalidSeparator = errors.New("invalid separator: must be \"newline\" or \"space\"")

	// ErrInvalidProxyURL is returned when the proxy URL cannot be parsed.
	ErrInvalidProxyURL = errors.New("invalid proxy URL")

	// ErrNoListenAddr is returned when the server has no listen address.
	ErrNoListenAddr = errors.New("no listen address specified")

	// ErrInvalidRequestTimeout is returned when the API crawl timeout is not
	// positive.
	ErrInvalidRequestTimeout = errors.New("invalid request timeout: must be positive")
)
