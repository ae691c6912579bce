package crawler

import (
	"errors"
	"fmt"

	"github.com/nao1215/linkcollector/internal/model"
)

// Configuration errors. Collect returns them before any page is fetched.
var (
	// ErrInvalidSeedURL is returned when the seed URL cannot be parsed or
	// is not an absolute http or https URL.
	ErrInvalidSeedURL = errors.New("invalid seed URL")

	// ErrInvalidSelector is returned when the scope selector is not valid CSS.
	ErrInvalidSelector = errors.New("invalid CSS selector")

	// ErrInvalidOptions is returned when collection options are out of range.
	ErrInvalidOptions = errors.New("invalid collection options")

	// ErrNilFetcher is returned when a Collector has no fetcher.
	ErrNilFetcher = errors.New("no fetcher configured")
)

// FetchError is a per-page failure returned by a Fetcher.
// The crawl records it and moves on to the next URL.
type FetchError struct {
	// URL is the URL that was requested.
	URL string

	// Type classifies the failure.
	Type model.ErrorType

	// StatusCode is the HTTP status for ErrorTypeHTTP, zero otherwise.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error returns a message suitable for a CrawlError. HTTP failures embed
// the status code, for example "HTTP 404 Not Found".
func (e *FetchError) Error() string {
	switch {
	case e.Type == model.ErrorTypeHTTP && e.StatusCode != 0:
		return fmt.Sprintf("HTTP %d %s", e.StatusCode, statusText(e.StatusCode))
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Type)
	}
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// CrawlError converts the failure into the record stored in a CrawlResult.
func (e *FetchError) CrawlError() model.CrawlError {
	return model.CrawlError{
		URL:       e.URL,
		ErrorType: e.Type,
		Message:   e.Error(),
	}
}

// toCrawlError converts any error returned by a Fetcher. Errors that are
// not a *FetchError are treated as network failures.
func toCrawlError(rawURL string, err error) model.CrawlError {
	var fe *FetchError
	if errors.As(err, &fe) {
		ce := fe.CrawlError()
		if ce.URL == "" {
			ce.URL = rawURL
		}
		return ce
	}
	return model.CrawlError{
		URL:       rawURL,
		ErrorType: model.ErrorTypeNetwork,
		Message:   err.Error(),
	}
}
