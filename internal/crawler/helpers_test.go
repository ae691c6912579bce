package crawler

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/nao1215/linkcollector/internal/model"
)

// fakeSite is an in-memory Fetcher serving a fixed set of pages.
type fakeSite struct {
	pages    map[string]string
	failures map[string]error

	// afterFetch runs after every fetch, outside the lock.
	afterFetch func(rawURL string)

	mu      sync.Mutex
	fetched []string
}

func newFakeSite(pages map[string]string) *fakeSite {
	return &fakeSite{
		pages:    pages,
		failures: make(map[string]error),
	}
}

func (s *fakeSite) Fetch(_ context.Context, rawURL string) (*model.Page, error) {
	s.mu.Lock()
	s.fetched = append(s.fetched, rawURL)
	s.mu.Unlock()

	if s.afterFetch != nil {
		defer s.afterFetch(rawURL)
	}

	if err, ok := s.failures[rawURL]; ok {
		return nil, err
	}
	html, ok := s.pages[rawURL]
	if !ok {
		return nil, &FetchError{URL: rawURL, Type: model.ErrorTypeHTTP, StatusCode: 404}
	}
	page := &model.Page{
		URL:         rawURL,
		FinalURL:    rawURL,
		StatusCode:  200,
		ContentType: "text/html",
		HTML:        html,
	}
	page.ComputeHash()
	return page, nil
}

func (s *fakeSite) fetchedURLs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.fetched))
	copy(out, s.fetched)
	return out
}

func (s *fakeSite) fetchCount(rawURL string) int {
	n := 0
	for _, u := range s.fetchedURLs() {
		if u == rawURL {
			n++
		}
	}
	return n
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func hasRelationship(rels []model.LinkRelationship, source, found string) bool {
	for _, r := range rels {
		if r.Source == source && r.Found == found {
			return true
		}
	}
	return false
}
