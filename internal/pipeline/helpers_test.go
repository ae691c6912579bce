package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/nao1215/linkcollector/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// staticSite serves HTML pages from memory.
type staticSite struct {
	pages map[string]string

	// block, when set, makes every fetch wait for ctx to end.
	block bool

	mu    sync.Mutex
	calls int
}

func (s *staticSite) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	html, ok := s.pages[rawURL]
	if !ok {
		return nil, errors.New("connection refused")
	}
	return &model.Page{
		URL:         rawURL,
		FinalURL:    rawURL,
		StatusCode:  200,
		ContentType: "text/html",
		HTML:        html,
	}, nil
}

// memorySaver records saved results.
type memorySaver struct {
	mu      sync.Mutex
	saved   []*model.CrawlResult
	failing bool
}

func (m *memorySaver) SaveCrawlResult(_ context.Context, r *model.CrawlResult) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failing {
		return 0, errors.New("disk full")
	}
	// Saved results are copied so later steps cannot change them.
	cp := *r
	cp.AllCollectedURLs = append([]string(nil), r.AllCollectedURLs...)
	m.saved = append(m.saved, &cp)
	return int64(len(m.saved)), nil
}

// recordingStep is a Step that records its calls.
type recordingStep struct {
	name string
	err  error

	mu   sync.Mutex
	seen []string
}

func (s *recordingStep) Name() string { return s.name }

func (s *recordingStep) Do(_ context.Context, job *Job) error {
	s.mu.Lock()
	s.seen = append(s.seen, job.Seed)
	s.mu.Unlock()
	return s.err
}

func quickOptions(depth int) model.CollectionOptions {
	opts := model.NewCollectionOptions()
	opts.Depth = depth
	opts.DelayMs = 0
	return opts
}

func joined(ss []string) string {
	return strings.Join(ss, ",")
}
