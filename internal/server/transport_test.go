package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/linkcollector/internal/model"
)

// stubFetcher serves HTML pages from memory.
type stubFetcher struct {
	pages map[string]string
	block bool
}

func (s *stubFetcher) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
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
		StatusCode:  http.StatusOK,
		ContentType: "text/html",
		HTML:        html,
	}, nil
}

type memorySaver struct {
	mu    sync.Mutex
	saved []*model.CrawlResult
}

func (m *memorySaver) SaveCrawlResult(_ context.Context, r *model.CrawlResult) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = append(m.saved, r)
	return int64(len(m.saved)), nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testSite() *stubFetcher {
	return &stubFetcher{pages: map[string]string{
		"https://example.com/": `<html><body>
			<main><a href="/a">A</a><a href="/b">B</a></main>
			<footer><a href="/legal">Legal</a></footer>
		</body></html>`,
		"https://example.com/a": `<a href="/c">C</a>`,
		"https://example.com/b": `<p>no links</p>`,
	}}
}

func newTestMux(t *testing.T, tr *Transport) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	tr.RegisterRoutes(mux)
	return mux
}

func postCollect(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, model.CollectResponse) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/api/collectLinks", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp model.CollectResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return rec, resp
}

func TestHandleCollect_Success(t *testing.T) {
	t.Parallel()

	tr := NewTransport(testSite(), WithLogger(discardLogger()))
	tr.now = func() time.Time { return time.Date(2025, 5, 1, 9, 30, 0, 123e6, time.UTC) }

	rec, resp := postCollect(t, newTestMux(t, tr), `{"url": "https://example.com/", "options": {"delayMs": 1}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
	if !resp.Success {
		t.Fatalf("expected success, got error %q", resp.Error)
	}
	if resp.CollectedAt != "2025-05-01T09:30:00.123Z" {
		t.Errorf("expected collectedAt 2025-05-01T09:30:00.123Z, got %q", resp.CollectedAt)
	}

	want := []string{
		"https://example.com/a",
		"https://example.com/b",
		"https://example.com/legal",
		"https://example.com/c",
	}
	got := resp.Data.AllCollectedURLs
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("expected URLs %v, got %v", want, got)
	}
	if resp.Data.Stats.TotalLinks != len(want) {
		t.Errorf("expected totalLinks %d, got %d", len(want), resp.Data.Stats.TotalLinks)
	}
	if resp.Data.Stats.TotalPages != len(resp.Data.LinkRelationships) {
		t.Errorf("expected totalPages to equal relationship count %d, got %d",
			len(resp.Data.LinkRelationships), resp.Data.Stats.TotalPages)
	}
}

func TestHandleCollect_SelectorAndDepth(t *testing.T) {
	t.Parallel()

	tr := NewTransport(testSite(), WithLogger(discardLogger()))
	body := `{"url": "https://example.com/", "selector": "main", "options": {"depth": 0, "delayMs": 1}}`

	rec, resp := postCollect(t, newTestMux(t, tr), body)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	// depth 0 is the zero value and falls back to depth 1, so /a is
	// fetched and /c is collected. The footer is outside the selector.
	got := strings.Join(resp.Data.AllCollectedURLs, ",")
	if strings.Contains(got, "/legal") {
		t.Errorf("expected footer link to be excluded by selector, got %v", resp.Data.AllCollectedURLs)
	}
	if !strings.Contains(got, "https://example.com/c") {
		t.Errorf("expected depth to default to 1, got %v", resp.Data.AllCollectedURLs)
	}
}

func TestHandleCollect_BadRequests(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		body string
	}{
		{"missing url", `{"options": {}}`},
		{"blank url", `{"url": "   "}`},
		{"invalid json", `{"url":`},
		{"unsupported scheme", `{"url": "ftp://example.com/"}`},
		{"negative depth", `{"url": "https://example.com/", "options": {"depth": -1}}`},
		{"invalid selector", `{"url": "https://example.com/", "selector": "div["}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := NewTransport(testSite(), WithLogger(discardLogger()))
			rec, resp := postCollect(t, newTestMux(t, tr), tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", rec.Code)
			}
			if resp.Success {
				t.Error("expected success to be false")
			}
			if resp.Error == "" {
				t.Error("expected an error message")
			}
		})
	}
}

func TestHandleCollect_Timeout(t *testing.T) {
	t.Parallel()

	tr := NewTransport(&stubFetcher{block: true},
		WithLogger(discardLogger()),
		WithRequestTimeout(20*time.Millisecond),
	)

	rec, resp := postCollect(t, newTestMux(t, tr), `{"url": "https://example.com/"}`)
	if rec.Code != http.StatusGatewayTimeout {
		t.Errorf("expected status 504, got %d", rec.Code)
	}
	if resp.Success {
		t.Error("expected success to be false")
	}
}

func TestHandleCollect_SavesResult(t *testing.T) {
	t.Parallel()

	saver := &memorySaver{}
	tr := NewTransport(testSite(), WithLogger(discardLogger()), WithSaver(saver))

	rec, _ := postCollect(t, newTestMux(t, tr), `{"url": "https://example.com/", "options": {"delayMs": 1}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if len(saver.saved) != 1 {
		t.Fatalf("expected 1 saved result, got %d", len(saver.saved))
	}
	if saver.saved[0].InitialURL != "https://example.com/" {
		t.Errorf("expected saved seed https://example.com/, got %q", saver.saved[0].InitialURL)
	}
}

func TestHandleCollect_MethodNotAllowed(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, NewTransport(testSite(), WithLogger(discardLogger())))
	req := httptest.NewRequest(http.MethodGet, "/api/collectLinks", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	mux := newTestMux(t, NewTransport(testSite(), WithLogger(discardLogger())))
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
		t.Errorf("expected ok status body, got %q", rec.Body.String())
	}
}

func TestRequestOptions(t *testing.T) {
	t.Parallel()

	opts := requestOptions(model.CollectRequest{URL: "https://example.com/", Selector: " main "})
	if opts.Depth != model.DefaultDepth {
		t.Errorf("expected depth %d, got %d", model.DefaultDepth, opts.Depth)
	}
	if opts.DelayMs != model.DefaultDelayMs {
		t.Errorf("expected delay %d, got %d", model.DefaultDelayMs, opts.DelayMs)
	}
	if opts.MaxPages != model.DefaultMaxPages {
		t.Errorf("expected max pages %d, got %d", model.DefaultMaxPages, opts.MaxPages)
	}
	if opts.Selector != "main" {
		t.Errorf("expected selector main, got %q", opts.Selector)
	}

	explicit := requestOptions(model.CollectRequest{Options: model.CollectionOptions{Depth: 3, DelayMs: 250, Selector: "nav"}})
	if explicit.Depth != 3 || explicit.DelayMs != 250 || explicit.Selector != "nav" {
		t.Errorf("expected explicit options to be kept, got %+v", explicit)
	}
}

func TestHandler_Middleware(t *testing.T) {
	t.Parallel()

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, nil))
	h := NewTransport(testSite(), WithLogger(logger)).Handler()

	t.Run("generates request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if rec.Header().Get(RequestIDHeader) == "" {
			t.Error("expected a generated request ID")
		}
	})

	t.Run("propagates request id and logs it", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set(RequestIDHeader, "req-42")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		if got := rec.Header().Get(RequestIDHeader); got != "req-42" {
			t.Errorf("expected request ID req-42, got %q", got)
		}
		if !strings.Contains(logs.String(), `"request_id":"req-42"`) {
			t.Errorf("expected request ID in log, got %q", logs.String())
		}
		if !strings.Contains(logs.String(), `"status":200`) {
			t.Errorf("expected status in log, got %q", logs.String())
		}
	})
}

func TestRequestIDFromContext_Empty(t *testing.T) {
	t.Parallel()

	if id := RequestIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty request ID, got %q", id)
	}
}
