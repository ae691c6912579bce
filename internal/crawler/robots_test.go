package crawler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/nao1215/linkcollector/internal/model"
)

func newRobotsServer(t *testing.T, robots string, hits *atomic.Int32) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		if hits != nil {
			hits.Add(1)
		}
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte(robots)) //nolint:errcheck // Test server response
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<a href="/private/x">private</a><a href="/public">public</a>`)) //nolint:errcheck // Test server response
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestRobotsAgent_Allowed(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	server := newRobotsServer(t, "User-agent: *\nDisallow: /private\n", &hits)

	agent := NewRobotsAgent(server.Client(), "TestBot")
	ctx := context.Background()

	if agent.Allowed(ctx, server.URL+"/private/x") {
		t.Error("expected /private/x to be disallowed")
	}
	if !agent.Allowed(ctx, server.URL+"/public") {
		t.Error("expected /public to be allowed")
	}
	if hits.Load() != 1 {
		t.Errorf("expected robots.txt to be fetched once, got %d", hits.Load())
	}

	agent.Purge(server.Listener.Addr().String())
	agent.Allowed(ctx, server.URL+"/public")
	if hits.Load() != 2 {
		t.Errorf("expected robots.txt to be refetched after purge, got %d", hits.Load())
	}
}

func TestRobotsAgent_MissingRobotsAllowsAll(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	agent := NewRobotsAgent(server.Client(), "")
	if !agent.Allowed(context.Background(), server.URL+"/anything") {
		t.Error("expected missing robots.txt to allow everything")
	}
	if agent.Allowed(context.Background(), "/relative") {
		t.Error("expected relative URL to be rejected")
	}
}

func TestCollector_WithRobots(t *testing.T) {
	t.Parallel()

	server := newRobotsServer(t, "User-agent: *\nDisallow: /private\n", nil)

	fetcher := NewHTTPFetcherWithClient(server.Client(), FetcherOptions{})
	c := NewCollector(fetcher,
		WithMaxDepth(1),
		WithDelay(0),
		WithRobots(NewRobotsAgent(server.Client(), "TestBot")),
		WithLogger(discardLogger()),
	)

	result, err := c.Collect(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := result.ErrorCounts()
	if counts[model.ErrorTypeRobots] != 1 {
		t.Fatalf("expected 1 robots error, got %v", result.Errors)
	}
	if result.Errors[0].URL != server.URL+"/private/x" {
		t.Errorf("unexpected blocked URL %q", result.Errors[0].URL)
	}
	if !contains(result.AllCollectedURLs, server.URL+"/private/x") {
		t.Error("expected blocked URL to remain in the collected list")
	}
}
