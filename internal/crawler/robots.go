package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsAgent evaluates robots.txt rules, caching them per host.
// It is safe for concurrent use.
type RobotsAgent struct {
	client    *http.Client
	userAgent string
	ttl       time.Duration

	mu    sync.RWMutex
	cache map[string]robotsEntry
}

type robotsEntry struct {
	fetched time.Time
	rules   *robotstxt.RobotsData
}

// defaultRobotsTTL is how long fetched rules stay cached.
const defaultRobotsTTL = 30 * time.Minute

// NewRobotsAgent creates an agent that fetches robots.txt with client and
// evaluates rules for userAgent.
func NewRobotsAgent(client *http.Client, userAgent string) *RobotsAgent {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &RobotsAgent{
		client:    client,
		userAgent: userAgent,
		ttl:       defaultRobotsTTL,
		cache:     make(map[string]robotsEntry),
	}
}

// Allowed reports whether rawURL may be fetched. Missing or broken
// robots.txt files allow everything.
func (a *RobotsAgent) Allowed(ctx context.Context, rawURL string) bool {
	target, err := url.Parse(rawURL)
	if err != nil || !target.IsAbs() {
		return false
	}

	rules, err := a.rules(ctx, target)
	if err != nil {
		return true
	}

	path := target.EscapedPath()
	if path == "" {
		path = "/"
	}
	if target.RawQuery != "" {
		path += "?" + target.RawQuery
	}
	return rules.TestAgent(path, a.userAgent)
}

func (a *RobotsAgent) rules(ctx context.Context, target *url.URL) (*robotstxt.RobotsData, error) {
	host := strings.ToLower(target.Host)

	a.mu.RLock()
	entry, ok := a.cache[host]
	a.mu.RUnlock()
	if ok && time.Since(entry.fetched) < a.ttl {
		return entry.rules, nil
	}

	robotsURL := target.Scheme + "://" + target.Host + "/robots.txt"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, robotsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build robots request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch robots.txt: %w", err)
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("parse robots.txt: %w", err)
	}

	a.mu.Lock()
	a.cache[host] = robotsEntry{fetched: time.Now(), rules: data}
	a.mu.Unlock()

	return data, nil
}

// Purge evicts the cached rules for host.
func (a *RobotsAgent) Purge(host string) {
	a.mu.Lock()
	delete(a.cache, strings.ToLower(strings.TrimSpace(host)))
	a.mu.Unlock()
}
