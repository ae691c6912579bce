package crawler

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"
	"golang.org/x/net/proxy"

	"github.com/nao1215/linkcollector/internal/model"
)

// Fetcher retrieves a single page.
//
// Implementations must not panic. Every failure is reported as an error,
// preferably a *FetchError so the crawl can classify it.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*model.Page, error)
}

// FetcherOptions configures an HTTPFetcher.
type FetcherOptions struct {
	// UserAgent identifies the crawler to the target server.
	UserAgent string

	// Timeout bounds a single request including the body read.
	Timeout time.Duration

	// MaxBodySize is the largest body in bytes that will be read.
	// Larger responses fail with ErrorTypeTooLarge.
	MaxBodySize int64

	// Headers are extra request headers sent with every request.
	Headers map[string]string

	// Cookie is sent as the Cookie header when non-empty.
	Cookie string

	// ProxyURL routes requests through a proxy. socks5:// and socks5h://
	// use a SOCKS5 dialer; http:// and https:// use an HTTP proxy.
	ProxyURL string
}

const (
	defaultFetchTimeout = 30 * time.Second
	defaultMaxBodySize  = 5 * 1024 * 1024 // 5MB
	defaultUserAgent    = "LinkCollector/1.0 (+https://github.com/nao1215/linkcollector)"
)

// HTTPFetcher implements Fetcher on top of net/http.
// It is safe for concurrent use, so independent crawls may share one.
type HTTPFetcher struct {
	client      *http.Client
	userAgent   string
	headers     map[string]string
	cookie      string
	maxBodySize int64
}

// NewHTTPFetcher builds an HTTPFetcher with its own transport.
func NewHTTPFetcher(opts FetcherOptions) (*HTTPFetcher, error) {
	opts = opts.withDefaults()

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	if strings.TrimSpace(opts.ProxyURL) != "" {
		if err := configureProxy(transport, opts.ProxyURL); err != nil {
			return nil, err
		}
	}

	client := &http.Client{
		Timeout:   opts.Timeout,
		Transport: transport,
	}
	return NewHTTPFetcherWithClient(client, opts), nil
}

// NewHTTPFetcherWithClient builds an HTTPFetcher around an existing client.
// ProxyURL and Timeout are ignored since the client already carries its
// transport settings.
func NewHTTPFetcherWithClient(client *http.Client, opts FetcherOptions) *HTTPFetcher {
	opts = opts.withDefaults()
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}

	headers := make(map[string]string, len(opts.Headers))
	for k, v := range opts.Headers {
		headers[k] = v
	}

	return &HTTPFetcher{
		client:      client,
		userAgent:   opts.UserAgent,
		headers:     headers,
		cookie:      opts.Cookie,
		maxBodySize: opts.MaxBodySize,
	}
}

func (o FetcherOptions) withDefaults() FetcherOptions {
	if o.Timeout <= 0 {
		o.Timeout = defaultFetchTimeout
	}
	if o.MaxBodySize <= 0 {
		o.MaxBodySize = defaultMaxBodySize
	}
	if strings.TrimSpace(o.UserAgent) == "" {
		o.UserAgent = defaultUserAgent
	}
	return o
}

// configureProxy points transport at the proxy described by rawProxy.
func configureProxy(transport *http.Transport, rawProxy string) error {
	proxyURL, err := url.Parse(rawProxy)
	if err != nil {
		return fmt.Errorf("parse proxy url: %w", err)
	}

	switch strings.ToLower(proxyURL.Scheme) {
	case "http", "https":
		transport.Proxy = http.ProxyURL(proxyURL)
		return nil
	case "socks5", "socks5h":
		dialer, err := proxy.FromURL(proxyURL, proxy.Direct)
		if err != nil {
			return fmt.Errorf("create socks5 dialer: %w", err)
		}
		contextDialer, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return errors.New("socks5 dialer does not support contexts")
		}
		transport.Proxy = nil
		transport.DialContext = contextDialer.DialContext
		return nil
	default:
		return fmt.Errorf("unsupported proxy scheme %q", proxyURL.Scheme)
	}
}

// Client exposes the underlying HTTP client, for example to share it with
// a RobotsAgent.
func (f *HTTPFetcher) Client() *http.Client {
	return f.client
}

// Fetch downloads rawURL and returns the decoded HTML document.
// Every error it returns is a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (*model.Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Type: model.ErrorTypeNetwork, Err: fmt.Errorf("build request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, v := range f.headers {
		req.Header.Set(k, v)
	}
	if f.cookie != "" {
		req.Header.Set("Cookie", f.cookie)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Type: model.ErrorTypeNetwork, Err: err}
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck // Drain so the connection can be reused
		_ = resp.Body.Close()                                       //nolint:errcheck // Best effort cleanup
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{URL: rawURL, Type: model.ErrorTypeHTTP, StatusCode: resp.StatusCode}
	}

	// A declared non-HTML type is rejected before the body is read.
	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !isHTML(contentType) {
		return nil, unsupportedContentType(rawURL, contentType)
	}

	body, err := f.readBody(resp)
	if err != nil {
		var fe *FetchError
		if errors.As(err, &fe) {
			fe.URL = rawURL
			return nil, fe
		}
		return nil, &FetchError{URL: rawURL, Type: model.ErrorTypeNetwork, Err: err}
	}

	if contentType == "" {
		contentType = http.DetectContentType(body)
		if !isHTML(contentType) {
			return nil, unsupportedContentType(rawURL, contentType)
		}
	}

	decoded, err := decodeCharset(body, contentType)
	if err != nil {
		return nil, &FetchError{URL: rawURL, Type: model.ErrorTypeParse, Err: err}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	page := &model.Page{
		URL:         rawURL,
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		HTML:        decoded,
	}
	page.ComputeHash()

	return page, nil
}

func unsupportedContentType(rawURL, contentType string) *FetchError {
	return &FetchError{
		URL:  rawURL,
		Type: model.ErrorTypeUnsupportedContentType,
		Err:  fmt.Errorf("unsupported content type %q", contentType),
	}
}

// readBody decodes the Content-Encoding and reads at most maxBodySize bytes.
func (f *HTTPFetcher) readBody(resp *http.Response) ([]byte, error) {
	reader := io.Reader(resp.Body)

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, &FetchError{Type: model.ErrorTypeParse, Err: fmt.Errorf("gzip decode: %w", err)}
		}
		defer gz.Close()
		reader = gz
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > f.maxBodySize {
		return nil, &FetchError{
			Type: model.ErrorTypeTooLarge,
			Err:  fmt.Errorf("response body exceeds limit of %d bytes", f.maxBodySize),
		}
	}
	return body, nil
}

// isHTML reports whether contentType is an HTML media type.
func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// decodeCharset converts body to UTF-8 using the charset from the
// Content-Type header or, failing that, from <meta> tags and sniffing.
func decodeCharset(body []byte, contentType string) (string, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return "", fmt.Errorf("detect charset: %w", err)
	}
	decoded, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("decode charset: %w", err)
	}
	return string(decoded), nil
}

// statusText returns the reason phrase for code, or "Unknown Status".
func statusText(code int) string {
	if text := http.StatusText(code); text != "" {
		return text
	}
	return "Unknown Status"
}
