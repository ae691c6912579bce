package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/nao1215/linkcollector/internal/crawler"
	"github.com/nao1215/linkcollector/internal/model"
	"github.com/nao1215/linkcollector/internal/pipeline"
)

const (
	// DefaultRequestTimeout bounds a single crawl started over HTTP.
	DefaultRequestTimeout = 5 * time.Minute

	maxRequestBody = 1 << 20 // 1 MB
)

var errURLRequired = errors.New("the \"url\" field is required")

// Transport handles HTTP requests for link collection.
type Transport struct {
	fetcher        crawler.Fetcher
	saver          pipeline.Saver
	collectorOpts  []crawler.Option
	requestTimeout time.Duration
	logger         *slog.Logger
	now            func() time.Time
}

// TransportOption configures a Transport.
type TransportOption func(*Transport)

// WithSaver saves every crawl result with saver.
func WithSaver(saver pipeline.Saver) TransportOption {
	return func(t *Transport) {
		t.saver = saver
	}
}

// WithRequestTimeout sets the maximum duration of one crawl.
func WithRequestTimeout(d time.Duration) TransportOption {
	return func(t *Transport) {
		if d > 0 {
			t.requestTimeout = d
		}
	}
}

// WithCollectorOptions adds collector options to every crawl, such as a
// robots agent or a rate limit.
func WithCollectorOptions(opts ...crawler.Option) TransportOption {
	return func(t *Transport) {
		t.collectorOpts = append(t.collectorOpts, opts...)
	}
}

// WithLogger sets the logger for request and crawl events.
func WithLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// NewTransport creates an HTTP transport that crawls with fetcher.
func NewTransport(fetcher crawler.Fetcher, opts ...TransportOption) *Transport {
	t := &Transport{
		fetcher:        fetcher,
		requestTimeout: DefaultRequestTimeout,
		logger:         slog.Default(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RegisterRoutes attaches the transport's handlers to the given mux.
func (t *Transport) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/collectLinks", t.handleCollect)
	mux.HandleFunc("GET /api/health", t.handleHealth)
}

// Handler returns the routes wrapped with request ID and logging
// middleware.
func (t *Transport) Handler() http.Handler {
	mux := http.NewServeMux()
	t.RegisterRoutes(mux)
	return RequestID(Logging(t.logger)(mux))
}

// requestOptions applies the API defaults to a decoded request.
func requestOptions(req model.CollectRequest) model.CollectionOptions {
	opts := req.Options
	if sel := strings.TrimSpace(req.Selector); sel != "" {
		opts.Selector = sel
	}
	if opts.DelayMs == 0 {
		opts.DelayMs = model.DefaultDelayMs
	}
	if opts.Depth == 0 {
		opts.Depth = model.DefaultDepth
	}
	if opts.MaxPages == 0 {
		opts.MaxPages = model.DefaultMaxPages
	}
	return opts
}

func (t *Transport) handleCollect(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	var req model.CollectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		t.renderError(w, http.StatusBadRequest, "invalid request body: send a JSON object with a \"url\" field")
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		t.renderError(w, http.StatusBadRequest, errURLRequired.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), t.requestTimeout)
	defer cancel()

	job := pipeline.NewJob(strings.TrimSpace(req.URL), requestOptions(req))
	p := pipeline.DefaultPipeline(t.fetcher, pipeline.DefaultPipelineConfig{
		Saver:            t.saver,
		CollectorOptions: t.collectorOpts,
		Logger:           t.logger.With("request_id", RequestIDFromContext(r.Context())),
	})
	err := p.Execute(ctx, job)

	result := job.Result
	switch {
	case result != nil && result.Status == model.CrawlStatusCompleted:
		// Only persistence can fail after a completed crawl, and the
		// client still gets its links.
		if err != nil {
			t.logger.Warn("crawl completed with errors", "url", job.Seed, "error", err)
		}
		t.renderJSON(w, http.StatusOK, model.NewCollectResponse(result, t.now()))
	case crawler.IsConfigError(err):
		t.renderError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		t.renderError(w, http.StatusGatewayTimeout, "crawl exceeded the request timeout")
	case errors.Is(err, context.Canceled):
		t.logger.Info("client went away", "url", job.Seed)
	default:
		t.logger.Error("collect failed", "url", job.Seed, "error", err)
		t.renderError(w, http.StatusInternalServerError, "an unexpected error occurred")
	}
}

func (t *Transport) handleHealth(w http.ResponseWriter, _ *http.Request) {
	t.renderJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (t *Transport) renderJSON(w http.ResponseWriter, status int, data any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		t.logger.Error("failed to encode response", "error", err)
		http.Error(w, `{"success":false,"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func (t *Transport) renderError(w http.ResponseWriter, status int, message string) {
	t.renderJSON(w, status, model.NewErrorResponse(message))
}
