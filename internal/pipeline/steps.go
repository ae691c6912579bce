package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/linkcollector/internal/crawler"
	"github.com/nao1215/linkcollector/internal/model"
	"github.com/nao1215/linkcollector/internal/urlfilter"
)

// CollectStep runs the breadth-first crawl for a job.
type CollectStep struct {
	fetcher crawler.Fetcher
	extra   []crawler.Option
	logger  *slog.Logger
}

// CollectStepOption configures a CollectStep.
type CollectStepOption func(*CollectStep)

// WithCollectorOptions adds collector options applied after the job's
// collection options, such as a robots agent or a rate limit.
func WithCollectorOptions(opts ...crawler.Option) CollectStepOption {
	return func(s *CollectStep) {
		s.extra = append(s.extra, opts...)
	}
}

// WithCollectLogger sets the logger passed to the collector.
func WithCollectLogger(logger *slog.Logger) CollectStepOption {
	return func(s *CollectStep) {
		s.logger = logger
	}
}

// NewCollectStep creates a crawl step that fetches pages with fetcher
// unless a job brings its own.
func NewCollectStep(fetcher crawler.Fetcher, opts ...CollectStepOption) *CollectStep {
	s := &CollectStep{fetcher: fetcher, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *CollectStep) Name() string {
	return "collect"
}

// Do crawls job.Seed. A configuration error leaves a failed result on the
// job; cancellation leaves the partial result. Both are returned.
func (s *CollectStep) Do(ctx context.Context, job *Job) error {
	fetcher := s.fetcher
	if job.Fetcher != nil {
		fetcher = job.Fetcher
	}

	opts := append(crawler.OptionsFrom(job.Options), crawler.WithLogger(s.logger))
	opts = append(opts, s.extra...)
	opts = append(opts, job.CollectorOptions...)

	result, err := crawler.NewCollector(fetcher, opts...).Collect(ctx, job.Seed)
	if result == nil {
		result = FailedResult(job.Seed, job.Options)
	}
	job.Result = result
	return err
}

// FailedResult returns the result recorded for a seed whose crawl could
// not start.
func FailedResult(seed string, opts model.CollectionOptions) *model.CrawlResult {
	now := time.Now()
	return &model.CrawlResult{
		InitialURL:        seed,
		Depth:             opts.Depth,
		Status:            model.CrawlStatusFailed,
		AllCollectedURLs:  []string{},
		LinkRelationships: []model.LinkRelationship{},
		Errors:            []model.CrawlError{},
		Stats:             model.CrawlStats{StartTime: now, EndTime: now},
	}
}

// Saver stores crawl results. *database.CrawlDB implements it.
type Saver interface {
	SaveCrawlResult(ctx context.Context, result *model.CrawlResult) (int64, error)
}

// PersistStep saves the raw crawl result before any output filtering.
type PersistStep struct {
	saver  Saver
	logger *slog.Logger
}

// NewPersistStep creates a step that saves results with saver.
func NewPersistStep(saver Saver, logger *slog.Logger) *PersistStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &PersistStep{saver: saver, logger: logger}
}

// Name returns the step name.
func (s *PersistStep) Name() string {
	return "persist"
}

// Do saves job.Result. Failed crawls are not saved.
func (s *PersistStep) Do(_ context.Context, job *Job) error {
	if job.Result == nil || job.Result.Status == model.CrawlStatusFailed {
		return nil
	}

	// A cancelled crawl is still saved, so the save must not inherit the
	// cancelled context.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	id, err := s.saver.SaveCrawlResult(ctx, job.Result)
	if err != nil {
		return fmt.Errorf("failed to save crawl result: %w", err)
	}
	job.SavedID = id
	s.logger.Debug("crawl saved", "url", job.Result.InitialURL, "id", id)
	return nil
}

// ExcludeStep removes URLs matching the given patterns from the result.
// The crawl is unaffected: this shapes what is printed or exported.
type ExcludeStep struct {
	patterns []string
}

// NewExcludeStep creates a step removing URLs that match any pattern.
// Patterns are case-insensitive regular expressions, or substrings when
// they do not compile.
func NewExcludeStep(patterns []string) *ExcludeStep {
	return &ExcludeStep{patterns: patterns}
}

// Name returns the step name.
func (s *ExcludeStep) Name() string {
	return "exclude"
}

// Do filters job.Result in place.
func (s *ExcludeStep) Do(_ context.Context, job *Job) error {
	if job.Result == nil || len(s.patterns) == 0 {
		return nil
	}
	r := job.Result

	excluded := urlfilter.ExcludedURLs(r.AllCollectedURLs, s.patterns)
	if len(excluded) == 0 {
		return nil
	}
	drop := make(map[string]struct{}, len(excluded))
	for _, u := range excluded {
		drop[u] = struct{}{}
	}

	r.AllCollectedURLs = urlfilter.ExcludePatterns(r.AllCollectedURLs, s.patterns)
	rels := make([]model.LinkRelationship, 0, len(r.LinkRelationships))
	for _, rel := range r.LinkRelationships {
		if _, ok := drop[rel.Found]; !ok {
			rels = append(rels, rel)
		}
	}
	r.LinkRelationships = rels
	r.Stats.UniqueLinks = len(r.AllCollectedURLs)
	return nil
}

// DefaultPipelineConfig holds the parts of the default pipeline.
type DefaultPipelineConfig struct {
	// Saver, when set, adds a PersistStep.
	Saver Saver

	// ExcludePatterns, when set, adds an ExcludeStep.
	ExcludePatterns []string

	// CollectorOptions are passed to the CollectStep.
	CollectorOptions []crawler.Option

	Logger *slog.Logger
}

// DefaultPipeline creates the collect, persist and exclude pipeline used by
// the CLI. It continues after a failed crawl so that partial results of a
// cancelled crawl are still saved and printed.
func DefaultPipeline(fetcher crawler.Fetcher, cfg DefaultPipelineConfig) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	p := New(WithLogger(logger), WithContinueOnError(true))
	p.AddStep(NewCollectStep(fetcher,
		WithCollectLogger(logger),
		WithCollectorOptions(cfg.CollectorOptions...),
	))
	if cfg.Saver != nil {
		p.AddStep(NewPersistStep(cfg.Saver, logger))
	}
	if len(cfg.ExcludePatterns) > 0 {
		p.AddStep(NewExcludeStep(cfg.ExcludePatterns))
	}
	return p
}
