package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/linkcollector/internal/crawler"
	"github.com/nao1215/linkcollector/internal/model"
)

// Job is one seed moving through a pipeline.
type Job struct {
	// Seed is the URL to crawl, as given by the user.
	Seed string

	// Options are the collection options for this seed, already merged
	// with any site configuration.
	Options model.CollectionOptions

	// Fetcher overrides the CollectStep fetcher for this seed. It is used
	// when the site configuration adds headers or a cookie.
	Fetcher crawler.Fetcher

	// CollectorOptions are applied after the CollectStep's own options,
	// for settings that differ per seed such as robots.txt checks.
	CollectorOptions []crawler.Option

	// Result is set by CollectStep. It is partial when the crawl was
	// cancelled and has Status failed when the seed or options were invalid.
	Result *model.CrawlResult

	// SavedID is the history database ID, set by PersistStep.
	SavedID int64

	// Err is the first error returned by a step.
	Err error

	// Steps lists the steps that ran, in order.
	Steps []string
}

// NewJob creates a job for seed.
func NewJob(seed string, opts model.CollectionOptions) *Job {
	return &Job{Seed: seed, Options: opts}
}

// Step is a single stage of a pipeline.
type Step interface {
	// Do runs the step. Failures that concern the whole job are returned;
	// per-page failures belong in the crawl result.
	Do(ctx context.Context, job *Job) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger

	// continueOnError keeps running later steps after one fails.
	continueOnError bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError keeps the pipeline going after a failed step.
// A cancelled crawl still has a partial result worth saving and printing,
// which is why the collect command turns this on.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{steps: make([]Step, 0)}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs every step on job. The first error is stored in job.Err
// and, unless continueOnError is set, stops the pipeline.
//
// Cancellation is not checked between steps: the steps after a cancelled
// crawl only touch the local result and the database.
func (p *Pipeline) Execute(ctx context.Context, job *Job) error {
	var first error
	for _, step := range p.steps {
		p.logger.Debug("executing step",
			"step", step.Name(),
			"url", job.Seed,
		)

		err := step.Do(ctx, job)
		job.Steps = append(job.Steps, step.Name())
		if err == nil {
			continue
		}

		p.logger.Warn("step failed",
			"step", step.Name(),
			"url", job.Seed,
			"error", err,
		)
		if first == nil {
			first = err
			job.Err = err
		}
		if !p.continueOnError {
			return err
		}
	}
	return first
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
