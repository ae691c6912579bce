package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency is the number of seeds crawled at once when no
// concurrency is configured.
const DefaultConcurrency = 4

// BatchCollector runs jobs concurrently, one fresh pipeline per job.
// Each crawl remains sequential and polite towards its own site; the
// concurrency is across seeds.
type BatchCollector struct {
	pipelineFactory func() *Pipeline
	concurrency     int
	logger          *slog.Logger
}

// BatchOption configures a BatchCollector.
type BatchOption func(*BatchCollector)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchCollector) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent crawls.
// Values below 1 are ignored.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchCollector) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchCollector creates a BatchCollector. pipelineFactory is called
// once per job.
func NewBatchCollector(pipelineFactory func() *Pipeline, opts ...BatchOption) *BatchCollector {
	bc := &BatchCollector{
		pipelineFactory: pipelineFactory,
		concurrency:     DefaultConcurrency,
	}
	for _, opt := range opts {
		opt(bc)
	}
	if bc.logger == nil {
		bc.logger = slog.Default()
	}
	return bc
}

// ProcessBatch runs every job and returns them in input order.
//
// A job whose pipeline fails keeps its error and does not stop the batch.
// When ctx is cancelled, running crawls return partial results, jobs that
// never started are left without a result, and ctx.Err() is returned.
func (bc *BatchCollector) ProcessBatch(ctx context.Context, jobs []*Job) ([]*Job, error) {
	err := bc.ProcessBatchWithCallback(ctx, jobs, nil)
	return jobs, err
}

// ProcessBatchWithCallback runs every job and calls callback as each one
// finishes. callback runs on the job's goroutine and must be safe for
// concurrent use.
func (bc *BatchCollector) ProcessBatchWithCallback(
	ctx context.Context,
	jobs []*Job,
	callback func(job *Job, index int),
) error {
	bc.logger.Info("starting batch",
		"total", len(jobs),
		"concurrency", bc.concurrency,
	)
	startTime := time.Now()

	var g errgroup.Group
	g.SetLimit(bc.concurrency)

	for i, job := range jobs {
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			bc.logger.Debug("collecting",
				"url", job.Seed,
				"index", i+1,
				"total", len(jobs),
			)

			// The job records its own error; the batch goes on.
			_ = bc.pipelineFactory().Execute(ctx, job) //nolint:errcheck // stored in job.Err

			if callback != nil {
				callback(job, i)
			}
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // goroutines never return errors

	bc.logger.Info("batch complete",
		"total", len(jobs),
		"elapsed", time.Since(startTime),
	)
	return ctx.Err()
}
