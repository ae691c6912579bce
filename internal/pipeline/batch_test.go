package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/linkcollector/internal/model"
)

// TestBatchCollector_ProcessBatch tests batch ordering and isolation.
func TestBatchCollector_ProcessBatch(t *testing.T) {
	t.Parallel()

	pages := map[string]string{}
	var jobs []*Job
	for i := range 6 {
		seed := fmt.Sprintf("https://site%d.test/", i)
		pages[seed] = fmt.Sprintf(`<a href="/only-%d">x</a><a href="https://shared.test/">s</a>`, i)
		jobs = append(jobs, NewJob(seed, quickOptions(0)))
	}
	jobs = append(jobs, NewJob("not a url", quickOptions(0)))

	site := &staticSite{pages: pages}
	bc := NewBatchCollector(func() *Pipeline {
		return DefaultPipeline(site, DefaultPipelineConfig{Logger: discardLogger()})
	}, WithConcurrency(3), WithBatchLogger(discardLogger()))

	got, err := bc.ProcessBatch(context.Background(), jobs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(jobs) {
		t.Fatalf("expected %d jobs, got %d", len(jobs), len(got))
	}

	for i := range 6 {
		job := got[i]
		if job.Seed != fmt.Sprintf("https://site%d.test/", i) {
			t.Errorf("job %d out of order: %s", i, job.Seed)
		}
		if job.Err != nil {
			t.Errorf("job %d: unexpected error %v", i, job.Err)
		}
		want := fmt.Sprintf("https://site%d.test/only-%d,https://shared.test/", i, i)
		if joined(job.Result.AllCollectedURLs) != want {
			t.Errorf("job %d: expected %s, got %v", i, want, job.Result.AllCollectedURLs)
		}
	}

	bad := got[len(got)-1]
	if bad.Err == nil {
		t.Error("expected an error for the invalid seed")
	}
	if bad.Result == nil || bad.Result.Status != model.CrawlStatusFailed {
		t.Errorf("expected failed result, got %+v", bad.Result)
	}
}

// TestBatchCollector_Concurrency tests that the concurrency limit holds.
func TestBatchCollector_Concurrency(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	running, peak := 0, 0
	slow := stepFunc(func(context.Context, *Job) error {
		mu.Lock()
		running++
		if running > peak {
			peak = running
		}
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)

		mu.Lock()
		running--
		mu.Unlock()
		return nil
	})

	bc := NewBatchCollector(func() *Pipeline {
		p := New(WithLogger(discardLogger()))
		p.AddStep(slow)
		return p
	}, WithConcurrency(2), WithConcurrency(0), WithBatchLogger(discardLogger()))

	jobs := make([]*Job, 8)
	for i := range jobs {
		jobs[i] = NewJob(fmt.Sprintf("https://s%d.test/", i), quickOptions(0))
	}
	if _, err := bc.ProcessBatch(context.Background(), jobs); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if peak > 2 {
		t.Errorf("expected at most 2 concurrent jobs, got %d", peak)
	}
	if peak < 1 {
		t.Error("expected jobs to run")
	}
}

// TestBatchCollector_Callback tests streaming completion callbacks.
func TestBatchCollector_Callback(t *testing.T) {
	t.Parallel()

	bc := NewBatchCollector(func() *Pipeline {
		p := New(WithLogger(discardLogger()))
		p.AddStep(&recordingStep{name: "noop"})
		return p
	}, WithBatchLogger(discardLogger()))

	jobs := []*Job{
		NewJob("https://a.test/", quickOptions(0)),
		NewJob("https://b.test/", quickOptions(0)),
		NewJob("https://c.test/", quickOptions(0)),
	}

	var mu sync.Mutex
	seen := map[int]string{}
	err := bc.ProcessBatchWithCallback(context.Background(), jobs, func(job *Job, index int) {
		mu.Lock()
		seen[index] = job.Seed
		mu.Unlock()
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 callbacks, got %d", len(seen))
	}
	for i, job := range jobs {
		if seen[i] != job.Seed {
			t.Errorf("callback %d: expected %s, got %s", i, job.Seed, seen[i])
		}
	}
}

// TestBatchCollector_Cancellation tests that cancellation keeps partial results.
func TestBatchCollector_Cancellation(t *testing.T) {
	t.Parallel()

	site := &staticSite{block: true}
	bc := NewBatchCollector(func() *Pipeline {
		return DefaultPipeline(site, DefaultPipelineConfig{Logger: discardLogger()})
	}, WithConcurrency(1), WithBatchLogger(discardLogger()))

	jobs := []*Job{
		NewJob("https://first.test/", quickOptions(1)),
		NewJob("https://second.test/", quickOptions(1)),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := bc.ProcessBatch(ctx, jobs)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	first := jobs[0]
	if first.Result == nil || first.Result.Status != model.CrawlStatusCancelled {
		t.Errorf("expected cancelled partial result, got %+v", first.Result)
	}
	if jobs[1].Result != nil {
		t.Errorf("expected the second job never to start, got %+v", jobs[1].Result)
	}
}

// stepFunc adapts a function to the Step interface.
type stepFunc func(ctx context.Context, job *Job) error

func (f stepFunc) Name() string { return "func" }

func (f stepFunc) Do(ctx context.Context, job *Job) error { return f(ctx, job) }
