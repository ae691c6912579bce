package crawler

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// pacer spaces the fetches of one crawl. The delay is measured from the
// completion of the previous fetch, so a slow server never shortens the
// pause that follows it. An optional token bucket caps the request rate on
// top of the delay.
//
// A pacer belongs to a single traversal and is not safe for concurrent use.
type pacer struct {
	delay    time.Duration
	limiter  *rate.Limiter
	lastDone time.Time
}

// newPacer returns a pacer waiting delay between fetches. A positive
// perSecond additionally limits the crawl to that many requests per second.
func newPacer(delay time.Duration, perSecond float64) *pacer {
	p := &pacer{delay: delay}
	if perSecond > 0 {
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
	return p
}

// Wait blocks until the next fetch may start. The first call never waits
// for the delay.
func (p *pacer) Wait(ctx context.Context) error {
	if p.delay > 0 && !p.lastDone.IsZero() {
		if rest := time.Until(p.lastDone.Add(p.delay)); rest > 0 {
			timer := time.NewTimer(rest)
			defer timer.Stop()
			select {
			case <-timer.C:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return ctx.Err()
}

// Done marks the completion of a fetch.
func (p *pacer) Done() {
	p.lastDone = time.Now()
}
