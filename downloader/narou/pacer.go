package narou

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out requests to the source. Every request waits at least
// interval after the previous one, and every steps-th request in a burst waits
// the longer stepsWait instead. A quiet period longer than both resets the
// burst counter.
type Pacer struct {
	limiter   *rate.Limiter
	interval  time.Duration
	steps     int
	stepsWait time.Duration

	count int
	last  time.Time

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewPacer creates a pacer. steps <= 0 disables the periodic long wait.
func NewPacer(interval time.Duration, steps int, stepsWait time.Duration) *Pacer {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	return &Pacer{
		limiter:   rate.NewLimiter(limit, 1),
		interval:  interval,
		steps:     steps,
		stepsWait: stepsWait,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Wait blocks until the next request may be sent.
func (p *Pacer) Wait(ctx context.Context) error {
	longWait := max(p.stepsWait, p.interval)
	now := p.now()
	if !p.last.IsZero() && now.Sub(p.last) > longWait {
		p.count = 0
	}

	if p.count > 0 && p.steps > 0 && p.count%p.steps == 0 {
		if err := p.sleep(ctx, longWait); err != nil {
			return err
		}
	} else if err := p.limiter.Wait(ctx); err != nil {
		return err
	}

	p.count++
	p.last = p.now()
	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
