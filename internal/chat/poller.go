package chat

import (
	"context"
	"log"
	"time"
)

// Check is one independently fallible unit of poll work. Each check
// isolates its own failure: an error is logged and the next check still
// runs in the same cycle.
type Check struct {
	Name string
	Run  func(ctx context.Context) error
}

// Poller drives the fixed-period background pull. After a warm-up delay
// it runs every check once per period until the context is cancelled.
//
// There is no overlap protection: the period is expected to exceed the
// typical round trip, and the timeline merge is idempotent, so an
// occasional overlapping cycle is harmless.
type Poller struct {
	warmup   time.Duration
	interval time.Duration
	checks   []Check
}

// NewPoller builds a poller over the given checks.
func NewPoller(warmup, interval time.Duration, checks ...Check) *Poller {
	return &Poller{warmup: warmup, interval: interval, checks: checks}
}

// Run blocks until ctx is cancelled, executing one poll cycle per tick.
func (p *Poller) Run(ctx context.Context) {
	warmup := time.NewTimer(p.warmup)
	defer warmup.Stop()

	select {
	case <-ctx.Done():
		return
	case <-warmup.C:
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.cycle(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (p *Poller) cycle(ctx context.Context) {
	for _, check := range p.checks {
		if ctx.Err() != nil {
			return
		}
		if err := check.Run(ctx); err != nil && ctx.Err() == nil {
			log.Printf("[poll] %s: %v", check.Name, err)
		}
	}
}
