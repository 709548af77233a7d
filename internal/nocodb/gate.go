package nocodb

import (
	"context"
	"time"
)

// Gate enforces a minimum spacing between calls. The remote rate limit is
// account-wide, so a single gate sits in front of every upload the process
// makes, regardless of which repository the record belongs to.
//
// The gate is a stateful wrapper around "sleep before call": it tracks the
// previous call time and blocks the next caller until the spacing has
// elapsed. The clock and sleep functions are injectable so the gate tests
// without waiting.
type Gate struct {
	spacing time.Duration
	last    time.Time
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// NewGate creates a gate with the given minimum spacing. A zero spacing
// disables the gate.
func NewGate(spacing time.Duration) *Gate {
	return &Gate{spacing: spacing, now: time.Now, sleep: sleepContext}
}

// Wait blocks until the spacing since the previous call has elapsed, then
// records this call. It returns early only when ctx is cancelled.
func (g *Gate) Wait(ctx context.Context) error {
	if g.spacing > 0 && !g.last.IsZero() {
		if remaining := g.spacing - g.now().Sub(g.last); remaining > 0 {
			if err := g.sleep(ctx, remaining); err != nil {
				return err
			}
		}
	}

	g.last = g.now()

	return nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
