// Package poll runs the fixed-interval status checks that approximate
// real-time synchronization for the waiting and results screens.
package poll

import (
	"context"
	"log/slog"
	"time"

	"github.com/braintease/quizlink/internal/telemetry"
)

// DefaultInterval matches the backend's expected check cadence. State changes
// are observed with up to one interval of staleness.
const DefaultInterval = 2 * time.Second

type Ticker interface {
	C() <-chan time.Time
	Stop()
}

func NewTicker(d time.Duration) Ticker {
	return &realTicker{t: time.NewTicker(d)}
}

type realTicker struct {
	t *time.Ticker
}

func (r *realTicker) C() <-chan time.Time { return r.t.C }
func (r *realTicker) Stop()               { r.t.Stop() }

type Config struct {
	// Loop names the polling loop in logs and metrics.
	Loop     string
	Interval time.Duration
	// NewTickerFunc overrides the clock, for tests.
	NewTickerFunc func(d time.Duration) Ticker
}

// Func checks state once. Returning done stops the loop; an error is logged
// and retried on the next tick, never surfaced. A single failed check must
// not kill the loop.
type Func func(ctx context.Context) (done bool, err error)

// Run drives fn on a fixed interval until it reports done or ctx is
// cancelled. Checks run synchronously on the loop goroutine, so at most one
// is in flight; ticks that land while a slow check is outstanding are
// dropped rather than piled up. The ticker is always stopped on return.
func Run(ctx context.Context, c Config, fn Func) error {
	interval := c.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	newTicker := c.NewTickerFunc
	if newTicker == nil {
		newTicker = NewTicker
	}

	t := newTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C():
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		done, err := fn(ctx)
		switch {
		case done:
			telemetry.PollTicks.WithLabelValues(c.Loop, "done").Inc()
			return nil
		case err != nil:
			telemetry.PollTicks.WithLabelValues(c.Loop, "error").Inc()
			slog.WarnContext(ctx, "poll: check failed, retrying on next tick",
				"loop", c.Loop,
				"error", err,
			)
		default:
			telemetry.PollTicks.WithLabelValues(c.Loop, "pending").Inc()
		}
	}
}
