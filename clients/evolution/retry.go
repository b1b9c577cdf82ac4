package evolution

import (
	"context"
	"math"
	"time"
)

// backoff returns the wait before the attempt after the given one.
// Delays never decrease: a multiplier below 1 counts as 1 and MaxDelay caps.
func backoff(opts RetryOptions, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	m := opts.Multiplier
	if m < 1 {
		m = 1
	}

	d := float64(opts.BaseDelay) * math.Pow(m, float64(attempt-1))
	if opts.MaxDelay > 0 && d > float64(opts.MaxDelay) {
		return opts.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
