package stream

import (
	"context"
	"math"
	"time"

	"nimbus-hq/ganymede/pkg/config"
)

// Backoff returns the delay before retrying after the given attempt
// (1-based): initial × multiplier^(attempt−1), capped at the maximum.
func Backoff(cfg config.StreamConfig, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt-1)))
	if d > cfg.MaxBackoff || d < 0 {
		d = cfg.MaxBackoff
	}
	return d
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
