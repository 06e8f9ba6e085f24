package orchestrator

import (
	"context"
	"math/rand"
	"time"
)

const (
	backoffBase = 250 * time.Millisecond
	backoffCap  = 10 * time.Second
)

// backoff returns the delay before the given retry attempt (1-based):
// exponential with full jitter, capped.
func backoff(attempt int) time.Duration {
	d := backoffBase << (attempt - 1)
	if d > backoffCap || d <= 0 {
		d = backoffCap
	}
	return time.Duration(rand.Int63n(int64(d))) + d/2
}

// sleepCtx waits for the duration unless the context ends first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
