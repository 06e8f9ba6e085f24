package orchestrator

import (
	"context"
	"testing"
	"time"
)

func TestBackoffGrowsAndCaps(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := backoff(attempt)
		if d <= 0 {
			t.Errorf("attempt %d: non-positive backoff %s", attempt, d)
		}
		if d > backoffCap+backoffCap/2 {
			t.Errorf("attempt %d: backoff %s exceeds cap", attempt, d)
		}
	}

	// the floor of each attempt doubles until the cap
	if min2 := backoffBase; backoff(2) < min2 {
		t.Errorf("attempt 2 backoff below floor %s", min2)
	}
}

func TestSleepCtxCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepCtx(ctx, time.Minute); err == nil {
		t.Fatal("expected context error")
	}
}

func TestSleepCtxCompletes(t *testing.T) {
	if err := sleepCtx(context.Background(), time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
