package orchestrator

import (
	"context"
	"testing"
	"time"
)

func TestBudgetUnlimited(t *testing.T) {
	b := NewBudget(0)
	for i := 0; i < 100; i++ {
		if err := b.Acquire(context.Background()); err != nil {
			t.Fatalf("unlimited budget must never block: %v", err)
		}
	}
	b.Release() // no-op, must not panic
}

func TestBudgetBlocksUntilRelease(t *testing.T) {
	b := NewBudget(1)
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	acquired := make(chan struct{})
	go func() {
		_ = b.Acquire(context.Background())
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should block while slot is held")
	case <-time.After(50 * time.Millisecond):
	}

	b.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("acquire did not proceed after release")
	}
}

func TestBudgetAcquireHonorsDeadline(t *testing.T) {
	b := NewBudget(1)
	if err := b.Acquire(context.Background()); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := b.Acquire(ctx)
	if err == nil {
		t.Fatal("expected deadline error while budget exhausted")
	}
}
