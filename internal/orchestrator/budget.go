package orchestrator

import "context"

// Budget is the shared limit on simultaneous calls to the remote service.
// It is independent of the worker-pool size: many local workers must not
// flood the shared remote rate limit. A zero or negative size means
// unlimited.
type Budget struct {
	sem chan struct{}
}

// NewBudget creates a budget with the given number of slots.
func NewBudget(size int) *Budget {
	if size <= 0 {
		return &Budget{}
	}
	return &Budget{sem: make(chan struct{}, size)}
}

// Acquire blocks until a slot is free or the context is done.
func (b *Budget) Acquire(ctx context.Context) error {
	if b.sem == nil {
		return nil
	}
	select {
	case b.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a slot. Must be called once per successful Acquire.
func (b *Budget) Release() {
	if b.sem == nil {
		return
	}
	<-b.sem
}
