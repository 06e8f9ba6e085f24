package orchestrator

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/ppiankov/snipharness/internal/runner"
	"github.com/ppiankov/snipharness/internal/snippet"
)

// Config holds orchestrator parameters.
type Config struct {
	Workers int
	Budget  *Budget
	Timeout time.Duration // per-snippet timeout
	Retries int           // retry bound for transient failures
	Runners map[snippet.Language]runner.Runner
	Secrets map[string]string // resolved secret values by placeholder name

	// OnUpdate is called with a copy of the result on every state change.
	OnUpdate func(id string, result *snippet.RunResult)
}

// Orchestrator turns discovered snippets into a completed RunBatch under
// the worker-pool, budget, retry and deadline constraints. It is the sole
// writer to the batch.
type Orchestrator struct {
	cfg      Config
	snippets []*snippet.Snippet
	batch    *snippet.RunBatch
	mu       sync.Mutex
}

// New creates an orchestrator over the discovered snippet set. Every
// snippet gets a pending result up front so the final report can never
// silently lose one.
func New(snippets []*snippet.Snippet, cfg Config) *Orchestrator {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.Budget == nil {
		cfg.Budget = NewBudget(0)
	}

	batch := &snippet.RunBatch{
		Timestamp: time.Now(),
		Workers:   cfg.Workers,
		Results:   make(map[string]*snippet.RunResult, len(snippets)),
	}
	for _, sn := range snippets {
		batch.Results[sn.ID] = &snippet.RunResult{
			SnippetID: sn.ID,
			Language:  sn.Language,
			Status:    snippet.StatusPending,
		}
	}

	return &Orchestrator{cfg: cfg, snippets: snippets, batch: batch}
}

// Batch returns the orchestrator's RunBatch. Valid for configuration
// (RunID, Root) before Run and for reading after Run returns.
func (o *Orchestrator) Batch() *snippet.RunBatch { return o.batch }

// Results returns a copy of the current results, safe to read while the
// run is in flight. Feeds the live display.
func (o *Orchestrator) Results() map[string]*snippet.RunResult {
	o.mu.Lock()
	defer o.mu.Unlock()
	cp := make(map[string]*snippet.RunResult, len(o.batch.Results))
	for k, v := range o.batch.Results {
		cpy := *v
		cp[k] = &cpy
	}
	return cp
}

// Run executes all snippets and returns the finalized batch. The context
// carries the global deadline: on expiry all in-flight work is cancelled
// and unresolved snippets resolve as TIMEOUT.
func (o *Orchestrator) Run(ctx context.Context) *snippet.RunBatch {
	start := time.Now()

	// resolve non-runnable snippets without dispatching them
	var runnable []*snippet.Snippet
	for _, sn := range o.snippets {
		switch {
		case sn.Invalid:
			o.store(resolved(sn, snippet.StatusToolchainError, sn.InvalidReason))
		case sn.SkipReason != "":
			o.store(resolved(sn, snippet.StatusSkipped, sn.SkipReason))
		default:
			runnable = append(runnable, sn)
		}
	}

	work := make(chan *snippet.Snippet, len(runnable))
	for _, sn := range runnable {
		work <- sn
	}
	close(work)

	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sn := range work {
				if ctx.Err() != nil {
					o.store(resolved(sn, snippet.StatusTimeout, "harness deadline reached before start"))
					continue
				}
				o.executeSnippet(ctx, sn)
			}
		}()
	}
	wg.Wait()

	// a crash inside a worker must still leave one terminal result per id
	o.mu.Lock()
	for _, r := range o.batch.Results {
		if !r.Status.Terminal() {
			r.Status = snippet.StatusTimeout
			r.Reason = "unresolved at harness shutdown"
		}
	}
	o.batch.TotalDuration = time.Since(start)
	o.batch.Finalize()
	o.mu.Unlock()

	return o.batch
}

// executeSnippet runs one snippet through the retry loop. Only failures
// classified as network-transient are retried; toolchain errors and
// timeouts are terminal for the run.
func (o *Orchestrator) executeSnippet(ctx context.Context, sn *snippet.Snippet) {
	o.setRunning(sn.ID)

	var result *snippet.RunResult
	retries := 0
	for {
		result = o.runOnce(ctx, sn)
		if result.Status != snippet.StatusFail || !runner.IsTransient(result.Reason) {
			break
		}
		if retries >= o.cfg.Retries {
			break
		}
		retries++
		slog.Debug("retrying transient failure", "id", sn.ID, "attempt", retries, "reason", result.Reason)
		if err := sleepCtx(ctx, backoff(retries)); err != nil {
			result = resolved(sn, snippet.StatusTimeout, "deadline exceeded during retry backoff")
			break
		}
	}
	result.RetryCount = retries
	o.store(result)
}

// runOnce performs a single execution attempt: acquire the remote budget
// when the snippet calls the service, then dispatch to its adapter under
// the per-snippet timeout.
func (o *Orchestrator) runOnce(ctx context.Context, sn *snippet.Snippet) *snippet.RunResult {
	attemptCtx := ctx
	if o.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, o.cfg.Timeout)
		defer cancel()
	}

	if len(sn.RequiredSecrets) > 0 {
		if err := o.cfg.Budget.Acquire(attemptCtx); err != nil {
			return resolved(sn, snippet.StatusTimeout, "deadline exceeded waiting for request budget")
		}
		defer o.cfg.Budget.Release()
	}

	r, ok := o.cfg.Runners[sn.Language]
	if !ok {
		return resolved(sn, snippet.StatusToolchainError, "no adapter for language "+string(sn.Language))
	}

	return r.Execute(attemptCtx, sn, o.scopedSecrets(sn))
}

// scopedSecrets returns only the values the snippet declares as required.
func (o *Orchestrator) scopedSecrets(sn *snippet.Snippet) map[string]string {
	if len(sn.RequiredSecrets) == 0 {
		return nil
	}
	out := make(map[string]string, len(sn.RequiredSecrets))
	for _, name := range sn.RequiredSecrets {
		if v, ok := o.cfg.Secrets[name]; ok {
			out[name] = v
		}
	}
	return out
}

func (o *Orchestrator) setRunning(id string) {
	o.mu.Lock()
	r := o.batch.Results[id]
	r.Status = snippet.StatusRunning
	r.StartedAt = time.Now()
	o.mu.Unlock()
	o.notify(id)
}

func (o *Orchestrator) store(result *snippet.RunResult) {
	o.mu.Lock()
	o.batch.Results[result.SnippetID] = result
	o.mu.Unlock()
	o.notify(result.SnippetID)
}

func (o *Orchestrator) notify(id string) {
	if o.cfg.OnUpdate == nil {
		return
	}
	o.mu.Lock()
	cpy := *o.batch.Results[id]
	o.mu.Unlock()
	o.cfg.OnUpdate(id, &cpy)
}

func resolved(sn *snippet.Snippet, status snippet.Status, reason string) *snippet.RunResult {
	now := time.Now()
	return &snippet.RunResult{
		SnippetID: sn.ID,
		Language:  sn.Language,
		Status:    status,
		Reason:    reason,
		StartedAt: now,
		EndedAt:   now,
	}
}
