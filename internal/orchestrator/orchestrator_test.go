package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ppiankov/snipharness/internal/runner"
	"github.com/ppiankov/snipharness/internal/snippet"
)

// fakeRunner scripts per-snippet outcomes. Each Execute call on a snippet
// consumes the next scripted outcome; the last one repeats.
type fakeRunner struct {
	lang    snippet.Language
	mu      sync.Mutex
	scripts map[string][]*snippet.RunResult
	calls   map[string]int

	delay       time.Duration
	inFlight    int64
	maxInFlight int64
}

func newFakeRunner(lang snippet.Language) *fakeRunner {
	return &fakeRunner{
		lang:    lang,
		scripts: make(map[string][]*snippet.RunResult),
		calls:   make(map[string]int),
	}
}

func (f *fakeRunner) script(id string, outcomes ...*snippet.RunResult) {
	f.scripts[id] = outcomes
}

func (f *fakeRunner) Name() string               { return "fake-" + string(f.lang) }
func (f *fakeRunner) Language() snippet.Language { return f.lang }

func (f *fakeRunner) Execute(ctx context.Context, sn *snippet.Snippet, secrets map[string]string) *snippet.RunResult {
	cur := atomic.AddInt64(&f.inFlight, 1)
	for {
		max := atomic.LoadInt64(&f.maxInFlight)
		if cur <= max || atomic.CompareAndSwapInt64(&f.maxInFlight, max, cur) {
			break
		}
	}
	defer atomic.AddInt64(&f.inFlight, -1)

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			r := pass(sn.ID)
			r.Status = snippet.StatusTimeout
			r.Reason = "deadline exceeded"
			return r
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	outcomes := f.scripts[sn.ID]
	if len(outcomes) == 0 {
		return pass(sn.ID)
	}
	i := f.calls[sn.ID]
	f.calls[sn.ID]++
	if i >= len(outcomes) {
		i = len(outcomes) - 1
	}
	cpy := *outcomes[i]
	return &cpy
}

func pass(id string) *snippet.RunResult {
	return &snippet.RunResult{SnippetID: id, Language: snippet.LangShell, Status: snippet.StatusPass}
}

func fail(id, reason string) *snippet.RunResult {
	return &snippet.RunResult{SnippetID: id, Language: snippet.LangShell, Status: snippet.StatusFail, Reason: reason, ExitCode: 1}
}

func shellSnippets(ids ...string) []*snippet.Snippet {
	out := make([]*snippet.Snippet, len(ids))
	for i, id := range ids {
		out[i] = &snippet.Snippet{ID: id, Language: snippet.LangShell, Body: "echo hi"}
	}
	return out
}

func runnersFor(f *fakeRunner) map[snippet.Language]runner.Runner {
	return map[snippet.Language]runner.Runner{f.lang: f}
}

func TestRun_OneResultPerSnippet(t *testing.T) {
	f := newFakeRunner(snippet.LangShell)
	f.script("shell/b", fail("shell/b", "exit code 1"))

	sns := shellSnippets("shell/a", "shell/b", "shell/c")
	sns = append(sns,
		&snippet.Snippet{ID: "shell/bad", Language: snippet.LangShell, Invalid: true, InvalidReason: "empty snippet file"},
		&snippet.Snippet{ID: "ruby/x", Language: snippet.Language("ruby"), SkipReason: "unsupported language"},
	)

	o := New(sns, Config{Workers: 2, Runners: runnersFor(f)})
	batch := o.Run(context.Background())

	if len(batch.Results) != 5 {
		t.Fatalf("expected 5 results, got %d", len(batch.Results))
	}
	for id, r := range batch.Results {
		if !r.Status.Terminal() {
			t.Errorf("%s: non-terminal status %s", id, r.Status)
		}
	}
	if batch.Results["shell/bad"].Status != snippet.StatusToolchainError {
		t.Errorf("invalid snippet: got %s", batch.Results["shell/bad"].Status)
	}
	if r := batch.Results["ruby/x"]; r.Status != snippet.StatusSkipped || r.Reason != "unsupported language" {
		t.Errorf("unsupported language: got %s (%s)", r.Status, r.Reason)
	}
	if batch.Passed != 2 || batch.Failed != 1 || batch.Toolchain != 1 || batch.Skipped != 1 {
		t.Errorf("unexpected counts: %+v", batch)
	}
}

func TestRun_DeterministicAcrossRuns(t *testing.T) {
	build := func() *snippet.RunBatch {
		f := newFakeRunner(snippet.LangShell)
		f.script("shell/b", fail("shell/b", "exit code 1"))
		o := New(shellSnippets("shell/a", "shell/b", "shell/c", "shell/d"), Config{Workers: 4, Runners: runnersFor(f)})
		return o.Run(context.Background())
	}

	first := build()
	for i := 0; i < 5; i++ {
		again := build()
		for id, r := range first.Results {
			if again.Results[id].Status != r.Status {
				t.Fatalf("run %d: %s status %s != %s", i, id, again.Results[id].Status, r.Status)
			}
		}
	}
}

func TestRun_WorkerCountDoesNotChangeOutcomes(t *testing.T) {
	statuses := func(workers int) map[string]snippet.Status {
		f := newFakeRunner(snippet.LangShell)
		f.script("shell/b", fail("shell/b", "exit code 1"))
		f.script("shell/d", fail("shell/d", "exit code 2"))
		o := New(shellSnippets("shell/a", "shell/b", "shell/c", "shell/d", "shell/e"),
			Config{Workers: workers, Runners: runnersFor(f)})
		batch := o.Run(context.Background())
		out := make(map[string]snippet.Status)
		for id, r := range batch.Results {
			out[id] = r.Status
		}
		return out
	}

	one := statuses(1)
	for _, n := range []int{2, 4, 8} {
		got := statuses(n)
		for id, s := range one {
			if got[id] != s {
				t.Errorf("workers=%d: %s = %s, want %s", n, id, got[id], s)
			}
		}
	}
}

func TestRun_TransientRetriedThenPass(t *testing.T) {
	f := newFakeRunner(snippet.LangShell)
	f.script("shell/flaky",
		fail("shell/flaky", "remote 429"),
		fail("shell/flaky", "remote 5xx"),
		fail("shell/flaky", "connection reset"),
		pass("shell/flaky"),
	)

	o := New(shellSnippets("shell/flaky"), Config{Workers: 1, Retries: 3, Runners: runnersFor(f)})
	batch := o.Run(context.Background())

	r := batch.Results["shell/flaky"]
	if r.Status != snippet.StatusPass {
		t.Fatalf("expected PASS after retries, got %s (%s)", r.Status, r.Reason)
	}
	if r.RetryCount != 3 {
		t.Errorf("expected retryCount 3, got %d", r.RetryCount)
	}
}

func TestRun_ClientErrorNotRetried(t *testing.T) {
	f := newFakeRunner(snippet.LangShell)
	f.script("shell/bad-request",
		fail("shell/bad-request", "exit code 1"),
		pass("shell/bad-request"),
	)

	o := New(shellSnippets("shell/bad-request"), Config{Workers: 1, Retries: 3, Runners: runnersFor(f)})
	batch := o.Run(context.Background())

	r := batch.Results["shell/bad-request"]
	if r.Status != snippet.StatusFail {
		t.Fatalf("client error must not be retried, got %s", r.Status)
	}
	if r.RetryCount != 0 {
		t.Errorf("expected retryCount 0, got %d", r.RetryCount)
	}
	if f.calls["shell/bad-request"] != 1 {
		t.Errorf("expected exactly 1 attempt, got %d", f.calls["shell/bad-request"])
	}
}

func TestRun_RetryBoundRespected(t *testing.T) {
	f := newFakeRunner(snippet.LangShell)
	f.script("shell/always-down", fail("shell/always-down", "remote 5xx"))

	o := New(shellSnippets("shell/always-down"), Config{Workers: 1, Retries: 2, Runners: runnersFor(f)})
	batch := o.Run(context.Background())

	r := batch.Results["shell/always-down"]
	if r.Status != snippet.StatusFail || r.RetryCount != 2 {
		t.Fatalf("expected FAIL with 2 retries, got %s retries=%d", r.Status, r.RetryCount)
	}
	if f.calls["shell/always-down"] != 3 {
		t.Errorf("expected 3 attempts total, got %d", f.calls["shell/always-down"])
	}
}

func TestRun_GlobalDeadlineMarksTimeout(t *testing.T) {
	f := newFakeRunner(snippet.LangShell)
	f.delay = 5 * time.Second

	sns := shellSnippets("shell/a", "shell/b", "shell/c", "shell/d")
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	o := New(sns, Config{Workers: 1, Runners: runnersFor(f)})
	batch := o.Run(ctx)
	elapsed := time.Since(start)

	if elapsed > 3*time.Second {
		t.Errorf("deadline not enforced promptly: %s", elapsed)
	}
	if len(batch.Results) != 4 {
		t.Fatalf("expected 4 results, got %d", len(batch.Results))
	}
	for id, r := range batch.Results {
		if r.Status != snippet.StatusTimeout {
			t.Errorf("%s: expected TIMEOUT, got %s", id, r.Status)
		}
	}
}

func TestRun_BudgetLimitsRemoteConcurrency(t *testing.T) {
	f := newFakeRunner(snippet.LangShell)
	f.delay = 50 * time.Millisecond

	sns := shellSnippets("shell/a", "shell/b", "shell/c", "shell/d", "shell/e", "shell/f")
	for _, sn := range sns {
		sn.RequiredSecrets = []string{"apiKey"}
	}

	o := New(sns, Config{
		Workers: 6,
		Budget:  NewBudget(2),
		Runners: runnersFor(f),
		Secrets: map[string]string{"apiKey": "sk-1"},
	})
	batch := o.Run(context.Background())

	if batch.Passed != 6 {
		t.Fatalf("expected 6 passes, got %+v", batch)
	}
	if max := atomic.LoadInt64(&f.maxInFlight); max > 2 {
		t.Errorf("budget violated: %d concurrent remote executions", max)
	}
}

func TestRun_LocalSnippetsBypassBudget(t *testing.T) {
	f := newFakeRunner(snippet.LangShell)
	f.delay = 50 * time.Millisecond

	// no RequiredSecrets: snippets don't call the service, budget of 1
	// must not serialize them
	sns := shellSnippets("shell/a", "shell/b", "shell/c", "shell/d")
	o := New(sns, Config{Workers: 4, Budget: NewBudget(1), Runners: runnersFor(f)})

	start := time.Now()
	batch := o.Run(context.Background())
	elapsed := time.Since(start)

	if batch.Passed != 4 {
		t.Fatalf("expected 4 passes, got %+v", batch)
	}
	if elapsed > 150*time.Millisecond {
		t.Errorf("local snippets appear serialized by budget: %s", elapsed)
	}
}

func TestRun_OnUpdateReceivesTerminalStates(t *testing.T) {
	f := newFakeRunner(snippet.LangShell)

	var mu sync.Mutex
	last := make(map[string]snippet.Status)
	o := New(shellSnippets("shell/a", "shell/b"), Config{
		Workers: 2,
		Runners: runnersFor(f),
		OnUpdate: func(id string, r *snippet.RunResult) {
			mu.Lock()
			last[id] = r.Status
			mu.Unlock()
		},
	})
	o.Run(context.Background())

	mu.Lock()
	defer mu.Unlock()
	for _, id := range []string{"shell/a", "shell/b"} {
		if last[id] != snippet.StatusPass {
			t.Errorf("%s: last update %s, want PASS", id, last[id])
		}
	}
}
