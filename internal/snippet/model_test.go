package snippet

import (
	"testing"
	"time"
)

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusPending:        "PENDING",
		StatusRunning:        "RUNNING",
		StatusPass:           "PASS",
		StatusFail:           "FAIL",
		StatusToolchainError: "TOOLCHAIN_ERROR",
		StatusTimeout:        "TIMEOUT",
		StatusSkipped:        "SKIPPED",
		Status(99):           "UNKNOWN",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", s, got, want)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() || StatusRunning.Terminal() {
		t.Error("pending/running must not be terminal")
	}
	for _, s := range []Status{StatusPass, StatusFail, StatusToolchainError, StatusTimeout, StatusSkipped} {
		if !s.Terminal() {
			t.Errorf("%s must be terminal", s)
		}
	}
}

func TestFinalizeCounts(t *testing.T) {
	b := &RunBatch{
		Timestamp: time.Now(),
		Results: map[string]*RunResult{
			"go/a":     {SnippetID: "go/a", Language: LangGo, Status: StatusPass},
			"go/b":     {SnippetID: "go/b", Language: LangGo, Status: StatusFail},
			"python/a": {SnippetID: "python/a", Language: LangPython, Status: StatusSkipped},
			"python/b": {SnippetID: "python/b", Language: LangPython, Status: StatusTimeout},
			"shell/a":  {SnippetID: "shell/a", Language: LangShell, Status: StatusToolchainError},
		},
	}
	b.Finalize()

	if b.Total != 5 || b.Passed != 1 || b.Failed != 1 || b.Skipped != 1 || b.TimedOut != 1 || b.Toolchain != 1 {
		t.Fatalf("unexpected totals: %+v", b)
	}
	if len(b.Languages) != 3 {
		t.Fatalf("expected 3 language rows, got %d", len(b.Languages))
	}
	// sorted by language name: go, python, shell
	if b.Languages[0].Language != LangGo || b.Languages[0].Total != 2 {
		t.Errorf("unexpected first language row: %+v", b.Languages[0])
	}
}

func TestSortedResultsDeterministic(t *testing.T) {
	b := &RunBatch{Results: map[string]*RunResult{
		"go/z": {SnippetID: "go/z"},
		"go/a": {SnippetID: "go/a"},
		"go/m": {SnippetID: "go/m"},
	}}
	got := b.SortedResults()
	want := []string{"go/a", "go/m", "go/z"}
	for i, r := range got {
		if r.SnippetID != want[i] {
			t.Fatalf("position %d: got %s, want %s", i, r.SnippetID, want[i])
		}
	}
}

func TestRunnable(t *testing.T) {
	ok := &Snippet{ID: "go/a"}
	if !ok.Runnable() {
		t.Error("plain snippet should be runnable")
	}
	if (&Snippet{ID: "go/b", Invalid: true}).Runnable() {
		t.Error("invalid snippet must not be runnable")
	}
	if (&Snippet{ID: "go/c", SkipReason: "ignored"}).Runnable() {
		t.Error("skipped snippet must not be runnable")
	}
}
