package snippet

import (
	"sort"
	"time"
)

// Language identifies a supported snippet runtime.
type Language string

const (
	LangShell      Language = "shell"
	LangPython     Language = "python"
	LangNode       Language = "node"
	LangTypeScript Language = "typescript"
	LangGo         Language = "go"
	LangJava       Language = "java"
)

// Languages lists all supported languages in a stable order.
func Languages() []Language {
	return []Language{LangShell, LangPython, LangNode, LangTypeScript, LangGo, LangJava}
}

// Known reports whether the language tag is part of the supported set.
func Known(tag string) bool {
	for _, l := range Languages() {
		if string(l) == tag {
			return true
		}
	}
	return false
}

// Status represents the execution state of a snippet.
type Status int

const (
	StatusPending Status = iota
	StatusRunning
	StatusPass
	StatusFail
	StatusToolchainError
	StatusTimeout
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "PENDING"
	case StatusRunning:
		return "RUNNING"
	case StatusPass:
		return "PASS"
	case StatusFail:
		return "FAIL"
	case StatusToolchainError:
		return "TOOLCHAIN_ERROR"
	case StatusTimeout:
		return "TIMEOUT"
	case StatusSkipped:
		return "SKIPPED"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the status is a final outcome.
func (s Status) Terminal() bool {
	switch s {
	case StatusPass, StatusFail, StatusToolchainError, StatusTimeout, StatusSkipped:
		return true
	}
	return false
}

// MarshalText renders the status name into JSON reports.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snippet is one discovered code example.
type Snippet struct {
	ID              string   `json:"id"`
	Language        Language `json:"language"`
	SourcePath      string   `json:"source_path"`
	Body            string   `json:"-"`
	RequiredSecrets []string `json:"required_secrets,omitempty"`

	// Invalid marks a file that was discovered but could not be read or
	// parsed. Invalid snippets resolve as TOOLCHAIN_ERROR without running.
	Invalid       bool   `json:"invalid,omitempty"`
	InvalidReason string `json:"invalid_reason,omitempty"`

	// SkipReason marks a snippet excluded from execution (ignore list,
	// unsupported language tag, missing secret). Empty means runnable.
	SkipReason string `json:"skip_reason,omitempty"`
}

// Runnable reports whether the snippet should be dispatched to an adapter.
func (s *Snippet) Runnable() bool {
	return !s.Invalid && s.SkipReason == ""
}

// RunResult captures the outcome of executing one snippet.
type RunResult struct {
	SnippetID  string    `json:"snippet_id"`
	Language   Language  `json:"language"`
	Status     Status    `json:"status"`
	Stdout     string    `json:"stdout,omitempty"`
	Stderr     string    `json:"stderr,omitempty"`
	ExitCode   int       `json:"exit_code"`
	DurationMS int64     `json:"duration_ms"`
	RetryCount int       `json:"retry_count,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	EndedAt    time.Time `json:"ended_at,omitempty"`
}

// LangCount holds per-language status tallies.
type LangCount struct {
	Language  Language `json:"language"`
	Total     int      `json:"total"`
	Passed    int      `json:"passed"`
	Failed    int      `json:"failed"`
	Toolchain int      `json:"toolchain_errors"`
	TimedOut  int      `json:"timed_out"`
	Skipped   int      `json:"skipped"`
}

// RunBatch is the full set of outcomes for one harness invocation.
type RunBatch struct {
	RunID         string                `json:"run_id"`
	Root          string                `json:"root"`
	Timestamp     time.Time             `json:"timestamp"`
	Workers       int                   `json:"workers"`
	Budget        int                   `json:"budget"`
	Filter        string                `json:"filter,omitempty"`
	Results       map[string]*RunResult `json:"results"`
	Total         int                   `json:"total"`
	Passed        int                   `json:"passed"`
	Failed        int                   `json:"failed"`
	Toolchain     int                   `json:"toolchain_errors"`
	TimedOut      int                   `json:"timed_out"`
	Skipped       int                   `json:"skipped"`
	Languages     []LangCount           `json:"languages"`
	TotalDuration time.Duration         `json:"total_duration"`
}

// Finalize computes overall and per-language counters from Results.
func (b *RunBatch) Finalize() {
	b.Total = len(b.Results)
	b.Passed, b.Failed, b.Toolchain, b.TimedOut, b.Skipped = 0, 0, 0, 0, 0

	byLang := make(map[Language]*LangCount)
	for _, r := range b.Results {
		lc := byLang[r.Language]
		if lc == nil {
			lc = &LangCount{Language: r.Language}
			byLang[r.Language] = lc
		}
		lc.Total++
		switch r.Status {
		case StatusPass:
			b.Passed++
			lc.Passed++
		case StatusFail:
			b.Failed++
			lc.Failed++
		case StatusToolchainError:
			b.Toolchain++
			lc.Toolchain++
		case StatusTimeout:
			b.TimedOut++
			lc.TimedOut++
		case StatusSkipped:
			b.Skipped++
			lc.Skipped++
		}
	}

	b.Languages = b.Languages[:0]
	for _, lc := range byLang {
		b.Languages = append(b.Languages, *lc)
	}
	sort.Slice(b.Languages, func(i, j int) bool {
		return b.Languages[i].Language < b.Languages[j].Language
	})
}

// SortedResults returns results ordered by snippet ID.
// Report output is deterministic regardless of completion order.
func (b *RunBatch) SortedResults() []*RunResult {
	out := make([]*RunResult, 0, len(b.Results))
	for _, r := range b.Results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SnippetID < out[j].SnippetID })
	return out
}
