package reporter

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/snipharness/internal/snippet"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorDim    = "\033[2m"
)

// TextReporter writes human-readable output to a writer.
type TextReporter struct {
	w     io.Writer
	color bool
}

// NewTextReporter creates a text reporter.
// If w is nil, defaults to os.Stdout. color enables ANSI codes.
func NewTextReporter(w io.Writer, color bool) *TextReporter {
	if w == nil {
		w = os.Stdout
	}
	return &TextReporter{w: w, color: color}
}

// PrintHeader writes the initial banner.
func (r *TextReporter) PrintHeader(total, workers, budget int) {
	fmt.Fprintf(r.w, "snipharness — %d snippets, %d workers, budget %d\n\n", total, workers, budget)
}

// PrintBatch writes every result grouped by outcome, each group sorted by
// snippet ID.
func (r *TextReporter) PrintBatch(batch *snippet.RunBatch) {
	var failed, toolchain, timedOut, passed, skipped []*snippet.RunResult
	for _, res := range batch.SortedResults() {
		switch res.Status {
		case snippet.StatusFail:
			failed = append(failed, res)
		case snippet.StatusToolchainError:
			toolchain = append(toolchain, res)
		case snippet.StatusTimeout:
			timedOut = append(timedOut, res)
		case snippet.StatusPass:
			passed = append(passed, res)
		case snippet.StatusSkipped:
			skipped = append(skipped, res)
		}
	}

	total := batch.Total

	r.printSection("FAILED", colorRed, failed, total, func(res *snippet.RunResult) string {
		return fmt.Sprintf("    %-45s %6dms  ✗ %s%s", res.SnippetID, res.DurationMS, res.Reason, retrySuffix(res))
	})
	r.printSection("TOOLCHAIN", colorRed, toolchain, total, func(res *snippet.RunResult) string {
		return fmt.Sprintf("    %-45s ✗ %s", res.SnippetID, res.Reason)
	})
	r.printSection("TIMEOUT", colorYellow, timedOut, total, func(res *snippet.RunResult) string {
		return fmt.Sprintf("    %-45s %6dms  ⏱ %s", res.SnippetID, res.DurationMS, res.Reason)
	})
	r.printSection("PASSED", colorGreen, passed, total, func(res *snippet.RunResult) string {
		return fmt.Sprintf("    %-45s %6dms  ✓%s", res.SnippetID, res.DurationMS, retrySuffix(res))
	})

	if len(skipped) > 0 {
		fmt.Fprintf(r.w, "  %sSKIPPED  [%d/%d]%s\n", r.c(colorYellow), len(skipped), total, r.c(colorReset))
		for _, res := range skipped {
			fmt.Fprintf(r.w, "    %s%-45s%s  (%s)\n", r.c(colorDim), res.SnippetID, r.c(colorReset), res.Reason)
		}
		fmt.Fprintln(r.w)
	}
}

// PrintSummary writes the per-language table and the final summary line.
func (r *TextReporter) PrintSummary(batch *snippet.RunBatch) {
	fmt.Fprintf(r.w, "\n%s--- Summary ---%s\n", r.c(colorCyan), r.c(colorReset))

	for _, lc := range batch.Languages {
		fmt.Fprintf(r.w, "  %-12s pass %d  fail %d  toolchain %d  timeout %d  skip %d\n",
			lc.Language, lc.Passed, lc.Failed, lc.Toolchain, lc.TimedOut, lc.Skipped)
	}

	fmt.Fprintf(r.w, "Total: %d  ", batch.Total)
	fmt.Fprintf(r.w, "%sPassed: %d%s  ", r.c(colorGreen), batch.Passed, r.c(colorReset))
	fmt.Fprintf(r.w, "%sFailed: %d%s  ", r.c(colorRed), batch.Failed, r.c(colorReset))
	if batch.Toolchain > 0 {
		fmt.Fprintf(r.w, "%sToolchain: %d%s  ", r.c(colorRed), batch.Toolchain, r.c(colorReset))
	}
	if batch.TimedOut > 0 {
		fmt.Fprintf(r.w, "%sTimeout: %d%s  ", r.c(colorYellow), batch.TimedOut, r.c(colorReset))
	}
	fmt.Fprintf(r.w, "%sSkipped: %d%s  ", r.c(colorYellow), batch.Skipped, r.c(colorReset))
	fmt.Fprintf(r.w, "Duration: %s\n", batch.TotalDuration.Truncate(time.Second))
}

// PrintList writes the discovered snippet inventory without executing.
func (r *TextReporter) PrintList(snippets []*snippet.Snippet) {
	for _, sn := range snippets {
		note := ""
		switch {
		case sn.Invalid:
			note = r.c(colorRed) + "  [invalid: " + sn.InvalidReason + "]" + r.c(colorReset)
		case sn.SkipReason != "":
			note = r.c(colorYellow) + "  [skip: " + sn.SkipReason + "]" + r.c(colorReset)
		}
		secrets := ""
		if len(sn.RequiredSecrets) > 0 {
			secrets = fmt.Sprintf("  secrets=%v", sn.RequiredSecrets)
		}
		fmt.Fprintf(r.w, "  %-45s %-11s%s%s\n", sn.ID, sn.Language, secrets, note)
	}
	fmt.Fprintf(r.w, "\n%d snippets\n", len(snippets))
}

func (r *TextReporter) printSection(label, color string, items []*snippet.RunResult, total int, formatter func(*snippet.RunResult) string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(r.w, "  %s%s  [%d/%d]%s\n", r.c(color), label, len(items), total, r.c(colorReset))
	for _, res := range items {
		fmt.Fprintln(r.w, formatter(res))
	}
	fmt.Fprintln(r.w)
}

func (r *TextReporter) c(code string) string {
	if !r.color {
		return ""
	}
	return code
}

func retrySuffix(res *snippet.RunResult) string {
	if res.RetryCount == 0 {
		return ""
	}
	return fmt.Sprintf(" (%d retries)", res.RetryCount)
}
