package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ppiankov/snipharness/internal/config"
	"github.com/ppiankov/snipharness/internal/orchestrator"
	"github.com/ppiankov/snipharness/internal/registry"
	"github.com/ppiankov/snipharness/internal/reporter"
	"github.com/ppiankov/snipharness/internal/runner"
	"github.com/ppiankov/snipharness/internal/snippet"
)

func newRunCmd() *cobra.Command {
	var (
		root       string
		workers    int
		budget     int
		timeout    time.Duration
		deadline   time.Duration
		retries    int
		language   string
		filter     string
		reportPath string
		jsonOut    bool
		strict     bool
		tuiMode    string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Execute every discovered snippet and report outcomes",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("root") && cfg.Root != "" {
				root = cfg.Root
			}
			if !cmd.Flags().Changed("workers") && cfg.Workers > 0 {
				workers = cfg.Workers
			}
			if !cmd.Flags().Changed("budget") && cfg.Budget > 0 {
				budget = cfg.Budget
			}
			if !cmd.Flags().Changed("timeout") && cfg.Timeout > 0 {
				timeout = cfg.Timeout
			}
			if !cmd.Flags().Changed("deadline") && cfg.Deadline > 0 {
				deadline = cfg.Deadline
			}
			if !cmd.Flags().Changed("retries") && cfg.Retries > 0 {
				retries = cfg.Retries
			}
			return runSnippets(runParams{
				root:       root,
				workers:    workers,
				budget:     budget,
				timeout:    timeout,
				deadline:   deadline,
				retries:    retries,
				language:   language,
				filter:     filter,
				reportPath: reportPath,
				jsonOut:    jsonOut,
				strict:     strict,
				tuiMode:    tuiMode,
				settings:   cfg,
			})
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "snippet tree root directory")
	cmd.Flags().IntVar(&workers, "workers", config.DefaultWorkers, "max parallel snippet executions")
	cmd.Flags().IntVar(&budget, "budget", config.DefaultBudget, "max concurrent remote API calls (0 = unlimited)")
	cmd.Flags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "per-snippet timeout")
	cmd.Flags().DurationVar(&deadline, "deadline", config.DefaultDeadline, "whole-run deadline")
	cmd.Flags().IntVar(&retries, "retries", config.DefaultRetries, "retries for transient failures")
	cmd.Flags().StringVar(&language, "language", "", "only run snippets for this language")
	cmd.Flags().StringVar(&filter, "filter", "", "only run snippets matching ID glob pattern")
	cmd.Flags().StringVar(&reportPath, "report", "", "write JSON report to this path (default: run dir)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "print the JSON report to stdout instead of text")
	cmd.Flags().BoolVar(&strict, "strict", false, "exit non-zero when any snippet failed")
	cmd.Flags().StringVar(&tuiMode, "tui", "auto", "display mode: full (interactive TUI), off (no live display), auto (detect TTY)")

	return cmd
}

// runParams holds the merged flag/config inputs for one run.
type runParams struct {
	root       string
	workers    int
	budget     int
	timeout    time.Duration
	deadline   time.Duration
	retries    int
	language   string
	filter     string
	reportPath string
	jsonOut    bool
	strict     bool
	tuiMode    string
	settings   *config.Settings

	// secrets overrides environment resolution when already resolved,
	// so watch mode survives the post-resolution env scrub.
	secrets map[string]string
}

func runSnippets(p runParams) error {
	root, err := filepath.Abs(p.root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	snippets, err := registry.Discover(root, p.settings.Ignore)
	if err != nil {
		return fmt.Errorf("discover snippets: %w", err)
	}
	if len(snippets) == 0 {
		return fmt.Errorf("no snippets found under %s", root)
	}

	if p.language != "" {
		snippets = filterLanguage(snippets, p.language)
		if len(snippets) == 0 {
			return fmt.Errorf("no snippets for language %q", p.language)
		}
	}
	if p.filter != "" {
		snippets = filterSnippets(snippets, p.filter)
		if len(snippets) == 0 {
			return fmt.Errorf("no snippets match filter %q", p.filter)
		}
	}

	// resolve secrets, then scrub them from our own environment so snippet
	// subprocesses only ever see the values substituted into their bodies
	secrets := p.secrets
	if secrets == nil {
		secrets = p.settings.ResolveSecrets()
		for _, envKey := range p.settings.Secrets {
			_ = os.Unsetenv(envKey)
		}
	}
	markMissingSecrets(snippets, secrets)

	runDir := filepath.Join(".snipharness", time.Now().Format("20060102-150405"))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return fmt.Errorf("create run dir: %w", err)
	}

	isTTY := isTerminal()
	textRep := reporter.NewTextReporter(os.Stdout, isTTY)

	slog.Info("starting run", "snippets", len(snippets), "workers", p.workers, "budget", p.budget, "run_dir", runDir)
	if !p.jsonOut {
		textRep.PrintHeader(len(snippets), p.workers, p.budget)
	}

	ctx, cancel := context.WithTimeout(context.Background(), p.deadline)
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\ninterrupted — cancelling running snippets...")
		cancel()
	}()

	orch := orchestrator.New(snippets, orchestrator.Config{
		Workers: p.workers,
		Budget:  orchestrator.NewBudget(p.budget),
		Timeout: p.timeout,
		Retries: p.retries,
		Runners: runner.Registry(),
		Secrets: secrets,
		OnUpdate: func(id string, result *snippet.RunResult) {
			slog.Debug("snippet update", "snippet", id, "status", result.Status)
		},
	})

	batch := orch.Batch()
	batch.RunID = uuid.NewString()
	batch.Root = root
	batch.Budget = p.budget
	batch.Filter = p.filter

	displayMode := p.tuiMode
	if displayMode == "" || displayMode == "auto" {
		if isTTY && !p.jsonOut {
			displayMode = "full"
		} else {
			displayMode = "off"
		}
	}

	var tuiProgram *tea.Program
	if displayMode == "full" {
		ids := make([]string, 0, len(snippets))
		for _, sn := range snippets {
			ids = append(ids, sn.ID)
		}
		tuiModel := reporter.NewTUIModel(ids, orch.Results, cancel)
		tuiProgram = tea.NewProgram(tuiModel, tea.WithAltScreen())
		go func() {
			if _, err := tuiProgram.Run(); err != nil {
				slog.Warn("TUI error", "error", err)
			}
		}()
	}

	batch = orch.Run(ctx)

	if tuiProgram != nil {
		tuiProgram.Quit()
		time.Sleep(100 * time.Millisecond)
	}

	if p.jsonOut {
		if err := reporter.RenderJSON(batch, os.Stdout); err != nil {
			return err
		}
	} else {
		textRep.PrintBatch(batch)
		textRep.PrintSummary(batch)
	}

	writeSnippetLogs(runDir, batch)

	reportPath := p.reportPath
	if reportPath == "" {
		reportPath = filepath.Join(runDir, "report.json")
	}
	if err := reporter.WriteJSONReport(batch, reportPath); err != nil {
		slog.Warn("failed to write report", "error", err)
	} else if !p.jsonOut {
		fmt.Fprintf(os.Stdout, "\nReport: %s\n", reportPath)
	}

	if p.strict && batch.Failed+batch.Toolchain+batch.TimedOut > 0 {
		return &SnippetFailuresError{
			Failed:    batch.Failed,
			Toolchain: batch.Toolchain,
			TimedOut:  batch.TimedOut,
		}
	}
	return nil
}

// SnippetFailuresError indicates snippets failed under --strict.
// Callers should map this to exit code 3.
type SnippetFailuresError struct {
	Failed    int
	Toolchain int
	TimedOut  int
}

func (e *SnippetFailuresError) Error() string {
	return fmt.Sprintf("%d snippets failed (%d toolchain errors, %d timeouts)",
		e.Failed+e.Toolchain+e.TimedOut, e.Toolchain, e.TimedOut)
}

func filterLanguage(snippets []*snippet.Snippet, language string) []*snippet.Snippet {
	var filtered []*snippet.Snippet
	for _, sn := range snippets {
		if string(sn.Language) == language {
			filtered = append(filtered, sn)
		}
	}
	return filtered
}

func filterSnippets(snippets []*snippet.Snippet, pattern string) []*snippet.Snippet {
	var filtered []*snippet.Snippet
	for _, sn := range snippets {
		if registry.MatchGlob(sn.ID, pattern) {
			filtered = append(filtered, sn)
		}
	}
	return filtered
}

// markMissingSecrets skips snippets whose declared secret has no resolved
// value. Running them would ship a literal placeholder to the API.
func markMissingSecrets(snippets []*snippet.Snippet, secrets map[string]string) {
	for _, sn := range snippets {
		if !sn.Runnable() {
			continue
		}
		for _, name := range sn.RequiredSecrets {
			if _, ok := secrets[name]; !ok {
				sn.SkipReason = fmt.Sprintf("missing secret %s", name)
				break
			}
		}
	}
}

// writeSnippetLogs saves captured stdout/stderr per snippet under the run
// dir so each run is self-contained without re-executing anything.
func writeSnippetLogs(runDir string, batch *snippet.RunBatch) {
	for _, res := range batch.Results {
		if res.Stdout == "" && res.Stderr == "" {
			continue
		}
		dir := filepath.Join(runDir, filepath.FromSlash(res.SnippetID))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			slog.Warn("failed to create log dir", "snippet", res.SnippetID, "error", err)
			continue
		}
		if res.Stdout != "" {
			_ = os.WriteFile(filepath.Join(dir, "stdout.log"), []byte(res.Stdout), 0o644)
		}
		if res.Stderr != "" {
			_ = os.WriteFile(filepath.Join(dir, "stderr.log"), []byte(res.Stderr), 0o644)
		}
	}
}
