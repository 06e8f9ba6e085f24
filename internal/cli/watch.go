package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/ppiankov/snipharness/internal/config"
)

// watchDebounce coalesces editor save bursts into one re-run.
const watchDebounce = 200 * time.Millisecond

func newWatchCmd() *cobra.Command {
	var (
		root     string
		workers  int
		budget   int
		timeout  time.Duration
		retries  int
		language string
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-run changed snippets when the tree is edited",
		Long:  "Watch monitors the snippet tree and re-runs the snippet whose source changed, so documentation edits get validated as they happen.",
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
			if !cmd.Flags().Changed("retries") && cfg.Retries > 0 {
				retries = cfg.Retries
			}
			return watchSnippets(root, workers, budget, timeout, retries, language, cfg)
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "snippet tree root directory")
	cmd.Flags().IntVar(&workers, "workers", config.DefaultWorkers, "max parallel snippet executions")
	cmd.Flags().IntVar(&budget, "budget", config.DefaultBudget, "max concurrent remote API calls (0 = unlimited)")
	cmd.Flags().DurationVar(&timeout, "timeout", config.DefaultTimeout, "per-snippet timeout")
	cmd.Flags().IntVar(&retries, "retries", config.DefaultRetries, "retries for transient failures")
	cmd.Flags().StringVar(&language, "language", "", "only watch snippets for this language")

	return cmd
}

func watchSnippets(root string, workers, budget int, timeout time.Duration, retries int, language string, cfg *config.Settings) error {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolve root: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := addTree(watcher, absRoot); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		cancel()
	}()

	fmt.Fprintf(os.Stdout, "watching %s — edit a snippet to re-run it (ctrl-c to stop)\n", absRoot)

	secrets := cfg.ResolveSecrets()
	for _, envKey := range cfg.Secrets {
		_ = os.Unsetenv(envKey)
	}

	rerun := func(filter string) {
		err := runSnippets(runParams{
			root:     absRoot,
			workers:  workers,
			budget:   budget,
			timeout:  timeout,
			deadline: config.DefaultDeadline,
			retries:  retries,
			language: language,
			filter:   filter,
			tuiMode:  "off",
			settings: cfg,
			secrets:  secrets,
		})
		var sfErr *SnippetFailuresError
		if err != nil && !errors.As(err, &sfErr) {
			slog.Error("re-run failed", "filter", filter, "error", err)
		}
	}

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	for {
		select {
		case <-ctx.Done():
			mu.Lock()
			for _, t := range pending {
				t.Stop()
			}
			mu.Unlock()
			fmt.Fprintln(os.Stdout, "\nwatch stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Create) {
				// new directories need to be watched too
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = addTree(watcher, event.Name)
					continue
				}
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			filter, ok := snippetFilterFor(absRoot, event.Name)
			if !ok {
				continue
			}

			mu.Lock()
			if t, exists := pending[filter]; exists {
				t.Stop()
			}
			pending[filter] = time.AfterFunc(watchDebounce, func() {
				fmt.Fprintf(os.Stdout, "\nchange detected: %s\n", filter)
				rerun(filter)
				mu.Lock()
				delete(pending, filter)
				mu.Unlock()
			})
			mu.Unlock()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Error("watcher error", "error", err)
		}
	}
}

// addTree registers the directory and every subdirectory with the watcher.
// fsnotify watches are not recursive.
func addTree(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if base := d.Name(); base == "node_modules" || strings.HasPrefix(base, ".") && path != root {
			return fs.SkipDir
		}
		if err := watcher.Add(path); err != nil {
			slog.Warn("watch dir", "dir", path, "error", err)
		}
		return nil
	})
}

// snippetFilterFor maps a changed file to the ID glob of the snippet it
// belongs to. Snippet IDs follow the variant directory, so the glob is the
// file's directory relative to the root.
func snippetFilterFor(root, path string) (string, bool) {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", false
	}
	dir := filepath.ToSlash(filepath.Dir(rel))
	if dir == "." || !strings.Contains(dir, "/") {
		// changes at the root or language level re-run everything under it
		if dir == "." {
			return "", false
		}
		return dir + "*", true
	}
	return dir + "*", true
}
