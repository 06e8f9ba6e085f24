package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ppiankov/snipharness/internal/snippet"
)

// maxCaptureBytes bounds how much of each output stream is retained in the
// RunResult. Snippets that stream large responses keep the head.
const maxCaptureBytes = 64 * 1024

// setupFn prepares the materialized work directory before the subprocess
// starts (module files, dependency links). It may be nil.
type setupFn func(work string, sn *snippet.Snippet) error

// execute is the shared adapter core: materialize the snippet body with
// placeholders substituted, spawn the runtime under its own process group,
// capture bounded output, and classify the outcome. The context carries the
// effective deadline; on expiry the whole process tree is killed.
func execute(ctx context.Context, sn *snippet.Snippet, secrets map[string]string, entryName string, argv []string, setup setupFn) *snippet.RunResult {
	start := time.Now()
	result := &snippet.RunResult{
		SnippetID: sn.ID,
		Language:  sn.Language,
		StartedAt: start,
	}

	work, err := os.MkdirTemp("", "snipharness-*")
	if err != nil {
		return finish(result, snippet.StatusToolchainError, fmt.Sprintf("create work dir: %v", err))
	}
	defer func() { _ = os.RemoveAll(work) }()

	body := substitute(sn.Body, secrets)
	entry := filepath.Join(work, entryName)
	if err := os.WriteFile(entry, []byte(body), 0o644); err != nil {
		return finish(result, snippet.StatusToolchainError, fmt.Sprintf("materialize snippet: %v", err))
	}
	if setup != nil {
		if err := setup(work, sn); err != nil {
			return finish(result, snippet.StatusToolchainError, fmt.Sprintf("prepare work dir: %v", err))
		}
	}

	slog.Debug("spawning snippet", "id", sn.ID, "cmd", argv[0])

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Args = append(cmd.Args, entryName)
	cmd.Dir = work
	stdout := newTransientWriter(maxCaptureBytes)
	stderr := newTransientWriter(maxCaptureBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setupProcessGroup(cmd)

	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return finish(result, snippet.StatusToolchainError, fmt.Sprintf("%s not found on PATH", argv[0]))
		}
		return finish(result, snippet.StatusToolchainError, fmt.Sprintf("start %s: %v", argv[0], err))
	}

	waitErr := cmd.Wait()

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	result.ExitCode = cmd.ProcessState.ExitCode()

	if ctx.Err() != nil {
		return finish(result, snippet.StatusTimeout, "deadline exceeded")
	}
	if waitErr != nil {
		reason := fmt.Sprintf("exit code %d", result.ExitCode)
		if stdout.TransientReason() != "" {
			reason = stdout.TransientReason()
		} else if stderr.TransientReason() != "" {
			reason = stderr.TransientReason()
		}
		return finish(result, snippet.StatusFail, reason)
	}
	return finish(result, snippet.StatusPass, "")
}

func finish(r *snippet.RunResult, status snippet.Status, reason string) *snippet.RunResult {
	r.Status = status
	r.Reason = reason
	r.EndedAt = time.Now()
	r.DurationMS = r.EndedAt.Sub(r.StartedAt).Milliseconds()
	return r
}

// substitute replaces <<name>> placeholders with their scoped values.
// Undeclared placeholders are left intact.
func substitute(body string, secrets map[string]string) string {
	for name, value := range secrets {
		body = strings.ReplaceAll(body, "<<"+name+">>", value)
	}
	return body
}

// copyNearest walks up from the snippet's source directory looking for the
// named file and copies the first match into the work dir. Snippet corpora
// keep shared build files (go.mod, package.json) at the language root.
func copyNearest(work, sourcePath, name string) error {
	dir := filepath.Dir(sourcePath)
	for {
		candidate := filepath.Join(dir, name)
		if data, err := os.ReadFile(candidate); err == nil {
			return os.WriteFile(filepath.Join(work, name), data, 0o644)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil // not found: the runtime decides whether it matters
		}
		dir = parent
	}
}

// linkNearest symlinks the nearest directory of the given name (e.g.
// node_modules) into the work dir so module resolution finds it.
func linkNearest(work, sourcePath, name string) error {
	dir := filepath.Dir(sourcePath)
	for {
		candidate := filepath.Join(dir, name)
		if fi, err := os.Stat(candidate); err == nil && fi.IsDir() {
			return os.Symlink(candidate, filepath.Join(work, name))
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return nil
		}
		dir = parent
	}
}
