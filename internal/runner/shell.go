package runner

import (
	"context"

	"github.com/ppiankov/snipharness/internal/snippet"
)

// ShellRunner executes shell snippets via sh.
type ShellRunner struct{}

// NewShellRunner creates a new ShellRunner.
func NewShellRunner() *ShellRunner { return &ShellRunner{} }

func (r *ShellRunner) Name() string               { return "shell" }
func (r *ShellRunner) Language() snippet.Language { return snippet.LangShell }

// Execute materializes the snippet as a script and runs it with sh.
func (r *ShellRunner) Execute(ctx context.Context, sn *snippet.Snippet, secrets map[string]string) *snippet.RunResult {
	return execute(ctx, sn, secrets, "snippet.sh", []string{"sh"}, nil)
}
