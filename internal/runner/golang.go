package runner

import (
	"context"

	"github.com/ppiankov/snipharness/internal/snippet"
)

// GoRunner compiles and runs Go snippets via go run. The corpus keeps one
// go.mod/go.sum at the language root covering the platform SDK; both are
// copied next to the materialized body so the build resolves against the
// pre-provisioned module cache.
type GoRunner struct{}

// NewGoRunner creates a new GoRunner.
func NewGoRunner() *GoRunner { return &GoRunner{} }

func (r *GoRunner) Name() string               { return "go" }
func (r *GoRunner) Language() snippet.Language { return snippet.LangGo }

func (r *GoRunner) Execute(ctx context.Context, sn *snippet.Snippet, secrets map[string]string) *snippet.RunResult {
	return execute(ctx, sn, secrets, "main.go", []string{"go", "run"}, goSetup)
}

func goSetup(work string, sn *snippet.Snippet) error {
	if err := copyNearest(work, sn.SourcePath, "go.mod"); err != nil {
		return err
	}
	return copyNearest(work, sn.SourcePath, "go.sum")
}
