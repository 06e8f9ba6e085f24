package runner

import (
	"context"

	"github.com/ppiankov/snipharness/internal/snippet"
)

// TypeScriptRunner executes TypeScript snippets through npx tsx, which
// compiles and runs in one invocation. Work-dir setup matches NodeRunner.
type TypeScriptRunner struct{}

// NewTypeScriptRunner creates a new TypeScriptRunner.
func NewTypeScriptRunner() *TypeScriptRunner { return &TypeScriptRunner{} }

func (r *TypeScriptRunner) Name() string               { return "typescript" }
func (r *TypeScriptRunner) Language() snippet.Language { return snippet.LangTypeScript }

func (r *TypeScriptRunner) Execute(ctx context.Context, sn *snippet.Snippet, secrets map[string]string) *snippet.RunResult {
	return execute(ctx, sn, secrets, "main.ts", []string{"npx", "--yes", "tsx"}, nodeSetup)
}
