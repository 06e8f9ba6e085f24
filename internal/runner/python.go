package runner

import (
	"context"

	"github.com/ppiankov/snipharness/internal/snippet"
)

// PythonRunner executes Python snippets with the system interpreter.
// The platform SDK is assumed installed in the interpreter's environment.
type PythonRunner struct{}

// NewPythonRunner creates a new PythonRunner.
func NewPythonRunner() *PythonRunner { return &PythonRunner{} }

func (r *PythonRunner) Name() string               { return "python" }
func (r *PythonRunner) Language() snippet.Language { return snippet.LangPython }

func (r *PythonRunner) Execute(ctx context.Context, sn *snippet.Snippet, secrets map[string]string) *snippet.RunResult {
	return execute(ctx, sn, secrets, "main.py", []string{"python3"}, nil)
}
