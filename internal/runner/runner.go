package runner

import (
	"context"

	"github.com/ppiankov/snipharness/internal/snippet"
)

// Runner executes one snippet and classifies its outcome.
// Implementations: ShellRunner, PythonRunner, NodeRunner, TypeScriptRunner,
// GoRunner, JavaRunner. Adapters are stateless, never retry, and must not
// leave child processes running after Execute returns.
//
// The secrets map is scoped per invocation: it contains only the values the
// snippet declared via <<name>> placeholders.
type Runner interface {
	Name() string
	Language() snippet.Language
	Execute(ctx context.Context, sn *snippet.Snippet, secrets map[string]string) *snippet.RunResult
}

// Registry builds the adapter set keyed by language.
func Registry() map[snippet.Language]Runner {
	all := []Runner{
		NewShellRunner(),
		NewPythonRunner(),
		NewNodeRunner(),
		NewTypeScriptRunner(),
		NewGoRunner(),
		NewJavaRunner(),
	}
	m := make(map[snippet.Language]Runner, len(all))
	for _, r := range all {
		m[r.Language()] = r
	}
	return m
}
