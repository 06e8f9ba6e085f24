package runner

import (
	"context"

	"github.com/ppiankov/snipharness/internal/snippet"
)

// JavaRunner executes Java snippets through the single-file source
// launcher (java Main.java). The platform SDK jars are expected on the
// default classpath of the pre-provisioned JDK.
type JavaRunner struct{}

// NewJavaRunner creates a new JavaRunner.
func NewJavaRunner() *JavaRunner { return &JavaRunner{} }

func (r *JavaRunner) Name() string               { return "java" }
func (r *JavaRunner) Language() snippet.Language { return snippet.LangJava }

func (r *JavaRunner) Execute(ctx context.Context, sn *snippet.Snippet, secrets map[string]string) *snippet.RunResult {
	return execute(ctx, sn, secrets, "Main.java", []string{"java"}, nil)
}
