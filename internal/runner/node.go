package runner

import (
	"context"

	"github.com/ppiankov/snipharness/internal/snippet"
)

// NodeRunner executes JavaScript snippets with node. The snippet corpus
// keeps a shared package.json and node_modules at the language root; the
// work dir gets the manifest copied in and node_modules linked so imports
// of the platform SDK resolve.
type NodeRunner struct{}

// NewNodeRunner creates a new NodeRunner.
func NewNodeRunner() *NodeRunner { return &NodeRunner{} }

func (r *NodeRunner) Name() string               { return "node" }
func (r *NodeRunner) Language() snippet.Language { return snippet.LangNode }

func (r *NodeRunner) Execute(ctx context.Context, sn *snippet.Snippet, secrets map[string]string) *snippet.RunResult {
	return execute(ctx, sn, secrets, "main.js", []string{"node"}, nodeSetup)
}

func nodeSetup(work string, sn *snippet.Snippet) error {
	if err := copyNearest(work, sn.SourcePath, "package.json"); err != nil {
		return err
	}
	return linkNearest(work, sn.SourcePath, "node_modules")
}
