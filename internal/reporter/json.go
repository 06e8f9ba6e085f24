package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/ppiankov/snipharness/internal/snippet"
)

// jsonReport is the machine-readable report shape: the batch plus results
// re-keyed into a sorted array so output is byte-stable across runs.
type jsonReport struct {
	*snippet.RunBatch
	Results []*snippet.RunResult `json:"results"`
}

// RenderJSON writes the batch as indented JSON with results sorted by
// snippet ID.
func RenderJSON(batch *snippet.RunBatch, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(jsonReport{RunBatch: batch, Results: batch.SortedResults()}); err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	return nil
}

// WriteJSONReport writes the batch report to the given path.
func WriteJSONReport(batch *snippet.RunBatch, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	defer func() { _ = f.Close() }()

	if err := RenderJSON(batch, f); err != nil {
		return err
	}
	return f.Close()
}
