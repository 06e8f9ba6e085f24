package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ppiankov/snipharness/internal/config"
	"github.com/ppiankov/snipharness/internal/registry"
	"github.com/ppiankov/snipharness/internal/reporter"
)

func newListCmd() *cobra.Command {
	var (
		root     string
		language string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered snippets without executing them",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadSettings(configFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if !cmd.Flags().Changed("root") && cfg.Root != "" {
				root = cfg.Root
			}

			absRoot, err := filepath.Abs(root)
			if err != nil {
				return fmt.Errorf("resolve root: %w", err)
			}
			snippets, err := registry.Discover(absRoot, cfg.Ignore)
			if err != nil {
				return fmt.Errorf("discover snippets: %w", err)
			}
			if language != "" {
				snippets = filterLanguage(snippets, language)
			}

			textRep := reporter.NewTextReporter(os.Stdout, isTerminal())
			textRep.PrintList(snippets)
			return nil
		},
	}

	cmd.Flags().StringVar(&root, "root", ".", "snippet tree root directory")
	cmd.Flags().StringVar(&language, "language", "", "only list snippets for this language")

	return cmd
}
