package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/ppiankov/snipharness/internal/cli"
)

func main() {
	if err := cli.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		var sfErr *cli.SnippetFailuresError
		if errors.As(err, &sfErr) {
			os.Exit(3)
		}
		os.Exit(1)
	}
}
