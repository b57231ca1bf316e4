package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentic-research/termtree/internal/codegen"
)

func newGenCmd(opts *rootOptions) *cobra.Command {
	var (
		pkg    string
		output string
	)
	cmd := &cobra.Command{
		Use:   "gen [vocabulary]",
		Short: "Generate Go constants for the terms of a vocabulary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vocabulary := args[0]
			if pkg == "" {
				pkg = strings.ToLower(codegen.Identifier(vocabulary))
			}

			store, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tree, err := opts.loadTree(store, vocabulary, false)
			if err != nil {
				return err
			}
			src, err := codegen.GenerateGo(pkg, vocabulary, tree)
			if err != nil {
				return err
			}

			if output == "" || output == "-" {
				_, err = cmd.OutOrStdout().Write(src)
				return err
			}
			if err := os.WriteFile(output, src, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			opts.logger.Info("gen: wrote file", "path", output, "vocabulary", vocabulary)
			return nil
		},
	}
	cmd.Flags().StringVarP(&pkg, "package", "p", "", "Package name (default derived from the vocabulary id)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default stdout)")
	return cmd
}
