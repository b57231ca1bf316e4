package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newVocabulariesCmd(opts *rootOptions) *cobra.Command {
	var quiet bool
	cmd := &cobra.Command{
		Use:     "vocabularies",
		Aliases: []string{"ls"},
		Short:   "List stored vocabularies with their term counts",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			ids, err := store.Vocabularies()
			if err != nil {
				return err
			}
			if quiet {
				for _, id := range ids {
					if _, err := fmt.Fprintln(cmd.OutOrStdout(), id); err != nil {
						return err
					}
				}
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(tw, "VOCABULARY\tTERMS")
			for _, id := range ids {
				listing, err := store.LoadTree(id)
				if err != nil {
					return err
				}
				distinct := make(map[string]struct{}, len(listing))
				for _, t := range listing {
					distinct[t.ID] = struct{}{}
				}
				_, _ = fmt.Fprintf(tw, "%s\t%s\n", id, humanize.Comma(int64(len(distinct))))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "Print vocabulary ids only")
	return cmd
}
