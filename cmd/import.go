package cmd

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/agentic-research/termtree/internal/ingest"
)

func newImportCmd(opts *rootOptions) *cobra.Command {
	var (
		format   string
		selector string
	)
	cmd := &cobra.Command{
		Use:   "import [source...]",
		Short: "Import vocabularies from JSON, YAML, HCL or a Drupal SQLite database",
		Long: `Import replaces each vocabulary found in the sources. Sources are local
paths, file:// URIs or s3://bucket/key objects. The format follows the file
extension unless --format is given.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ingestOpts := ingest.Options{Selector: selector}
			if format != "" {
				f, err := ingest.ParseFormat(format)
				if err != nil {
					return err
				}
				ingestOpts.Format = f
			}

			store, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			engine := ingest.NewEngine(store, ingest.NewFetcher(opts.cfg.S3), opts.logger)
			var total ingest.Stats
			for _, src := range args {
				stats, err := engine.Ingest(cmd.Context(), src, ingestOpts)
				if err != nil {
					return fmt.Errorf("import %s: %w", src, err)
				}
				total.Vocabularies += stats.Vocabularies
				total.Terms += stats.Terms
				total.Bytes += stats.Bytes
				total.Duration += stats.Duration
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "Imported %s %s with %s %s (%s) in %v.\n",
				humanize.Comma(int64(total.Vocabularies)), plural(total.Vocabularies, "vocabulary", "vocabularies"),
				humanize.Comma(int64(total.Terms)), plural(total.Terms, "term", "terms"),
				humanize.Bytes(uint64(total.Bytes)), total.Duration.Round(time.Millisecond))
			return err
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Source format: json, yaml, hcl or drupal")
	cmd.Flags().StringVar(&selector, "selector", "", "JSONPath selecting vocabulary objects in JSON sources (default $)")
	return cmd
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
