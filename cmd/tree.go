package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/agentic-research/termtree/internal/taxonomy"
)

func newTreeCmd(opts *rootOptions) *cobra.Command {
	var (
		format string
		strict bool
		flat   bool
	)
	cmd := &cobra.Command{
		Use:   "tree [vocabulary]",
		Short: "Print a vocabulary as a nested tree",
		Long: `Tree loads the vocabulary and prints it. With --format auto (the default)
a terminal gets an indented outline and anything else gets JSON.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			tree, err := opts.loadTree(store, args[0], strict)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch format {
			case "json":
			case "text":
				return writeOutline(out, tree)
			case "auto", "":
				if isTerminal(out) {
					return writeOutline(out, tree)
				}
			default:
				return fmt.Errorf("unknown output format %q", format)
			}
			var v any = tree
			if flat {
				placements := tree.Flatten()
				if placements == nil {
					placements = []taxonomy.Placement{}
				}
				v = placements
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(v)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "o", "auto", "Output format: auto, text or json")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on inconsistent hierarchy data instead of skipping it")
	cmd.Flags().BoolVar(&flat, "flat", false, "With JSON output, print (id, parent, depth) placements")
	return cmd
}

func (o *rootOptions) loadTree(storage taxonomy.TermStorage, vocabulary string, strict bool) (*taxonomy.Tree, error) {
	builderOpts := []taxonomy.Option{taxonomy.WithLogger(o.logger)}
	if strict {
		builderOpts = append(builderOpts, taxonomy.WithStrict())
	}
	return taxonomy.NewTreeBuilder(storage, builderOpts...).Load(vocabulary)
}

// writeOutline prints one indented line per placed node followed by a
// summary line.
func writeOutline(w io.Writer, tree *taxonomy.Tree) error {
	distinct := make(map[string]struct{})
	placements := 0
	err := tree.Walk(func(n, _ *taxonomy.TermNode, depth int) error {
		distinct[n.ID] = struct{}{}
		placements++
		name := n.Name
		if name == "" {
			name = n.ID
		}
		_, err := fmt.Fprintf(w, "%s%s (%s)\n", strings.Repeat("  ", depth), name, n.ID)
		return err
	})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s %s, %s %s\n",
		humanize.Comma(int64(len(distinct))), plural(len(distinct), "term", "terms"),
		humanize.Comma(int64(placements)), plural(placements, "placement", "placements"))
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
