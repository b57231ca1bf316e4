// Package cmd implements the termtree command line.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/agentic-research/termtree/internal/config"
	"github.com/agentic-research/termtree/internal/logging"
	"github.com/agentic-research/termtree/internal/termstore"
)

// Version is set at build time via ldflags.
var Version = "dev"

// rootOptions holds the persistent flags and the configuration they resolve to.
type rootOptions struct {
	configPath string
	dbPath     string
	driver     string
	dsn        string
	logLevel   string
	logFormat  string

	cfg    config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "termtree",
		Short:         "Load taxonomy vocabularies as nested, weight-ordered trees",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolve(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to config.yaml (default ~/.agentic-research/termtree/config.yaml)")
	pf.StringVar(&opts.dbPath, "db", "", "SQLite database file")
	pf.StringVar(&opts.driver, "driver", "", "Storage driver: sqlite, postgres or memory")
	pf.StringVar(&opts.dsn, "dsn", "", "Postgres connection string")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")

	root.AddCommand(
		newImportCmd(opts),
		newTreeCmd(opts),
		newVocabulariesCmd(opts),
		newGenCmd(opts),
		newMountCmd(opts),
		newServeCmd(opts),
	)
	return root
}

// resolve loads the config file and environment, applies explicitly set
// flags on top and installs the process logger.
func (o *rootOptions) resolve(cmd *cobra.Command) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.Storage.Path = o.dbPath
	}
	if flags.Changed("driver") {
		cfg.Storage.Driver = o.driver
	}
	if flags.Changed("dsn") {
		cfg.Storage.DSN = o.dsn
		if !flags.Changed("driver") {
			cfg.Storage.Driver = "postgres"
		}
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = o.logFormat
	}
	o.cfg = cfg
	o.logger = logging.Init(cmd.ErrOrStderr(), cfg.Log.Format, logging.ParseLevel(cfg.Log.Level))
	return nil
}

func (o *rootOptions) openStore(ctx context.Context) (termstore.Store, error) {
	s, err := termstore.Open(ctx, o.cfg.Storage)
	if err != nil {
		return nil, err
	}
	o.logger.Debug("storage: opened", "driver", o.cfg.Storage.Driver)
	return s, nil
}

// Execute runs the root command.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
