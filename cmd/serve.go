package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/agentic-research/termtree/internal/mcpserver"
	"github.com/agentic-research/termtree/internal/metrics"
	"github.com/agentic-research/termtree/internal/termstore"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve vocabulary trees to MCP clients over stdio",
		Long: `Serve answers list_vocabularies, load_tree and get_term over the MCP stdio
transport. SIGHUP reopens the configured storage, so a re-import into a new
database becomes visible without restarting the client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("metrics-addr") {
				opts.cfg.Metrics.Addr = metricsAddr
			}

			opened, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			store := termstore.NewHotSwapStore(opened)
			defer func() { _ = store.Close() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			go opts.reloadOnHangup(ctx, store)

			var collector *metrics.Collector
			if addr := opts.cfg.Metrics.Addr; addr != "" {
				collector = metrics.NewCollector()
				go func() {
					if err := collector.Serve(ctx, addr); err != nil {
						opts.logger.Error("metrics: server failed", "addr", addr, "error", err)
					}
				}()
			}

			srv := mcpserver.New(mcpserver.Config{
				Storage:      store,
				Vocabularies: store,
				Logger:       opts.logger,
				Metrics:      collector,
				Version:      Version,
			})
			opts.logger.Info("serve: mcp on stdio", "driver", opts.cfg.Storage.Driver)
			return srv.ServeStdio()
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Expose Prometheus metrics on this address (e.g. 127.0.0.1:9464)")
	return cmd
}

// reloadOnHangup swaps in a freshly opened store on every SIGHUP and closes
// the one it replaces.
func (o *rootOptions) reloadOnHangup(ctx context.Context, store *termstore.HotSwapStore) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			next, err := o.openStore(ctx)
			if err != nil {
				o.logger.Warn("serve: reload failed, keeping current storage", "error", err)
				continue
			}
			if prev := store.Swap(next); prev != nil {
				_ = prev.Close()
			}
			o.logger.Info("serve: storage reloaded", "driver", o.cfg.Storage.Driver)
		}
	}
}
