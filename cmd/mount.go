package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	termfs "github.com/agentic-research/termtree/internal/fs"
	"github.com/agentic-research/termtree/internal/graph"
	"github.com/agentic-research/termtree/internal/nfsmount"
	"github.com/agentic-research/termtree/internal/taxonomy"
)

func newMountCmd(opts *rootOptions) *cobra.Command {
	var (
		useNFS  bool
		nfsAddr string
		refresh time.Duration
		strict  bool
	)
	cmd := &cobra.Command{
		Use:   "mount [vocabulary] [mountpoint]",
		Short: "Mount a vocabulary tree as a read-only filesystem",
		Long: `Mount projects the vocabulary as directories, one per placed term, each
holding term.json and name files. The whole tree is also available as
_tree.json at the root. FUSE (fuse-t/cgofuse) is used unless --nfs is set.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			vocabulary, mountPoint := args[0], args[1]

			store, err := opts.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			g, err := opts.project(store, vocabulary, strict)
			if err != nil {
				return err
			}
			hot := graph.NewHotSwapGraph(g)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if refresh > 0 {
				go opts.refreshLoop(ctx, hot, store, vocabulary, strict, refresh)
			}

			if useNFS {
				info := nfsmount.MountInfo{Vocabulary: vocabulary, Driver: opts.cfg.Storage.Driver}
				return serveNFS(ctx, cmd, nfsmount.NewGraphFS(hot, info), nfsAddr, mountPoint)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Mounting %s at %s (using fuse-t/cgofuse)...\n", vocabulary, mountPoint)
			// uid/gid make the mount ours, which fuse-t needs.
			mountOpts := []string{
				"-o", fmt.Sprintf("uid=%d", os.Getuid()),
				"-o", fmt.Sprintf("gid=%d", os.Getgid()),
			}
			if !termfs.Mount(termfs.NewTermFS(hot), mountPoint, mountOpts) {
				return fmt.Errorf("mount failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&useNFS, "nfs", false, "Serve over NFSv3 and mount with the system NFS client")
	cmd.Flags().StringVar(&nfsAddr, "nfs-addr", "", "NFS listen address (default an ephemeral loopback port)")
	cmd.Flags().DurationVar(&refresh, "refresh", 0, "Reload the tree from storage at this interval (0 disables)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Fail on inconsistent hierarchy data instead of skipping it")
	return cmd
}

// project loads the vocabulary and lays it out as a graph.
func (o *rootOptions) project(storage taxonomy.TermStorage, vocabulary string, strict bool) (*graph.MemoryStore, error) {
	tree, err := o.loadTree(storage, vocabulary, strict)
	if err != nil {
		return nil, err
	}
	g, err := graph.Project(vocabulary, tree, time.Now())
	if err != nil {
		return nil, err
	}
	o.logger.Info("mount: projected tree", "vocabulary", vocabulary, "roots", tree.Len(), "nodes", g.Len())
	return g, nil
}

// refreshLoop re-projects the vocabulary every interval and swaps it in.
// A failed reload keeps the previous tree mounted.
func (o *rootOptions) refreshLoop(ctx context.Context, hot *graph.HotSwapGraph, storage taxonomy.TermStorage, vocabulary string, strict bool, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g, err := o.project(storage, vocabulary, strict)
			if err != nil {
				o.logger.Warn("mount: refresh failed", "vocabulary", vocabulary, "error", err)
				continue
			}
			hot.Swap(g)
		}
	}
}

func serveNFS(ctx context.Context, cmd *cobra.Command, fsys *nfsmount.GraphFS, addr, mountPoint string) error {
	srv, err := nfsmount.NewServer(fsys, addr)
	if err != nil {
		return err
	}
	defer func() { _ = srv.Close() }()

	if err := nfsmount.Mount(srv.Port(), mountPoint); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Mounted at %s over NFS (port %d). Press Ctrl-C to unmount.\n", mountPoint, srv.Port())

	select {
	case <-ctx.Done():
	case err := <-srv.Done():
		if err != nil {
			_ = nfsmount.Unmount(mountPoint)
			return fmt.Errorf("nfs server stopped: %w", err)
		}
	}
	return nfsmount.Unmount(mountPoint)
}
