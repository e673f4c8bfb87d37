package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/sitegraph/pkg/server"
	"github.com/matzehuels/sitegraph/pkg/session"
)

// serveOptions holds flags for the serve command.
type serveOptions struct {
	addr    string
	resume  bool
	refresh time.Duration
}

// serveCommand creates the serve command for the HTTP and websocket API.
func (c *CLI) serveCommand() *cobra.Command {
	opts := serveOptions{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the graph, layout and highlighting over HTTP",
		Long: `Serve loads the configured graph and exposes it over HTTP.

Clients read the graph with GET /api/graph and stream positions and
colors from /ws. Hover, select and search requests drive the same
controller, so every connected client sees the same highlighting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", "", "listen address (default from config)")
	cmd.Flags().BoolVar(&opts.resume, "resume", false, "reuse the variant and strategy from the last run")
	cmd.Flags().DurationVar(&opts.refresh, "refresh", 0, "reload the graph from its source at this interval (0 disables)")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, opts serveOptions) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	addr := cfg.Server.Addr
	if opts.addr != "" {
		addr = opts.addr
	}

	var prefs *session.FileStore
	if opts.resume {
		if prefs, err = session.NewFileStore(""); err != nil {
			return err
		}
	}
	sess, cleanup, err := c.openSession(ctx, cfg, func(o *session.Options) {
		o.Preferences = prefs
		o.Opener = nil
	})
	if err != nil {
		return err
	}
	defer cleanup()

	store := sess.Store()
	printStats(store.Len(), store.EdgeLen(), sess.Variant().String())

	srv := server.New(sess,
		server.WithLogger(loggerFromContext(ctx)),
		server.WithFrameInterval(cfg.Server.FrameInterval),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr)
	})
	if opts.refresh > 0 {
		g.Go(func() error {
			return refreshLoop(gctx, sess, opts.refresh)
		})
	}
	return g.Wait()
}

// refreshLoop reloads the installed variant every interval so changes at
// the source reach connected clients. A failed reload keeps the current
// graph and is logged, not fatal.
func refreshLoop(ctx context.Context, sess *session.Session, interval time.Duration) error {
	logger := loggerFromContext(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := sess.Reload(ctx, ""); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				logger.Warn("refresh failed", "error", err)
				continue
			}
			logger.Debug("graph refreshed", "variant", sess.Variant(), "generation", sess.Generation())
		}
	}
}
