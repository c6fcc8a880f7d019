package cmd

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/viteflow/viteflow/internal/watcher"
)

func newDevCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dev",
		Short: "Watch the source tree and serve the bundle",
		Long: `Regenerate the entry module on every source change and run the bundler
in development mode. Stop with Ctrl+C.

Examples:
  viteflow dev
  viteflow dev --debug`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireDev(); err != nil {
				return err
			}

			gen, err := newGenerator(cfg)
			if err != nil {
				return err
			}
			runner, err := newBundler(cmd, cfg)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			w := newWatcher(cfg, gen)

			log.Info().Str("src", relPath(cfg.RootDir(), gen.SrcDir())).Str("site", cfg.SiteURL).Msg("Starting dev mode")

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				return w.Run(gctx)
			})
			g.Go(func() error {
				if err := runner.Serve(gctx); err != nil {
					return err
				}
				if gctx.Err() == nil {
					return errors.New("bundler dev server stopped unexpectedly")
				}
				return nil
			})

			if err := g.Wait(); err != nil {
				return err
			}

			logDevStats(cfg.RootDir(), w.Stats())
			return nil
		},
	}
}

func logDevStats(root string, stats watcher.Stats) {
	ev := log.Info().
		Int("events", stats.Events).
		Int("coalesced", stats.Coalesced).
		Int("cycles", stats.Cycles).
		Int("failures", stats.Failures)
	if stats.LastEvent != "" {
		ev = ev.Str("last_event", relPath(root, stats.LastEvent))
	}
	ev.Msg("Dev mode stopped")
}
