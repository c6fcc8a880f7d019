package cmd

import (
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/viteflow/viteflow/cli/bundler"
	"github.com/viteflow/viteflow/cli/util"
)

func newBuildCmd(opts *globalOptions) *cobra.Command {
	var (
		analyze bool
		showAll bool
	)

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Generate the entry module and build the bundle",
		Long: `Generate the entry module once and run the bundler to produce dist/main.js.

Examples:
  viteflow build
  viteflow build --analyze`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			f, err := opts.formatter(cmd)
			if err != nil {
				return err
			}

			_, res, err := buildBundle(cmd.Context(), cmd, cfg)
			if err != nil {
				return err
			}

			if f.Structured() {
				return f.PrintKeyValues([][2]string{
					{"bundle", relPath(cfg.RootDir(), res.OutputPath)},
					{"bytes", strconv.FormatInt(res.Bytes, 10)},
					{"took", res.Took.String()},
				})
			}

			if !opts.quiet {
				bundler.DisplayBuild(cmd.OutOrStdout(), res)
			}
			if analyze {
				if res.Analysis == nil {
					log.Warn().Msg("Bundle analysis needs the esbuild engine (bundler.engine: esbuild)")
					return nil
				}
				bundler.DisplayAnalysis(cmd.OutOrStdout(), res.Analysis, showAll)
			}
			log.Debug().Str("size", util.FormatBytes(res.Bytes)).Msg("Build complete")
			return nil
		},
	}

	cmd.Flags().BoolVar(&analyze, "analyze", false, "show what makes up the bundle")
	cmd.Flags().BoolVar(&showAll, "all", false, "list every bundle input with --analyze")
	return cmd
}
