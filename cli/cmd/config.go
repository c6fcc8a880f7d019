package cmd

import (
	"github.com/spf13/cobra"

	"github.com/viteflow/viteflow/cli/util"
)

func newConfigCmd(opts *globalOptions) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the project configuration",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "view",
		Short: "Display the resolved configuration",
		Long: `Show the configuration after merging viteflow.yaml, .env files, environment
variables and flags. The token is masked.

Examples:
  viteflow config view
  viteflow config view --output json`,
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

			view := *cfg
			view.Token = util.MaskToken(cfg.Token)
			return f.Print(view)
		},
	})

	return configCmd
}
