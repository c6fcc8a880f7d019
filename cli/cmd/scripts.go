package cmd

import (
	"github.com/spf13/cobra"

	"github.com/viteflow/viteflow/cli/output"
)

func newScriptsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scripts",
		Short: "List the scripts attached to the site",
		Long: `Show the site's custom-code configuration as returned by the API.

Examples:
  viteflow scripts
  viteflow scripts -o yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			if err := cfg.RequireDeploy(); err != nil {
				return err
			}
			f, err := opts.formatter(cmd)
			if err != nil {
				return err
			}

			code, err := newScripts(cfg, newAPIClient(cfg, newHTTPClient(cfg))).CustomCode(cmd.Context(), cfg.SiteID)
			if err != nil {
				return err
			}
			if f.Structured() {
				return f.Print(code)
			}

			table := output.TableData{Headers: []string{"ID", "LOCATION", "VERSION"}}
			for _, s := range code.Scripts {
				table.Rows = append(table.Rows, []string{s.ID, s.Location, s.Version})
			}
			return f.PrintTable(table)
		},
	}
}
