package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/viteflow/viteflow/cli/output"
)

func newGenerateCmd(opts *globalOptions) *cobra.Command {
	var explain bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the bundler entry module once",
		Long: `Scan the source tree and write the bundler entry module.

Examples:
  viteflow generate
  viteflow generate --explain
  viteflow generate --explain -o json`,
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
			gen, err := newGenerator(cfg)
			if err != nil {
				return err
			}

			res, err := newWatcher(cfg, gen).Once(cmd.Context())
			if err != nil {
				return err
			}

			if explain {
				planned, err := gen.Plan()
				if err != nil {
					return err
				}
				table := output.TableData{Headers: []string{"PATH", "KIND", "ROUTE", "SYMBOL"}}
				for _, p := range planned {
					table.Rows = append(table.Rows, []string{
						p.File.SrcPath,
						p.Item.Class.Kind.String(),
						p.Item.Class.Route,
						p.Item.Class.Symbol,
					})
				}
				if err := f.PrintTable(table); err != nil {
					return err
				}
				if f.Structured() {
					return nil
				}
			}

			return f.PrintKeyValues([][2]string{
				{"entry", relPath(cfg.RootDir(), gen.EntryPath())},
				{"files", strconv.Itoa(res.Files)},
				{"statements", strconv.Itoa(res.Statements)},
				{"changed", strconv.FormatBool(res.Changed)},
			})
		},
	}

	cmd.Flags().BoolVar(&explain, "explain", false, "print how every source file was classified")
	return cmd
}
