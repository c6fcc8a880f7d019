// Package cmd provides the Cobra commands for the viteflow CLI.
package cmd

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	cliconfig "github.com/viteflow/viteflow/cli/config"
	"github.com/viteflow/viteflow/cli/output"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// globalOptions holds the persistent flags shared by every command.
type globalOptions struct {
	cfgFile   string
	dir       string
	outputFmt string
	noHeaders bool
	quiet     bool
	debug     bool
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:   "viteflow",
		Short: "viteflow - Bundle and publish custom code for Webflow sites",
		Long: `viteflow generates a bundler entry module from your src/ tree, bundles it
and publishes the result as a hosted script on a Webflow site.

Source layout:
  src/pages/<route>.ts          runs when the location equals /<route>
  src/pages/home.ts             runs on the site root
  src/pages/<dir>/[slug].ts     runs on every location under /<dir>/
  src/styles/*, src/global*     imported on every page

Get started:
  viteflow dev         Watch src/ and serve the bundle
  viteflow deploy      Build and publish the bundle
  viteflow --help      Show available commands`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Silence errors only when --quiet is used
			cmd.SilenceErrors = opts.quiet
			setupLogging(cmd, opts.debug)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is ./viteflow.yaml)")
	flags.StringVarP(&opts.dir, "dir", "C", "", "project directory (default is the working directory)")
	flags.String("site-id", "", "Webflow site ID")
	flags.String("token", "", "Webflow API token")
	flags.String("api-url", "", "Webflow API base URL")
	flags.StringVarP(&opts.outputFmt, "output", "o", "table", "output format: table, json, yaml")
	flags.BoolVar(&opts.noHeaders, "no-headers", false, "hide table headers")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "minimal output")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug output")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())
	rootCmd.AddCommand(newGenerateCmd(opts))
	rootCmd.AddCommand(newDevCmd(opts))
	rootCmd.AddCommand(newBuildCmd(opts))
	rootCmd.AddCommand(newDeployCmd(opts))
	rootCmd.AddCommand(newScriptsCmd(opts))
	rootCmd.AddCommand(newAuthCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))

	return rootCmd
}

// Execute runs the CLI
func Execute() error {
	return NewRootCmd().ExecuteContext(context.Background())
}

func setupLogging(cmd *cobra.Command, debug bool) {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr(), TimeFormat: time.Kitchen})
	if debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// loadConfig resolves the project configuration for cmd, including a token
// from the keychain when that credential store is selected.
func (o *globalOptions) loadConfig(cmd *cobra.Command) (*cliconfig.Config, error) {
	cfg, err := cliconfig.Load(cliconfig.LoadOptions{
		Dir:        o.dir,
		ConfigFile: o.cfgFile,
		Flags:      cmd.Flags(),
	})
	if err != nil {
		return nil, err
	}

	if cfg.Debug && !o.debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	if err := cfg.ResolveToken(cliconfig.NewKeychainStore()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (o *globalOptions) formatter(cmd *cobra.Command) (*output.Formatter, error) {
	format, err := output.ParseFormat(o.outputFmt)
	if err != nil {
		return nil, err
	}
	return output.NewFormatter(format, o.noHeaders, o.quiet, cmd.OutOrStdout()), nil
}
