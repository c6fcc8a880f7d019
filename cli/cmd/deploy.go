package cmd

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/viteflow/viteflow/cli/client"
	cliconfig "github.com/viteflow/viteflow/cli/config"
	"github.com/viteflow/viteflow/internal/deploy"
)

func newDeployCmd(opts *globalOptions) *cobra.Command {
	var skipBuild bool

	cmd := &cobra.Command{
		Use:   "deploy",
		Short: "Build the bundle and publish it to the site",
		Long: `Build the bundle, upload it as a site asset, register it as a hosted script
and attach it to the site's custom code.

Examples:
  viteflow deploy
  viteflow deploy --skip-build
  viteflow deploy --site-id 5f0c8c9e1c9d440000e8d8c3 -o json`,
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

			if !skipBuild {
				if _, _, err := buildBundle(cmd.Context(), cmd, cfg); err != nil {
					return err
				}
			}

			rec, err := newPipeline(cfg).Run(cmd.Context())
			if err != nil {
				if rec != nil && rec.ScriptID != "" {
					log.Error().Str("script_id", rec.ScriptID).Msg("Deploy stopped after the script was registered")
				}
				return err
			}

			if f.Structured() {
				return f.Print(rec)
			}
			if err := f.PrintKeyValues([][2]string{
				{"bundle", relPath(cfg.RootDir(), rec.BundlePath)},
				{"digest", rec.Digest},
				{"asset", rec.AssetURL},
				{"asset_id", rec.AssetID},
				{"script", rec.ScriptID},
				{"version", rec.Version},
				{"verified", verifiedLabel(rec.Verified)},
			}); err != nil {
				return err
			}
			f.PrintSuccess("Deployed to site " + cfg.SiteID)
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipBuild, "skip-build", false, "deploy the existing bundle without rebuilding")
	return cmd
}

func newHTTPClient(cfg *cliconfig.Config) *http.Client {
	return &http.Client{Timeout: cfg.HTTP.Timeout}
}

func newAPIClient(cfg *cliconfig.Config, hc *http.Client) *client.Client {
	return client.NewClient(cfg.APIURL, cfg.Token,
		client.WithHTTPClient(hc),
		client.WithRateLimit(cfg.HTTP.RateLimit, cfg.HTTP.Burst),
		client.WithUserAgent("viteflow/"+Version),
	)
}

func newScripts(cfg *cliconfig.Config, api deploy.API) *deploy.Scripts {
	return deploy.NewScripts(api, deploy.ScriptOptions{
		DisplayName: cfg.Deploy.DisplayName,
		Location:    cfg.Deploy.Location,
		CanCopy:     cfg.Deploy.CanCopy,
	})
}

func newPipeline(cfg *cliconfig.Config) *deploy.Pipeline {
	hc := newHTTPClient(cfg)
	api := newAPIClient(cfg, hc)
	return deploy.New(
		deploy.NewAssets(api),
		deploy.NewFormUploader(hc),
		newScripts(cfg, api),
		deploy.Options{
			SiteID:          cfg.SiteID,
			BundlePath:      cfg.BundlePath(),
			FileName:        cfg.Deploy.FileName,
			RequireVerified: cfg.Deploy.RequireVerified,
		},
	)
}

func verifiedLabel(ok bool) string {
	if ok {
		return "yes"
	}
	return "no"
}
