package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	cliconfig "github.com/viteflow/viteflow/cli/config"
	"github.com/viteflow/viteflow/cli/util"
)

func newAuthCmd(opts *globalOptions) *cobra.Command {
	authCmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the API token stored in the system keychain",
		Long: `Store, inspect and remove the Webflow API token kept in the system keychain.

Tokens are stored per site ID, or under a default entry when no site ID is
configured. They are used when credential_store is set to keychain.`,
	}

	authCmd.AddCommand(&cobra.Command{
		Use:   "login",
		Short: "Store an API token in the system keychain",
		Long: `Store an API token in the system keychain.

Examples:
  # Prompt for the token
  viteflow auth login

  # Non-interactive
  viteflow auth login --token $WEBFLOW_TOKEN --site-id 5f0c8c9e1c9d440000e8d8c3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliconfig.Load(cliconfig.LoadOptions{Dir: opts.dir, ConfigFile: opts.cfgFile, Flags: cmd.Flags()})
			if err != nil {
				return err
			}

			store := cliconfig.NewKeychainStore()
			if !store.IsAvailable() {
				return errors.New("system keychain not available, set the token in viteflow.yaml or VITEFLOW_TOKEN instead")
			}

			token, _ := cmd.Flags().GetString("token")
			if token == "" {
				if !util.IsInteractive() {
					return errors.New("no token given, pass --token when not running in a terminal")
				}
				if token, err = util.ReadPassword(cmd.ErrOrStderr(), "Webflow API token: "); err != nil {
					return err
				}
			}
			if token == "" {
				return errors.New("token cannot be empty")
			}

			if err := store.Set(cfg.Account(), token); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "Stored token %s for %s\n", util.MaskToken(token), cfg.Account())
			if cfg.CredentialStore != "keychain" {
				_, _ = fmt.Fprintln(out, "Set credential_store: keychain in viteflow.yaml to use it")
			}
			return nil
		},
	})

	authCmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliconfig.Load(cliconfig.LoadOptions{Dir: opts.dir, ConfigFile: opts.cfgFile, Flags: cmd.Flags()})
			if err != nil {
				return err
			}
			if err := cliconfig.NewKeychainStore().Delete(cfg.Account()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed token for %s\n", cfg.Account())
			return nil
		},
	})

	authCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show which token will be used",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig(cmd)
			if err != nil {
				return err
			}
			f, err := opts.formatter(cmd)
			if err != nil {
				return err
			}

			token := util.MaskToken(cfg.Token)
			if token == "" {
				token = "(none)"
			}
			return f.PrintKeyValues([][2]string{
				{"credential_store", cfg.CredentialStore},
				{"account", cfg.Account()},
				{"site_id", cfg.SiteID},
				{"token", token},
			})
		},
	})

	return authCmd
}
