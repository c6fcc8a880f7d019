// Package config loads the project configuration for the viteflow CLI.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// FileName is the base name of the project config file.
const FileName = "viteflow"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "VITEFLOW"

// Config is the resolved project configuration.
type Config struct {
	SiteURL         string        `mapstructure:"site_url" yaml:"site_url" json:"site_url"`
	APIURL          string        `mapstructure:"api_url" yaml:"api_url" json:"api_url"`
	Token           string        `mapstructure:"token" yaml:"token" json:"token"`
	SiteID          string        `mapstructure:"site_id" yaml:"site_id" json:"site_id"`
	CredentialStore string        `mapstructure:"credential_store" yaml:"credential_store" json:"credential_store"`
	Paths           PathsConfig   `mapstructure:"paths" yaml:"paths" json:"paths"`
	Bundler         BundlerConfig `mapstructure:"bundler" yaml:"bundler" json:"bundler"`
	Deploy          DeployConfig  `mapstructure:"deploy" yaml:"deploy" json:"deploy"`
	Watch           WatchConfig   `mapstructure:"watch" yaml:"watch" json:"watch"`
	HTTP            HTTPConfig    `mapstructure:"http" yaml:"http" json:"http"`
	Debug           bool          `mapstructure:"debug" yaml:"debug" json:"debug"`

	// File is the config file that was read, empty when none was found
	File string `mapstructure:"-" yaml:"-" json:"-"`
}

// PathsConfig locates the project files. Relative paths resolve against Root.
type PathsConfig struct {
	Root  string `mapstructure:"root" yaml:"root" json:"root"`
	Src   string `mapstructure:"src" yaml:"src" json:"src"`
	Entry string `mapstructure:"entry" yaml:"entry" json:"entry"`
	Dist  string `mapstructure:"dist" yaml:"dist" json:"dist"`
}

// BundlerConfig selects and configures the bundler.
type BundlerConfig struct {
	Engine  string `mapstructure:"engine" yaml:"engine" json:"engine"` // vite or esbuild
	Command string `mapstructure:"command" yaml:"command" json:"command"`
	Config  string `mapstructure:"config" yaml:"config" json:"config"`
}

// DeployConfig controls how the bundle is published.
type DeployConfig struct {
	FileName        string `mapstructure:"file_name" yaml:"file_name" json:"file_name"`
	DisplayName     string `mapstructure:"display_name" yaml:"display_name" json:"display_name"`
	Location        string `mapstructure:"location" yaml:"location" json:"location"`
	CanCopy         bool   `mapstructure:"can_copy" yaml:"can_copy" json:"can_copy"`
	RequireVerified bool   `mapstructure:"require_verified" yaml:"require_verified" json:"require_verified"`
}

// WatchConfig controls source scanning.
type WatchConfig struct {
	Ignore []string `mapstructure:"ignore" yaml:"ignore" json:"ignore"`
}

// HTTPConfig controls the API client.
type HTTPConfig struct {
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout" json:"timeout"`
	// RateLimit is the request rate towards the site API, per second
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" json:"rate_limit"`
	Burst     int     `mapstructure:"burst" yaml:"burst" json:"burst"`
}

// LoadOptions controls where configuration is read from.
type LoadOptions struct {
	// Dir is the project root. Defaults to the working directory.
	Dir string
	// ConfigFile overrides the config file lookup.
	ConfigFile string
	// Flags are bound over file and environment values.
	Flags *pflag.FlagSet
}

// flagKeys maps command-line flags to config keys.
var flagKeys = map[string]string{
	"site-id": "site_id",
	"token":   "token",
	"api-url": "api_url",
	"debug":   "debug",
}

// Load reads .env files, the project config file, the environment and flags,
// in increasing order of precedence.
func Load(opts LoadOptions) (*Config, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}

	if err := loadEnvFiles(dir); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v, dir)

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Names used by earlier releases of the tool.
	_ = v.BindEnv("token", EnvPrefix+"_TOKEN", "WEBFLOW_API_TOKEN")
	_ = v.BindEnv("site_id", EnvPrefix+"_SITE_ID", "WEBFLOW_SITE_ID", "SITE_ID")
	_ = v.BindEnv("site_url", EnvPrefix+"_SITE_URL", "WEBFLOW_API_URL")

	if opts.Flags != nil {
		for flag, key := range flagKeys {
			if f := opts.Flags.Lookup(flag); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		log.Debug().Msg("No config file found, using environment variables and defaults")
	} else {
		log.Debug().Str("file", v.ConfigFileUsed()).Msg("Config file loaded")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("site_url", "")
	v.SetDefault("api_url", "https://api.webflow.com/v2")
	v.SetDefault("token", "")
	v.SetDefault("site_id", "")
	v.SetDefault("credential_store", "file")

	v.SetDefault("paths.root", dir)
	v.SetDefault("paths.src", "src")
	v.SetDefault("paths.entry", ".viteflow/main.js")
	v.SetDefault("paths.dist", "dist")

	v.SetDefault("bundler.engine", "vite")
	v.SetDefault("bundler.command", "node_modules/.bin/vite")
	v.SetDefault("bundler.config", "")

	v.SetDefault("deploy.file_name", "main.js.txt")
	v.SetDefault("deploy.display_name", "viteflow")
	v.SetDefault("deploy.location", "footer")
	v.SetDefault("deploy.can_copy", true)
	v.SetDefault("deploy.require_verified", false)

	v.SetDefault("watch.ignore", []string{"node_modules"})
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.rate_limit", 1.0)
	v.SetDefault("http.burst", 5)
	v.SetDefault("debug", false)
}

// loadEnvFiles loads .env then .env.local from dir. Existing environment
// variables win over file values.
func loadEnvFiles(dir string) error {
	for _, name := range []string{".env", ".env.local"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("error loading .env file from %s: %w", path, err)
		}
		log.Debug().Str("file", path).Msg(".env file loaded")
	}
	return nil
}

// Validate checks value ranges. Presence of credentials is checked per
// command by the Require helpers.
func (c *Config) Validate() error {
	switch c.CredentialStore {
	case "file", "keychain":
	default:
		return fmt.Errorf("credential_store must be 'file' or 'keychain'")
	}

	switch c.Bundler.Engine {
	case "vite", "esbuild":
	default:
		return fmt.Errorf("bundler.engine must be 'vite' or 'esbuild'")
	}

	switch c.Deploy.Location {
	case "header", "footer":
	default:
		return fmt.Errorf("deploy.location must be 'header' or 'footer'")
	}

	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}

	if c.HTTP.RateLimit < 0 {
		return fmt.Errorf("http.rate_limit cannot be negative")
	}

	if c.Paths.Src == "" || c.Paths.Entry == "" || c.Paths.Dist == "" {
		return fmt.Errorf("paths.src, paths.entry and paths.dist cannot be empty")
	}

	return nil
}

// RequireDeploy checks the values needed to talk to the site API.
func (c *Config) RequireDeploy() error {
	var missing []string
	if c.Token == "" {
		missing = append(missing, "token")
	}
	if c.SiteID == "" {
		missing = append(missing, "site_id")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s (set them in %s.yaml or as %s_* environment variables)",
			strings.Join(missing, ", "), FileName, EnvPrefix)
	}
	return nil
}

// RequireDev checks the values needed by the dev command.
func (c *Config) RequireDev() error {
	if c.SiteURL == "" {
		return fmt.Errorf("missing required configuration: site_url (set it in %s.yaml or as %s_SITE_URL)", FileName, EnvPrefix)
	}
	return nil
}

func (c *Config) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Paths.Root, p)
}

// RootDir returns the project root.
func (c *Config) RootDir() string { return c.Paths.Root }

// SrcDir returns the source tree root.
func (c *Config) SrcDir() string { return c.resolve(c.Paths.Src) }

// EntryPath returns the generated entry module path.
func (c *Config) EntryPath() string { return c.resolve(c.Paths.Entry) }

// DistDir returns the bundler output directory.
func (c *Config) DistDir() string { return c.resolve(c.Paths.Dist) }

// BundlePath returns the built bundle that is deployed.
func (c *Config) BundlePath() string { return filepath.Join(c.DistDir(), "main.js") }

// BundlerConfigPath returns the bundler config file, which is generated next
// to the entry module when none is configured.
func (c *Config) BundlerConfigPath() string {
	if c.Bundler.Config != "" {
		return c.resolve(c.Bundler.Config)
	}
	return filepath.Join(filepath.Dir(c.EntryPath()), "vite.config.js")
}

// BundlerCommand returns the bundler executable path.
func (c *Config) BundlerCommand() string {
	cmd := c.Bundler.Command
	if strings.ContainsRune(cmd, filepath.Separator) || strings.Contains(cmd, "/") {
		return c.resolve(cmd)
	}
	return cmd
}
