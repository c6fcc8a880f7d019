package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/viteflow/viteflow/cli/bundler"
	cliconfig "github.com/viteflow/viteflow/cli/config"
	"github.com/viteflow/viteflow/internal/entry"
	"github.com/viteflow/viteflow/internal/watcher"
)

func newGenerator(cfg *cliconfig.Config) (*entry.Generator, error) {
	gen, err := entry.NewGenerator(entry.Options{
		SrcDir:    cfg.SrcDir(),
		EntryPath: cfg.EntryPath(),
		Ignore:    cfg.Watch.Ignore,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up entry generator: %w", err)
	}
	if err := gen.Prepare(); err != nil {
		return nil, err
	}
	return gen, nil
}

func newWatcher(cfg *cliconfig.Config, gen *entry.Generator, opts ...watcher.Option) *watcher.Watcher {
	opts = append([]watcher.Option{watcher.WithIgnore(cfg.Watch.Ignore)}, opts...)
	return watcher.New(gen, gen.SrcDir(), opts...)
}

func newBundler(cmd *cobra.Command, cfg *cliconfig.Config) (bundler.Runner, error) {
	return bundler.New(cfg.Bundler.Engine, bundler.Options{
		Root:           cfg.RootDir(),
		SrcDir:         cfg.SrcDir(),
		EntryPath:      cfg.EntryPath(),
		OutDir:         cfg.DistDir(),
		Command:        cfg.BundlerCommand(),
		ConfigPath:     cfg.BundlerConfigPath(),
		GenerateConfig: cfg.Bundler.Config == "",
		SiteURL:        cfg.SiteURL,
		// Bundler output must not mix with structured results on stdout
		Stdout: cmd.ErrOrStderr(),
		Stderr: cmd.ErrOrStderr(),
	})
}

// buildBundle runs one synthesis cycle followed by a bundler build. A
// synthesis failure aborts before the bundler is started.
func buildBundle(ctx context.Context, cmd *cobra.Command, cfg *cliconfig.Config) (*entry.Result, *bundler.BuildResult, error) {
	gen, err := newGenerator(cfg)
	if err != nil {
		return nil, nil, err
	}
	runner, err := newBundler(cmd, cfg)
	if err != nil {
		return nil, nil, err
	}

	gres, err := newWatcher(cfg, gen).Once(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("entry generation failed: %w", err)
	}
	log.Info().
		Str("entry", relPath(cfg.RootDir(), gen.EntryPath())).
		Int("files", gres.Files).
		Int("statements", gres.Statements).
		Msg("Entry module generated")

	bres, err := runner.Build(ctx)
	if err != nil {
		return gres, nil, err
	}
	return gres, bres, nil
}

// relPath shortens path for display when it lies below root.
func relPath(root, path string) string {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(absRoot, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return path
	}
	return filepath.ToSlash(rel)
}
