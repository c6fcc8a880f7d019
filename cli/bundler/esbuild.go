package bundler

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// aliasDirs maps import aliases to directories below the source root.
var aliasDirs = map[string]string{
	"@":           "",
	"@pages":      "pages",
	"@components": "components",
	"@styles":     "styles",
	"@plugins":    "plugins",
	"@functions":  "functions",
}

// EsbuildRunner bundles in-process with esbuild.
type EsbuildRunner struct {
	opts Options
}

// NewEsbuildRunner creates an esbuild runner.
func NewEsbuildRunner(opts Options) *EsbuildRunner {
	return &EsbuildRunner{opts: opts}
}

func (r *EsbuildRunner) buildOptions() api.BuildOptions {
	return api.BuildOptions{
		EntryPoints:   []string{absPath(r.opts.EntryPath)},
		Outfile:       absPath(r.opts.OutputPath()),
		Bundle:        true,
		Write:         true,
		Metafile:      true,
		Format:        api.FormatIIFE,
		Platform:      api.PlatformBrowser,
		Target:        api.ES2017,
		AbsWorkingDir: absPath(r.opts.Root),
		LogLevel:      api.LogLevelSilent,
		ResolveExtensions: []string{
			".js", ".ts", ".jsx", ".tsx", ".json", ".css", ".scss",
		},
		Loader: map[string]api.Loader{
			".svg": api.LoaderDataURL,
		},
		Plugins: []api.Plugin{
			r.aliasPlugin(),
			styleInjectPlugin(),
		},
	}
}

// Build bundles the entry module into OutDir/main.js.
func (r *EsbuildRunner) Build(ctx context.Context) (*BuildResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	result := api.Build(r.buildOptions())
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("esbuild failed: %s", formatMessages(result.Errors))
	}
	for _, w := range result.Warnings {
		log.Warn().Str("file", messageFile(w)).Msg(w.Text)
	}

	var analysis *AnalysisResult
	if result.Metafile != "" {
		var meta Metafile
		if err := json.Unmarshal([]byte(result.Metafile), &meta); err != nil {
			return nil, fmt.Errorf("failed to parse metafile: %w", err)
		}
		analysis = analyzeMetafile(&meta, "main.js", absPath(r.opts.Root))
	}

	return finishBuild(r.opts.OutputPath(), start, analysis)
}

// Serve rebuilds on every source change and serves OutDir over HTTP until ctx
// is cancelled.
func (r *EsbuildRunner) Serve(ctx context.Context) error {
	opts := r.buildOptions()
	opts.Metafile = false
	opts.Sourcemap = api.SourceMapInline

	bctx, ctxErr := api.Context(opts)
	if ctxErr != nil {
		return fmt.Errorf("failed to create esbuild context: %s", formatMessages(ctxErr.Errors))
	}
	defer bctx.Dispose()

	if err := bctx.Watch(api.WatchOptions{}); err != nil {
		return fmt.Errorf("failed to start esbuild watch: %w", err)
	}

	served, err := bctx.Serve(api.ServeOptions{Servedir: absPath(r.opts.OutDir)})
	if err != nil {
		return fmt.Errorf("failed to start esbuild server: %w", err)
	}
	log.Info().Msgf("Serving bundle at http://localhost:%d/main.js", served.Port)

	<-ctx.Done()
	return nil
}

// aliasPlugin resolves the @-prefixed source aliases.
func (r *EsbuildRunner) aliasPlugin() api.Plugin {
	src := absPath(r.opts.SrcDir)
	return api.Plugin{
		Name: "viteflow-alias",
		Setup: func(build api.PluginBuild) {
			build.OnResolve(api.OnResolveOptions{Filter: `^@(pages|components|styles|plugins|functions)?(/|$)`},
				func(args api.OnResolveArgs) (api.OnResolveResult, error) {
					target, ok := resolveAlias(src, args.Path)
					if !ok {
						return api.OnResolveResult{}, nil
					}
					res := build.Resolve(target, api.ResolveOptions{
						ResolveDir: args.ResolveDir,
						Importer:   args.Importer,
						Kind:       args.Kind,
					})
					if len(res.Errors) > 0 {
						return api.OnResolveResult{Errors: res.Errors}, nil
					}
					return api.OnResolveResult{Path: res.Path, External: res.External}, nil
				})
		},
	}
}

// resolveAlias rewrites an aliased import to an absolute path under src.
func resolveAlias(src, importPath string) (string, bool) {
	alias, rest, _ := strings.Cut(importPath, "/")
	dir, ok := aliasDirs[alias]
	if !ok {
		return "", false
	}
	return filepath.Join(src, dir, filepath.FromSlash(rest)), true
}

// styleInjectPlugin turns CSS imports into modules that append a style tag,
// so the bundle stays a single script.
func styleInjectPlugin() api.Plugin {
	return api.Plugin{
		Name: "viteflow-style-inject",
		Setup: func(build api.PluginBuild) {
			build.OnLoad(api.OnLoadOptions{Filter: `\.css$`},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					data, err := os.ReadFile(args.Path)
					if err != nil {
						return api.OnLoadResult{}, err
					}
					contents := styleModule(string(data))
					return api.OnLoadResult{Contents: &contents, Loader: api.LoaderJS}, nil
				})

			build.OnLoad(api.OnLoadOptions{Filter: `\.scss$`},
				func(args api.OnLoadArgs) (api.OnLoadResult, error) {
					return api.OnLoadResult{Errors: []api.Message{{
						Text: "SCSS requires the vite engine (set bundler.engine: vite)",
					}}}, nil
				})
		},
	}
}

func styleModule(css string) string {
	quoted, _ := json.Marshal(css)
	return fmt.Sprintf("(() => {\n  const style = document.createElement('style');\n  style.textContent = %s;\n  document.head.appendChild(style);\n})();\n", quoted)
}

func formatMessages(msgs []api.Message) string {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if file := messageFile(m); file != "" {
			parts = append(parts, file+": "+m.Text)
			continue
		}
		parts = append(parts, m.Text)
	}
	return strings.Join(parts, "; ")
}

func messageFile(m api.Message) string {
	if m.Location == nil {
		return ""
	}
	return fmt.Sprintf("%s:%d:%d", m.Location.File, m.Location.Line, m.Location.Column)
}
