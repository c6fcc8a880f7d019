// Package bundler turns the generated entry module into the deployable bundle,
// either by running vite as a subprocess or by bundling in-process with esbuild.
package bundler

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/viteflow/viteflow/internal/entry"
)

//go:embed templates/vite.config.js
var viteConfigTemplate string

// Engine names.
const (
	EngineVite    = "vite"
	EngineEsbuild = "esbuild"
)

// Options locate the project files the bundler works with.
type Options struct {
	Root       string
	SrcDir     string
	EntryPath  string
	OutDir     string
	Command    string
	ConfigPath string
	// GenerateConfig writes the built-in vite config to ConfigPath.
	GenerateConfig bool
	SiteURL        string
	Stdout         io.Writer
	Stderr         io.Writer
}

// BuildResult describes a finished build.
type BuildResult struct {
	OutputPath string
	Bytes      int64
	Took       time.Duration
	// Analysis is only available from the esbuild engine.
	Analysis *AnalysisResult
}

// Runner builds the bundle once or serves it in development mode.
type Runner interface {
	Build(ctx context.Context) (*BuildResult, error)
	Serve(ctx context.Context) error
}

// New returns the runner for engine.
func New(engine string, opts Options) (Runner, error) {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	switch engine {
	case EngineVite, "":
		return NewViteRunner(opts)
	case EngineEsbuild:
		return NewEsbuildRunner(opts), nil
	default:
		return nil, fmt.Errorf("unknown bundler engine %q", engine)
	}
}

// OutputPath returns the bundle file both engines produce.
func (o Options) OutputPath() string {
	return filepath.Join(o.OutDir, "main.js")
}

// WriteViteConfig writes the built-in vite config to path. It reports whether
// the file changed.
func WriteViteConfig(path string) (bool, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return false, fmt.Errorf("failed to create config directory: %w", err)
	}
	return entry.NewWriter(path).Write(viteConfigTemplate)
}

// ViteRunner drives the project's vite binary.
type ViteRunner struct {
	opts     Options
	vitePath string
}

// NewViteRunner locates the vite executable. Returns an error if it is not
// installed in the project or on PATH.
func NewViteRunner(opts Options) (*ViteRunner, error) {
	vitePath := opts.Command
	if vitePath == "" {
		vitePath = filepath.Join(opts.Root, "node_modules", ".bin", "vite")
	}

	if _, err := os.Stat(vitePath); err != nil {
		found, lookErr := exec.LookPath(filepath.Base(vitePath))
		if lookErr != nil {
			return nil, fmt.Errorf("vite is required for bundling, install it with 'npm install -D vite' (looked for %s)", vitePath)
		}
		vitePath = found
	}

	return &ViteRunner{opts: opts, vitePath: vitePath}, nil
}

// Build runs "vite build" once. Output is streamed to the configured writers
// as it is produced.
func (r *ViteRunner) Build(ctx context.Context) (*BuildResult, error) {
	start := time.Now()

	var stderr strings.Builder
	cmd, err := r.command(ctx, &stderr, "build")
	if err != nil {
		return nil, err
	}

	if err := cmd.Run(); err != nil {
		msg := cleanBundleError(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("vite build failed: %s", msg)
	}

	return finishBuild(r.opts.OutputPath(), start, nil)
}

// Serve runs the vite dev server until ctx is cancelled.
func (r *ViteRunner) Serve(ctx context.Context) error {
	var stderr strings.Builder
	cmd, err := r.command(ctx, &stderr)
	if err != nil {
		return err
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		msg := cleanBundleError(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("vite dev server exited: %s", msg)
	}
	return nil
}

func (r *ViteRunner) command(ctx context.Context, stderr *strings.Builder, args ...string) (*exec.Cmd, error) {
	if r.opts.GenerateConfig {
		if _, err := WriteViteConfig(r.opts.ConfigPath); err != nil {
			return nil, err
		}
	}

	args = append(args, "-c", r.opts.ConfigPath)
	cmd := exec.CommandContext(ctx, r.vitePath, args...) //nolint:gosec // vitePath is resolved in NewViteRunner
	cmd.Dir = r.opts.Root
	cmd.Stdout = r.opts.Stdout
	cmd.Stderr = io.MultiWriter(r.opts.Stderr, stderr)

	cmd.Env = filterEnvVars(os.Environ(),
		"VITEFLOW_ROOT", "VITEFLOW_SRC", "VITEFLOW_ENTRY", "VITEFLOW_DIST", "VITEFLOW_SITE_URL")
	cmd.Env = append(cmd.Env,
		"VITEFLOW_ROOT="+absPath(r.opts.Root),
		"VITEFLOW_SRC="+absPath(r.opts.SrcDir),
		"VITEFLOW_ENTRY="+absPath(r.opts.EntryPath),
		"VITEFLOW_DIST="+absPath(r.opts.OutDir),
		"VITEFLOW_SITE_URL="+r.opts.SiteURL,
	)
	return cmd, nil
}

func finishBuild(out string, start time.Time, analysis *AnalysisResult) (*BuildResult, error) {
	info, err := os.Stat(out)
	if err != nil {
		return nil, fmt.Errorf("build finished but %s was not produced: %w", out, err)
	}
	return &BuildResult{
		OutputPath: out,
		Bytes:      info.Size(),
		Took:       time.Since(start),
		Analysis:   analysis,
	}, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// cleanBundleError extracts the relevant lines from bundler stderr
func cleanBundleError(errMsg string) string {
	errMsg = ansiPattern.ReplaceAllString(errMsg, "")

	lines := strings.Split(errMsg, "\n")
	var relevantLines []string

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		lower := strings.ToLower(line)
		if strings.Contains(lower, "error") ||
			strings.Contains(line, "Could not resolve") ||
			strings.Contains(line, "Cannot find module") ||
			strings.Contains(line, "Expected") ||
			strings.Contains(line, "Unexpected") {
			relevantLines = append(relevantLines, line)
		}
	}

	if len(relevantLines) > 0 {
		return strings.Join(relevantLines, "\n")
	}

	return strings.TrimSpace(errMsg)
}

// filterEnvVars returns a copy of env with the specified variable names removed
func filterEnvVars(env []string, names ...string) []string {
	result := make([]string, 0, len(env))
	for _, e := range env {
		skip := false
		for _, name := range names {
			if strings.HasPrefix(e, name+"=") {
				skip = true
				break
			}
		}
		if !skip {
			result = append(result, e)
		}
	}
	return result
}
