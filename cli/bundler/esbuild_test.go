package bundler

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProject(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	return root
}

func esbuildOptions(root string) Options {
	return Options{
		Root:      root,
		SrcDir:    filepath.Join(root, "src"),
		EntryPath: filepath.Join(root, ".viteflow", "main.js"),
		OutDir:    filepath.Join(root, "dist"),
	}
}

func TestEsbuildRunner_Build(t *testing.T) {
	root := writeProject(t, map[string]string{
		".viteflow/main.js": "// Auto-generated imports\n" +
			"import Home from '../src/pages/home.ts';\n" +
			"if (window.location.pathname === '/') {\n  Home();\n}\n" +
			"import '../src/styles/main.css';",
		"src/pages/home.ts":   "import greet from '@/lib/greet';\nexport default function Home(): void { greet('home'); }\n",
		"src/lib/greet.ts":    "export default function greet(name: string) { console.log('hello ' + name); }\n",
		"src/styles/main.css": "body{color:red}\n",
	})

	res, err := NewEsbuildRunner(esbuildOptions(root)).Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "dist", "main.js"))
	if err != nil {
		t.Fatal(err)
	}
	out := string(data)
	for _, want := range []string{"hello ", "body{color:red}", "createElement", "window.location.pathname"} {
		if !strings.Contains(out, want) {
			t.Errorf("bundle missing %q", want)
		}
	}
	if res.Bytes != int64(len(data)) {
		t.Errorf("Bytes = %d, want %d", res.Bytes, len(data))
	}
	if _, err := os.Stat(filepath.Join(root, "dist", "main.css")); err == nil {
		t.Error("styles should be injected, not emitted as a separate file")
	}

	if res.Analysis == nil {
		t.Fatal("expected analysis from esbuild build")
	}
	if res.Analysis.TotalBytes <= 0 {
		t.Errorf("TotalBytes = %d", res.Analysis.TotalBytes)
	}
	paths := make(map[string]bool)
	for _, f := range res.Analysis.InputFiles {
		paths[f.Path] = true
	}
	for _, want := range []string{"<entry>", "src/pages/home.ts", "src/lib/greet.ts"} {
		if !paths[want] {
			t.Errorf("analysis missing input %q (have %v)", want, paths)
		}
	}
}

func TestEsbuildRunner_BuildErrors(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  string
	}{
		{
			name:  "unresolved import",
			files: map[string]string{".viteflow/main.js": "import x from '../src/missing.ts';\nx();\n"},
			want:  "missing.ts",
		},
		{
			name: "scss",
			files: map[string]string{
				".viteflow/main.js":     "import '../src/styles/theme.scss';\n",
				"src/styles/theme.scss": "$c: red;\n",
			},
			want: "SCSS requires the vite engine",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := writeProject(t, tt.files)
			_, err := NewEsbuildRunner(esbuildOptions(root)).Build(context.Background())
			if err == nil {
				t.Fatal("expected build error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestEsbuildRunner_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewEsbuildRunner(Options{}).Build(ctx); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestResolveAlias(t *testing.T) {
	src := filepath.Join("/project", "src")
	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"@/lib/greet", filepath.Join(src, "lib", "greet"), true},
		{"@pages/home", filepath.Join(src, "pages", "home"), true},
		{"@styles", filepath.Join(src, "styles"), true},
		{"@babel/core", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := resolveAlias(src, tt.in)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("resolveAlias(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestAnalyzeMetafile(t *testing.T) {
	meta := &Metafile{
		Inputs: map[string]MetafileInput{
			".viteflow/main.js":              {Bytes: 100, Imports: []MetafileImport{{Path: "src/pages/home.ts"}}},
			"src/pages/home.ts":              {Bytes: 300},
			"node_modules/gsap/dist/gsap.js": {Bytes: 9000},
		},
		Outputs: map[string]MetafileOutput{
			"dist/main.js": {
				Bytes:      1000,
				EntryPoint: ".viteflow/main.js",
				Inputs: map[string]InputContrib{
					".viteflow/main.js":              {BytesInOutput: 50},
					"src/pages/home.ts":              {BytesInOutput: 150},
					"node_modules/gsap/dist/gsap.js": {BytesInOutput: 800},
				},
			},
		},
	}

	result := analyzeMetafile(meta, "main.js", "/project")

	if result.TotalBytes != 1000 {
		t.Errorf("TotalBytes = %d", result.TotalBytes)
	}
	if len(result.InputFiles) != 3 {
		t.Fatalf("InputFiles = %d", len(result.InputFiles))
	}
	if result.InputFiles[0].Path != "node_modules/gsap/dist/gsap.js" || result.InputFiles[0].Percentage != 80 {
		t.Errorf("largest input = %+v", result.InputFiles[0])
	}
	if result.InputFiles[2].Path != "<entry>" {
		t.Errorf("entry display path = %q", result.InputFiles[2].Path)
	}
	if len(result.Warnings) != 1 {
		t.Errorf("Warnings = %v", result.Warnings)
	}

	var buf bytes.Buffer
	DisplayAnalysis(&buf, result, false)
	for _, want := range []string{"Bundle Analysis: main.js", "1000 B", "80.0%", "makes up most of the bundle"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("display missing %q:\n%s", want, buf.String())
		}
	}
}

func TestDisplayInputPath(t *testing.T) {
	if got := displayInputPath("/project/src/a.ts", "", "/project"); got != "src/a.ts" {
		t.Errorf("got %q", got)
	}
	if got := displayInputPath("../../x/node_modules/lib/index.js", "", "/project"); got != "node_modules/lib/index.js" {
		t.Errorf("got %q", got)
	}
}

func TestDisplayBuild(t *testing.T) {
	var buf bytes.Buffer
	DisplayBuild(&buf, &BuildResult{OutputPath: "dist/main.js", Bytes: 1536})
	if got, want := buf.String(), "Built dist/main.js (1.5 KB) in 0s\n"; got != want {
		t.Errorf("DisplayBuild = %q, want %q", got, want)
	}
}
