// Package entry synthesizes the bundler entry module from a source tree.
//
// A generation cycle scans the source root, classifies every file by its
// location under pages/, styles/ or a global* name, renders the import and
// route-guard statements and atomically replaces the entry file.
package entry

import (
	"context"
	"path"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/viteflow/viteflow/internal/exports"
)

// Options configures a Generator.
type Options struct {
	// SrcDir is the source root to scan.
	SrcDir string
	// EntryPath is the generated module's path.
	EntryPath string
	// Ignore holds gitignore-style patterns relative to SrcDir.
	Ignore []string
}

// Generator runs scan, classify, synthesize and write cycles.
type Generator struct {
	srcDir    string
	entryPath string
	ignore    []string
	writer    *Writer
}

// Planned is one scanned file with its classification.
type Planned struct {
	File FileEntry
	Item Item
}

// Result summarizes one generation cycle.
type Result struct {
	Files      int
	Statements int
	Changed    bool
	Took       time.Duration
}

// NewGenerator creates a generator. Paths are made absolute.
func NewGenerator(opts Options) (*Generator, error) {
	srcDir, err := filepath.Abs(opts.SrcDir)
	if err != nil {
		return nil, err
	}
	entryPath, err := filepath.Abs(opts.EntryPath)
	if err != nil {
		return nil, err
	}
	return &Generator{
		srcDir:    srcDir,
		entryPath: entryPath,
		ignore:    opts.Ignore,
		writer:    NewWriter(entryPath),
	}, nil
}

// SrcDir returns the absolute source root.
func (g *Generator) SrcDir() string { return g.srcDir }

// EntryPath returns the absolute entry file path.
func (g *Generator) EntryPath() string { return g.entryPath }

// Prepare ensures the entry file exists before the first cycle.
func (g *Generator) Prepare() error {
	return g.writer.Prepare()
}

// Plan scans the source root and classifies every candidate file. The
// returned slice is in scan order; files of other types and the entry file
// itself are left out.
func (g *Generator) Plan() ([]Planned, error) {
	files, err := Scan(g.srcDir, g.ignore)
	if err != nil {
		return nil, err
	}

	planned := make([]Planned, 0, len(files))
	for _, f := range files {
		if f.AbsPath == g.entryPath || !candidateExtensions[path.Ext(f.SrcPath)] {
			continue
		}

		class := Classify(f.SrcPath, "")
		if class.Kind == Ignored {
			log.Debug().Str("path", f.SrcPath).Msg("Skipping file outside pages, styles and global")
			continue
		}

		if exports.Supported(f.SrcPath) {
			src, err := readContent(f)
			if err != nil {
				return nil, err
			}
			if symbol, ok := exports.DefaultFunctionName(f.SrcPath, src); ok {
				class = Classify(f.SrcPath, symbol)
			}
		}

		rel, err := filepath.Rel(filepath.Dir(g.entryPath), f.AbsPath)
		if err != nil {
			return nil, &ScanError{Path: f.AbsPath, Err: err}
		}

		planned = append(planned, Planned{
			File: f,
			Item: Item{ImportPath: filepath.ToSlash(rel), Class: class},
		})
	}
	return planned, nil
}

// Render returns the entry module body for the current tree without writing it.
func (g *Generator) Render() (string, []Planned, error) {
	planned, err := g.Plan()
	if err != nil {
		return "", nil, err
	}
	items := make([]Item, len(planned))
	for i, p := range planned {
		items[i] = p.Item
	}
	return Synthesize(items), planned, nil
}

// Generate runs one full cycle. Scan and write failures abort the cycle and
// leave the previous entry file in place.
func (g *Generator) Generate(ctx context.Context) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	body, planned, err := g.Render()
	if err != nil {
		return nil, err
	}

	changed, err := g.writer.Write(body)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Files:      len(planned),
		Statements: countStatements(planned),
		Changed:    changed,
		Took:       time.Since(start),
	}
	log.Debug().
		Int("files", res.Files).
		Int("statements", res.Statements).
		Bool("changed", res.Changed).
		Dur("took", res.Took).
		Msg("Entry module generated")
	return res, nil
}

func countStatements(planned []Planned) int {
	n := 0
	for _, p := range planned {
		switch p.Item.Class.Kind {
		case NonPageModule:
			n++
		case HomePage, StaticPage, SlugPage:
			if p.Item.Class.HasSymbol() {
				n++
			}
		}
	}
	return n
}
