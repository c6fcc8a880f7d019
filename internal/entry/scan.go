package entry

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	ignore "github.com/sabhiram/go-gitignore"
)

// ScanError reports a directory or file that could not be read during a scan.
type ScanError struct {
	Path string
	Err  error
}

func (e *ScanError) Error() string {
	return fmt.Sprintf("scan %s: %v", e.Path, e.Err)
}

func (e *ScanError) Unwrap() error { return e.Err }

// FileEntry is one regular file found beneath the source root.
type FileEntry struct {
	// AbsPath is the absolute path of the file.
	AbsPath string
	// SrcPath is the slash-separated path relative to the source root.
	SrcPath string
}

// Scan returns every regular file beneath root, in lexical order.
//
// Symlinks are not followed. Patterns use gitignore syntax and are matched
// against the slash-separated path relative to root; a matching directory
// is skipped as a whole.
func Scan(root string, patterns []string) ([]FileEntry, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, &ScanError{Path: root, Err: err}
	}

	var gi *ignore.GitIgnore
	if len(patterns) > 0 {
		gi = ignore.CompileIgnoreLines(patterns...)
	}

	var files []FileEntry
	err = filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return &ScanError{Path: path, Err: err}
		}
		if path == absRoot {
			if !d.IsDir() {
				return &ScanError{Path: path, Err: errors.New("not a directory")}
			}
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return &ScanError{Path: path, Err: err}
		}
		rel = filepath.ToSlash(rel)

		if gi != nil {
			candidate := rel
			if d.IsDir() {
				candidate += "/"
			}
			if gi.MatchesPath(candidate) {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
		}

		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}
		files = append(files, FileEntry{AbsPath: path, SrcPath: rel})
		return nil
	})
	if err != nil {
		var scanErr *ScanError
		if errors.As(err, &scanErr) {
			return nil, scanErr
		}
		return nil, &ScanError{Path: absRoot, Err: err}
	}

	return files, nil
}

// readContent reads a candidate file. It is only called for files whose
// content can influence the generated module.
func readContent(f FileEntry) ([]byte, error) {
	data, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return nil, &ScanError{Path: f.AbsPath, Err: err}
	}
	return data, nil
}
