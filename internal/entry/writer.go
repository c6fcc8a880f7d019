package entry

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// WriteError reports a failure to persist the entry module.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write entry %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Writer owns the entry file on disk.
type Writer struct {
	Path string
}

// NewWriter returns a writer for the entry file at path.
func NewWriter(path string) *Writer {
	return &Writer{Path: path}
}

// Prepare creates the entry directory and an empty placeholder file so the
// bundler has something to resolve before the first synthesis.
func (w *Writer) Prepare() error {
	if err := os.MkdirAll(filepath.Dir(w.Path), 0o755); err != nil {
		return &WriteError{Path: w.Path, Err: err}
	}
	f, err := os.OpenFile(w.Path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return &WriteError{Path: w.Path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{Path: w.Path, Err: err}
	}
	return nil
}

// Write replaces the entry file with body. The content is written to a
// temporary file in the same directory and renamed into place, so readers
// only ever see a complete module. It reports whether the file changed.
func (w *Writer) Write(body string) (bool, error) {
	if current, err := os.ReadFile(w.Path); err == nil && bytes.Equal(current, []byte(body)) {
		return false, nil
	}

	dir := filepath.Dir(w.Path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(w.Path)+".*.tmp")
	if err != nil {
		return false, &WriteError{Path: w.Path, Err: err}
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(body); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return false, &WriteError{Path: w.Path, Err: err}
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return false, &WriteError{Path: w.Path, Err: err}
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		_ = os.Remove(tmpPath)
		return false, &WriteError{Path: w.Path, Err: err}
	}
	if err := os.Rename(tmpPath, w.Path); err != nil {
		_ = os.Remove(tmpPath)
		return false, &WriteError{Path: w.Path, Err: err}
	}
	return true, nil
}
