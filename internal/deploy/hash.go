package deploy

import (
	"crypto/md5" //nolint:gosec // content identity only
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const hashChunkSize = 32 * 1024

// HashFile returns the lowercase hex MD5 digest of the file at path. The file
// is read in fixed-size chunks so memory use does not grow with its size.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := md5.New() //nolint:gosec
	// The anonymous struct hides os.File's WriterTo so CopyBuffer uses buf.
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{f}, make([]byte, hashChunkSize)); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
