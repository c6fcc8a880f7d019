package deploy

import (
	"bytes"
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashFile_KnownVector(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.js")
	require.NoError(t, os.WriteFile(path, []byte("hello world\n"), 0o644))

	digest, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, "6f5902ac237024bdd0c176cb93063dc4", digest)
}

func TestHashFile_MatchesReference(t *testing.T) {
	sizes := []int{0, 1, hashChunkSize - 1, hashChunkSize, hashChunkSize + 1, 3*hashChunkSize + 17}
	for _, size := range sizes {
		data := bytes.Repeat([]byte("viteflow-"), size/9+1)[:size]
		path := filepath.Join(t.TempDir(), "bundle.js")
		require.NoError(t, os.WriteFile(path, data, 0o644))

		sum := md5.Sum(data) //nolint:gosec
		want := hex.EncodeToString(sum[:])

		got, err := HashFile(path)
		require.NoError(t, err)
		assert.Equal(t, want, got, "size %d", size)
	}
}

func TestHashFile_Missing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "missing.js"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
