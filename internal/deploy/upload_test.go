package deploy

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type formPart struct {
	name     string
	fileName string
	value    string
}

// readForm decodes a multipart request, preserving part order.
func readForm(t *testing.T, r *http.Request) []formPart {
	t.Helper()
	mediaType, params, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	require.NoError(t, err)
	require.Equal(t, "multipart/form-data", mediaType)

	var parts []formPart
	mr := multipart.NewReader(r.Body, params["boundary"])
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		data, err := io.ReadAll(p)
		require.NoError(t, err)
		parts = append(parts, formPart{name: p.FormName(), fileName: p.FileName(), value: string(data)})
	}
	return parts
}

func writeBundle(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dist", "main.js")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFormUploader_SendsFieldsThenFile(t *testing.T) {
	bundle := writeBundle(t, "console.log('bundle');\n")

	var parts []formPart
	var contentLength int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentLength = r.ContentLength
		parts = readForm(t, r)
		assert.Empty(t, r.Header.Get("Authorization"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	ticket := &UploadTicket{
		UploadURL: server.URL + "/bucket",
		UploadDetails: map[string]string{
			"key":                   "sites/abc/main.js.txt",
			"Policy":                "cG9saWN5",
			"X-Amz-Signature":       "sig",
			"success_action_status": "201",
		},
	}

	require.NoError(t, NewFormUploader(server.Client()).Upload(context.Background(), ticket, bundle))

	require.Len(t, parts, 5)
	assert.Equal(t, []formPart{
		{name: "Policy", value: "cG9saWN5"},
		{name: "X-Amz-Signature", value: "sig"},
		{name: "key", value: "sites/abc/main.js.txt"},
		{name: "success_action_status", value: "201"},
		{name: "file", fileName: "main.js", value: "console.log('bundle');\n"},
	}, parts)
	assert.Positive(t, contentLength)
}

func TestFormUploader_OnlyCreatedIsSuccess(t *testing.T) {
	bundle := writeBundle(t, "x")

	for _, status := range []int{http.StatusOK, http.StatusNoContent, http.StatusForbidden} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.Copy(io.Discard, r.Body)
				w.WriteHeader(status)
				_, _ = w.Write([]byte("<Error>denied</Error>"))
			}))
			defer server.Close()

			err := NewFormUploader(nil).Upload(context.Background(), &UploadTicket{UploadURL: server.URL}, bundle)
			require.Error(t, err)

			var se *StepError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, StepUpload, se.Step)
			assert.Equal(t, status, se.StatusCode)
			if status != http.StatusNoContent {
				assert.Equal(t, "<Error>denied</Error>", se.Body)
			}
		})
	}
}

func TestFormEnvelope_SurroundsFile(t *testing.T) {
	prefix, suffix, contentType, err := formEnvelope(map[string]string{"b": "2", "a": "1"}, "main.js")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(contentType, "multipart/form-data; boundary="))
	assert.Less(t, strings.Index(string(prefix), `name="a"`), strings.Index(string(prefix), `name="b"`))
	assert.Contains(t, string(prefix), `filename="main.js"`)
	assert.True(t, strings.HasSuffix(string(suffix), "--\r\n"))
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://bucket.test/upload", redactURL("https://bucket.test/upload?X-Amz-Signature=abc"))
}
