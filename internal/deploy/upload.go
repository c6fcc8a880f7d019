package deploy

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
)

// maxErrorBody bounds how much of a failed upload response is kept.
const maxErrorBody = 64 * 1024

// UploadTicket is the one-time upload authorization issued by the site API.
type UploadTicket struct {
	ID            string            `json:"id,omitempty"`
	UploadDetails map[string]string `json:"uploadDetails"`
	UploadURL     string            `json:"uploadUrl"`
	AssetURL      string            `json:"assetUrl"`
}

// Assets negotiates upload tickets against the site API.
type Assets struct {
	api API
}

// NewAssets creates an asset negotiator.
func NewAssets(api API) *Assets {
	return &Assets{api: api}
}

// Negotiate requests an upload ticket for fileName with the given digest.
func (a *Assets) Negotiate(ctx context.Context, siteID, fileName, digest string) (*UploadTicket, error) {
	body := map[string]string{
		"fileName": fileName,
		"fileHash": digest,
	}

	var ticket UploadTicket
	if err := a.api.DoPost(ctx, sitePath(siteID, "assets"), body, &ticket); err != nil {
		return nil, err
	}
	if ticket.UploadURL == "" {
		return nil, fmt.Errorf("upload ticket has no upload URL")
	}
	return &ticket, nil
}

// FormUploader posts a file to a ticket's upload URL as a multipart form.
type FormUploader struct {
	client *http.Client
}

// NewFormUploader creates an uploader. A nil client uses http.DefaultClient.
func NewFormUploader(client *http.Client) *FormUploader {
	if client == nil {
		client = http.DefaultClient
	}
	return &FormUploader{client: client}
}

// Upload sends every ticket field, sorted by name, followed by the file part.
// The file is streamed; only 201 Created counts as success.
func (u *FormUploader) Upload(ctx context.Context, ticket *UploadTicket, path string) error {
	f, err := os.Open(path) //nolint:gosec // bundle path comes from project config
	if err != nil {
		return fmt.Errorf("failed to open bundle: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat bundle: %w", err)
	}

	prefix, suffix, contentType, err := formEnvelope(ticket.UploadDetails, filepath.Base(path))
	if err != nil {
		return err
	}

	body := io.MultiReader(bytes.NewReader(prefix), f, bytes.NewReader(suffix))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ticket.UploadURL, body)
	if err != nil {
		return fmt.Errorf("failed to create upload request: %w", err)
	}
	req.ContentLength = int64(len(prefix)) + info.Size() + int64(len(suffix))
	req.Header.Set("Content-Type", contentType)

	log.Debug().Str("url", redactURL(ticket.UploadURL)).Int64("bytes", req.ContentLength).Msg("Uploading bundle")

	resp, err := u.client.Do(req)
	if err != nil {
		return fmt.Errorf("upload request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StepError{
			Step:       StepUpload,
			StatusCode: resp.StatusCode,
			Body:       string(data),
			Err:        fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// formEnvelope renders the multipart bytes that surround the file content.
func formEnvelope(fields map[string]string, fileName string) (prefix, suffix []byte, contentType string, err error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, k := range keys {
		if err := mw.WriteField(k, fields[k]); err != nil {
			return nil, nil, "", fmt.Errorf("failed to write form field %q: %w", k, err)
		}
	}
	if _, err := mw.CreateFormFile("file", fileName); err != nil {
		return nil, nil, "", fmt.Errorf("failed to write file part: %w", err)
	}
	split := buf.Len()
	if err := mw.Close(); err != nil {
		return nil, nil, "", fmt.Errorf("failed to close form: %w", err)
	}

	all := buf.Bytes()
	return all[:split], all[split:], mw.FormDataContentType(), nil
}

// redactURL drops the query string, which may carry signatures.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid>"
	}
	u.RawQuery = ""
	return u.String()
}
