package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/viteflow/viteflow/internal/deploy"
	"github.com/viteflow/viteflow/internal/watcher"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
}

func newSite(t *testing.T) string {
	t.Helper()
	t.Setenv("VITEFLOW_TOKEN", "")
	t.Setenv("VITEFLOW_SITE_ID", "")
	t.Setenv("WEBFLOW_API_TOKEN", "")
	t.Setenv("WEBFLOW_SITE_ID", "")
	t.Setenv("SITE_ID", "")

	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"src/pages/home.ts":        "export default function Home() { console.log('home'); }\n",
		"src/pages/blog/[slug].ts": "export default function Post() { console.log('post'); }\n",
		"src/styles/main.css":      "body { margin: 0; }\n",
		"src/lib/util.ts":          "export const x = 1;\n",
	})
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout bytes.Buffer
	root := NewRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(io.Discard)
	err := root.Execute()
	return stdout.String(), err
}

func TestVersionCmd(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "viteflow dev")
	assert.Contains(t, out, "Commit: unknown")
}

func TestGenerateCmd(t *testing.T) {
	dir := newSite(t)

	out, err := run(t, "generate", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "entry:")
	assert.Contains(t, out, ".viteflow/main.js")
	assert.Contains(t, out, "changed:     true")

	data, err := os.ReadFile(filepath.Join(dir, ".viteflow", "main.js"))
	require.NoError(t, err)
	body := string(data)
	assert.Contains(t, body, "import Home from '../src/pages/home.ts';")
	assert.Contains(t, body, "window.location.pathname.startsWith('/blog/')")
	assert.Contains(t, body, "import '../src/styles/main.css';")
	assert.NotContains(t, body, "util.ts")

	out, err = run(t, "generate", "-C", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "changed:     false")
}

func TestGenerateCmd_Explain(t *testing.T) {
	dir := newSite(t)

	out, err := run(t, "generate", "--explain", "-C", dir, "-o", "json")
	require.NoError(t, err)

	var rows []map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &rows))
	require.Len(t, rows, 3)

	byPath := make(map[string]map[string]string)
	for _, r := range rows {
		byPath[r["path"]] = r
	}
	assert.Equal(t, "home", byPath["pages/home.ts"]["kind"])
	assert.Equal(t, "Home", byPath["pages/home.ts"]["symbol"])
	assert.Equal(t, "slug", byPath["pages/blog/[slug].ts"]["kind"])
	assert.Equal(t, "/blog/", byPath["pages/blog/[slug].ts"]["route"])
	assert.Equal(t, "module", byPath["styles/main.css"]["kind"])
}

func TestGenerateCmd_InvalidOutput(t *testing.T) {
	dir := newSite(t)
	_, err := run(t, "generate", "-C", dir, "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid output format")
}

func TestBuildCmd_Esbuild(t *testing.T) {
	dir := newSite(t)
	writeTree(t, dir, map[string]string{"viteflow.yaml": "bundler:\n  engine: esbuild\n"})

	out, err := run(t, "build", "-C", dir, "--analyze")
	require.NoError(t, err)
	assert.Contains(t, out, "Built ")
	assert.Contains(t, out, "Bundle Analysis: main.js")

	data, err := os.ReadFile(filepath.Join(dir, "dist", "main.js"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "startsWith(\"/blog/\")")
}

// fakeSite serves the site API endpoints used by deploy and scripts.
func fakeSite(t *testing.T) *httptest.Server {
	t.Helper()
	var attached []deploy.Script

	var server *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v2/sites/site-1/assets", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(deploy.UploadTicket{
			ID:            "asset-1",
			UploadURL:     server.URL + "/upload",
			AssetURL:      "https://cdn.test/main.js.txt",
			UploadDetails: map[string]string{"key": "k"},
		})
	})
	mux.HandleFunc("POST /upload", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})
	mux.HandleFunc("POST /v2/sites/site-1/registered_scripts/hosted", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"script-1"}`)
	})
	mux.HandleFunc("PUT /v2/sites/site-1/custom_code", func(w http.ResponseWriter, r *http.Request) {
		var body deploy.CustomCode
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		attached = body.Scripts
		_ = json.NewEncoder(w).Encode(body)
	})
	mux.HandleFunc("GET /v2/sites/site-1/custom_code", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(deploy.CustomCode{Scripts: attached})
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestDeployCmd_SkipBuild(t *testing.T) {
	dir := newSite(t)
	writeTree(t, dir, map[string]string{"dist/main.js": "console.log('bundle');\n"})
	server := fakeSite(t)

	out, err := run(t, "deploy", "--skip-build", "-C", dir,
		"--api-url", server.URL+"/v2", "--token", "tok", "--site-id", "site-1", "-o", "json")
	require.NoError(t, err)

	var rec deploy.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "script-1", rec.ScriptID)
	assert.Equal(t, "https://cdn.test/main.js.txt", rec.AssetURL)
	assert.Equal(t, "asset-1", rec.AssetID)
	assert.Len(t, rec.Digest, 32)
	assert.NotEmpty(t, rec.Version)
	assert.True(t, rec.Verified)

	out, err = run(t, "scripts", "-C", dir,
		"--api-url", server.URL+"/v2", "--token", "tok", "--site-id", "site-1")
	require.NoError(t, err)
	assert.Contains(t, out, "script-1")
	assert.Contains(t, out, "footer")
	assert.Contains(t, out, rec.Version)
}

func TestDeployCmd_MissingCredentials(t *testing.T) {
	dir := newSite(t)
	_, err := run(t, "deploy", "--skip-build", "-C", dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing required configuration: token, site_id")
}

func TestDeployCmd_MissingBundle(t *testing.T) {
	dir := newSite(t)
	server := fakeSite(t)

	_, err := run(t, "deploy", "--skip-build", "-C", dir,
		"--api-url", server.URL+"/v2", "--token", "tok", "--site-id", "site-1")
	require.Error(t, err)

	var stepErr *deploy.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, deploy.StepHash, stepErr.Step)
}

func TestConfigViewCmd_MasksToken(t *testing.T) {
	dir := newSite(t)

	out, err := run(t, "config", "view", "-C", dir, "--token", "abcd1234wxyz", "-o", "json")
	require.NoError(t, err)

	var view map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, "abcd****wxyz", view["token"])
	assert.Equal(t, "https://api.webflow.com/v2", view["api_url"])
}

func TestLogDevStats(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	root := t.TempDir()
	logDevStats(root, watcher.Stats{
		Events:    5,
		Coalesced: 3,
		Cycles:    2,
		LastEvent: filepath.Join(root, "src", "pages", "home.ts"),
	})

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Dev mode stopped", line["message"])
	assert.EqualValues(t, 5, line["events"])
	assert.EqualValues(t, 3, line["coalesced"])
	assert.Equal(t, "src/pages/home.ts", line["last_event"])
}
