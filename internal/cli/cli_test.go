package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jurkyy/project-pilot/internal/output"
)

const testKey = "sk-test0123456789abcdefghij"

const twoFileResponse = "Here is your project.\n\n" +
	"### FILE: src/main.go\n```go\npackage main\n\nfunc main() {}\n```\n\n" +
	"### FILE: README.md\n```markdown\n# demo\n```\n"

func execute(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	t.Setenv("NO_COLOR", "1")
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func completionServer(t *testing.T, content string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+testKey, r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]any{"role": "assistant", "content": content},
				"finish_reason": "stop",
			}},
			"usage": map[string]any{"prompt_tokens": 10, "completion_tokens": 20, "total_tokens": 30},
		})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRoot_Help(t *testing.T) {
	code, out, _ := execute(t, "--help")

	assert.Equal(t, output.ExitSuccess, code)
	for _, cmd := range []string{"generate", "serve", "version"} {
		assert.Contains(t, out, cmd)
	}
}

func TestRoot_UsageErrors(t *testing.T) {
	code, _, _ := execute(t, "nonexistent-command")
	assert.Equal(t, output.ExitUsageError, code)

	code, _, stderr := execute(t, "generate", "--no-such-flag")
	assert.Equal(t, output.ExitUsageError, code)
	assert.Contains(t, stderr, "no-such-flag")
}

func TestRoot_InvalidConfig(t *testing.T) {
	cfgPath := writeFile(t, t.TempDir(), "config.yaml", "llm:\n  provider: nope\n")

	code, _, stderr := execute(t, "--config", cfgPath, "version")
	assert.Equal(t, output.ExitConfigError, code)
	assert.Contains(t, stderr, "invalid configuration")
}

func TestVersion(t *testing.T) {
	SetBuildInfo("abc1234", "2026-01-02T03:04:05Z")
	SetVersion("1.2.3")
	defer SetVersion("dev")

	code, out, _ := execute(t, "version")
	assert.Equal(t, output.ExitSuccess, code)
	for _, field := range []string{"1.2.3", "commit:     abc1234", "built:", "go version:", "platform:"} {
		assert.Contains(t, out, field)
	}

	_, out, _ = execute(t, "version", "--short")
	assert.Equal(t, "1.2.3\n", out)

	_, out, _ = execute(t, "version", "--json")
	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "abc1234", info["commit"])
}

func TestGenerate_ResponseFile(t *testing.T) {
	dir := t.TempDir()
	resp := writeFile(t, dir, "answer.md", twoFileResponse)
	target := filepath.Join(dir, "demo")

	code, out, stderr := execute(t, "generate", "--response-file", resp, "-o", target)
	require.Equal(t, output.ExitSuccess, code, stderr)

	for _, name := range []string{"src/main.go", "README.md", "Dockerfile"} {
		assert.FileExists(t, filepath.Join(target, name))
	}
	assert.Contains(t, out, "Added container setup: Dockerfile")
	assert.Contains(t, out, "[OK] Project written to")
}

func TestGenerate_ResponseFileTraversal(t *testing.T) {
	dir := t.TempDir()
	resp := writeFile(t, dir, "answer.md", "### FILE: ../../etc/passwd\n```\nroot:x:0:0\n```\n")
	target := filepath.Join(dir, "demo")

	code, _, stderr := execute(t, "generate", "--response-file", resp, "-o", target)
	assert.Equal(t, output.ExitSanitize, code)
	assert.Contains(t, stderr, "sanitize stage failed")
	assert.NoDirExists(t, target)
}

func TestGenerate_ResponseFileMissing(t *testing.T) {
	code, _, _ := execute(t, "generate", "--response-file", filepath.Join(t.TempDir(), "nope.md"), "-o", t.TempDir())
	assert.Equal(t, output.ExitUsageError, code)
}

func TestGenerate_NonEmptyTarget(t *testing.T) {
	dir := t.TempDir()
	resp := writeFile(t, dir, "answer.md", twoFileResponse)
	target := filepath.Join(dir, "demo")
	require.NoError(t, os.Mkdir(target, 0o755))
	writeFile(t, target, "keep.txt", "mine")

	code, _, stderr := execute(t, "generate", "--response-file", resp, "-o", target)
	assert.Equal(t, output.ExitAborted, code)
	assert.Contains(t, stderr, "--overwrite")

	got, err := os.ReadFile(filepath.Join(target, "keep.txt"))
	require.NoError(t, err)
	assert.Equal(t, "mine", string(got))
	assert.NoFileExists(t, filepath.Join(target, "README.md"))
}

func TestGenerate_Overwrite(t *testing.T) {
	dir := t.TempDir()
	resp := writeFile(t, dir, "answer.md", twoFileResponse)
	target := filepath.Join(dir, "demo")
	require.NoError(t, os.Mkdir(target, 0o755))
	writeFile(t, target, "keep.txt", "mine")

	code, _, stderr := execute(t, "generate", "--response-file", resp, "-o", target, "--overwrite")
	require.Equal(t, output.ExitSuccess, code, stderr)
	assert.FileExists(t, filepath.Join(target, "keep.txt"))
	assert.FileExists(t, filepath.Join(target, "README.md"))
}

func TestGenerate_MissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PROJECT_PILOT_LLM_API_KEY", "")
	target := filepath.Join(t.TempDir(), "demo")

	code, _, stderr := execute(t, "generate", "-d", "a todo app", "-o", target)
	assert.Equal(t, output.ExitCredential, code)
	assert.Contains(t, stderr, "credential stage failed")
	assert.NoDirExists(t, target)
}

func TestGenerate_NoDescription(t *testing.T) {
	code, _, _ := execute(t, "generate", "--api-key", testKey, "-o", filepath.Join(t.TempDir(), "x"))
	assert.Equal(t, output.ExitUsageError, code)
}

func TestGenerate_BadOverrides(t *testing.T) {
	code, _, _ := execute(t, "generate", "-d", "x", "--provider", "anthropic")
	assert.Equal(t, output.ExitUsageError, code)

	code, _, _ = execute(t, "generate", "-d", "x", "--max-tokens", "0")
	assert.Equal(t, output.ExitUsageError, code)
}

func TestGenerate_CallsLLM(t *testing.T) {
	srv := completionServer(t, twoFileResponse)
	t.Setenv("PROJECT_PILOT_LLM_BASE_URL", srv.URL)
	dir := t.TempDir()
	target := filepath.Join(dir, "demo")
	saved := filepath.Join(dir, "response.md")

	code, _, stderr := execute(t, "generate", "a demo service",
		"--api-key", testKey, "-o", target, "-l", "go", "-m", "gpt-test", "--save-response", saved)
	require.Equal(t, output.ExitSuccess, code, stderr)

	assert.FileExists(t, filepath.Join(target, "src/main.go"))
	assert.FileExists(t, filepath.Join(target, "Dockerfile"))
	got, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, twoFileResponse, string(got))
}

func TestGenerate_SaveResponseInsideTarget(t *testing.T) {
	target := filepath.Join(t.TempDir(), "demo")

	code, _, stderr := execute(t, "generate", "-d", "x", "--api-key", testKey,
		"-o", target, "--save-response", filepath.Join(target, "response.md"))
	assert.Equal(t, output.ExitUsageError, code)
	assert.Contains(t, stderr, "outside the output directory")
}

func TestGenerate_GitInit(t *testing.T) {
	dir := t.TempDir()
	resp := writeFile(t, dir, "answer.md", twoFileResponse)
	target := filepath.Join(dir, "demo")

	code, out, stderr := execute(t, "generate", "--response-file", resp, "-o", target, "--git-init")
	require.Equal(t, output.ExitSuccess, code, stderr)
	assert.DirExists(t, filepath.Join(target, ".git"))
	assert.Contains(t, out, "Committed ")
}

func TestGenerate_PublishNeedsToken(t *testing.T) {
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("PROJECT_PILOT_GITHUB_TOKEN", "")
	dir := t.TempDir()
	resp := writeFile(t, dir, "answer.md", twoFileResponse)

	code, _, stderr := execute(t, "generate", "--response-file", resp, "-o", filepath.Join(dir, "demo"), "--publish")
	assert.Equal(t, output.ExitConfigError, code)
	assert.Contains(t, stderr, "GitHub token")
}

func TestServe_InvalidKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("PROJECT_PILOT_LLM_API_KEY", "")

	code, _, stderr := execute(t, "serve", "--port", "0")
	assert.Equal(t, output.ExitCredential, code)
	assert.Contains(t, stderr, "valid API key")
}

func TestNewServer(t *testing.T) {
	t.Setenv("PROJECT_PILOT_SERVER_WORKSPACE_DIR", filepath.Join(t.TempDir(), "work"))
	cfgFile, verbose, quiet = "", false, true
	require.NoError(t, initConfig(io.Discard, io.Discard))

	srv, err := newServer(&serveFlags{apiKey: testKey, host: "127.0.0.1", port: "0"})
	require.NoError(t, err)
	defer func() { require.NoError(t, srv.shutdown(context.Background())) }()

	assert.Equal(t, "127.0.0.1:0", srv.http.Addr)
	assert.DirExists(t, cfg.Server.WorkspaceDir)

	rec := httptest.NewRecorder()
	srv.http.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/generate", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	srv.http.Handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
