package commands

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/DotIN13/statements"
	"github.com/DotIN13/statements/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelInfo, parseLevel("loud"))
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "info", "json").Info("hello", "k", 1)
	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])

	buf.Reset()
	log := newLogger(&buf, "warn", "text")
	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestBuildEndpoint(t *testing.T) {
	t.Setenv("DASHSCOPE_API_KEY", "ds")

	cfg := config.Default()
	cfg.Endpoint.Platform = "dashscope"
	cfg.Endpoint.Model = "qwen-plus"
	e, err := buildEndpoint(cfg)
	require.NoError(t, err)
	assert.Equal(t, statements.PlatformDashScope, e.Platform())
	assert.True(t, e.HasCredential())

	cfg.Endpoint.Platform = "custom"
	_, err = buildEndpoint(cfg)
	assert.Error(t, err)

	cfg.Endpoint.Proxies = []string{"http://my-proxy"}
	e, err = buildEndpoint(cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"http://my-proxy"}, e.Proxies())
	assert.False(t, e.HasCredential())

	cfg.Endpoint.Model = "deepseek/deepseek-chat?temperature=0.1"
	cfg.Endpoint.Proxies = nil
	cfg.Endpoint.Params = map[string]any{"temperature": 0.9, "seed": 1}
	e, err = buildEndpoint(cfg)
	require.NoError(t, err)
	assert.Equal(t, statements.PlatformDeepSeek, e.Platform())
	assert.Equal(t, "deepseek-chat", e.Name())
	assert.Equal(t, map[string]any{"temperature": 0.1, "seed": 1}, e.Params())
}

func TestBuildSender(t *testing.T) {
	cfg := config.Default()
	_, ok := buildSender(cfg, statements.PlatformOpenAI, slog.Default()).(*statements.ChatClient)
	assert.True(t, ok)

	_, ok = buildSender(cfg, statements.PlatformGemini, slog.Default()).(*statements.GeminiClient)
	assert.True(t, ok)
}

func setupJob(t *testing.T, proxy string) (dir, job string) {
	t.Helper()
	dir = t.TempDir()
	write := func(name, body string) {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
	write("speeches.csv", "id,speaker,text\n1,Ann,We must cut taxes\n2,Bob,\n3,Cy,Healthcare for all\n")
	write("stance.twig", "Speaker {{ speaker }} said: {{ text }}")
	write("job.yaml", `
endpoint:
  platform: local
  model: test-model
  proxies: ["`+proxy+`"]
dataset:
  path: `+filepath.Join(dir, "speeches.csv")+`
prompt:
  template: `+filepath.Join(dir, "stance.twig")+`
  required_fields: [text]
output:
  dir: `+filepath.Join(dir, "out")+`
  prefix: stance
  include_fields: [speaker]
run:
  workers: 2
  retry_delay: 1ms
log:
  level: error
`)
	return dir, filepath.Join(dir, "job.yaml")
}

func TestRunCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"{\"stance\":\"left\"}"}}]}`))
	}))
	defer srv.Close()
	dir, job := setupJob(t, srv.URL)

	root := NewRootCmd("test")
	var stdout, stderr bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs([]string{"run", "-c", job, "--env-file", ""})
	require.NoError(t, root.Execute(), stderr.String())

	matches, err := filepath.Glob(filepath.Join(dir, "out", "stance_[0-9]*.jsonl"))
	require.NoError(t, err)
	require.Len(t, matches, 1)
	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 2, "the row without text is skipped")
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "left", rec["stance"])
	assert.NotEmpty(t, rec["speaker"])
}

func TestRunCommand_DryRun(t *testing.T) {
	_, job := setupJob(t, "http://127.0.0.1:1")

	root := NewRootCmd("test")
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "-c", job, "--env-file", "", "--dry-run", "--workers", "4"})
	require.NoError(t, root.Execute())

	var stats statements.DryRunStats
	require.NoError(t, json.Unmarshal(stdout.Bytes(), &stats))
	assert.Equal(t, 3, stats.Items)
	assert.Equal(t, 2, stats.Prompts)
	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 2*statements.DefaultMaxRetries, stats.MaxCalls)
}

func TestRunCommand_InvalidConfig(t *testing.T) {
	dir := t.TempDir()
	job := filepath.Join(dir, "job.yaml")
	require.NoError(t, os.WriteFile(job, []byte("run:\n  workers: 2\n"), 0o644))

	root := NewRootCmd("test")
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"run", "-c", job, "--env-file", ""})
	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "endpoint.model")
}

func TestEndpointsCommand(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "x")

	root := NewRootCmd("test")
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{"endpoints", "--env-file", ""})
	require.NoError(t, root.Execute())

	out := stdout.String()
	assert.Contains(t, out, "PLATFORM")
	assert.Contains(t, out, "deepseek")
	assert.Contains(t, out, "OPENAI_API_KEY")
}

func TestVersionCommand(t *testing.T) {
	root := NewRootCmd("1.2.3")
	var stdout bytes.Buffer
	root.SetOut(&stdout)
	root.SetArgs([]string{"version"})
	require.NoError(t, root.Execute())
	assert.Equal(t, "statements 1.2.3\n", stdout.String())
}
