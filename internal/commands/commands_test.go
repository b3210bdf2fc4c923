package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cc_session_hub/internal/config"
	"cc_session_hub/internal/history"
	"cc_session_hub/internal/manager"
	"cc_session_hub/internal/provider"
	"cc_session_hub/internal/server"
)

const (
	testProject = "-nonexistent-zz-proj"
	testSession = "sess-1"

	userLine      = `{"type":"user","timestamp":"2024-01-01T10:00:00Z","message":{"role":"user","content":"hello"}}`
	assistantLine = `{"type":"assistant","timestamp":"2024-01-01T10:00:05Z","message":{"role":"assistant","id":"m1","content":[{"type":"text","text":"first answer"}]}}`
)

// writeScript creates an executable shell script standing in for a CLI
func writeScript(t *testing.T, name, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755)) //nolint:gosec // test script must be executable
	return path
}

// writeFixture creates a home with one claude conversation and a config
// pointing at it. extra is appended to the config.
func writeFixture(t *testing.T, extra string) string {
	t.Helper()
	home := t.TempDir()
	file := filepath.Join(home, ".claude", "projects", testProject, testSession+".jsonl")
	require.NoError(t, os.MkdirAll(filepath.Dir(file), 0o755))
	require.NoError(t, os.WriteFile(file, []byte(userLine+"\n"+assistantLine+"\n"), 0o600))

	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	cfg := "dirs:\n  home: " + home + "\n" + extra
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	return cfgPath
}

// execute runs the root command with args and returns its stdout
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRootCommandSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	var names []string
	for _, c := range cmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"serve", "browse", "projects", "histories", "detect", "chat"} {
		assert.Contains(t, names, want)
	}
	for _, flag := range []string{"config", "log-level", "log-file"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(flag), flag)
	}
}

func TestProjectsJSON(t *testing.T) {
	cfgPath := writeFixture(t, "")

	out, err := execute(t, "--config", cfgPath, "projects", "--json")
	require.NoError(t, err)

	var projects []history.ProjectInfo
	require.NoError(t, json.Unmarshal([]byte(out), &projects), out)
	require.Len(t, projects, 1)
	assert.Equal(t, testProject, projects[0].EncodedName)
	assert.Equal(t, history.ToolClaude, projects[0].AITool)
	assert.Equal(t, 1, projects[0].SessionCount)
}

func TestProjectsSearchNoMatch(t *testing.T) {
	cfgPath := writeFixture(t, "")

	out, err := execute(t, "--config", cfgPath, "projects", "--search", "no-such-project")
	require.NoError(t, err)
	assert.Contains(t, out, "No projects found")

	out, err = execute(t, "--config", cfgPath, "projects", "--search", "no-such-project", "--json")
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(out))
}

func TestHistories(t *testing.T) {
	cfgPath := writeFixture(t, "")

	out, err := execute(t, "--config", cfgPath, "histories", testProject, "--json")
	require.NoError(t, err)
	var summaries []history.ConversationSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summaries), out)
	require.Len(t, summaries, 1)
	assert.Equal(t, testSession, summaries[0].SessionID)
	assert.Equal(t, 2, summaries[0].MessageCount)

	out, err = execute(t, "--config", cfgPath, "histories", testProject, "--tool", "all", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &summaries), out)
	require.Len(t, summaries, 1)

	out, err = execute(t, "--config", cfgPath, "histories", testProject, "--tool", "claude")
	require.NoError(t, err)
	assert.Contains(t, out, testSession)
	assert.Contains(t, out, "first answer")
}

func TestHistoriesErrors(t *testing.T) {
	cfgPath := writeFixture(t, "")

	tests := []struct {
		name string
		args []string
	}{
		{"missing project", []string{"--config", cfgPath, "histories"}},
		{"unknown tool", []string{"--config", cfgPath, "histories", testProject, "--tool", "cursor"}},
		{"bad log level", []string{"--config", cfgPath, "--log-level", "loud", "histories", testProject}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestInvalidConfig(t *testing.T) {
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("theme: neon\n"), 0o600))

	_, err := execute(t, "--config", cfgPath, "projects")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown theme")
}

func TestDetect(t *testing.T) {
	claude := writeScript(t, "claude", `echo "1.0.42 (Claude Code)"`)
	missing := filepath.Join(t.TempDir(), "opencode")
	cfgPath := writeFixture(t, "providers:\n  paths:\n    claude: "+claude+"\n    opencode: "+missing+"\n")

	out, err := execute(t, "--config", cfgPath, "detect")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, len(provider.AllKinds))
	assert.True(t, strings.HasPrefix(lines[0], "Claude"), lines[0])
	assert.Contains(t, lines[0], "1.0.42 (Claude Code)")
	assert.Contains(t, lines[0], claude)
	assert.True(t, strings.HasPrefix(lines[1], "OpenCode"), lines[1])
	assert.Contains(t, lines[1], "ExecutionFailed")
}

func TestDetectErrorName(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&provider.DetectionError{Kind: provider.NotFound}, "NotFound"},
		{&provider.DetectionError{Kind: provider.InvalidVersion}, "InvalidVersion"},
		{&provider.DetectionError{Kind: provider.DetectIOError}, "IoError"},
		{os.ErrNotExist, "Error"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, detectErrorName(tt.err))
	}
}

func decodeStream(t *testing.T, out string) []server.StreamResponse {
	t.Helper()
	var lines []server.StreamResponse
	for _, l := range strings.Split(strings.TrimSpace(out), "\n") {
		var resp server.StreamResponse
		require.NoError(t, json.Unmarshal([]byte(l), &resp), l)
		lines = append(lines, resp)
	}
	return lines
}

func TestStreamChat(t *testing.T) {
	script := writeScript(t, "claude", `echo '{"type":"system","session_id":"s1"}'
echo 'not json'
echo '{"type":"result","result":"ok"}'`)
	p, err := provider.New(provider.KindClaude, script)
	require.NoError(t, err)

	mgr := manager.New(zap.NewNop())
	var out bytes.Buffer
	err = streamChat(context.Background(), &out, mgr, p, provider.NewExecuteOptions("hi"), zap.NewNop())
	require.NoError(t, err)

	lines := decodeStream(t, out.String())
	require.Len(t, lines, 3)
	assert.Equal(t, server.StreamClaudeJSON, lines[0].Type)
	assert.JSONEq(t, `{"type":"system","session_id":"s1"}`, string(lines[0].Data))
	assert.Equal(t, server.StreamClaudeJSON, lines[1].Type)
	assert.Equal(t, server.StreamDone, lines[2].Type)
	assert.Equal(t, 0, mgr.ActiveProcessCount())
}

func TestStreamChatAbort(t *testing.T) {
	script := writeScript(t, "claude", `echo '{"type":"system","session_id":"s1"}'
sleep 30`)
	p, err := provider.New(provider.KindClaude, script)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(200*time.Millisecond, cancel)

	mgr := manager.New(zap.NewNop())
	var out bytes.Buffer
	start := time.Now()
	err = streamChat(ctx, &out, mgr, p, provider.NewExecuteOptions("hi"), zap.NewNop())
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	lines := decodeStream(t, out.String())
	require.NotEmpty(t, lines)
	assert.Equal(t, server.StreamAborted, lines[len(lines)-1].Type)
	assert.Equal(t, 0, mgr.ActiveProcessCount())
}

func TestChatOptions(t *testing.T) {
	img := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0o600))

	opts := &chatOptions{
		session:        "s1",
		cwd:            "/work",
		permissionMode: "plan",
		allowedTools:   []string{"Bash(git:*)"},
		images:         []string{img},
	}
	got, err := opts.executeOptions("hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Message)
	assert.Equal(t, "s1", got.SessionID)
	assert.Equal(t, "/work", got.WorkingDirectory)
	assert.Equal(t, provider.PermissionPlan, got.PermissionMode)
	assert.Equal(t, []string{"Bash(git:*)"}, got.AllowedTools)
	assert.Equal(t, []string{img}, got.ImagePaths)

	opts.permissionMode = "yolo"
	_, err = opts.executeOptions("hello")
	assert.Error(t, err)

	opts.permissionMode = ""
	opts.images = []string{filepath.Join(t.TempDir(), "missing.png")}
	_, err = opts.executeOptions("hello")
	assert.Error(t, err)
}

func TestChatSelectProvider(t *testing.T) {
	reg := provider.NewRegistry()
	claude, err := provider.New(provider.KindClaude, "/bin/claude")
	require.NoError(t, err)
	reg.Register(claude, "1.0")

	opts := &chatOptions{}
	p, err := opts.selectProvider(reg, provider.KindGemini)
	require.NoError(t, err)
	assert.Equal(t, provider.KindClaude, p.Kind())

	opts.provider = "gemini"
	_, err = opts.selectProvider(reg, provider.KindClaude)
	assert.ErrorIs(t, err, provider.ErrCLINotFound)

	opts.provider = "cursor"
	_, err = opts.selectProvider(reg, provider.KindClaude)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	cfg := config.DefaultConfig()

	log, err := (&rootOptions{}).newLogger(cfg, logToFileOnly)
	require.NoError(t, err)
	assert.False(t, log.Core().Enabled(zap.ErrorLevel), "expected a no-op logger without a log file")

	logFile := filepath.Join(t.TempDir(), "hub.log")
	log, err = (&rootOptions{logFile: logFile, logLevel: "debug"}).newLogger(cfg, logToFileOnly)
	require.NoError(t, err)
	log.Debug("hello from test")
	_ = log.Sync()
	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello from test")

	_, err = (&rootOptions{logLevel: "loud"}).newLogger(cfg, logToStderr)
	assert.Error(t, err)
}
