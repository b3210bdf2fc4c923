package provider

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestValidateCLI(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		body     string
		expected string
		kind     error
	}{
		{"stdout", `echo "1.2.3 (Claude Code)"`, "1.2.3 (Claude Code)", nil},
		{"stderr mentioning version", `echo "gemini version 0.4" >&2; exit 1`, "gemini version 0.4", nil},
		{"stderr without version", `echo "usage" >&2; exit 1`, "", ErrInvalidVersion},
		{"silent", `exit 0`, "", ErrInvalidVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			script := writeScript(t, dir, filepath.Base(t.Name()), tt.body)
			got, err := ValidateCLI(context.Background(), script)
			if tt.kind != nil {
				assert.True(t, errors.Is(err, tt.kind), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestValidateCLIMissingBinary(t *testing.T) {
	_, err := ValidateCLI(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.True(t, errors.Is(err, ErrExecution), "got %v", err)
}

func TestDetectCustomPath(t *testing.T) {
	script := writeScript(t, t.TempDir(), "my-claude", `echo "2.0.0"`)

	d, err := Detect(context.Background(), KindClaude, script)
	require.NoError(t, err)
	assert.Equal(t, Detection{Kind: KindClaude, Path: script, Version: "2.0.0"}, d)
}

func TestFindInPath(t *testing.T) {
	if _, err := exec.LookPath("which"); err != nil {
		t.Skip("which is not installed")
	}
	dir := t.TempDir()
	script := writeScript(t, dir, "opencode", `echo "0.1"`)
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))

	got, err := FindInPath(context.Background(), KindOpenCode)
	require.NoError(t, err)
	assert.Equal(t, script, got)
}

func TestFindInPathNotFound(t *testing.T) {
	t.Setenv("PATH", t.TempDir())

	_, err := FindInPath(context.Background(), KindGemini)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFindInCommonPaths(t *testing.T) {
	home := t.TempDir()
	assert.Empty(t, FindInCommonPaths(home, KindOpenCode))

	path := filepath.Join(home, "go", "bin", "opencode")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	assert.Equal(t, path, FindInCommonPaths(home, KindOpenCode))
}

func TestCommonPathsPerKind(t *testing.T) {
	for _, kind := range AllKinds {
		paths := commonPaths("/home/me", kind)
		assert.NotEmpty(t, paths)
		for _, p := range paths {
			assert.Equal(t, kind.Executable(), filepath.Base(p))
		}
	}
}

func TestDetectAll(t *testing.T) {
	dir := t.TempDir()
	paths := map[Kind]string{
		KindClaude: writeScript(t, dir, "claude", `echo "1.0"`),
		KindGemini: writeScript(t, dir, "gemini", `exit 0`),
		// OpenCode points somewhere that does not exist
		KindOpenCode: filepath.Join(dir, "missing"),
	}

	r := DetectAll(context.Background(), paths, zap.NewNop())

	p, ok := r.Get(KindClaude)
	require.True(t, ok)
	assert.Equal(t, paths[KindClaude], p.CLIPath())

	_, ok = r.Get(KindGemini)
	assert.False(t, ok, "no version means unavailable")
	_, ok = r.Get(KindOpenCode)
	assert.False(t, ok)

	statuses := r.Statuses()
	require.Len(t, statuses, 3)
	assert.True(t, statuses[0].Available)
	assert.Equal(t, "1.0", statuses[0].Version)
	assert.False(t, statuses[1].Available)
	assert.NotEmpty(t, statuses[1].Error)
	assert.False(t, statuses[2].Available)
}

func TestRegistryDefault(t *testing.T) {
	r := NewRegistry()
	_, err := r.Default(KindClaude)
	assert.True(t, errors.Is(err, ErrCLINotFound))

	r.Register(NewGemini("/bin/gemini"), "1")
	p, err := r.Default(KindClaude)
	require.NoError(t, err)
	assert.Equal(t, KindGemini, p.Kind(), "falls back to any available provider")

	r.Register(NewOpenCode("/bin/opencode"), "1")
	p, err = r.Default(KindGemini)
	require.NoError(t, err)
	assert.Equal(t, KindGemini, p.Kind(), "preferred wins when available")

	p, err = r.Default("")
	require.NoError(t, err)
	assert.Equal(t, KindOpenCode, p.Kind(), "fallback follows preference order")
}
