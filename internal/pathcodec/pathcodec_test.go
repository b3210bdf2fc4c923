package pathcodec

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEncodeClaude(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple path", "/Users/josh/code", "-Users-josh-code"},
		{"trailing slash", "/Users/josh/code/", "-Users-josh-code"},
		{"dots and underscores", "/home/me/my_app.v2", "-home-me-my-app-v2"},
		{"windows path", `C:\Users\me`, "C--Users-me"},
		{"existing dash", "/srv/web-app", "-srv-web-app"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeClaude(tt.input); got != tt.expected {
				t.Errorf("EncodeClaude(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestDecodeClaude(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"encoded path", "-Users-josh-code", "/Users/josh/code"},
		{"not encoded", "global", "global"},
		{"double leading dash", "--tmp-x", "/tmp/x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeClaude(tt.input); got != tt.expected {
				t.Errorf("DecodeClaude(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSmartDecode(t *testing.T) {
	existing := map[string]bool{
		"/Users":           true,
		"/Users/toto":      true,
		"/Users/toto/Code": true,
	}
	exists := func(p string) bool { return existing[p] }

	tests := []struct {
		name     string
		input    string
		wantPath string
		wantName string
	}{
		{
			name:     "dashed project name",
			input:    "-Users-toto-Code-my-project",
			wantPath: "/Users/toto/Code/my-project",
			wantName: "my-project",
		},
		{
			name:     "fully existing path",
			input:    "-Users-toto-Code",
			wantPath: "/Users/toto/Code",
			wantName: "Code",
		},
		{
			name:     "nothing exists",
			input:    "-nonexistent-path-my-project",
			wantPath: "/nonexistent/path/my/project",
			wantName: "project",
		},
		{
			name:     "not encoded",
			input:    "plain",
			wantPath: "plain",
			wantName: "plain",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotPath, gotName := smartDecode(tt.input, exists)
			if gotPath != tt.wantPath || gotName != tt.wantName {
				t.Errorf("smartDecode(%q) = (%q, %q), want (%q, %q)",
					tt.input, gotPath, gotName, tt.wantPath, tt.wantName)
			}
		})
	}
}

func TestSmartDecodeClaudeFilesystem(t *testing.T) {
	dir := t.TempDir()
	project := filepath.Join(dir, "parent")
	if err := os.Mkdir(project, 0o755); err != nil {
		t.Fatal(err)
	}

	encoded := EncodeClaude(project) + "-web-app"
	path, name := SmartDecodeClaude(encoded)

	if name != "web-app" {
		t.Errorf("name = %q, want %q", name, "web-app")
	}
	if path != project+"/web-app" {
		t.Errorf("path = %q, want %q", path, project+"/web-app")
	}
}

func TestDecodeGemini(t *testing.T) {
	home := t.TempDir()
	projectDir := filepath.Join(home, "Projects", "demo")
	if err := os.MkdirAll(projectDir, 0o755); err != nil {
		t.Fatal(err)
	}

	t.Run("base directory", func(t *testing.T) {
		path, name := DecodeGemini(home, HashGeminiPath(filepath.Join(home, "Projects")))
		if path != filepath.Join(home, "Projects") || name != "Projects" {
			t.Errorf("got (%q, %q)", path, name)
		}
	})

	t.Run("child directory", func(t *testing.T) {
		path, name := DecodeGemini(home, HashGeminiPath(projectDir))
		if path != projectDir || name != "demo" {
			t.Errorf("got (%q, %q), want (%q, %q)", path, name, projectDir, "demo")
		}
	})

	t.Run("unknown hash", func(t *testing.T) {
		hash := HashGeminiPath("/definitely/not/here")
		path, name := DecodeGemini(home, hash)
		if path != hash {
			t.Errorf("path = %q, want hash", path)
		}
		if name != "Gemini-"+hash[:12] {
			t.Errorf("name = %q, want %q", name, "Gemini-"+hash[:12])
		}
	})
}

func TestHashGeminiPath(t *testing.T) {
	const want = "e9671acd244849c57167c658fa2f969752048f7ab184a3dcf5c46cb4d56ae124"
	if got := HashGeminiPath("/tmp"); got != want {
		t.Errorf("HashGeminiPath(/tmp) = %q, want %q", got, want)
	}
}

func TestDefaultRoots(t *testing.T) {
	r := DefaultRoots("/home/u")

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"claude", r.ClaudeProjects, "/home/u/.claude/projects"},
		{"opencode sessions", r.OpenCodeSessions(), "/home/u/.local/share/opencode/storage/session/global"},
		{"opencode messages", r.OpenCodeMessages(), "/home/u/.local/share/opencode/storage/message"},
		{"opencode parts", r.OpenCodeParts(), "/home/u/.local/share/opencode/storage/part"},
		{"gemini", r.GeminiTmp, "/home/u/.gemini/tmp"},
		{"claude config", r.ClaudeConfigFile(), "/home/u/.claude.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}
