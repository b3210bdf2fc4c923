package devagent

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"cc_session_hub/internal/pathcodec"
)

func TestStripHostMntPrefix(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected string
	}{
		{
			name:     "with /host_mnt prefix",
			path:     "/host_mnt/Users/dev/.local/share/devagent/claude-configs/abc123/.claude",
			expected: "/Users/dev/.local/share/devagent/claude-configs/abc123/.claude",
		},
		{
			name:     "without /host_mnt prefix (Linux path)",
			path:     "/home/user/.local/share/devagent/claude-configs/abc123/.claude",
			expected: "/home/user/.local/share/devagent/claude-configs/abc123/.claude",
		},
		{
			name:     "empty string",
			path:     "",
			expected: "",
		},
		{
			name:     "only /host_mnt",
			path:     "/host_mnt",
			expected: "/host_mnt",
		},
		{
			name:     "only /host_mnt/",
			path:     "/host_mnt/",
			expected: "/host_mnt/",
		},
		{
			name:     "longer first element is kept",
			path:     "/host_mnts/data",
			expected: "/host_mnts/data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := stripHostMntPrefix(tt.path)
			if result != tt.expected {
				t.Errorf("stripHostMntPrefix(%q) = %q, want %q",
					tt.path, result, tt.expected)
			}
		})
	}
}

const threeStores = `[
  {
    "project_path": "/Users/dev/code/my-project",
    "devcontainer": {
      "mounts": [
        {
          "type": "bind",
          "source": "/host_mnt/Users/dev/code/my-project/.devcontainer/home/vscode/.claude",
          "destination": "/home/vscode/.claude",
          "read_only": false
        },
        {
          "type": "bind",
          "source": "/Users/dev/cfg/gemini",
          "destination": "/home/vscode/.gemini/",
          "read_only": true
        },
        {
          "type": "bind",
          "source": "/Users/dev/cfg/opencode",
          "destination": "/root/.local/share/opencode",
          "read_only": false
        },
        {
          "type": "volume",
          "source": "node_modules",
          "destination": "/workspace/node_modules",
          "read_only": false
        }
      ]
    },
    "proxy_sidecar": {
      "container_name": "devagent-abc123-proxy",
      "state": "running"
    }
  }
]`

func TestParseOutput(t *testing.T) {
	tests := []struct {
		name     string
		jsonData string
		wantLen  int
		wantErr  bool
		validate func(*testing.T, []Environment)
	}{
		{
			name:     "all three stores mounted",
			jsonData: threeStores,
			wantLen:  1,
			validate: func(t *testing.T, envs []Environment) {
				env := envs[0]
				if env.ContainerName != "devagent-abc123-proxy" {
					t.Errorf("ContainerName = %q", env.ContainerName)
				}
				if env.ProjectPath != "/Users/dev/code/my-project" {
					t.Errorf("ProjectPath = %q", env.ProjectPath)
				}
				if env.State != "running" {
					t.Errorf("State = %q", env.State)
				}
				want := pathcodec.Roots{
					ClaudeProjects:  "/Users/dev/code/my-project/.devcontainer/home/vscode/.claude/projects",
					GeminiTmp:       "/Users/dev/cfg/gemini/tmp",
					OpenCodeStorage: "/Users/dev/cfg/opencode/storage",
					Origin:          "devagent:devagent-abc123-proxy",
				}
				if env.Roots != want {
					t.Errorf("Roots = %+v, want %+v", env.Roots, want)
				}
			},
		},
		{
			name: "multiple environments with different states",
			jsonData: `[
  {"project_path": "/p1",
   "devcontainer": {"mounts": [{"source": "/s1/.claude", "destination": "/home/vscode/.claude"}]},
   "proxy_sidecar": {"container_name": "c1", "state": "running"}},
  {"project_path": "/p2",
   "devcontainer": {"mounts": [{"source": "/s2/.gemini", "destination": "/home/vscode/.gemini"}]},
   "proxy_sidecar": {"container_name": "c2", "state": "stopped"}}
]`,
			wantLen: 2,
			validate: func(t *testing.T, envs []Environment) {
				if envs[0].State != "running" || envs[1].State != "stopped" {
					t.Errorf("states = %q, %q", envs[0].State, envs[1].State)
				}
				if envs[0].Roots.ClaudeProjects != "/s1/.claude/projects" || envs[0].Roots.GeminiTmp != "" {
					t.Errorf("first roots = %+v", envs[0].Roots)
				}
				if envs[1].Roots.GeminiTmp != "/s2/.gemini/tmp" || envs[1].Roots.ClaudeProjects != "" {
					t.Errorf("second roots = %+v", envs[1].Roots)
				}
			},
		},
		{
			name:     "empty array",
			jsonData: "[]",
			wantLen:  0,
		},
		{
			name: "container with no store mount (should be skipped)",
			jsonData: `[
  {"project_path": "/p",
   "devcontainer": {"mounts": [{"source": "/host_mnt/some/other/mount", "destination": "/home/vscode/other"}]},
   "proxy_sidecar": {"container_name": "c", "state": "running"}}
]`,
			wantLen: 0,
		},
		{
			name:     "invalid JSON",
			jsonData: "not json",
			wantLen:  0,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := ParseOutput([]byte(tt.jsonData))
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseOutput() error = %v, wantErr %v", err, tt.wantErr)
			}
			if len(result) != tt.wantLen {
				t.Fatalf("ParseOutput() returned %d environments, want %d", len(result), tt.wantLen)
			}
			if tt.validate != nil && !tt.wantErr {
				tt.validate(t, result)
			}
		})
	}
}

func TestDiscover(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not supported on windows")
	}
	dir := t.TempDir()
	data := filepath.Join(dir, "list.json")
	if err := os.WriteFile(data, []byte(threeStores), 0o600); err != nil {
		t.Fatal(err)
	}
	bin := filepath.Join(dir, "devagent")
	script := "#!/bin/sh\n[ \"$1\" = list ] || exit 2\ncat " + data + "\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil { //nolint:gosec // test script must be executable
		t.Fatal(err)
	}

	envs, err := Discover(context.Background(), bin)
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if len(envs) != 1 || envs[0].Roots.Origin != "devagent:devagent-abc123-proxy" {
		t.Errorf("Discover() = %+v", envs)
	}
}

func TestDiscoverMissingBinary(t *testing.T) {
	if _, err := Discover(context.Background(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("Discover() should fail when the binary is missing")
	}
}
