// Package devagent finds the assistant CLI stores of devcontainers managed
// by devagent, so their conversations can be browsed from the host.
package devagent

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"path"
	"strings"
	"time"

	"cc_session_hub/internal/pathcodec"
)

// listTimeout bounds a single devagent list call
const listTimeout = 10 * time.Second

// Container represents a devcontainer from devagent list output
type Container struct {
	ProjectPath  string       `json:"project_path"`
	DevContainer DevContainer `json:"devcontainer"`
	ProxySidecar ProxySidecar `json:"proxy_sidecar"`
}

// DevContainer contains mount information
type DevContainer struct {
	Mounts []Mount `json:"mounts"`
}

// Mount represents a devcontainer mount
type Mount struct {
	Type        string `json:"type"`
	Source      string `json:"source"`
	Destination string `json:"destination"`
	ReadOnly    bool   `json:"read_only"`
}

// ProxySidecar contains proxy sidecar information
type ProxySidecar struct {
	ContainerName string `json:"container_name"`
	State         string `json:"state"`
}

// Environment is one devcontainer with the host-side locations of its
// assistant CLI stores
type Environment struct {
	ContainerName string
	ProjectPath   string
	State         string
	Roots         pathcodec.Roots
}

// Discover runs devagent list and returns the environments that mount at
// least one assistant CLI store. An empty binary means "devagent".
func Discover(ctx context.Context, binary string) ([]Environment, error) {
	if binary == "" {
		binary = "devagent"
	}
	ctx, cancel := context.WithTimeout(ctx, listTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, binary, "list")
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("failed to run devagent list: %w", err)
	}
	return ParseOutput(output)
}

// Origin is the label given to projects found in a container
func Origin(containerName string) string {
	return "devagent:" + containerName
}

// ParseOutput parses JSON output from devagent list.
// Returns all environments regardless of container state. Mounts whose
// destination is a home-relative ~/.claude, ~/.gemini or
// ~/.local/share/opencode become that tool's roots, with the /host_mnt
// prefix stripped from the source.
func ParseOutput(data []byte) ([]Environment, error) {
	var containers []Container
	if err := json.Unmarshal(data, &containers); err != nil {
		return nil, fmt.Errorf("failed to parse devagent output: %w", err)
	}

	var envs []Environment

	for _, container := range containers {
		roots, ok := storeRoots(container.DevContainer.Mounts)
		// Skip containers without any store mount
		if !ok {
			continue
		}
		roots.Origin = Origin(container.ProxySidecar.ContainerName)

		envs = append(envs, Environment{
			ContainerName: container.ProxySidecar.ContainerName,
			ProjectPath:   container.ProjectPath,
			State:         container.ProxySidecar.State,
			Roots:         roots,
		})
	}

	return envs, nil
}

// storeRoots maps the mounts of one container onto per-tool roots
func storeRoots(mounts []Mount) (pathcodec.Roots, bool) {
	var roots pathcodec.Roots
	found := false
	for _, m := range mounts {
		dest := path.Clean(m.Destination)
		source := stripHostMntPrefix(m.Source)
		switch {
		case strings.HasSuffix(dest, "/.claude"):
			roots.ClaudeProjects = path.Join(source, "projects")
		case strings.HasSuffix(dest, "/.gemini"):
			roots.GeminiTmp = path.Join(source, "tmp")
		case strings.HasSuffix(dest, "/.local/share/opencode"):
			roots.OpenCodeStorage = path.Join(source, "storage")
		default:
			continue
		}
		found = true
	}
	return roots, found
}

// stripHostMntPrefix removes the /host_mnt prefix if present.
// This is Docker's macOS mount prefix. On Linux paths without the prefix
// pass through unchanged.
func stripHostMntPrefix(p string) string {
	if remainder, ok := strings.CutPrefix(p, "/host_mnt"); ok {
		// Only strip a whole path element with something after it
		if strings.HasPrefix(remainder, "/") && remainder != "/" {
			return remainder
		}
	}
	return p
}
