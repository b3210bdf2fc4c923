package provider

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// Detection is a located and validated CLI binary
type Detection struct {
	Kind    Kind
	Path    string
	Version string
}

// FindInPath looks the CLI up with `which` (`where` on Windows)
func FindInPath(ctx context.Context, kind Kind) (string, error) {
	finder := "which"
	if runtime.GOOS == "windows" {
		finder = "where"
	}

	out, err := exec.CommandContext(ctx, finder, kind.Executable()).Output()
	if err != nil {
		return "", &DetectionError{Kind: NotFound, Detail: kind.Executable()}
	}
	first, _, _ := strings.Cut(string(out), "\n")
	first = strings.TrimSpace(first)
	if first == "" {
		return "", &DetectionError{Kind: NotFound, Detail: kind.Executable()}
	}
	return first, nil
}

// ValidateCLI runs `<path> --version` and returns the reported version.
// Some CLIs print it on stderr, which is accepted when it mentions "version".
func ValidateCLI(ctx context.Context, path string) (string, error) {
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, path, "--version")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return "", &DetectionError{Kind: ExecutionFailed, Detail: path, Err: err}
	}

	if err == nil {
		if v := strings.TrimSpace(stdout.String()); v != "" {
			return v, nil
		}
	}
	if e := strings.TrimSpace(stderr.String()); e != "" && strings.Contains(e, "version") {
		return e, nil
	}
	return "", &DetectionError{Kind: InvalidVersion, Detail: "Could not determine CLI version"}
}

// commonPaths lists where package managers usually install each CLI
func commonPaths(home string, kind Kind) []string {
	exe := kind.Executable()
	var paths []string
	switch kind {
	case KindClaude, KindGemini:
		paths = []string{
			filepath.Join(home, ".npm-global", "bin", exe),
			filepath.Join(home, ".local", "share", "pnpm", exe),
			filepath.Join(home, ".yarn", "bin", exe),
			filepath.Join(home, ".asdf", "shims", exe),
			filepath.Join("/opt/homebrew/bin", exe),
			filepath.Join("/usr/local/bin", exe),
			filepath.Join(home, ".local", "bin", exe),
		}
		if runtime.GOOS == "windows" {
			paths = append(paths, filepath.Join(home, "AppData", "Roaming", "npm", exe+".cmd"))
		}
	case KindOpenCode:
		paths = []string{
			filepath.Join(home, "go", "bin", exe),
			filepath.Join("/usr/local/bin", exe),
			filepath.Join("/opt/homebrew/bin", exe),
			filepath.Join(home, ".local", "bin", exe),
		}
	}
	return paths
}

// FindInCommonPaths returns the first existing install location, or ""
func FindInCommonPaths(home string, kind Kind) string {
	for _, p := range commonPaths(home, kind) {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// Detect locates and validates one CLI. A custom path skips the lookup;
// otherwise PATH is searched, then the common install locations.
func Detect(ctx context.Context, kind Kind, custom string) (Detection, error) {
	path := custom
	if path == "" {
		found, err := FindInPath(ctx, kind)
		if err != nil {
			home, _ := os.UserHomeDir()
			found = FindInCommonPaths(home, kind)
			if found == "" {
				return Detection{}, err
			}
		}
		path = found
	}

	version, err := ValidateCLI(ctx, path)
	if err != nil {
		return Detection{}, err
	}
	return Detection{Kind: kind, Path: path, Version: version}, nil
}

// DetectAny returns the first available CLI, preferring Claude, then
// OpenCode, then Gemini
func DetectAny(ctx context.Context) (Detection, error) {
	for _, kind := range AllKinds {
		if d, err := Detect(ctx, kind, ""); err == nil {
			return d, nil
		}
	}
	return Detection{}, &DetectionError{Kind: NotFound}
}
