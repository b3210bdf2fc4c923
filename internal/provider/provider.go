// Package provider runs the assistant CLIs headless and streams their
// stdout back line by line.
package provider

import (
	"fmt"
	"strings"
)

// Kind identifies an assistant CLI
type Kind string

const (
	KindClaude   Kind = "claude"
	KindOpenCode Kind = "opencode"
	KindGemini   Kind = "gemini"
)

// AllKinds lists every provider in detection preference order
var AllKinds = []Kind{KindClaude, KindOpenCode, KindGemini}

// ParseKind converts a provider name into a Kind, ignoring case
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "claude":
		return KindClaude, nil
	case "opencode":
		return KindOpenCode, nil
	case "gemini":
		return KindGemini, nil
	}
	return "", fmt.Errorf("unknown CLI provider: %s", s)
}

// DisplayName returns the human readable provider name
func (k Kind) DisplayName() string {
	switch k {
	case KindClaude:
		return "Claude"
	case KindOpenCode:
		return "OpenCode"
	case KindGemini:
		return "Gemini"
	}
	return string(k)
}

// Executable is the binary name looked up in PATH
func (k Kind) Executable() string {
	return string(k)
}

// PermissionMode controls how Claude asks before acting
type PermissionMode string

const (
	PermissionDefault     PermissionMode = "default"
	PermissionPlan        PermissionMode = "plan"
	PermissionAcceptEdits PermissionMode = "acceptEdits"
)

// ParsePermissionMode accepts "default", "plan" and "acceptEdits" in any
// case. Empty means default.
func ParsePermissionMode(s string) (PermissionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return PermissionDefault, nil
	case "plan":
		return PermissionPlan, nil
	case "acceptedits", "accept-edits", "accept_edits":
		return PermissionAcceptEdits, nil
	}
	return "", fmt.Errorf("unknown permission mode %q", s)
}

// ExecuteOptions describes one chat turn. Build it with NewExecuteOptions
// and the With methods; each returns a modified copy.
type ExecuteOptions struct {
	Message          string
	SessionID        string // resume this CLI session when set
	WorkingDirectory string
	AllowedTools     []string
	PermissionMode   PermissionMode
	ImagePaths       []string
}

// NewExecuteOptions starts a turn with the given prompt
func NewExecuteOptions(message string) ExecuteOptions {
	return ExecuteOptions{Message: message, PermissionMode: PermissionDefault}
}

// WithSessionID resumes an existing CLI session
func (o ExecuteOptions) WithSessionID(id string) ExecuteOptions {
	o.SessionID = id
	return o
}

// WithWorkingDirectory sets where the CLI runs
func (o ExecuteOptions) WithWorkingDirectory(dir string) ExecuteOptions {
	o.WorkingDirectory = dir
	return o
}

// WithAllowedTools replaces the pre-approved tool patterns
func (o ExecuteOptions) WithAllowedTools(tools []string) ExecuteOptions {
	o.AllowedTools = append([]string(nil), tools...)
	return o
}

// WithPermissionMode sets how the CLI asks for tool approval
func (o ExecuteOptions) WithPermissionMode(mode PermissionMode) ExecuteOptions {
	o.PermissionMode = mode
	return o
}

// WithImages replaces the attached image paths
func (o ExecuteOptions) WithImages(paths []string) ExecuteOptions {
	o.ImagePaths = append([]string(nil), paths...)
	return o
}

// WithImage attaches one more image
func (o ExecuteOptions) WithImage(path string) ExecuteOptions {
	o.ImagePaths = append(append([]string(nil), o.ImagePaths...), path)
	return o
}

// Provider builds the command line for one CLI. Implementations embed Base
// and override BuildArgs, plus ValidateOptions when they restrict input.
type Provider interface {
	Kind() Kind
	CLIPath() string
	SupportsImages() bool
	BuildArgs(opts ExecuteOptions) []string
	ValidateOptions(opts ExecuteOptions) error
}

// Base supplies the parts of Provider most CLIs share
type Base struct {
	kind Kind
	path string
}

// Kind returns the provider kind
func (b Base) Kind() Kind { return b.kind }

// CLIPath returns the binary the provider runs
func (b Base) CLIPath() string { return b.path }

// SupportsImages defaults to true; images are referenced in the prompt text
func (b Base) SupportsImages() bool { return true }

// ValidateOptions accepts anything by default
func (b Base) ValidateOptions(ExecuteOptions) error { return nil }

// New returns the provider of the given kind using the binary at path
func New(kind Kind, path string) (Provider, error) {
	switch kind {
	case KindClaude:
		return NewClaude(path), nil
	case KindOpenCode:
		return NewOpenCode(path), nil
	case KindGemini:
		return NewGemini(path), nil
	}
	return nil, fmt.Errorf("unknown provider %q", kind)
}

const (
	defaultImagePrompt = "Describe this image"
	imagePromptJoin    = "\n\nPlease analyze the image(s) above and respond to: "
)

// promptWithImages references image files in the prompt so the CLI reads
// them with its own file tools
func promptWithImages(opts ExecuteOptions) string {
	if len(opts.ImagePaths) == 0 {
		return opts.Message
	}
	refs := make([]string, 0, len(opts.ImagePaths))
	for _, p := range opts.ImagePaths {
		refs = append(refs, "[Image: "+p+"]")
	}
	msg := opts.Message
	if strings.TrimSpace(msg) == "" {
		msg = defaultImagePrompt
	}
	return strings.Join(refs, "\n") + imagePromptJoin + msg
}
