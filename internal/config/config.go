package config

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"cc_session_hub/internal/history"
	"cc_session_hub/internal/pathcodec"
	"cc_session_hub/internal/provider"
)

const appName = "cc_session_hub"

// ToolGroup defines a group of permission patterns with styling
type ToolGroup struct {
	// Name is the display name of this group
	Name string `yaml:"name"`

	// Color is the catppuccin color name (e.g., "red", "yellow", "green", "mauve")
	Color string `yaml:"color"`

	// Bold makes the text bold
	Bold bool `yaml:"bold"`

	// Patterns is a list of permission patterns that belong to this group (supports wildcards)
	Patterns []string `yaml:"patterns"`

	// Exclude hides matching tool calls from the message detail view
	Exclude bool `yaml:"exclude"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DirsConfig overrides the store locations. Empty fields fall back to the
// standard layout below Home.
type DirsConfig struct {
	Home            string `yaml:"home"`
	ClaudeProjects  string `yaml:"claude_projects"`
	OpenCodeStorage string `yaml:"opencode_storage"`
	GeminiTmp       string `yaml:"gemini_tmp"`
}

type SessionsConfig struct {
	MaxAge          time.Duration `yaml:"max_age"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

type ProvidersConfig struct {
	// Default is used when a chat request names no provider
	Default string `yaml:"default"`

	// Paths maps a provider name to a custom binary, skipping PATH lookup
	Paths map[string]string `yaml:"paths"`
}

type DiscoveryConfig struct {
	// Ignore lists doublestar globs matched against project paths
	Ignore []string `yaml:"ignore"`

	// IncludeThinking keeps reasoning blocks when loading conversations
	IncludeThinking bool `yaml:"include_thinking"`
}

type DevagentConfig struct {
	Enabled bool   `yaml:"enabled"`
	Binary  string `yaml:"binary"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Config holds the application configuration
type Config struct {
	// Theme is the color theme to use (mocha, macchiato, frappe, latte)
	Theme string `yaml:"theme"`

	// ToolGroups defines styling groups for tool calls (checked in order, first match wins)
	ToolGroups []ToolGroup `yaml:"tool_groups"`

	Server    ServerConfig         `yaml:"server"`
	Dirs      DirsConfig           `yaml:"dirs"`
	Watch     history.WatchOptions `yaml:"watch"`
	Sessions  SessionsConfig       `yaml:"sessions"`
	Providers ProvidersConfig      `yaml:"providers"`
	Discovery DiscoveryConfig      `yaml:"discovery"`
	Devagent  DevagentConfig       `yaml:"devagent"`
	Log       LogConfig            `yaml:"log"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Theme: "mocha",
		ToolGroups: []ToolGroup{
			{
				Name:  "dangerous",
				Color: "red",
				Bold:  true,
				Patterns: []string{
					"Bash(rm:*)",
					"Bash(sudo:*)",
					"Bash(chmod:*)",
					"Bash(chown:*)",
					"Bash(dd:*)",
					"Bash(mkfs:*)",
					"Bash(kill:*)",
					"Bash(pkill:*)",
					"Bash(killall:*)",
					"Bash(git:push:*)",
				},
			},
			{
				Name:     "write",
				Color:    "peach",
				Patterns: []string{"Write", "NotebookEdit", "write", "write_file"},
			},
			{
				Name:     "edit",
				Color:    "yellow",
				Patterns: []string{"Edit", "MultiEdit", "edit", "replace"},
			},
			{
				Name:     "bash",
				Color:    "mauve",
				Patterns: []string{"Bash(*)", "Bash", "bash", "run_shell_command"},
			},
			{
				Name:     "task",
				Color:    "lavender",
				Patterns: []string{"Task", "TaskOutput", "Skill"},
			},
			{
				Name:  "read-only",
				Color: "green",
				Patterns: []string{
					"Read",
					"Glob",
					"Grep",
					"WebFetch",
					"WebSearch",
					"TodoRead",
					"TodoWrite",
					"AskUserQuestion",
					"read",
					"read_file",
					"glob",
					"grep",
					"list",
					"mcp__*",
				},
			},
			{
				Name:     "unmatched",
				Color:    "overlay1",
				Patterns: []string{"*"},
			},
		},
		Server: ServerConfig{Addr: "127.0.0.1:3001"},
		Watch:  history.DefaultWatchOptions(),
		Sessions: SessionsConfig{
			MaxAge:          24 * time.Hour,
			CleanupInterval: 10 * time.Minute,
		},
		Providers: ProvidersConfig{
			Default: string(provider.KindClaude),
			Paths:   map[string]string{},
		},
		Devagent: DevagentConfig{Binary: "devagent"},
		Log:      LogConfig{Level: "info"},
	}
}

// Load reads the config from a YAML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	cleanPath := filepath.Clean(path)
	data, err := os.ReadFile(cleanPath) //nolint:gosec // config path from flag or known locations
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Use defaults if no config file
		}
		return nil, fmt.Errorf("reading config %s: %w", cleanPath, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", cleanPath, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cleanPath, err)
	}

	return cfg, nil
}

// DefaultPaths lists the locations LoadFromDefaultPath checks, in order
func DefaultPaths() []string {
	// current dir, ~/.config/cc_session_hub/, XDG_CONFIG_HOME
	paths := []string{
		"config.yaml",
		filepath.Join(os.Getenv("HOME"), ".config", appName, "config.yaml"),
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, appName, "config.yaml"))
	}
	return paths
}

// LoadFromDefaultPath attempts to load config from standard locations
func LoadFromDefaultPath() (*Config, error) {
	for _, path := range DefaultPaths() {
		cleanPath := filepath.Clean(path)
		if _, err := os.Stat(cleanPath); err == nil {
			return Load(cleanPath)
		}
	}

	return DefaultConfig(), nil
}

var themes = map[string]bool{"mocha": true, "macchiato": true, "frappe": true, "latte": true}

// Validate checks values that would otherwise fail later at runtime
func (c *Config) Validate() error {
	if !themes[strings.ToLower(c.Theme)] {
		return fmt.Errorf("unknown theme %q", c.Theme)
	}
	if _, err := provider.ParseKind(c.Providers.Default); err != nil {
		return fmt.Errorf("providers.default: %w", err)
	}
	for name := range c.Providers.Paths {
		if _, err := provider.ParseKind(name); err != nil {
			return fmt.Errorf("providers.paths: %w", err)
		}
	}
	if c.Sessions.MaxAge < 0 || c.Sessions.CleanupInterval < 0 {
		return fmt.Errorf("sessions durations must not be negative")
	}
	if _, _, err := net.SplitHostPort(c.Server.Addr); err != nil {
		return fmt.Errorf("server.addr: %w", err)
	}
	return nil
}

// ServerAddr returns the listen address. A PORT environment variable
// replaces the configured port.
func (c *Config) ServerAddr() string {
	port := os.Getenv("PORT")
	if port == "" {
		return c.Server.Addr
	}
	host, _, err := net.SplitHostPort(c.Server.Addr)
	if err != nil {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

// Roots returns the local store locations after applying dirs overrides
func (c *Config) Roots() pathcodec.Roots {
	var r pathcodec.Roots
	if c.Dirs.Home != "" {
		r = pathcodec.DefaultRoots(c.Dirs.Home)
	} else {
		r = pathcodec.HomeRoots()
	}
	if c.Dirs.ClaudeProjects != "" {
		r.ClaudeProjects = c.Dirs.ClaudeProjects
	}
	if c.Dirs.OpenCodeStorage != "" {
		r.OpenCodeStorage = c.Dirs.OpenCodeStorage
	}
	if c.Dirs.GeminiTmp != "" {
		r.GeminiTmp = c.Dirs.GeminiTmp
	}
	return r
}

// ProviderPaths returns the custom binary paths keyed by provider kind
func (c *Config) ProviderPaths() map[provider.Kind]string {
	out := make(map[provider.Kind]string, len(c.Providers.Paths))
	for name, path := range c.Providers.Paths {
		kind, err := provider.ParseKind(name)
		if err != nil || path == "" {
			continue
		}
		out[kind] = path
	}
	return out
}

// DefaultProvider returns the provider used when a request names none
func (c *Config) DefaultProvider() provider.Kind {
	kind, err := provider.ParseKind(c.Providers.Default)
	if err != nil {
		return provider.KindClaude
	}
	return kind
}

// LoadOptions returns how conversations should be loaded
func (c *Config) LoadOptions() history.LoadOptions {
	return history.LoadOptions{IncludeThinking: c.Discovery.IncludeThinking}
}

// GetToolGroup returns the first matching tool group for a pattern, or nil
func (c *Config) GetToolGroup(pattern string) *ToolGroup {
	for i := range c.ToolGroups {
		group := &c.ToolGroups[i]
		if group.Matches(pattern) {
			return group
		}
	}
	return nil
}

// Matches returns true if the pattern matches this group
func (g *ToolGroup) Matches(pattern string) bool {
	for _, p := range g.Patterns {
		if matchPattern(p, pattern) {
			return true
		}
	}
	return false
}

// ShouldExclude returns true if the pattern should be excluded from display
func (c *Config) ShouldExclude(pattern string) bool {
	group := c.GetToolGroup(pattern)
	return group != nil && group.Exclude
}

// matchPattern checks if a pattern matches, where each * matches any run
// of characters. "Bash(git:*)" matches "Bash(git:push:*)".
func matchPattern(pattern, value string) bool {
	if pattern == value {
		return true
	}
	if !strings.Contains(pattern, "*") {
		return false
	}

	parts := strings.Split(pattern, "*")
	if !strings.HasPrefix(value, parts[0]) {
		return false
	}
	value = value[len(parts[0]):]

	last := parts[len(parts)-1]
	for _, mid := range parts[1 : len(parts)-1] {
		i := strings.Index(value, mid)
		if i < 0 {
			return false
		}
		value = value[i+len(mid):]
	}
	return strings.HasSuffix(value, last)
}
