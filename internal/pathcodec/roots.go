package pathcodec

import (
	"os"
	"path/filepath"
)

// Roots holds the on-disk store locations of each assistant CLI.
type Roots struct {
	Home string

	// ClaudeProjects holds one directory per encoded project path,
	// each containing <session>.jsonl files.
	ClaudeProjects string

	// OpenCodeStorage is the storage/ directory with session/, message/
	// and part/ children.
	OpenCodeStorage string

	// GeminiTmp holds one directory per SHA-256 project hash.
	GeminiTmp string

	// Origin labels where these roots came from ("local" or
	// "devagent:<container>").
	Origin string
}

// DefaultRoots returns the standard store locations below home.
func DefaultRoots(home string) Roots {
	return Roots{
		Home:            home,
		ClaudeProjects:  filepath.Join(home, ".claude", "projects"),
		OpenCodeStorage: filepath.Join(home, ".local", "share", "opencode", "storage"),
		GeminiTmp:       filepath.Join(home, ".gemini", "tmp"),
		Origin:          "local",
	}
}

// HomeRoots returns DefaultRoots for the current user's home directory.
func HomeRoots() Roots {
	home, err := os.UserHomeDir()
	if err != nil {
		home = os.Getenv("HOME")
	}
	return DefaultRoots(home)
}

// below joins elem onto base, keeping an unset base unset.
func below(base string, elem ...string) string {
	if base == "" {
		return ""
	}
	return filepath.Join(append([]string{base}, elem...)...)
}

// OpenCodeSessions is the directory holding ses_*.json files.
func (r Roots) OpenCodeSessions() string {
	return below(r.OpenCodeStorage, "session", "global")
}

// OpenCodeMessages is the directory holding one ses_<id>/ dir per session.
func (r Roots) OpenCodeMessages() string {
	return below(r.OpenCodeStorage, "message")
}

// OpenCodeParts is the directory holding one msg_<id>/ dir per message.
func (r Roots) OpenCodeParts() string {
	return below(r.OpenCodeStorage, "part")
}

// ClaudeConfigFile is the user-level Claude Code config that declares projects.
func (r Roots) ClaudeConfigFile() string {
	return below(r.Home, ".claude.json")
}

// OpenCodeConfigFile is the user-level OpenCode config.
func (r Roots) OpenCodeConfigFile() string {
	return below(r.Home, ".opencode.json")
}

// GeminiConfigFile is the user-level Gemini CLI config.
func (r Roots) GeminiConfigFile() string {
	return below(r.Home, ".gemini.json")
}

// SameStores reports whether both sets point at the same store directories
func (r Roots) SameStores(o Roots) bool {
	return r.ClaudeProjects == o.ClaudeProjects &&
		r.OpenCodeStorage == o.OpenCodeStorage &&
		r.GeminiTmp == o.GeminiTmp
}
