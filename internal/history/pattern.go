package history

import (
	"encoding/json"
	"strings"
)

// subcommandDepth says how many subcommand words are part of a command's
// permission pattern. Commands not listed keep only the command name.
var subcommandDepth = map[string]int{
	"git": 1, "gh": 1,
	"docker": 1, "podman": 1, "kubectl": 1, "helm": 1, "incus": 1, "lxc": 1,
	"systemctl": 1, "launchctl": 1,
	"nix": 1, "nixos-rebuild": 1, "home-manager": 1,
	"go": 1, "cargo": 1, "npm": 1, "yarn": 1, "pnpm": 1, "pip": 1, "uv": 1, "make": 1,
	"tmux": 1, "zfs": 1, "zpool": 1, "defaults": 1, "alembic": 1,
}

// sudoArgFlags are sudo flags that consume the following word
var sudoArgFlags = map[string]bool{"-u": true, "-g": true, "-C": true, "-D": true, "-h": true, "-p": true}

// PermissionPattern converts a tool call into Claude's allowed-tools
// pattern syntax, e.g. Bash(git:status:*) or Edit
func PermissionPattern(toolName string, input json.RawMessage) string {
	if toolName != "Bash" {
		return toolName
	}
	var in struct {
		Command string `json:"command"`
	}
	_ = json.Unmarshal(input, &in)
	return BashPattern(in.Command)
}

// BashPattern extracts the pattern of a shell command:
// Bash([sudo:]<command>[:<subcommand>]:*)
func BashPattern(command string) string {
	words := strings.Fields(strings.TrimSpace(command))
	words = dropAssignments(words)
	if len(words) == 0 {
		return "Bash"
	}

	sudo := words[0] == "sudo"
	if sudo {
		words = dropSudoFlags(words[1:])
	}
	words = unwrap(words)
	if len(words) > 0 && isShell(words[0]) {
		words = shellCommand(words)
	}

	var parts []string
	if sudo {
		parts = append(parts, "sudo")
	}
	if len(words) > 0 {
		parts = append(parts, words[0])
		parts = append(parts, subcommands(words[0], words[1:])...)
	}
	if len(parts) == 0 {
		return "Bash"
	}
	return "Bash(" + strings.Join(parts, ":") + ":*)"
}

func subcommands(cmd string, args []string) []string {
	var out []string
	for i := 0; i < subcommandDepth[cmd]; i++ {
		args = dropFlags(args)
		if len(args) == 0 {
			break
		}
		out = append(out, args[0])
		args = args[1:]
	}
	return out
}

func dropFlags(args []string) []string {
	for len(args) > 0 && strings.HasPrefix(args[0], "-") {
		args = args[1:]
	}
	return args
}

// dropAssignments skips leading FOO=bar environment assignments
func dropAssignments(words []string) []string {
	for len(words) > 0 && strings.Contains(words[0], "=") && !strings.HasPrefix(words[0], "-") {
		words = words[1:]
	}
	return words
}

func dropSudoFlags(words []string) []string {
	for len(words) > 0 && strings.HasPrefix(words[0], "-") {
		if sudoArgFlags[words[0]] && len(words) > 1 {
			words = words[2:]
			continue
		}
		words = words[1:]
	}
	return words
}

// unwrap strips command wrappers such as env, time, nice and xargs
func unwrap(words []string) []string {
	if len(words) == 0 {
		return words
	}
	rest := words[1:]
	switch words[0] {
	case "env":
		for i, w := range rest {
			if !strings.Contains(w, "=") && !strings.HasPrefix(w, "-") {
				return rest[i:]
			}
		}
		return nil
	case "time", "nohup", "strace", "ltrace":
		return rest
	case "nice":
		for i := 0; i < len(rest); i++ {
			if rest[i] == "-n" {
				i++
				continue
			}
			if !strings.HasPrefix(rest[i], "-") {
				return rest[i:]
			}
		}
		return nil
	case "xargs":
		return dropFlags(rest)
	}
	return words
}

func isShell(cmd string) bool {
	return cmd == "bash" || cmd == "sh" || cmd == "zsh"
}

// shellCommand returns the words of the script passed to sh -c
func shellCommand(words []string) []string {
	for i := 1; i+1 < len(words); i++ {
		if words[i] == "-c" {
			script := strings.Trim(strings.Join(words[i+1:], " "), `'"`)
			return strings.Fields(script)
		}
	}
	return words
}

// toolInput collects the fields most tools use to say what they act on
type toolInput struct {
	FilePath    string `json:"file_path"`
	Path        string `json:"path"`
	URL         string `json:"url"`
	Command     string `json:"command"`
	Pattern     string `json:"pattern"`
	Query       string `json:"query"`
	Prompt      string `json:"prompt"`
	Description string `json:"description"`
	Skill       string `json:"skill"`
}

// ToolSummary returns a one-line description of what a tool call targets
func ToolSummary(toolName string, input json.RawMessage) string {
	var in toolInput
	if err := json.Unmarshal(input, &in); err != nil {
		return toolName
	}

	var s string
	switch toolName {
	case "Bash":
		s = in.Command
	case "Edit", "Write", "NotebookEdit", "Read":
		s = in.FilePath
	case "Glob":
		s = joinNonEmpty("/", in.Path, in.Pattern)
	case "Grep":
		s = joinNonEmpty(" in ", in.Pattern, in.Path)
	case "WebFetch", "WebSearch":
		s = firstNonEmpty(in.URL, in.Query)
	case "Task":
		s = in.Description
	case "Skill":
		s = in.Skill
	default:
		s = firstNonEmpty(in.FilePath, in.Path, in.Command, in.Pattern, in.Query, in.URL, in.Description)
		if s == "" && in.Prompt != "" {
			s = truncateRunes(in.Prompt, previewLen) + "..."
		}
	}
	if s == "" {
		return toolName
	}
	return s
}

func joinNonEmpty(sep string, a, b string) string {
	if a != "" && b != "" {
		return a + sep + b
	}
	return firstNonEmpty(a, b)
}
