package tui

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cc_session_hub/internal/history"
)

// toolCall is a tool_use block with its input decoded
type toolCall struct {
	Name    string
	Pattern string
	Params  map[string]any
}

func newToolCall(b history.ContentBlock) toolCall {
	call := toolCall{Name: b.Name, Pattern: history.PermissionPattern(b.Name, b.Input)}
	if len(b.Input) > 0 {
		_ = json.Unmarshal(b.Input, &call.Params)
	}
	return call
}

// renderDetailPanel renders the selected message side panel
func (m Model) renderDetailPanel(width, height int) string {
	var b strings.Builder

	b.WriteString(m.styles.DetailHeader(width).Render("Message Details"))
	b.WriteString("\n")

	msg, ok := m.selectedMessage()
	if !ok {
		b.WriteString(m.styles.Muted.Render("Select a message and press Enter"))
		return lipgloss.NewStyle().Width(width).Height(height).Render(b.String())
	}

	b.WriteString(m.styles.RoleStyle(msg.Role).Render(msg.Role))
	if clock := formatClock(msg.Timestamp); clock != "" {
		b.WriteString(m.styles.Muted.Render("  " + clock))
	}
	b.WriteString("\n\n")
	b.WriteString(m.formatMessage(msg, width-2))

	return lipgloss.NewStyle().Width(width).Height(height).MaxHeight(height).Render(b.String())
}

// formatMessage renders every block of a message in order
func (m Model) formatMessage(msg history.Message, width int) string {
	var b strings.Builder
	hidden := 0
	for _, block := range msg.Content {
		switch block.Type {
		case history.BlockText:
			b.WriteString(m.renderMarkdown(block.Text, width))
		case history.BlockThinking:
			b.WriteString(m.styles.Thinking.Render(wrapText(block.Thinking, width)))
			b.WriteString("\n\n")
		case history.BlockToolUse:
			call := newToolCall(block)
			if m.styles.Excluded(call.Pattern) {
				hidden++
				continue
			}
			b.WriteString(m.formatToolUse(call, width))
			b.WriteString("\n")
		case history.BlockToolResult:
			b.WriteString(m.formatResultSection(block.Result, width))
		}
	}
	if hidden > 0 {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("(%d hidden tool calls)", hidden)))
		b.WriteString("\n")
	}
	return b.String()
}

// renderMarkdown renders text through glamour, falling back to plain wrapping
func (m Model) renderMarkdown(text string, width int) string {
	if m.renderer != nil {
		out, err := m.renderer.Render(text)
		if err == nil {
			return out
		}
		m.log.Debug("markdown render failed")
	}
	return wrapText(text, width) + "\n\n"
}

// formatToolUse renders the tool header and dispatches to tool-specific formatters
func (m Model) formatToolUse(call toolCall, width int) string {
	var b strings.Builder

	b.WriteString(m.styles.Label.Render("Tool: "))
	b.WriteString(m.styles.ForPattern(call.Pattern).Render(call.Pattern))
	if group := m.styles.GroupName(call.Pattern); group != "" {
		b.WriteString(m.styles.Muted.Render("  (" + group + ")"))
	}
	b.WriteString("\n\n")

	switch call.Name {
	case "Bash", "bash", "run_shell_command":
		b.WriteString(m.formatBashDetail(call, width))
	case "Edit", "edit", "replace":
		b.WriteString(m.formatEditDetail(call, width))
	case "Write", "write", "write_file":
		b.WriteString(m.formatWriteDetail(call, width))
	case "Read", "read", "read_file":
		b.WriteString(m.formatReadDetail(call))
	case "Glob", "Grep", "glob", "grep":
		b.WriteString(m.formatSearchDetail(call, width))
	case "Task":
		b.WriteString(m.formatTaskDetail(call, width))
	case "WebFetch", "WebSearch":
		b.WriteString(m.formatWebDetail(call, width))
	default:
		b.WriteString(m.formatGenericDetail(call, width))
	}
	return b.String()
}

// formatBashDetail renders a shell command with security warnings
func (m Model) formatBashDetail(call toolCall, width int) string {
	var b strings.Builder

	command := getString(call.Params, "command")
	description := getString(call.Params, "description")
	timeout := getFloat(call.Params, "timeout")
	runInBg := getBool(call.Params, "run_in_background")

	warnings := analyzeBashSecurity(command)
	if len(warnings) > 0 || m.styles.IsDangerous(call.Pattern) {
		b.WriteString(m.styles.DangerHeader.Render("! Security Warnings"))
		b.WriteString("\n")
		if len(warnings) == 0 {
			warnings = []string{"Matches a dangerous pattern"}
		}
		for _, w := range warnings {
			b.WriteString(m.styles.Danger.Render("  - " + w))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Label.Render("Command:"))
	b.WriteString("\n")
	b.WriteString(m.styles.CodeBlock(width).Render(wrapText(command, width-4)))
	b.WriteString("\n\n")

	if description != "" {
		b.WriteString(m.styles.Label.Render("Description:"))
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render(wrapText(description, width-2)))
		b.WriteString("\n\n")
	}

	if timeout > 0 {
		b.WriteString(m.styles.Label.Render("Timeout: "))
		fmt.Fprintf(&b, "%.0fms", timeout)
		b.WriteString("\n")
	}
	if runInBg {
		b.WriteString(m.styles.Warning.Render("* Runs in background"))
		b.WriteString("\n")
	}
	return b.String()
}

// securityCheck defines a check function and its warning message
type securityCheck struct {
	check   func(cmd string) bool
	warning string
}

var securityChecks = []securityCheck{
	{checkRecursiveRm, "Recursive file deletion"},
	{checkSimpleRm, "File deletion"},
	{checkSudo, "Runs with elevated privileges"},
	{checkChmod, "Changes file permissions"},
	{checkChown, "Changes file ownership"},
	{checkCurlPipeShell, "Downloads and pipes to shell"},
	{checkDd, "Direct disk/device operation"},
	{checkMkfs, "Filesystem creation"},
	{checkKill, "Process termination"},
	{checkGitForcePush, "Force push to remote"},
	{checkGitHardReset, "Hard reset (discards changes)"},
}

// analyzeBashSecurity returns security warnings for a shell command
func analyzeBashSecurity(command string) []string {
	var warnings []string
	cmd := strings.ToLower(command)
	for _, sc := range securityChecks {
		if sc.check(cmd) {
			warnings = append(warnings, sc.warning)
		}
	}
	return warnings
}

// hasCommand reports whether name appears as a whole word at a command position
func hasCommand(cmd, name string) bool {
	for _, word := range commandWords(cmd) {
		if word == name {
			return true
		}
	}
	return false
}

// commandWords returns the first word of every command in a pipeline or list
func commandWords(cmd string) []string {
	split := func(r rune) bool {
		return r == '|' || r == ';' || r == '&' || r == '\n' || r == '(' || r == ')'
	}
	var words []string
	for _, part := range strings.FieldsFunc(cmd, split) {
		fields := strings.Fields(part)
		for len(fields) > 0 && (fields[0] == "sudo" || fields[0] == "env" || strings.Contains(fields[0], "=")) {
			if fields[0] == "sudo" {
				words = append(words, "sudo")
			}
			fields = fields[1:]
		}
		if len(fields) > 0 {
			words = append(words, fields[0])
		}
	}
	return words
}

func checkRecursiveRm(cmd string) bool {
	if !hasCommand(cmd, "rm") {
		return false
	}
	return strings.Contains(cmd, "-rf") || strings.Contains(cmd, "-r ") || strings.Contains(cmd, " -fr") ||
		strings.Contains(cmd, "--recursive")
}

func checkSimpleRm(cmd string) bool {
	return hasCommand(cmd, "rm") && !checkRecursiveRm(cmd)
}

func checkSudo(cmd string) bool {
	return hasCommand(cmd, "sudo")
}

func checkChmod(cmd string) bool {
	return hasCommand(cmd, "chmod")
}

func checkChown(cmd string) bool {
	return hasCommand(cmd, "chown")
}

func checkCurlPipeShell(cmd string) bool {
	if !strings.Contains(cmd, "|") {
		return false
	}
	hasFetch := hasCommand(cmd, "curl") || hasCommand(cmd, "wget")
	hasShell := hasCommand(cmd, "sh") || hasCommand(cmd, "bash") || hasCommand(cmd, "zsh")
	return hasFetch && hasShell
}

func checkDd(cmd string) bool {
	return hasCommand(cmd, "dd")
}

func checkMkfs(cmd string) bool {
	for _, w := range commandWords(cmd) {
		if strings.HasPrefix(w, "mkfs") {
			return true
		}
	}
	return false
}

func checkKill(cmd string) bool {
	return hasCommand(cmd, "kill") || hasCommand(cmd, "pkill") || hasCommand(cmd, "killall")
}

func checkGitForcePush(cmd string) bool {
	return strings.Contains(cmd, "git push") &&
		(strings.Contains(cmd, "--force") || strings.Contains(cmd, " -f"))
}

func checkGitHardReset(cmd string) bool {
	return strings.Contains(cmd, "git reset --hard")
}

// formatEditDetail renders an edit as a small diff
func (m Model) formatEditDetail(call toolCall, width int) string {
	var b strings.Builder

	filePath := firstString(call.Params, "file_path", "path", "absolute_path")
	oldString := getString(call.Params, "old_string")
	newString := getString(call.Params, "new_string")
	replaceAll := getBool(call.Params, "replace_all")

	b.WriteString(m.styles.Label.Render("File:"))
	b.WriteString("\n")
	b.WriteString(m.pathLine(filePath))
	b.WriteString("\n\n")

	b.WriteString(m.styles.Label.Render("Change:"))
	b.WriteString("\n")
	if oldString != "" {
		b.WriteString(m.styles.Deletion.Render("- " + truncateMultiline(oldString, width-4, 5)))
		b.WriteString("\n")
	}
	if newString != "" {
		b.WriteString(m.styles.Addition.Render("+ " + truncateMultiline(newString, width-4, 5)))
		b.WriteString("\n")
	}
	if replaceAll {
		b.WriteString("\n")
		b.WriteString(m.styles.Warning.Render("* Replaces ALL occurrences"))
		b.WriteString("\n")
	}
	return b.String()
}

// formatWriteDetail renders a file write
func (m Model) formatWriteDetail(call toolCall, width int) string {
	var b strings.Builder

	filePath := firstString(call.Params, "file_path", "path", "absolute_path")
	content := getString(call.Params, "content")

	if isSensitivePath(filePath) {
		b.WriteString(m.styles.DangerHeader.Render("! Writing to sensitive path"))
		b.WriteString("\n\n")
	}

	b.WriteString(m.styles.Label.Render("File:"))
	b.WriteString("\n")
	b.WriteString(m.styles.Path.Render(filePath))
	b.WriteString("\n\n")

	b.WriteString(m.styles.Label.Render("Content:"))
	fmt.Fprintf(&b, " (%d bytes)", len(content))
	b.WriteString("\n")
	b.WriteString(m.styles.CodeBlock(width).Render(truncateMultiline(content, width-4, 10)))
	b.WriteString("\n")
	return b.String()
}

// formatReadDetail renders a file read
func (m Model) formatReadDetail(call toolCall) string {
	var b strings.Builder

	filePath := firstString(call.Params, "file_path", "path", "absolute_path")
	offset := getFloat(call.Params, "offset")
	limit := getFloat(call.Params, "limit")

	if isSensitivePath(filePath) {
		b.WriteString(m.styles.DangerHeader.Render("! Reading sensitive path"))
		b.WriteString("\n\n")
	}

	b.WriteString(m.styles.Label.Render("File:"))
	b.WriteString("\n")
	b.WriteString(m.styles.Path.Render(filePath))
	b.WriteString("\n")

	if offset > 0 {
		fmt.Fprintf(&b, "  Offset: %.0f\n", offset)
	}
	if limit > 0 {
		fmt.Fprintf(&b, "  Limit: %.0f lines\n", limit)
	}
	return b.String()
}

// formatSearchDetail renders Glob and Grep calls
func (m Model) formatSearchDetail(call toolCall, width int) string {
	var b strings.Builder

	pattern := getString(call.Params, "pattern")
	path := getString(call.Params, "path")

	b.WriteString(m.styles.Label.Render("Pattern:"))
	b.WriteString("\n")
	b.WriteString(m.styles.CodeBlock(width).Render(pattern))
	b.WriteString("\n")

	if path != "" {
		b.WriteString(m.styles.Label.Render("Path: "))
		b.WriteString(m.styles.Path.Render(path))
		b.WriteString("\n")
	}

	var opts []string
	for _, key := range []string{"glob", "type", "output_mode"} {
		if v := getString(call.Params, key); v != "" {
			opts = append(opts, key+": "+v)
		}
	}
	if len(opts) > 0 {
		b.WriteString(m.styles.Label.Render("Options: "))
		b.WriteString(m.styles.Muted.Render(strings.Join(opts, ", ")))
		b.WriteString("\n")
	}
	return b.String()
}

// formatTaskDetail renders a subagent launch
func (m Model) formatTaskDetail(call toolCall, width int) string {
	var b strings.Builder

	description := getString(call.Params, "description")
	prompt := getString(call.Params, "prompt")
	subagentType := getString(call.Params, "subagent_type")

	if subagentType != "" {
		b.WriteString(m.styles.Warning.Render("* Spawns subagent: " + subagentType))
		b.WriteString("\n\n")
	}
	if description != "" {
		b.WriteString(m.styles.Label.Render("Task:"))
		b.WriteString("\n")
		b.WriteString(wrapText(description, width-2))
		b.WriteString("\n\n")
	}
	if prompt != "" {
		b.WriteString(m.styles.Label.Render("Prompt:"))
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render(truncateMultiline(prompt, width-2, 8)))
		b.WriteString("\n")
	}
	return b.String()
}

// formatWebDetail renders WebFetch and WebSearch calls
func (m Model) formatWebDetail(call toolCall, width int) string {
	var b strings.Builder

	if url := getString(call.Params, "url"); url != "" {
		b.WriteString(m.styles.Label.Render("URL: "))
		b.WriteString(m.styles.Path.Render(url))
		b.WriteString("\n")
	}
	if query := getString(call.Params, "query"); query != "" {
		b.WriteString(m.styles.Label.Render("Query: "))
		b.WriteString(wrapText(query, width-2))
		b.WriteString("\n")
	}
	if prompt := getString(call.Params, "prompt"); prompt != "" {
		b.WriteString(m.styles.Label.Render("Prompt:"))
		b.WriteString("\n")
		b.WriteString(m.styles.Muted.Render(truncateMultiline(prompt, width-2, 5)))
		b.WriteString("\n")
	}
	return b.String()
}

// formatGenericDetail lists every parameter of an unknown tool
func (m Model) formatGenericDetail(call toolCall, width int) string {
	if len(call.Params) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.Label.Render("Parameters:"))
	b.WriteString("\n")

	keys := make([]string, 0, len(call.Params))
	for k := range call.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, "  %s: %s\n", key, truncate(fmt.Sprintf("%v", call.Params[key]), max(width-len(key)-4, 8)))
	}
	return b.String()
}

// formatResultSection renders a tool result, truncated
func (m Model) formatResultSection(result string, width int) string {
	if result == "" {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.styles.Label.Render("Output:"))
	b.WriteString("\n")
	b.WriteString(m.styles.CodeBlock(width).Render(truncateMultiline(result, width-4, 8)))
	b.WriteString("\n\n")
	return b.String()
}

// pathLine renders a path, flagged when sensitive
func (m Model) pathLine(p string) string {
	if isSensitivePath(p) {
		return m.styles.Danger.Render("! " + p)
	}
	return m.styles.Path.Render(p)
}

var sensitivePatterns = []string{
	"/etc/", "/usr/", "/bin/", "/sbin/",
	".ssh/", ".gnupg/", ".aws/",
	".env", "credentials", "secrets",
	"/root/", "sudoers", "passwd", "shadow",
}

// isSensitivePath checks if a path is security-sensitive
func isSensitivePath(path string) bool {
	pathLower := strings.ToLower(path)
	for _, s := range sensitivePatterns {
		if strings.Contains(pathLower, s) {
			return true
		}
	}
	return false
}

func getString(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if v := getString(m, k); v != "" {
			return v
		}
	}
	return ""
}

func getFloat(m map[string]any, key string) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return 0
}

func getBool(m map[string]any, key string) bool {
	if v, ok := m[key].(bool); ok {
		return v
	}
	return false
}

// wrapText wraps text at word boundaries to fit within width
func wrapText(text string, width int) string {
	if width <= 0 {
		return text
	}

	var result strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			result.WriteString("\n")
		}
		lineLen := 0
		for _, word := range strings.Fields(line) {
			word = truncate(word, width)
			wordLen := len([]rune(word))
			if lineLen+wordLen+1 > width && lineLen > 0 {
				result.WriteString("\n")
				lineLen = 0
			}
			if lineLen > 0 {
				result.WriteString(" ")
				lineLen++
			}
			result.WriteString(word)
			lineLen += wordLen
		}
	}
	return result.String()
}

// truncateMultiline truncates text to maxLines and width
func truncateMultiline(text string, width, maxLines int) string {
	lines := strings.Split(text, "\n")
	if len(lines) > maxLines {
		lines = append(lines[:maxLines], "...")
	}
	for i, line := range lines {
		lines[i] = truncate(strings.ReplaceAll(line, "\t", "  "), max(width, 4))
	}
	return strings.Join(lines, "\n")
}
