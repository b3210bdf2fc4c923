package tui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"cc_session_hub/internal/history"
)

// Column widths shared by the delegates and the column headers
const (
	ProjectToolWidth     = 9
	ConversationIDWidth  = 12
	ConversationMsgWidth = 6
	MessageTimeWidth     = 8
	MessageRoleWidth     = 10
)

// ============================================================================
// Project Item
// ============================================================================

// projectItem wraps a ProjectInfo for the list component
type projectItem struct {
	project history.ProjectInfo
}

func (i projectItem) FilterValue() string { return i.project.Path }
func (i projectItem) Title() string       { return i.project.Name }
func (i projectItem) Description() string {
	return fmt.Sprintf("%s | %d sessions | %s",
		i.project.AITool.DisplayName(),
		i.project.SessionCount,
		formatTimeAgo(i.project.LastUpdated),
	)
}

// projectDelegate renders project items
type projectDelegate struct {
	styles *Styles
	width  int
}

func newProjectDelegate(styles *Styles) *projectDelegate {
	return &projectDelegate{styles: styles}
}

func (d *projectDelegate) SetWidth(w int)                          { d.width = w }
func (d *projectDelegate) Height() int                             { return 2 }
func (d *projectDelegate) Spacing() int                            { return 1 }
func (d *projectDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d *projectDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(projectItem)
	if !ok {
		return
	}

	nameStyle := d.styles.Normal
	if index == m.Index() {
		nameStyle = d.styles.Selected
	}

	tool := d.styles.Badge.Render(padRight(i.project.AITool.DisplayName(), ProjectToolWidth-2))
	name := nameStyle.Render(i.project.Name)
	origin := ""
	if i.project.Origin != "" {
		origin = d.styles.InactiveIndicator.Render(" [" + i.project.Origin + "]")
	}

	desc := fmt.Sprintf("  %s | %d sessions | %s",
		truncate(i.project.Path, max(d.width-30, 20)),
		i.project.SessionCount,
		formatTimeAgo(i.project.LastUpdated),
	)
	fmt.Fprintf(w, "%s %s%s\n%s", tool, name, origin, d.styles.Muted.Render(desc))
}

// ============================================================================
// Conversation Item
// ============================================================================

// conversationItem wraps a ConversationSummary for the list component
type conversationItem struct {
	summary history.ConversationSummary
}

func (i conversationItem) FilterValue() string { return i.summary.LastMessagePreview }
func (i conversationItem) Title() string       { return i.summary.SessionID }
func (i conversationItem) Description() string { return i.summary.LastMessagePreview }

// conversationDelegate renders conversation items
type conversationDelegate struct {
	styles *Styles
	width  int
}

func newConversationDelegate(styles *Styles) *conversationDelegate {
	return &conversationDelegate{styles: styles}
}

func (d *conversationDelegate) SetWidth(w int)                          { d.width = w }
func (d *conversationDelegate) Height() int                             { return 2 }
func (d *conversationDelegate) Spacing() int                            { return 0 }
func (d *conversationDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d *conversationDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(conversationItem)
	if !ok {
		return
	}

	style := d.styles.Normal
	if index == m.Index() {
		style = d.styles.Selected
	}

	id := style.Render(padRight(i.summary.SessionID, ConversationIDWidth))
	count := d.styles.Badge.Render(padLeft(fmt.Sprintf("%d", i.summary.MessageCount), ConversationMsgWidth-2))
	when := d.styles.Muted.Render(formatTimeAgo(i.summary.LastTime))
	preview := oneLine(i.summary.LastMessagePreview)

	fmt.Fprintf(w, "%s  %s  %s\n   %s", id, count, when,
		d.styles.Muted.Render(truncate(preview, max(d.width-4, 20))))
}

// ============================================================================
// Message Item
// ============================================================================

// messageItem wraps one Message of the open conversation
type messageItem struct {
	message history.Message
}

func (i messageItem) FilterValue() string { return i.message.PlainText() }
func (i messageItem) Title() string       { return i.message.Role }
func (i messageItem) Description() string { return messagePreview(i.message) }

// messageDelegate renders message items
type messageDelegate struct {
	styles *Styles
	width  int
}

func newMessageDelegate(styles *Styles) *messageDelegate {
	return &messageDelegate{styles: styles}
}

func (d *messageDelegate) SetWidth(w int)                          { d.width = w }
func (d *messageDelegate) Height() int                             { return 1 }
func (d *messageDelegate) Spacing() int                            { return 0 }
func (d *messageDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }
func (d *messageDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	i, ok := item.(messageItem)
	if !ok {
		return
	}

	stamp := d.styles.Muted.Render(padRight(formatClock(i.message.Timestamp), MessageTimeWidth))
	role := d.styles.RoleStyle(i.message.Role).Render(padRight(i.message.Role, MessageRoleWidth))

	preview := truncate(messagePreview(i.message), max(d.width-MessageTimeWidth-MessageRoleWidth-4, 10))
	style := d.styles.Normal
	if pattern, ok := firstToolPattern(i.message); ok && i.message.PlainText() == "" {
		style = d.styles.ForPattern(pattern)
	}
	if index == m.Index() {
		style = style.Background(d.styles.Selected.GetBackground())
	}

	fmt.Fprintf(w, "%s %s %s", stamp, role, style.Render(preview))
}

// ============================================================================
// Helper Functions
// ============================================================================

// messagePreview is the single line shown for a message in the list
func messagePreview(m history.Message) string {
	if text := m.PlainText(); text != "" {
		return oneLine(text)
	}
	for _, b := range m.Content {
		switch b.Type {
		case history.BlockToolUse:
			return history.PermissionPattern(b.Name, b.Input) + " " + oneLine(history.ToolSummary(b.Name, b.Input))
		case history.BlockToolResult:
			return "result: " + oneLine(b.Result)
		case history.BlockThinking:
			return "thinking: " + oneLine(b.Thinking)
		}
	}
	return ""
}

// firstToolPattern returns the permission pattern of the first tool call
func firstToolPattern(m history.Message) (string, bool) {
	for _, b := range m.Content {
		if b.Type == history.BlockToolUse {
			return history.PermissionPattern(b.Name, b.Input), true
		}
	}
	return "", false
}

// oneLine collapses whitespace so text fits a list row
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// formatClock renders an RFC 3339 timestamp as local wall-clock time
func formatClock(ts string) string {
	if ts == "" {
		return ""
	}
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ""
	}
	return t.Local().Format("15:04:05")
}

// formatTimeAgo returns a human-readable relative time string
func formatTimeAgo(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Format("Jan 2")
	}
}

// truncate shortens a string to maxLen runes with ellipsis
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen < 4 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
