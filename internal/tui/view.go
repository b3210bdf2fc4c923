package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// View renders the UI based on the model state
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")

	b.WriteString(m.renderViewTabs())
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(m.styles.Error.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
		b.WriteString(m.renderHelp())
		return b.String()
	}

	switch m.viewMode {
	case ViewProjects:
		b.WriteString(m.renderProjectHeaders())
		b.WriteString("\n")
		b.WriteString(m.listOrEmpty(m.projectList.View(), len(m.projectList.Items()), "No projects found"))
	case ViewConversations:
		b.WriteString(m.renderConversationHeaders())
		b.WriteString("\n")
		b.WriteString(m.listOrEmpty(m.conversationList.View(), len(m.conversationList.Items()), m.emptyConversations()))
	case ViewMessages:
		b.WriteString(m.renderMessageHeaders())
		b.WriteString("\n")
		content := m.listOrEmpty(m.messageList.View(), len(m.messageList.Items()), m.emptyMessages())
		if m.detailPanelOpen {
			listWidth := lipgloss.Width(content)
			panelWidth := max(m.width-4-listWidth-2, 20)
			panel := m.renderDetailPanel(panelWidth, max(m.height-9, 5))
			content = lipgloss.JoinHorizontal(lipgloss.Top, content, "  ", panel)
		}
		b.WriteString(content)
	}

	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

// listOrEmpty replaces an empty list with a hint
func (m Model) listOrEmpty(view string, n int, empty string) string {
	if m.loading {
		return m.styles.Muted.Render("Loading...")
	}
	if n == 0 {
		return m.styles.Muted.Render(empty)
	}
	return view
}

func (m Model) emptyConversations() string {
	if m.project == nil {
		return "Select a project and press Enter"
	}
	return "No conversations found"
}

func (m Model) emptyMessages() string {
	if m.sessionID == "" {
		return "Select a conversation and press Enter"
	}
	return "No messages"
}

// renderHeader renders the top header bar
func (m Model) renderHeader() string {
	title := m.styles.Title.Render("Session History Browser")

	var status string
	switch n := len(m.projectList.Items()); n {
	case 0:
		status = m.styles.Status.Render("No projects found")
	default:
		status = m.styles.Status.Render(fmt.Sprintf("%d projects", n))
	}

	current := ""
	if m.project != nil {
		name := " [" + m.project.Name + "]"
		if m.watcher != nil && m.viewMode == ViewMessages {
			current = m.styles.ActiveIndicator.Render(name + " live")
		} else {
			current = m.styles.InactiveIndicator.Render(name)
		}
	}

	spacing := max(m.width-lipgloss.Width(title)-lipgloss.Width(status)-lipgloss.Width(current)-4, 1)

	return lipgloss.JoinHorizontal(
		lipgloss.Top,
		title,
		strings.Repeat(" ", spacing),
		status,
		current,
	)
}

// renderViewTabs renders the tab bar for view modes
func (m Model) renderViewTabs() string {
	tabs := []struct {
		name string
		mode ViewMode
		key  string
	}{
		{"Projects", ViewProjects, "1"},
		{"Conversations", ViewConversations, "2"},
		{"Messages", ViewMessages, "3"},
	}

	rendered := make([]string, len(tabs))
	for i, t := range tabs {
		label := fmt.Sprintf("%s %s", t.key, t.name)
		if t.mode == m.viewMode {
			rendered[i] = m.styles.ActiveTab.Render(label)
		} else {
			rendered[i] = m.styles.InactiveTab.Render(label)
		}
	}

	row := lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
	gap := strings.Repeat("─", max(0, m.width-lipgloss.Width(row)-2))

	return row + m.styles.TabGap.Render(gap)
}

// renderHelp renders the help footer
func (m Model) renderHelp() string {
	var help []string

	switch m.viewMode {
	case ViewProjects:
		help = []string{"j/k:navigate", "enter:open", "h/l:switch view", "r:refresh", "q:quit"}
	case ViewConversations:
		help = []string{"j/k:navigate", "enter:open", "h/l:switch view", "r:refresh", "esc:back", "q:quit"}
	case ViewMessages:
		detail := "enter:details"
		if m.detailPanelOpen {
			detail = "enter/esc:close details"
		}
		help = []string{"j/k:navigate", detail, "h/l:switch view", "r:reload", "esc:back", "q:quit"}
	}

	return m.styles.Help.Render(strings.Join(help, " | "))
}

// renderProjectHeaders renders column headers for the project list
func (m Model) renderProjectHeaders() string {
	header := fmt.Sprintf("%s  %s", padRight("Tool", ProjectToolWidth), "Project")
	return m.styles.ColumnHeader(m.width - 4).Render(header)
}

// renderConversationHeaders renders column headers for the conversation list
func (m Model) renderConversationHeaders() string {
	header := fmt.Sprintf("%s  %s  %s",
		padRight("Session", ConversationIDWidth),
		padLeft("Msgs", ConversationMsgWidth),
		"Last activity")
	return m.styles.ColumnHeader(m.width - 4).Render(header)
}

// renderMessageHeaders renders column headers for the message list
func (m Model) renderMessageHeaders() string {
	header := fmt.Sprintf("%s %s %s",
		padRight("Time", MessageTimeWidth),
		padRight("Role", MessageRoleWidth),
		"Content")
	return m.styles.ColumnHeader(m.width - 4).Render(header)
}

// padRight pads a string with spaces on the right to reach target width
func padRight(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return s + strings.Repeat(" ", width-len(r))
}

// padLeft pads a string with spaces on the left to reach target width
func padLeft(s string, width int) string {
	r := []rune(s)
	if len(r) >= width {
		return string(r[:width])
	}
	return strings.Repeat(" ", width-len(r)) + s
}
