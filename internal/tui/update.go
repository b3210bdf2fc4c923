package tui

import (
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"cc_session_hub/internal/history"
)

// Update handles incoming messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m.updateListSizes(), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case projectsLoadedMsg:
		m.loading = false
		m.err = nil
		return m.updateProjectList(msg), nil

	case conversationsLoadedMsg:
		m.loading = false
		if m.project == nil || m.project.EncodedName != msg.encoded {
			return m, nil
		}
		return m.updateConversationList(msg.summaries), nil

	case conversationOpenedMsg:
		m.loading = false
		if msg.sessionID != m.sessionID {
			if msg.watcher != nil {
				msg.watcher.Stop()
			}
			return m, nil
		}
		m.conversation = msg.history
		m.messageList.SetItems(nil)
		m = m.updateMessageList()
		return m.startWatching(msg.watcher)

	case syncEventMsg:
		if msg.watcher != m.watcher {
			return m, nil
		}
		if msg.event.Type == history.SyncNewMessages {
			m.log.Debug("new messages", zap.Int("count", len(msg.event.NewMessages)))
			m = m.appendMessages(msg.event.NewMessages)
		}
		return m, waitForSyncCmd(msg.watcher)

	case watchEndedMsg:
		if msg.watcher != m.watcher {
			return m, nil
		}
		if msg.err != nil && !errors.Is(msg.err, history.ErrBackingFileMissing) {
			m.log.Warn("live sync error", zap.Error(msg.err))
			return m, waitForSyncCmd(msg.watcher)
		}
		return m.closeWatcher(), nil

	case tickMsg:
		return m, m.tickCmd()

	case errMsg:
		m.loading = false
		m.err = msg.error
		return m, nil
	}

	return m.updateActiveList(msg)
}

// handleKey dispatches key presses
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m = m.closeWatcher()
		return m, tea.Quit

	case "1":
		return m.switchView(ViewProjects), nil
	case "2":
		return m.switchView(ViewConversations), nil
	case "3":
		return m.switchView(ViewMessages), nil
	case "l", "right":
		return m.switchView((m.viewMode + 1) % 3), nil
	case "h", "left":
		return m.switchView((m.viewMode + 2) % 3), nil

	case "esc":
		if m.viewMode == ViewMessages && m.detailPanelOpen {
			m.detailPanelOpen = false
			return m.updateListSizes(), nil
		}
		if m.viewMode > ViewProjects {
			return m.switchView(m.viewMode - 1), nil
		}
		return m, nil

	case "enter":
		return m.drillDown()

	case "r":
		return m.refresh()
	}

	return m.updateActiveList(msg)
}

// switchView changes the visible tab
func (m Model) switchView(v ViewMode) Model {
	m.viewMode = v
	m.err = nil
	return m.updateListSizes()
}

// drillDown opens the selected item of the current view
func (m Model) drillDown() (tea.Model, tea.Cmd) {
	switch m.viewMode {
	case ViewProjects:
		p, ok := m.selectedProject()
		if !ok {
			return m, nil
		}
		m.project = &p
		m.viewMode = ViewConversations
		m.loading = true
		m.conversationList.SetItems(nil)
		return m.updateListSizes(), m.loadConversationsCmd(p)

	case ViewConversations:
		s, ok := m.selectedConversation()
		if !ok || m.project == nil {
			return m, nil
		}
		m = m.closeWatcher()
		m.sessionID = s.SessionID
		m.conversation = nil
		m.messageList.SetItems(nil)
		m.viewMode = ViewMessages
		m.loading = true
		return m.updateListSizes(), m.openConversationCmd(m.project.EncodedName, s.SessionID)

	case ViewMessages:
		if _, ok := m.selectedMessage(); !ok {
			return m, nil
		}
		m.detailPanelOpen = !m.detailPanelOpen
		return m.updateListSizes(), nil
	}
	return m, nil
}

// refresh reloads the data behind the current view
func (m Model) refresh() (tea.Model, tea.Cmd) {
	m.err = nil
	switch m.viewMode {
	case ViewConversations:
		if m.project != nil {
			m.loading = true
			return m, m.loadConversationsCmd(*m.project)
		}
	case ViewMessages:
		if m.project != nil && m.sessionID != "" {
			m = m.closeWatcher()
			m.loading = true
			return m, m.openConversationCmd(m.project.EncodedName, m.sessionID)
		}
	}
	m.loading = true
	return m, m.loadProjectsCmd()
}

// updateActiveList forwards navigation to the visible list
func (m Model) updateActiveList(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.viewMode {
	case ViewProjects:
		m.projectList, cmd = m.projectList.Update(msg)
	case ViewConversations:
		m.conversationList, cmd = m.conversationList.Update(msg)
	case ViewMessages:
		m.messageList, cmd = m.messageList.Update(msg)
	}
	return m, cmd
}
