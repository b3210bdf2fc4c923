package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"go.uber.org/zap"

	"cc_session_hub/internal/config"
	"cc_session_hub/internal/history"
)

// ViewMode represents the current view
type ViewMode int

const (
	ViewProjects      ViewMode = iota // Project list
	ViewConversations                 // Conversations of the selected project
	ViewMessages                      // Messages of the open conversation
)

// ModelOptions configures a Model
type ModelOptions struct {
	Catalog *history.Catalog
	Config  *config.Config
	Log     *zap.Logger
	Watch   history.WatchOptions
}

// Model represents the application state
type Model struct {
	catalog   *history.Catalog
	log       *zap.Logger
	watchOpts history.WatchOptions
	styles    *Styles
	renderer  *glamour.TermRenderer

	viewMode ViewMode

	// Selection state
	project      *history.ProjectInfo
	sessionID    string
	conversation *history.ConversationHistory

	// Live sync for the open conversation
	watcher     *history.SessionWatcher
	stopWatcher context.CancelFunc

	// UI components
	projectList      list.Model
	conversationList list.Model
	messageList      list.Model

	projectDelegate      *projectDelegate
	conversationDelegate *conversationDelegate
	messageDelegate      *messageDelegate

	detailPanelOpen bool
	loading         bool

	// UI dimensions
	width  int
	height int

	err error
}

// NewModel creates a new Model with initialized state
func NewModel(opts ModelOptions) Model {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	styles := NewStyles(cfg)

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		log.Debug("markdown renderer unavailable", zap.Error(err))
		renderer = nil
	}

	m := Model{
		catalog:              opts.Catalog,
		log:                  log,
		watchOpts:            opts.Watch,
		styles:               &styles,
		renderer:             renderer,
		viewMode:             ViewProjects,
		projectDelegate:      newProjectDelegate(&styles),
		conversationDelegate: newConversationDelegate(&styles),
		messageDelegate:      newMessageDelegate(&styles),
	}

	m.projectList = newList(m.projectDelegate)
	m.conversationList = newList(m.conversationDelegate)
	m.messageList = newList(m.messageDelegate)
	return m
}

func newList(d list.ItemDelegate) list.Model {
	l := list.New([]list.Item{}, d, 0, 0)
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()
	return l
}

// Init implements tea.Model
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.loadProjectsCmd(),
		m.tickCmd(),
	)
}

// Message types
type (
	projectsLoadedMsg      []history.ProjectInfo
	conversationsLoadedMsg struct {
		encoded   string
		summaries []history.ConversationSummary
	}
	conversationOpenedMsg struct {
		sessionID string
		history   *history.ConversationHistory
		watcher   *history.SessionWatcher
	}
	syncEventMsg struct {
		watcher *history.SessionWatcher
		event   history.SyncEvent
	}
	watchEndedMsg struct {
		watcher *history.SessionWatcher
		err     error
	}
	tickMsg time.Time
	errMsg  struct{ error }
)

// loadProjectsCmd discovers projects across all roots
func (m Model) loadProjectsCmd() tea.Cmd {
	catalog := m.catalog
	return func() tea.Msg {
		if catalog == nil {
			return projectsLoadedMsg(nil)
		}
		projects, err := catalog.ListProjects(context.Background())
		if err != nil {
			return errMsg{err}
		}
		history.SortProjects(projects)
		return projectsLoadedMsg(projects)
	}
}

// loadConversationsCmd lists the grouped conversations of a project
func (m Model) loadConversationsCmd(p history.ProjectInfo) tea.Cmd {
	catalog := m.catalog
	return func() tea.Msg {
		if catalog == nil {
			return conversationsLoadedMsg{encoded: p.EncodedName}
		}
		summaries, err := catalog.ListSummaries(p.EncodedName, p.AITool)
		if err != nil {
			return errMsg{err}
		}
		return conversationsLoadedMsg{encoded: p.EncodedName, summaries: summaries}
	}
}

// openConversationCmd loads a conversation and prepares its watcher. A
// conversation whose file cannot be watched opens without live sync.
func (m Model) openConversationCmd(encoded, sessionID string) tea.Cmd {
	catalog, opts, log := m.catalog, m.watchOpts, m.log
	return func() tea.Msg {
		if catalog == nil {
			return errMsg{history.ErrSessionNotFound}
		}
		h, err := catalog.LoadConversation(encoded, sessionID)
		if err != nil {
			return errMsg{err}
		}
		w, err := catalog.WatchSession(encoded, sessionID, opts)
		if err != nil {
			log.Debug("live sync unavailable", zap.String("session_id", sessionID), zap.Error(err))
			w = nil
		}
		return conversationOpenedMsg{sessionID: sessionID, history: h, watcher: w}
	}
}

// waitForSyncCmd returns a command that waits for the next watcher event
func waitForSyncCmd(w *history.SessionWatcher) tea.Cmd {
	return func() tea.Msg {
		select {
		case ev, ok := <-w.Events:
			if !ok {
				return watchEndedMsg{watcher: w}
			}
			return syncEventMsg{watcher: w, event: ev}
		case err := <-w.Errors:
			return watchEndedMsg{watcher: w, err: err}
		}
	}
}

// tickCmd returns a command that ticks every 30 seconds to refresh timestamps
func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(30*time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// startWatching runs w until the conversation is closed
func (m Model) startWatching(w *history.SessionWatcher) (Model, tea.Cmd) {
	m = m.closeWatcher()
	if w == nil {
		return m, nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.watcher = w
	m.stopWatcher = cancel
	go w.Run(ctx)
	return m, waitForSyncCmd(w)
}

// closeWatcher stops live sync of the open conversation
func (m Model) closeWatcher() Model {
	if m.watcher != nil {
		m.watcher.Stop()
		m.watcher = nil
	}
	if m.stopWatcher != nil {
		m.stopWatcher()
		m.stopWatcher = nil
	}
	return m
}

// updateProjectList rebuilds the project list items
func (m Model) updateProjectList(projects []history.ProjectInfo) Model {
	items := make([]list.Item, len(projects))
	for i, p := range projects {
		items[i] = projectItem{project: p}
	}
	m.projectList.SetItems(items)
	if m.projectList.Index() >= len(items) {
		m.projectList.Select(0)
	}
	return m
}

// updateConversationList rebuilds the conversation list items
func (m Model) updateConversationList(summaries []history.ConversationSummary) Model {
	items := make([]list.Item, len(summaries))
	for i, s := range summaries {
		items[i] = conversationItem{summary: s}
	}
	m.conversationList.SetItems(items)
	m.conversationList.Select(0)
	return m
}

// updateMessageList rebuilds the message list. The selection follows the
// tail when it was already on the last message.
func (m Model) updateMessageList() Model {
	if m.conversation == nil {
		m.messageList.SetItems([]list.Item{})
		return m
	}
	previous := len(m.messageList.Items())
	wasAtEnd := previous == 0 || m.messageList.Index() == previous-1

	items := make([]list.Item, len(m.conversation.Messages))
	for i, msg := range m.conversation.Messages {
		items[i] = messageItem{message: msg}
	}
	m.messageList.SetItems(items)
	if wasAtEnd && len(items) > 0 {
		m.messageList.Select(len(items) - 1)
	}
	return m
}

// appendMessages adds live-synced messages to the open conversation
func (m Model) appendMessages(msgs []history.Message) Model {
	if m.conversation == nil || len(msgs) == 0 {
		return m
	}
	conv := *m.conversation
	conv.Messages = append(append([]history.Message{}, conv.Messages...), msgs...)
	conv.MessageCount = len(conv.Messages)
	m.conversation = &conv
	return m.updateMessageList()
}

// updateListSizes updates list dimensions based on terminal size
func (m Model) updateListSizes() Model {
	// Reserve space for header (2), tabs (2), column headers (1), help (2), margins (2)
	listHeight := max(m.height-9, 5)
	listWidth := max(m.width-4, 20)

	messageListWidth := listWidth
	if m.viewMode == ViewMessages && m.detailPanelOpen {
		messageListWidth = int(float64(listWidth) * 0.42)
	}

	m.projectDelegate.SetWidth(listWidth)
	m.conversationDelegate.SetWidth(listWidth)
	m.messageDelegate.SetWidth(messageListWidth)

	m.projectList.SetSize(listWidth, listHeight)
	m.conversationList.SetSize(listWidth, listHeight)
	m.messageList.SetSize(messageListWidth, listHeight)

	if m.renderer != nil && m.detailPanelOpen {
		wrap := max(listWidth-messageListWidth-4, 20)
		if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(wrap)); err == nil {
			m.renderer = r
		}
	}
	return m
}

// selectedProject returns the highlighted project in the project list
func (m Model) selectedProject() (history.ProjectInfo, bool) {
	item, ok := m.projectList.SelectedItem().(projectItem)
	if !ok {
		return history.ProjectInfo{}, false
	}
	return item.project, true
}

// selectedConversation returns the highlighted conversation
func (m Model) selectedConversation() (history.ConversationSummary, bool) {
	item, ok := m.conversationList.SelectedItem().(conversationItem)
	if !ok {
		return history.ConversationSummary{}, false
	}
	return item.summary, true
}

// selectedMessage returns the highlighted message of the open conversation
func (m Model) selectedMessage() (history.Message, bool) {
	item, ok := m.messageList.SelectedItem().(messageItem)
	if !ok {
		return history.Message{}, false
	}
	return item.message, true
}

// Close stops any live sync still running
func (m Model) Close() {
	m.closeWatcher()
}
