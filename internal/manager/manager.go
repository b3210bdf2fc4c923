// Package manager tracks running chat turns, so they can be aborted, and the
// CLI sessions they belong to.
package manager

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"cc_session_hub/internal/provider"
)

// SessionInfo is what the server remembers about a CLI session. It lives
// in memory only; each CLI keeps the durable history itself.
type SessionInfo struct {
	SessionID        string    `json:"session_id"`
	WorkingDirectory string    `json:"working_directory,omitempty"`
	MessageCount     int       `json:"message_count"`
	LastActivity     time.Time `json:"last_activity"`
}

// Touch counts one more message and refreshes the activity time
func (s *SessionInfo) Touch(now time.Time) {
	s.MessageCount++
	s.LastActivity = now
}

// Killer is a running process that can be stopped
type Killer interface {
	Kill() error
}

type activeProcess struct {
	proc      Killer
	sessionID string
	started   time.Time
}

// Manager holds the process and session registries. Both maps are guarded
// separately and no lock is held while a process is killed.
type Manager struct {
	procMu    sync.Mutex
	processes map[string]activeProcess

	sessMu   sync.RWMutex
	sessions map[string]SessionInfo

	log *zap.Logger
	now func() time.Time
}

// New creates an empty manager
func New(log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		processes: make(map[string]activeProcess),
		sessions:  make(map[string]SessionInfo),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// RegisterProcess records a running turn under its request id
func (m *Manager) RegisterProcess(requestID string, proc Killer, sessionID string) {
	m.procMu.Lock()
	defer m.procMu.Unlock()
	m.processes[requestID] = activeProcess{proc: proc, sessionID: sessionID, started: m.now()}
	m.log.Debug("Registered process", zap.String("request_id", requestID), zap.String("session_id", sessionID))
}

// UnregisterProcess removes a finished turn. Returns false if it was
// already gone, e.g. because it was aborted.
func (m *Manager) UnregisterProcess(requestID string) (Killer, bool) {
	m.procMu.Lock()
	defer m.procMu.Unlock()
	entry, ok := m.processes[requestID]
	if !ok {
		return nil, false
	}
	delete(m.processes, requestID)
	return entry.proc, true
}

// AbortProcess removes and kills a running turn. An unknown request id
// returns an error callers may treat as nothing to abort.
func (m *Manager) AbortProcess(requestID string) error {
	m.procMu.Lock()
	entry, ok := m.processes[requestID]
	if ok {
		delete(m.processes, requestID)
	}
	m.procMu.Unlock()

	if !ok {
		m.log.Warn("No active process found", zap.String("request_id", requestID))
		return provider.ErrProcessNotFound(requestID)
	}

	if err := entry.proc.Kill(); err != nil {
		m.log.Error("Failed to kill process", zap.String("request_id", requestID), zap.Error(err))
		return err
	}
	m.log.Info("Aborted process",
		zap.String("request_id", requestID),
		zap.String("session_id", entry.sessionID),
		zap.Duration("ran_for", m.now().Sub(entry.started)))
	return nil
}

// IsProcessActive reports whether a request still has a running process
func (m *Manager) IsProcessActive(requestID string) bool {
	m.procMu.Lock()
	defer m.procMu.Unlock()
	_, ok := m.processes[requestID]
	return ok
}

// ActiveProcessCount returns the number of running turns
func (m *Manager) ActiveProcessCount() int {
	m.procMu.Lock()
	defer m.procMu.Unlock()
	return len(m.processes)
}

// GetOrCreateSession returns a copy of the session, creating it if needed
func (m *Manager) GetOrCreateSession(sessionID string) SessionInfo {
	m.sessMu.RLock()
	s, ok := m.sessions[sessionID]
	m.sessMu.RUnlock()
	if ok {
		return s
	}

	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	// another caller may have created it meanwhile
	if s, ok := m.sessions[sessionID]; ok {
		return s
	}
	s = SessionInfo{SessionID: sessionID, LastActivity: m.now()}
	m.sessions[sessionID] = s
	return s
}

// UpdateSession applies fn to a copy of the session taken under the read
// lock, then stores the copy. fn runs with no lock held, so it may call
// back into the manager. Concurrent updates to one session keep the last
// write. Returns false if the session does not exist or was removed while
// fn ran.
func (m *Manager) UpdateSession(sessionID string, fn func(*SessionInfo)) bool {
	m.sessMu.RLock()
	s, ok := m.sessions[sessionID]
	m.sessMu.RUnlock()
	if !ok {
		return false
	}

	fn(&s)
	s.SessionID = sessionID

	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return false
	}
	m.sessions[sessionID] = s
	return true
}

// RecordTurn creates the session if needed and counts one message
func (m *Manager) RecordTurn(sessionID, workingDirectory string) SessionInfo {
	m.GetOrCreateSession(sessionID)
	var out SessionInfo
	m.UpdateSession(sessionID, func(s *SessionInfo) {
		if workingDirectory != "" {
			s.WorkingDirectory = workingDirectory
		}
		s.Touch(m.now())
		out = *s
	})
	return out
}

// GetSession returns a copy of the session
func (m *Manager) GetSession(sessionID string) (SessionInfo, bool) {
	m.sessMu.RLock()
	defer m.sessMu.RUnlock()
	s, ok := m.sessions[sessionID]
	return s, ok
}

// ListSessions returns copies of all sessions, most recently active first
func (m *Manager) ListSessions() []SessionInfo {
	m.sessMu.RLock()
	out := make([]SessionInfo, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	m.sessMu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastActivity.After(out[j].LastActivity)
	})
	return out
}

// RemoveSession forgets a session
func (m *Manager) RemoveSession(sessionID string) (SessionInfo, bool) {
	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	s, ok := m.sessions[sessionID]
	if ok {
		delete(m.sessions, sessionID)
	}
	return s, ok
}

// CleanupOldSessions drops sessions idle for maxAge or longer and returns
// how many were removed
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	now := m.now()
	m.sessMu.Lock()
	defer m.sessMu.Unlock()
	removed := 0
	for id, s := range m.sessions {
		if now.Sub(s.LastActivity) >= maxAge {
			delete(m.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		m.log.Debug("Removed idle sessions", zap.Int("removed", removed), zap.Duration("max_age", maxAge))
	}
	return removed
}

// RunJanitor calls CleanupOldSessions every interval until ctx ends
func (m *Manager) RunJanitor(ctx context.Context, interval, maxAge time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupOldSessions(maxAge)
		}
	}
}
