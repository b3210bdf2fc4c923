package server

import (
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"cc_session_hub/internal/history"
)

type historyListResponse struct {
	Conversations []history.ConversationSummary `json:"conversations"`
}

type activeSessionResponse struct {
	SessionID   *string    `json:"session_id"`
	ProjectName string     `json:"project_name"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// toolFilter reads the optional ?tool= query parameter. "all" merges
// every tool.
func toolFilter(r *http.Request) ([]history.Tool, error) {
	return history.ParseToolFilter(r.URL.Query().Get("tool"))
}

func (s *Server) handleListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := s.catalog.ListProjects(r.Context())
	if err != nil {
		s.log.Error("Failed to list projects", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	projects = history.FilterProjects(projects, r.URL.Query().Get("search"))
	history.SortProjects(projects)
	if projects == nil {
		projects = []history.ProjectInfo{}
	}
	writeJSON(w, http.StatusOK, projects)
}

func (s *Server) handleListHistories(w http.ResponseWriter, r *http.Request) {
	encoded := r.PathValue("encoded_name")
	tools, err := toolFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	summaries, err := s.catalog.ListSummaries(encoded, tools...)
	if err != nil {
		s.log.Error("Failed to list summaries", zap.String("project", encoded), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if summaries == nil {
		summaries = []history.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, historyListResponse{Conversations: summaries})
}

func (s *Server) handleActiveSession(w http.ResponseWriter, r *http.Request) {
	encoded := r.PathValue("encoded_name")
	tools, err := toolFilter(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	active, err := s.catalog.ActiveSession(encoded, tools...)
	if err != nil {
		s.log.Error("Failed to find active session", zap.String("project", encoded), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := activeSessionResponse{ProjectName: encoded}
	if active != nil {
		resp.SessionID = &active.SessionID
		resp.UpdatedAt = &active.LastTime
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	encoded := r.PathValue("encoded_name")
	sessionID := r.PathValue("session_id")

	conv, err := s.catalog.LoadConversation(encoded, sessionID)
	if errors.Is(err, history.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, "Conversation not found")
		return
	}
	if err != nil {
		s.log.Error("Failed to load conversation",
			zap.String("project", encoded), zap.String("session_id", sessionID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, conv)
}
