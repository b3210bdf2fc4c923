package server

import (
	"net/http"

	"go.uber.org/zap"

	"cc_session_hub/internal/manager"
	"cc_session_hub/internal/provider"
)

type abortResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

type deleteSessionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type countResponse struct {
	Count int `json:"count"`
}

type chatStatusResponse struct {
	Default   provider.Kind     `json:"default"`
	Providers []provider.Status `json:"providers"`
}

func (s *Server) handleAbort(w http.ResponseWriter, r *http.Request) {
	requestID := r.PathValue("request_id")
	s.log.Info("Received abort request", zap.String("request_id", requestID))

	if err := s.manager.AbortProcess(requestID); err != nil {
		writeJSON(w, http.StatusNotFound, abortResponse{
			Success:   false,
			Message:   "Failed to abort: " + err.Error(),
			RequestID: requestID,
		})
		return
	}
	writeJSON(w, http.StatusOK, abortResponse{
		Success:   true,
		Message:   "Process aborted successfully",
		RequestID: requestID,
	})
}

func (s *Server) handleActiveProcesses(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, countResponse{Count: s.manager.ActiveProcessCount()})
}

func (s *Server) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	sessions := s.manager.ListSessions()
	if sessions == nil {
		sessions = []manager.SessionInfo{}
	}
	writeJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("session_id")
	if _, ok := s.manager.RemoveSession(sessionID); !ok {
		s.log.Warn("Session not found", zap.String("session_id", sessionID))
		writeJSON(w, http.StatusNotFound, deleteSessionResponse{Success: false, Message: "Session not found"})
		return
	}
	s.log.Info("Session removed", zap.String("session_id", sessionID))
	writeJSON(w, http.StatusOK, deleteSessionResponse{Success: true, Message: "Session removed successfully"})
}

func (s *Server) handleChatStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, chatStatusResponse{
		Default:   s.cfg.DefaultProvider(),
		Providers: s.providers.Statuses(),
	})
}
