package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"cc_session_hub/internal/provider"
)

// ChatRequest is the body of POST /api/chat/native
type ChatRequest struct {
	Message          string   `json:"message"`
	RequestID        string   `json:"request_id,omitempty"`
	SessionID        string   `json:"session_id,omitempty"`
	WorkingDirectory string   `json:"working_directory,omitempty"`
	AllowedTools     []string `json:"allowed_tools,omitempty"`
	PermissionMode   string   `json:"permission_mode,omitempty"`
	ImagePaths       []string `json:"image_paths,omitempty"`
	CLIProvider      string   `json:"cli_provider,omitempty"`

	// HideUserMessage is a client display hint and is not used server side
	HideUserMessage bool `json:"hide_user_message,omitempty"`
}

// StreamType discriminates the NDJSON lines of a chat response
type StreamType string

const (
	StreamClaudeJSON StreamType = "claude_json"
	StreamError      StreamType = "error"
	StreamDone       StreamType = "done"
	StreamAborted    StreamType = "aborted"
)

// StreamResponse is one NDJSON line of a chat response
type StreamResponse struct {
	Type  StreamType      `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
	Error string          `json:"error,omitempty"`
}

// NewRequestID generates an id clients can use to abort a turn
func NewRequestID() string {
	return uuid.NewString()
}

// selectProvider resolves the requested provider. The returned status is
// the HTTP code to answer with when err is set.
func (s *Server) selectProvider(name string) (provider.Provider, int, error) {
	if strings.TrimSpace(name) == "" {
		p, err := s.providers.Default(s.cfg.DefaultProvider())
		if err != nil {
			return nil, http.StatusServiceUnavailable, err
		}
		return p, 0, nil
	}

	kind, err := provider.ParseKind(name)
	if err != nil {
		return nil, http.StatusBadRequest, err
	}
	p, ok := s.providers.Get(kind)
	if !ok {
		return nil, http.StatusServiceUnavailable,
			&provider.ExecutorError{Kind: provider.CLINotFound, Detail: kind.DisplayName()}
	}
	return p, 0, nil
}

// executeOptions turns a request into executor options. Unknown permission
// modes fall back to the default and missing images are dropped.
func (s *Server) executeOptions(req ChatRequest, requestID string) provider.ExecuteOptions {
	opts := provider.NewExecuteOptions(req.Message).
		WithSessionID(req.SessionID).
		WithWorkingDirectory(req.WorkingDirectory).
		WithAllowedTools(req.AllowedTools)

	mode, err := provider.ParsePermissionMode(req.PermissionMode)
	if err != nil {
		s.log.Warn("Unknown permission mode, using default",
			zap.String("request_id", requestID), zap.String("permission_mode", req.PermissionMode))
		mode = provider.PermissionDefault
	}
	opts = opts.WithPermissionMode(mode)

	if len(req.ImagePaths) > 0 {
		var images []string
		for _, p := range req.ImagePaths {
			if _, err := os.Stat(p); err == nil {
				images = append(images, p)
			}
		}
		if len(images) == 0 {
			s.log.Warn("All provided image paths were invalid or missing", zap.String("request_id", requestID))
		}
		opts = opts.WithImages(images)
	}
	return opts
}

// executeStatus maps an Execute error onto an HTTP status
func executeStatus(err error) int {
	switch {
	case errors.Is(err, provider.ErrNotSupported):
		return http.StatusBadRequest
	case errors.Is(err, provider.ErrCLINotFound):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = NewRequestID()
	}
	log := s.log.With(zap.String("request_id", requestID))

	p, status, err := s.selectProvider(req.CLIProvider)
	if err != nil {
		log.Warn("No provider for chat request", zap.String("cli_provider", req.CLIProvider), zap.Error(err))
		writeError(w, status, err.Error())
		return
	}

	opts := s.executeOptions(req, requestID)
	log.Info("Starting chat request",
		zap.String("provider", string(p.Kind())),
		zap.String("session_id", req.SessionID),
		zap.String("working_directory", req.WorkingDirectory))

	// the turn outlives the client connection; only an abort stops it
	proc, err := provider.Execute(context.WithoutCancel(r.Context()), p, opts, log)
	if err != nil {
		log.Error("Failed to execute CLI", zap.Error(err))
		writeError(w, executeStatus(err), err.Error())
		return
	}
	s.manager.RegisterProcess(requestID, proc, req.SessionID)
	if req.SessionID != "" {
		s.manager.RecordTurn(req.SessionID, req.WorkingDirectory)
	}

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("X-Request-Id", requestID)
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	stream := newNDJSONWriter(w)
	stream.flush()
	s.streamTurn(stream, proc, req, log)

	s.manager.UnregisterProcess(requestID)
	if proc.Killed() {
		stream.send(StreamResponse{Type: StreamAborted})
		log.Info("Chat request aborted")
		return
	}
	stream.send(StreamResponse{Type: StreamDone})
	log.Info("Chat request completed")
}

// streamTurn forwards process output until the process ends. Output is
// read to the end even after the client goes away so the process never
// blocks on a full channel.
func (s *Server) streamTurn(stream *ndjsonWriter, proc *provider.Process, req ChatRequest, log *zap.Logger) {
	sessionSeen := req.SessionID != ""
	for line := range proc.Lines() {
		if line.Err != nil {
			log.Error("Error reading from process", zap.Error(line.Err))
			stream.send(StreamResponse{Type: StreamError, Error: line.Err.Error()})
			continue
		}

		raw := json.RawMessage(line.Text)
		if !json.Valid(raw) {
			log.Debug("Skipping non-JSON line", zap.String("line", line.Text))
			continue
		}
		if !sessionSeen {
			if id := sessionIDOf(raw); id != "" {
				sessionSeen = true
				s.manager.RecordTurn(id, req.WorkingDirectory)
			}
		}
		stream.send(StreamResponse{Type: StreamClaudeJSON, Data: raw})
	}
}

// sessionIDOf returns the top-level session_id the CLI reports, if any
func sessionIDOf(raw json.RawMessage) string {
	var probe struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.SessionID
}

// ndjsonWriter writes one JSON object per line and stops writing after the
// first failure
type ndjsonWriter struct {
	w      http.ResponseWriter
	enc    *json.Encoder
	broken bool
}

func newNDJSONWriter(w http.ResponseWriter) *ndjsonWriter {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return &ndjsonWriter{w: w, enc: enc}
}

func (n *ndjsonWriter) send(resp StreamResponse) {
	if n.broken {
		return
	}
	if err := n.enc.Encode(resp); err != nil {
		n.broken = true
		return
	}
	n.flush()
}

func (n *ndjsonWriter) flush() {
	if f, ok := n.w.(http.Flusher); ok {
		f.Flush()
	}
}
