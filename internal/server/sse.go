package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"cc_session_hub/internal/history"
)

// sessionFileNotFound is the data of the error event for unknown sessions
const sessionFileNotFound = "Session file not found"

// SyncMessage is the payload of connected, message and heartbeat events
type SyncMessage struct {
	EventType    string        `json:"event_type"`
	SessionID    string        `json:"session_id"`
	MessageCount int           `json:"message_count"`
	NewMessages  []MessageData `json:"new_messages"`
}

// MessageData is an appended message flattened to its text
type MessageData struct {
	Role      string  `json:"role"`
	Content   string  `json:"content"`
	Timestamp *string `json:"timestamp"`
}

// eventName maps watcher events onto SSE event names
func eventName(t history.SyncEventType) string {
	if t == history.SyncNewMessages {
		return "message"
	}
	return string(t)
}

func syncMessage(ev history.SyncEvent) SyncMessage {
	msgs := make([]MessageData, 0, len(ev.NewMessages))
	for _, m := range ev.NewMessages {
		data := MessageData{Role: m.Role, Content: m.PlainText()}
		if m.Timestamp != "" {
			ts := m.Timestamp
			data.Timestamp = &ts
		}
		msgs = append(msgs, data)
	}
	return SyncMessage{
		EventType:    string(ev.Type),
		SessionID:    ev.SessionID,
		MessageCount: ev.MessageCount,
		NewMessages:  msgs,
	}
}

// sseWriter writes server-sent events, each with a fresh ULID id
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseWriter) event(name, data string) error {
	if _, err := fmt.Fprintf(s.w, "id: %s\nevent: %s\ndata: %s\n\n", ulid.Make(), name, data); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) ping() error {
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	encoded := r.PathValue("encoded_project")
	sessionID := r.PathValue("session_id")
	log := s.log.With(zap.String("project", encoded), zap.String("session_id", sessionID))

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "SSE not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	out := &sseWriter{w: w, flusher: flusher}

	watcher, err := s.catalog.WatchSession(encoded, sessionID, s.watchOpts)
	if err != nil {
		if errors.Is(err, history.ErrBackingFileMissing) {
			log.Warn("Session file not found")
		} else {
			log.Error("Failed to watch session", zap.Error(err))
		}
		_ = out.event("error", sessionFileNotFound)
		return
	}
	log.Info("SSE subscription started", zap.String("path", watcher.Ref().Path))

	ctx := r.Context()
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		watcher.Run(ctx)
	}()
	defer func() {
		watcher.Stop()
		<-runDone
		log.Debug("SSE subscription ended")
	}()

	keepAlive := time.NewTicker(s.keepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-watcher.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(syncMessage(ev))
			if err != nil {
				log.Error("Failed to encode sync event", zap.Error(err))
				continue
			}
			if err := out.event(eventName(ev.Type), string(data)); err != nil {
				log.Debug("SSE client disconnected", zap.Error(err))
				return
			}
			if ev.Type == history.SyncNewMessages {
				log.Info("Sent new messages", zap.Int("count", len(ev.NewMessages)))
			}

		case err := <-watcher.Errors:
			if errors.Is(err, history.ErrBackingFileMissing) {
				_ = out.event("error", sessionFileNotFound)
				return
			}
			log.Warn("Watcher error", zap.Error(err))

		case <-keepAlive.C:
			if err := out.ping(); err != nil {
				return
			}
		}
	}
}
