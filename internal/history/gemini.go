package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

const defaultGeminiPreview = "Gemini session"

// geminiSession is a chats/session-*.json file
type geminiSession struct {
	Messages    []geminiMessage `json:"messages"`
	StartTime   string          `json:"startTime"`
	LastUpdated string          `json:"lastUpdated"`
}

// geminiMessage is one entry of a session's messages array
type geminiMessage struct {
	Type      string          `json:"type"`
	Role      string          `json:"role"`
	Content   json.RawMessage `json:"content"`
	Timestamp string          `json:"timestamp"`
}

func isGeminiSessionFile(name string) bool {
	return strings.HasPrefix(name, "session-") && strings.HasSuffix(name, ".json")
}

// role returns the normalised role; Gemini writes its own turns as "gemini"
func (m geminiMessage) role() string {
	r := firstNonEmpty(m.Type, m.Role)
	switch r {
	case "":
		return "unknown"
	case "gemini":
		return "assistant"
	}
	return r
}

// text flattens string or block-array content
func (m geminiMessage) text() string {
	if len(m.Content) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(m.Content, &s); err == nil {
		return s
	}
	var items []struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(m.Content, &items); err == nil {
		var parts []string
		for _, it := range items {
			if it.Text != nil {
				parts = append(parts, *it.Text)
			}
		}
		return strings.Join(parts, "\n")
	}
	return string(m.Content)
}

// stringContent returns the content only when it is a plain string
func (m geminiMessage) stringContent() (string, bool) {
	var s string
	if err := json.Unmarshal(m.Content, &s); err != nil {
		return "", false
	}
	return s, true
}

// ParseGeminiSummaries reads chats/session-*.json below a hash directory
func ParseGeminiSummaries(projectDir string, log *zap.Logger) ([]ConversationFile, error) {
	chatsDir := filepath.Join(projectDir, "chats")
	entries, err := os.ReadDir(chatsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read chats directory: %w", err)
	}

	var files []ConversationFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isGeminiSessionFile(name) {
			continue
		}
		path := filepath.Join(chatsDir, name)
		mtime := fileMtime(path)

		cf := ConversationFile{
			SessionID:          strings.TrimSuffix(strings.TrimPrefix(name, "session-"), ".json"),
			FilePath:           path,
			MessageIDs:         map[string]struct{}{},
			StartTime:          mtime,
			LastTime:           mtime,
			LastMessagePreview: defaultGeminiPreview,
		}

		var ses geminiSession
		if err := readJSONFile(path, &ses); err != nil {
			log.Debug("Unreadable session file", toolFields(opMessageParsing, ToolGemini,
				zap.String("path", path), zap.Error(err))...)
			files = append(files, cf)
			continue
		}

		cf.MessageCount = len(ses.Messages)
		if t, ok := parseTimestamp(ses.StartTime); ok {
			cf.StartTime = t
		}
		if t, ok := parseTimestamp(ses.LastUpdated); ok {
			cf.LastTime = laterOf(t, mtime)
		}
		if n := len(ses.Messages); n > 0 {
			if s, ok := ses.Messages[n-1].stringContent(); ok {
				cf.LastMessagePreview = truncateRunes(s, previewLen)
			}
		}
		files = append(files, cf)
	}
	return files, nil
}

// LoadGeminiConversation fully parses one session file
func LoadGeminiConversation(path, sessionID string, log *zap.Logger) (*ConversationHistory, error) {
	var ses geminiSession
	if err := readJSONFile(path, &ses); err != nil {
		return nil, fmt.Errorf("failed to parse session file: %w", err)
	}

	messages := make([]Message, 0, len(ses.Messages))
	for _, m := range ses.Messages {
		block := TextBlock(m.text())
		if block.IsEmpty() {
			continue
		}
		messages = append(messages, Message{
			Role:      m.role(),
			Content:   []ContentBlock{block},
			Timestamp: m.Timestamp,
		})
	}

	mtime := fileMtime(path)
	created, ok := parseTimestamp(ses.StartTime)
	if !ok {
		created = mtime
	}
	updated, ok := parseTimestamp(ses.LastUpdated)
	if !ok {
		updated = mtime
	}

	log.Debug("Loaded conversation", toolFields(opSessionLoad, ToolGemini,
		zap.String("session_id", sessionID), zap.Int("messages", len(messages)))...)

	return &ConversationHistory{
		SessionID:    sessionID,
		ProjectPath:  filepath.Dir(filepath.Dir(path)),
		ProjectName:  ToolGemini.DisplayName(),
		Messages:     messages,
		CreatedAt:    created,
		UpdatedAt:    updated,
		MessageCount: len(messages),
	}, nil
}

// geminiLastUpdated returns the newest lastUpdated across a project's sessions
func geminiLastUpdated(projectDir string) (latest latestTime) {
	chatsDir := filepath.Join(projectDir, "chats")
	entries, err := os.ReadDir(chatsDir)
	if err != nil {
		return latest
	}
	for _, e := range entries {
		if e.IsDir() || !isGeminiSessionFile(e.Name()) {
			continue
		}
		var ses geminiSession
		if err := readJSONFile(filepath.Join(chatsDir, e.Name()), &ses); err != nil {
			continue
		}
		if t, ok := parseTimestamp(ses.LastUpdated); ok {
			latest.observe(t)
		}
	}
	return latest
}
