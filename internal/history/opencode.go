package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"cc_session_hub/internal/pathcodec"
)

// OpenCodeGlobalProject is the single project name OpenCode sessions
// are listed under
const OpenCodeGlobalProject = "global"

// openCodeSession is a ses_*.json file
type openCodeSession struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Directory string `json:"directory"`
	Time      struct {
		Created int64 `json:"created"`
		Updated int64 `json:"updated"`
	} `json:"time"`
}

// openCodeMessage is a msg_*.json file
type openCodeMessage struct {
	ID   string `json:"id"`
	Role string `json:"role"`
	Time struct {
		Created int64 `json:"created"`
	} `json:"time"`
	Summary *struct {
		Title string `json:"title"`
		Body  string `json:"body"`
	} `json:"summary"`
}

// openCodePart is a prt_*.json file
type openCodePart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func isOpenCodeSessionFile(name string) bool {
	return strings.HasPrefix(name, "ses_") && strings.HasSuffix(name, ".json")
}

// countPrefixed counts files in dir named <prefix>*<suffix>
func countPrefixed(dir, prefix, suffix string) int {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0
	}
	n := 0
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), suffix) {
			n++
		}
	}
	return n
}

// sortedPrefixed lists files in dir named <prefix>*<suffix>, ordered by name
func sortedPrefixed(dir, prefix, suffix string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasPrefix(e.Name(), prefix) && strings.HasSuffix(e.Name(), suffix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func unixMillis(ms int64) (time.Time, bool) {
	if ms <= 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(ms).UTC(), true
}

func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// ParseOpenCodeSummaries reads every ses_*.json metadata file. Message
// counts come from the sibling message store.
func ParseOpenCodeSummaries(roots pathcodec.Roots, log *zap.Logger) ([]ConversationFile, error) {
	dir := roots.OpenCodeSessions()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read session directory: %w", err)
	}

	var files []ConversationFile
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !isOpenCodeSessionFile(name) {
			continue
		}
		path := filepath.Join(dir, name)
		sessionID := strings.TrimSuffix(strings.TrimPrefix(name, "ses_"), ".json")
		count := countPrefixed(filepath.Join(roots.OpenCodeMessages(), "ses_"+sessionID), "msg_", ".json")
		mtime := fileMtime(path)

		cf := ConversationFile{
			SessionID:          sessionID,
			FilePath:           path,
			MessageIDs:         map[string]struct{}{},
			StartTime:          mtime,
			LastTime:           mtime,
			MessageCount:       count,
			LastMessagePreview: fmt.Sprintf("OpenCode session (%d messages)", count),
		}

		var ses openCodeSession
		if err := readJSONFile(path, &ses); err != nil {
			log.Debug("Unreadable session file", toolFields(opMessageParsing, ToolOpenCode,
				zap.String("path", path), zap.Error(err))...)
			files = append(files, cf)
			continue
		}
		if created, ok := unixMillis(ses.Time.Created); ok {
			cf.StartTime = created
		}
		if updated, ok := unixMillis(ses.Time.Updated); ok {
			cf.LastTime = laterOf(updated, mtime)
		}
		if ses.Title != "" {
			cf.LastMessagePreview = ses.Title
		}
		files = append(files, cf)
	}
	return files, nil
}

// LoadOpenCodeMessages rebuilds a session's messages from the message and
// part stores. User text lives in the message summary; assistant text is
// split across part files.
func LoadOpenCodeMessages(roots pathcodec.Roots, sessionID string, log *zap.Logger) ([]Message, error) {
	msgDir := filepath.Join(roots.OpenCodeMessages(), "ses_"+sessionID)
	names, err := sortedPrefixed(msgDir, "msg_", ".json")
	if err != nil {
		if os.IsNotExist(err) {
			log.Debug("No message directory", toolFields(opSessionLoad, ToolOpenCode,
				zap.String("session_id", sessionID))...)
			return []Message{}, nil
		}
		return nil, fmt.Errorf("failed to read message directory: %w", err)
	}

	messages := make([]Message, 0, len(names))
	for _, name := range names {
		path := filepath.Join(msgDir, name)
		var msg openCodeMessage
		if err := readJSONFile(path, &msg); err != nil {
			log.Warn("Failed to parse message file", zap.String("path", path), zap.Error(err))
			continue
		}

		role := msg.Role
		if role == "" {
			role = "unknown"
		}

		var text string
		switch {
		case role == "user":
			if msg.Summary != nil {
				text = firstNonEmpty(msg.Summary.Body, msg.Summary.Title)
			}
		case msg.ID != "":
			text = loadOpenCodeParts(filepath.Join(roots.OpenCodeParts(), msg.ID))
		case msg.Summary != nil:
			text = msg.Summary.Title
		}
		if text == "" {
			continue
		}

		m := Message{Role: role, Content: []ContentBlock{TextBlock(text)}}
		if ts, ok := unixMillis(msg.Time.Created); ok {
			m.Timestamp = ts.Format(time.RFC3339Nano)
		}
		messages = append(messages, m)
	}

	log.Debug("Loaded conversation", toolFields(opSessionLoad, ToolOpenCode,
		zap.String("session_id", sessionID), zap.Int("messages", len(messages)))...)
	return messages, nil
}

// loadOpenCodeParts joins the non-empty text and reasoning parts of one
// message in file name order
func loadOpenCodeParts(partsDir string) string {
	names, err := sortedPrefixed(partsDir, "prt_", ".json")
	if err != nil {
		return ""
	}
	var texts []string
	for _, name := range names {
		var part openCodePart
		if err := readJSONFile(filepath.Join(partsDir, name), &part); err != nil {
			continue
		}
		if (part.Type == "text" || part.Type == "reasoning") && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// LoadOpenCodeConversation builds the full conversation for a session id
func LoadOpenCodeConversation(roots pathcodec.Roots, sessionID string, log *zap.Logger) (*ConversationHistory, error) {
	path := filepath.Join(roots.OpenCodeSessions(), "ses_"+sessionID+".json")
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}

	messages, err := LoadOpenCodeMessages(roots, sessionID, log)
	if err != nil {
		return nil, err
	}

	h := &ConversationHistory{
		SessionID:    sessionID,
		ProjectPath:  filepath.Dir(filepath.Dir(path)),
		ProjectName:  ToolOpenCode.DisplayName(),
		Messages:     messages,
		MessageCount: len(messages),
	}

	var ses openCodeSession
	created, updated := time.Now().UTC(), time.Now().UTC()
	if err := readJSONFile(path, &ses); err == nil {
		if ses.Directory != "" {
			h.ProjectPath = ses.Directory
			h.ProjectName = filepath.Base(ses.Directory)
		}
		if t, ok := unixMillis(ses.Time.Created); ok {
			created = t
		}
		if t, ok := unixMillis(ses.Time.Updated); ok {
			updated = t
		}
	}
	h.CreatedAt, h.UpdatedAt = created, updated
	return h, nil
}

// openCodeWorkingDirectory returns the directory recorded in the most
// recently modified session file
func openCodeWorkingDirectory(sessionsDir string) string {
	entries, err := os.ReadDir(sessionsDir)
	if err != nil {
		return ""
	}
	var newest time.Time
	dir := ""
	for _, e := range entries {
		if e.IsDir() || !isOpenCodeSessionFile(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		var ses openCodeSession
		if err := readJSONFile(filepath.Join(sessionsDir, e.Name()), &ses); err != nil || ses.Directory == "" {
			continue
		}
		if dir == "" || info.ModTime().After(newest) {
			newest = info.ModTime()
			dir = ses.Directory
		}
	}
	return dir
}

func firstNonEmpty(strs ...string) string {
	for _, s := range strs {
		if s != "" {
			return s
		}
	}
	return ""
}
