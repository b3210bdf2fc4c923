package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"cc_session_hub/internal/pathcodec"
)

const (
	previewLen       = 100
	defaultPreview   = "No preview available"
	maxLineSize      = 2 * 1024 * 1024
	initialLineAlloc = 64 * 1024
)

// LogLine is a single line of a Claude Code session file
type LogLine struct {
	Type       string         `json:"type"`
	Timestamp  string         `json:"timestamp"`
	SessionID  string         `json:"sessionId"`
	UUID       string         `json:"uuid"`
	ParentUUID string         `json:"parentUuid"`
	CWD        string         `json:"cwd"`
	GitBranch  string         `json:"gitBranch"`
	Message    *claudeMessage `json:"message,omitempty"`
	Snapshot   *struct {
		Timestamp string `json:"timestamp"`
		MessageID string `json:"messageId"`
	} `json:"snapshot,omitempty"`
}

// claudeMessage is the message field of a record
type claudeMessage struct {
	Role    string        `json:"role"`
	ID      string        `json:"id"`
	Content claudeContent `json:"content"`
}

// claudeContent is either a plain string or an array of blocks
type claudeContent struct {
	Text   string
	Blocks []claudeBlock
	IsText bool
}

// claudeBlock is one element of a block array
type claudeBlock struct {
	Type     string          `json:"type"`
	Text     string          `json:"text"`
	Thinking string          `json:"thinking"`
	Name     string          `json:"name"`
	Input    json.RawMessage `json:"input"`
	Content  json.RawMessage `json:"content"`
}

var errUnsupportedContent = errors.New("content is neither string nor array")

// UnmarshalJSON accepts a string, an array of blocks or null
func (c *claudeContent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	switch data[0] {
	case '"':
		c.IsText = true
		return json.Unmarshal(data, &c.Text)
	case '[':
		return json.Unmarshal(data, &c.Blocks)
	}
	return errUnsupportedContent
}

// effectiveTimestamp falls back to the snapshot timestamp used by
// file-history-snapshot entries
func (r *LogLine) effectiveTimestamp() string {
	if r.Timestamp != "" {
		return r.Timestamp
	}
	if r.Snapshot != nil {
		return r.Snapshot.Timestamp
	}
	return ""
}

// firstText returns the text of a plain message or its first text block
func (c *claudeContent) firstText() (string, bool) {
	if c.IsText {
		return c.Text, true
	}
	for _, b := range c.Blocks {
		if b.Type == "text" {
			return b.Text, true
		}
	}
	return "", false
}

// parseTimestamp parses an RFC 3339 timestamp, reporting whether it was valid
func parseTimestamp(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// fileMtime returns the modification time of path, or now if it can't be read
func fileMtime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Now().UTC()
	}
	return info.ModTime().UTC()
}

// laterOf returns the later of two times
func laterOf(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

// truncateRunes cuts s to at most n runes
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// newLineScanner returns a scanner sized for long JSONL lines
func newLineScanner(f *os.File) *bufio.Scanner {
	scanner := bufio.NewScanner(f)
	buf := make([]byte, 0, initialLineAlloc)
	scanner.Buffer(buf, maxLineSize)
	return scanner
}

// claudeSummaryState accumulates a ConversationFile while scanning lines
type claudeSummaryState struct {
	ids         map[string]struct{}
	start       time.Time
	last        time.Time
	preview     string
	count       int
	parseErrors int
}

// processLine folds one JSONL line into the summary
func (st *claudeSummaryState) processLine(line []byte) {
	if len(bytes.TrimSpace(line)) == 0 {
		return
	}

	var rec LogLine
	if err := json.Unmarshal(line, &rec); err != nil {
		st.parseErrors++
		return
	}
	st.count++

	if ts, ok := parseTimestamp(rec.effectiveTimestamp()); ok {
		if st.start.IsZero() || ts.Before(st.start) {
			st.start = ts
		}
		if ts.After(st.last) {
			st.last = ts
		}
	}

	if rec.Message == nil || rec.Message.Role != "assistant" {
		return
	}
	if rec.Message.ID != "" {
		st.ids[rec.Message.ID] = struct{}{}
	}
	if text, ok := rec.Message.Content.firstText(); ok {
		st.preview = truncateRunes(text, previewLen)
	}
}

// ParseClaudeFile reads the metadata of one session file without building
// the full message list
func ParseClaudeFile(path string, log *zap.Logger) (ConversationFile, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return ConversationFile{}, fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	st := &claudeSummaryState{ids: make(map[string]struct{})}
	scanner := newLineScanner(f)
	for scanner.Scan() {
		st.processLine(scanner.Bytes())
	}
	if err := scanner.Err(); err != nil {
		return ConversationFile{}, fmt.Errorf("failed to read session file: %w", err)
	}

	sessionID := strings.TrimSuffix(filepath.Base(path), ".jsonl")
	mtime := fileMtime(path)

	start := st.start
	if start.IsZero() {
		start = mtime
	}
	preview := st.preview
	if preview == "" {
		preview = defaultPreview
	}

	log.Debug("Parsed session metadata",
		zap.String("operation", opMessageParsing),
		zap.String("ai_tool", string(ToolClaude)),
		zap.String("session_id", sessionID),
		zap.Int("messages", st.count),
		zap.Int("parse_errors", st.parseErrors))

	return ConversationFile{
		SessionID:          sessionID,
		FilePath:           path,
		MessageIDs:         st.ids,
		StartTime:          start,
		LastTime:           laterOf(st.last, mtime),
		MessageCount:       st.count,
		LastMessagePreview: preview,
	}, nil
}

// ParseClaudeSummaries parses every .jsonl file in a Claude project directory
func ParseClaudeSummaries(projectDir string, log *zap.Logger) ([]ConversationFile, error) {
	entries, err := os.ReadDir(projectDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read project directory: %w", err)
	}

	var files []ConversationFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".jsonl" {
			continue
		}
		path := filepath.Join(projectDir, entry.Name())
		cf, err := ParseClaudeFile(path, log)
		if err != nil {
			log.Warn("Failed to parse session metadata", zap.String("path", path), zap.Error(err))
			continue
		}
		files = append(files, cf)
	}
	return files, nil
}

// readClaudeRecords decodes every parseable line of a session file
func readClaudeRecords(path string, log *zap.Logger) ([]LogLine, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	defer f.Close()

	var records []LogLine
	lineNumber := 0
	scanner := newLineScanner(f)
	for scanner.Scan() {
		lineNumber++
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec LogLine
		if err := json.Unmarshal(line, &rec); err != nil {
			log.Debug("Skipping unparseable line",
				zap.String("path", path),
				zap.Int("line", lineNumber),
				zap.Error(err))
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	return records, nil
}

// LoadOptions tunes full conversation parsing
type LoadOptions struct {
	// IncludeThinking keeps thinking blocks in parsed messages
	IncludeThinking bool
}

// convertBlocks maps record content to message blocks, dropping empty and
// unknown blocks
func convertBlocks(c claudeContent, opts LoadOptions) []ContentBlock {
	if c.IsText {
		if c.Text == "" {
			return nil
		}
		return []ContentBlock{TextBlock(c.Text)}
	}

	var blocks []ContentBlock
	for _, b := range c.Blocks {
		var block ContentBlock
		switch b.Type {
		case "text":
			block = TextBlock(b.Text)
		case "tool_use":
			block = ToolUseBlock(b.Name, b.Input)
		case "tool_result":
			block = ToolResultBlock(toolResultText(b.Content))
		case "thinking":
			if !opts.IncludeThinking {
				continue
			}
			block = ThinkingBlock(b.Thinking)
		default:
			continue
		}
		if !block.IsEmpty() {
			blocks = append(blocks, block)
		}
	}
	return blocks
}

// toolResultText keeps string results as-is and serialises anything else
func toolResultText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err == nil {
		return compact.String()
	}
	return string(raw)
}

// LoadClaudeConversation fully parses a session file. Timestamps are
// restored and the lines re-sorted before messages are built.
func LoadClaudeConversation(path string, opts LoadOptions, log *zap.Logger) (*ConversationHistory, error) {
	records, err := readClaudeRecords(path, log)
	if err != nil {
		return nil, err
	}

	sessionID := ""
	for i := range records {
		if records[i].SessionID != "" {
			sessionID = records[i].SessionID
			break
		}
	}
	if sessionID == "" {
		sessionID = strings.TrimSuffix(filepath.Base(path), ".jsonl")
	}

	sorted, meta := ProcessConversation(records)

	messages := make([]Message, 0, len(sorted))
	for i := range sorted {
		rec := &sorted[i]
		if rec.Message == nil {
			continue
		}
		role := rec.Message.Role
		if role != "user" && role != "assistant" {
			continue
		}
		blocks := convertBlocks(rec.Message.Content, opts)
		if len(blocks) == 0 {
			continue
		}
		messages = append(messages, Message{
			Role:      role,
			Content:   blocks,
			Timestamp: rec.Timestamp,
		})
	}

	projectPath, projectName := pathcodec.SmartDecodeClaude(filepath.Base(filepath.Dir(path)))

	log.Debug("Loaded conversation",
		zap.String("operation", opSessionLoad),
		zap.String("ai_tool", string(ToolClaude)),
		zap.String("session_id", sessionID),
		zap.Int("messages", len(messages)))

	return &ConversationHistory{
		SessionID:    sessionID,
		ProjectPath:  projectPath,
		ProjectName:  projectName,
		Messages:     messages,
		CreatedAt:    meta.StartTime,
		UpdatedAt:    meta.EndTime,
		MessageCount: len(messages),
	}, nil
}
