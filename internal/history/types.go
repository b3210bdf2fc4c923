// Package history reads the conversation stores of the supported assistant
// CLIs and turns them into project listings, deduplicated conversation
// summaries and full conversations.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Tool identifies which assistant CLI produced a store
type Tool string

const (
	ToolClaude   Tool = "claude"
	ToolOpenCode Tool = "opencode"
	ToolGemini   Tool = "gemini"
)

// AllTools lists every supported tool in discovery order
var AllTools = []Tool{ToolClaude, ToolOpenCode, ToolGemini}

// ErrSessionNotFound is returned when no store holds the requested session
var ErrSessionNotFound = errors.New("session not found")

// ParseTool converts a slug ("claude", "opencode", "gemini") into a Tool
func ParseTool(s string) (Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "claude", "claude-code", "claudecode":
		return ToolClaude, nil
	case "opencode", "open-code":
		return ToolOpenCode, nil
	case "gemini":
		return ToolGemini, nil
	}
	return "", fmt.Errorf("unknown tool %q", s)
}

// ParseToolFilter converts a ?tool= style filter into the tools to merge.
// Empty means no filter and "all" selects every tool.
func ParseToolFilter(s string) ([]Tool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return nil, nil
	case "all":
		return append([]Tool(nil), AllTools...), nil
	}
	tool, err := ParseTool(s)
	if err != nil {
		return nil, err
	}
	return []Tool{tool}, nil
}

// DisplayName returns the human readable tool name
func (t Tool) DisplayName() string {
	switch t {
	case ToolClaude:
		return "Claude"
	case ToolOpenCode:
		return "OpenCode"
	case ToolGemini:
		return "Gemini"
	}
	return string(t)
}

// ProjectInfo describes one discovered working directory for one tool
type ProjectInfo struct {
	Name         string    `json:"name"`
	Path         string    `json:"path"`
	EncodedName  string    `json:"encoded_name"`
	SessionCount int       `json:"session_count"`
	AITool       Tool      `json:"ai_tool"`
	LastUpdated  time.Time `json:"last_updated"`
	Origin       string    `json:"origin,omitempty"`
}

// ConversationFile is the lightweight per-file record used for grouping
type ConversationFile struct {
	SessionID          string
	FilePath           string
	MessageIDs         map[string]struct{} // assistant message ids only
	StartTime          time.Time
	LastTime           time.Time
	MessageCount       int
	LastMessagePreview string
}

// ConversationSummary is what listings expose for one conversation
type ConversationSummary struct {
	SessionID          string    `json:"session_id"`
	StartTime          time.Time `json:"start_time"`
	LastTime           time.Time `json:"last_time"`
	MessageCount       int       `json:"message_count"`
	LastMessagePreview string    `json:"last_message_preview"`
}

// ConversationHistory is a fully parsed conversation
type ConversationHistory struct {
	SessionID    string    `json:"session_id"`
	ProjectPath  string    `json:"project_path"`
	ProjectName  string    `json:"project_name"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Message is one user or assistant turn
type Message struct {
	Role      string         `json:"role"`
	Content   []ContentBlock `json:"content"`
	Timestamp string         `json:"timestamp,omitempty"`
}

// BlockType discriminates ContentBlock variants
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockThinking   BlockType = "thinking"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is a tagged union over the block kinds the CLIs write.
// Only the fields of the active variant are populated.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// thinking
	Thinking string `json:"thinking,omitempty"`

	// tool_use
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	Result string `json:"content,omitempty"`
}

// TextBlock builds a text variant
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ThinkingBlock builds a thinking variant
func ThinkingBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockThinking, Thinking: text}
}

// ToolUseBlock builds a tool_use variant
func ToolUseBlock(name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, Name: name, Input: input}
}

// ToolResultBlock builds a tool_result variant
func ToolResultBlock(content string) ContentBlock {
	return ContentBlock{Type: BlockToolResult, Result: content}
}

// IsEmpty reports whether the block carries no content
func (b ContentBlock) IsEmpty() bool {
	switch b.Type {
	case BlockText:
		return b.Text == ""
	case BlockThinking:
		return b.Thinking == ""
	case BlockToolUse:
		return b.Name == ""
	case BlockToolResult:
		return b.Result == ""
	}
	return true
}

// PlainText joins the text blocks of a message with newlines
func (m Message) PlainText() string {
	var parts []string
	for _, b := range m.Content {
		if b.Type == BlockText && b.Text != "" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func toSummary(f ConversationFile) ConversationSummary {
	return ConversationSummary{
		SessionID:          f.SessionID,
		StartTime:          f.StartTime,
		LastTime:           f.LastTime,
		MessageCount:       f.MessageCount,
		LastMessagePreview: f.LastMessagePreview,
	}
}
