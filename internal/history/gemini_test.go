package history

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseGeminiSummaries(t *testing.T) {
	roots := newFixtureHome(t)
	projectDir := filepath.Join(roots.GeminiTmp, fixtureGeminiHash)
	writeFile(t, filepath.Join(projectDir, "chats", "session-plain.json"),
		`{"messages":[{"type":"user","content":"only string previews"}]}`)
	writeFile(t, filepath.Join(projectDir, "chats", "session-broken.json"), `{`)

	files, err := ParseGeminiSummaries(projectDir, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, files, 3)

	byID := map[string]ConversationFile{}
	for _, f := range files {
		byID[f.SessionID] = f
	}

	g1 := byID["g1"]
	assert.Equal(t, 2, g1.MessageCount)
	assert.Equal(t, mustTime(t, "2024-01-02T08:00:00Z"), g1.StartTime)
	assert.Equal(t, defaultGeminiPreview, g1.LastMessagePreview, "array content has no preview")

	assert.Equal(t, "only string previews", byID["plain"].LastMessagePreview)
	assert.Equal(t, 0, byID["broken"].MessageCount)
}

func TestParseGeminiSummariesNoChats(t *testing.T) {
	files, err := ParseGeminiSummaries(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestLoadGeminiConversation(t *testing.T) {
	roots := newFixtureHome(t)
	path := filepath.Join(roots.GeminiTmp, fixtureGeminiHash, "chats", "session-g1.json")

	h, err := LoadGeminiConversation(path, "g1", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)

	assert.Equal(t, "user", h.Messages[0].Role)
	assert.Equal(t, "what is this repo", h.Messages[0].PlainText())
	assert.Equal(t, "assistant", h.Messages[1].Role)
	assert.Equal(t, "a\nb", h.Messages[1].PlainText())
	assert.Equal(t, mustTime(t, "2024-01-02T08:00:00Z"), h.CreatedAt)
	assert.Equal(t, mustTime(t, "2024-01-02T08:05:00Z"), h.UpdatedAt)
}

func TestLoadGeminiConversationDropsEmptyMessages(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chats", "session-e1.json")
	writeFile(t, path, `{"messages":[
		{"type":"user","content":"hi"},
		{"type":"gemini","content":""},
		{"type":"gemini"},
		{"type":"gemini","content":[{"text":"answer"}]}
	]}`)

	h, err := LoadGeminiConversation(path, "e1", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, h.Messages, 2)
	assert.Equal(t, 2, h.MessageCount)
	assert.Equal(t, "hi", h.Messages[0].PlainText())
	assert.Equal(t, "assistant", h.Messages[1].Role)
	assert.Equal(t, "answer", h.Messages[1].PlainText())
}

func TestGeminiMessageRole(t *testing.T) {
	tests := []struct {
		name     string
		msg      geminiMessage
		expected string
	}{
		{"type wins", geminiMessage{Type: "user", Role: "model"}, "user"},
		{"gemini is assistant", geminiMessage{Type: "gemini"}, "assistant"},
		{"role fallback", geminiMessage{Role: "model"}, "model"},
		{"unknown", geminiMessage{}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.role(); got != tt.expected {
				t.Errorf("role() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestGeminiMessageText(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected string
	}{
		{"string", `"hi"`, "hi"},
		{"items", `[{"text":"a"},{"other":1},{"text":"b"}]`, "a\nb"},
		{"object kept raw", `{"k":1}`, `{"k":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := geminiMessage{Content: []byte(tt.content)}
			if got := m.text(); got != tt.expected {
				t.Errorf("text() = %q, want %q", got, tt.expected)
			}
		})
	}
}
