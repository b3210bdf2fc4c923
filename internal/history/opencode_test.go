package history

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cc_session_hub/internal/pathcodec"
)

func TestParseOpenCodeSummaries(t *testing.T) {
	roots := newFixtureHome(t)
	writeFile(t, filepath.Join(roots.OpenCodeSessions(), "ses_untitled.json"), `{"id":"ses_untitled","time":{}}`)
	writeFile(t, filepath.Join(roots.OpenCodeSessions(), "notes.txt"), "ignored")

	files, err := ParseOpenCodeSummaries(roots, zap.NewNop())
	require.NoError(t, err)
	require.Len(t, files, 2)

	byID := map[string]ConversationFile{}
	for _, f := range files {
		byID[f.SessionID] = f
	}

	oc := byID["oc1"]
	assert.Equal(t, 2, oc.MessageCount)
	assert.Equal(t, "Fix the build", oc.LastMessagePreview)
	assert.Equal(t, mustTime(t, "2024-01-01T10:00:00Z"), oc.StartTime)
	assert.Empty(t, oc.MessageIDs)

	untitled := byID["untitled"]
	assert.Equal(t, 0, untitled.MessageCount)
	assert.Equal(t, "OpenCode session (0 messages)", untitled.LastMessagePreview)
}

func TestParseOpenCodeSummariesMissingDir(t *testing.T) {
	_, err := ParseOpenCodeSummaries(pathcodec.DefaultRoots(t.TempDir()), zap.NewNop())
	assert.Error(t, err)
}

func TestLoadOpenCodeMessages(t *testing.T) {
	roots := newFixtureHome(t)
	// assistant message with no id falls back to its summary title
	writeFile(t, filepath.Join(roots.OpenCodeMessages(), "ses_oc1", "msg_003.json"),
		`{"role":"assistant","summary":{"title":"wrapped up"}}`)
	// nothing to show
	writeFile(t, filepath.Join(roots.OpenCodeMessages(), "ses_oc1", "msg_004.json"), `{"role":"user"}`)

	msgs, err := LoadOpenCodeMessages(roots, "oc1", zap.NewNop())
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	assert.Equal(t, "user", msgs[0].Role)
	assert.Equal(t, "why is it broken", msgs[0].PlainText(), "body wins over title")
	assert.Equal(t, "2024-01-01T10:00:00Z", msgs[0].Timestamp)

	assert.Equal(t, "assistant", msgs[1].Role)
	assert.Equal(t, "looking\na missing import", msgs[1].PlainText())

	assert.Equal(t, "wrapped up", msgs[2].PlainText())
}

func TestLoadOpenCodeMessagesNoDirectory(t *testing.T) {
	roots := newFixtureHome(t)
	msgs, err := LoadOpenCodeMessages(roots, "unknown", zap.NewNop())
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLoadOpenCodeConversation(t *testing.T) {
	roots := newFixtureHome(t)

	h, err := LoadOpenCodeConversation(roots, "oc1", zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "oc1", h.SessionID)
	assert.Equal(t, "/work/oc", h.ProjectPath)
	assert.Equal(t, "oc", h.ProjectName)
	assert.Equal(t, 2, h.MessageCount)
	assert.Equal(t, mustTime(t, "2024-01-01T11:00:00Z"), h.UpdatedAt)

	_, err = LoadOpenCodeConversation(roots, "missing", zap.NewNop())
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}
