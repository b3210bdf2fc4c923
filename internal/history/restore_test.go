package history

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assistantLine(id, ts string) LogLine {
	return LogLine{Type: "assistant", Timestamp: ts, Message: &claudeMessage{Role: "assistant", ID: id}}
}

func TestRestoreTimestamps(t *testing.T) {
	records := []LogLine{
		assistantLine("a", "2024-01-01T12:00:00Z"),
		{Type: "user", Timestamp: "2024-01-01T12:00:01Z"},
		assistantLine("a", "2024-01-01T10:00:00Z"),
		assistantLine("b", "2024-01-01T11:00:00Z"),
		{Type: "summary", Timestamp: "2024-01-01T09:00:00Z", Message: &claudeMessage{ID: "a"}},
	}

	restored := RestoreTimestamps(records)
	require.Len(t, restored, len(records))

	assert.Equal(t, "2024-01-01T10:00:00Z", restored[0].Timestamp)
	assert.Equal(t, "2024-01-01T10:00:00Z", restored[2].Timestamp)
	assert.Equal(t, "2024-01-01T11:00:00Z", restored[3].Timestamp)
	assert.Equal(t, "2024-01-01T12:00:01Z", restored[1].Timestamp, "non-assistant lines untouched")
	assert.Equal(t, "2024-01-01T09:00:00Z", restored[4].Timestamp, "only assistant lines are grouped")

	assert.Equal(t, "2024-01-01T12:00:00Z", records[0].Timestamp, "input is not modified")
}

func TestRestoreTimestampsMissingWins(t *testing.T) {
	restored := RestoreTimestamps([]LogLine{
		assistantLine("a", "2024-01-01T10:00:00Z"),
		assistantLine("a", ""),
	})
	assert.Equal(t, "", restored[0].Timestamp, "missing timestamps sort first")
}

func TestSortByTimestamp(t *testing.T) {
	records := []LogLine{
		{UUID: "3", Timestamp: "2024-01-01T10:00:02Z"},
		{UUID: "1", Timestamp: "2024-01-01T10:00:00Z"},
		{UUID: "2a", Timestamp: "2024-01-01T10:00:01Z"},
		{UUID: "2b", Timestamp: "2024-01-01T10:00:01Z"},
		{UUID: "0", Timestamp: "garbage"},
	}

	sorted := SortByTimestamp(records)
	var order []string
	for _, r := range sorted {
		order = append(order, r.UUID)
	}
	assert.Equal(t, []string{"0", "1", "2a", "2b", "3"}, order)
}

func TestCalculateMetadata(t *testing.T) {
	t.Run("timestamps", func(t *testing.T) {
		meta := CalculateMetadata([]LogLine{
			{Timestamp: "2024-01-01T10:00:00Z"},
			{Timestamp: ""},
			{Timestamp: "2024-01-01T12:00:00Z"},
		})
		assert.Equal(t, 3, meta.MessageCount)
		assert.Equal(t, mustTime(t, "2024-01-01T10:00:00Z"), meta.StartTime)
		assert.Equal(t, mustTime(t, "2024-01-01T12:00:00Z"), meta.EndTime)
	})

	t.Run("empty defaults to now", func(t *testing.T) {
		before := time.Now().UTC()
		meta := CalculateMetadata(nil)
		assert.Equal(t, 0, meta.MessageCount)
		assert.False(t, meta.StartTime.Before(before))
		assert.False(t, meta.EndTime.Before(before))
	})
}

func TestProcessConversation(t *testing.T) {
	sorted, meta := ProcessConversation([]LogLine{
		assistantLine("a", "2024-01-01T12:00:00Z"),
		{Type: "user", UUID: "u", Timestamp: "2024-01-01T11:00:00Z"},
		assistantLine("a", "2024-01-01T10:00:00Z"),
	})

	require.Len(t, sorted, 3)
	assert.Equal(t, "u", sorted[2].UUID)
	assert.Equal(t, mustTime(t, "2024-01-01T10:00:00Z"), meta.StartTime)
	assert.Equal(t, mustTime(t, "2024-01-01T11:00:00Z"), meta.EndTime)
}
