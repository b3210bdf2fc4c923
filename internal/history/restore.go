package history

import (
	"sort"
	"time"
)

// ConversationMetadata is derived from a restored, sorted line list
type ConversationMetadata struct {
	StartTime    time.Time
	EndTime      time.Time
	MessageCount int
}

// restoreKey returns the assistant message id a record is grouped by, if any
func restoreKey(rec *LogLine) (string, bool) {
	if rec.Type != "assistant" || rec.Message == nil || rec.Message.ID == "" {
		return "", false
	}
	return rec.Message.ID, true
}

// timeOf parses a record timestamp; missing or invalid timestamps are the
// zero time and sort first
func timeOf(s string) time.Time {
	t, _ := parseTimestamp(s)
	return t
}

// RestoreTimestamps stamps every occurrence of an assistant message id with
// the earliest timestamp seen for that id. Continued conversations re-emit
// older lines with later timestamps; this undoes that. Other lines are left
// untouched.
func RestoreTimestamps(records []LogLine) []LogLine {
	earliest := make(map[string]string)
	for i := range records {
		id, ok := restoreKey(&records[i])
		if !ok {
			continue
		}
		current := records[i].Timestamp
		existing, seen := earliest[id]
		if !seen || timeOf(current).Before(timeOf(existing)) {
			earliest[id] = current
		}
	}

	out := make([]LogLine, len(records))
	copy(out, records)
	for i := range out {
		if id, ok := restoreKey(&out[i]); ok {
			out[i].Timestamp = earliest[id]
		}
	}
	return out
}

// SortByTimestamp orders records by timestamp, keeping file order for ties
func SortByTimestamp(records []LogLine) []LogLine {
	sort.SliceStable(records, func(i, j int) bool {
		return timeOf(records[i].Timestamp).Before(timeOf(records[j].Timestamp))
	})
	return records
}

// CalculateMetadata computes start, end and count. Empty input, or input
// without any timestamp, reports now for both ends.
func CalculateMetadata(records []LogLine) ConversationMetadata {
	now := time.Now().UTC()
	meta := ConversationMetadata{MessageCount: len(records)}

	for i := range records {
		ts, ok := parseTimestamp(records[i].Timestamp)
		if !ok {
			continue
		}
		if meta.StartTime.IsZero() || ts.Before(meta.StartTime) {
			meta.StartTime = ts
		}
		if ts.After(meta.EndTime) {
			meta.EndTime = ts
		}
	}

	if meta.StartTime.IsZero() {
		meta.StartTime = now
	}
	if meta.EndTime.IsZero() {
		meta.EndTime = now
	}
	return meta
}

// ProcessConversation restores, sorts and summarises a line list
func ProcessConversation(records []LogLine) ([]LogLine, ConversationMetadata) {
	sorted := SortByTimestamp(RestoreTimestamps(records))
	return sorted, CalculateMetadata(sorted)
}
