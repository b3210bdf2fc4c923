package history

import (
	"sort"

	"go.uber.org/zap"
)

// isSubset reports whether every id in sub is also in super
func isSubset(sub, super map[string]struct{}) bool {
	if len(sub) > len(super) {
		return false
	}
	for id := range sub {
		if _, ok := super[id]; !ok {
			return false
		}
	}
	return true
}

// GroupConversations drops files whose assistant message ids are wholly
// contained in another file's ids. Claude writes a new file when a session
// is resumed, copying the earlier turns, so the superset is the full
// conversation. Files without ids are never merged.
// The result is sorted by last activity, newest first.
func GroupConversations(files []ConversationFile, log *zap.Logger) []ConversationSummary {
	if len(files) == 0 {
		return []ConversationSummary{}
	}

	sorted := make([]ConversationFile, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return len(sorted[i].MessageIDs) > len(sorted[j].MessageIDs)
	})

	var unique []*ConversationFile
	for i := range sorted {
		current := &sorted[i]
		if len(current.MessageIDs) == 0 {
			unique = append(unique, current)
			continue
		}

		covered := false
		for _, existing := range unique {
			if len(existing.MessageIDs) > 0 && isSubset(current.MessageIDs, existing.MessageIDs) {
				covered = true
				break
			}
		}
		if !covered {
			unique = append(unique, current)
		}
	}

	summaries := make([]ConversationSummary, 0, len(unique))
	for _, f := range unique {
		summaries = append(summaries, toSummary(*f))
	}
	sort.SliceStable(summaries, func(i, j int) bool {
		return summaries[i].LastTime.After(summaries[j].LastTime)
	})

	log.Debug("Grouped conversations",
		zap.String("operation", opGrouping),
		zap.Int("input", len(files)),
		zap.Int("output", len(summaries)),
		zap.Int("duplicates_removed", len(files)-len(summaries)))

	return summaries
}

// ConversationRelationship lists the sessions whose ids contain this one's
type ConversationRelationship struct {
	SessionID      string   `json:"session_id"`
	MessageIDCount int      `json:"message_id_count"`
	IsSubsetOf     []string `json:"is_subset_of"`
}

// ConversationAnalysis reports how the files of a project overlap
type ConversationAnalysis struct {
	TotalFiles          int                        `json:"total_files"`
	UniqueConversations int                        `json:"unique_conversations"`
	DuplicateFiles      []string                   `json:"duplicate_files"`
	Relationships       []ConversationRelationship `json:"relationships"`
}

// AnalyzeRelationships computes subset relationships between every pair of
// files. Unlike GroupConversations it does not drop anything.
func AnalyzeRelationships(files []ConversationFile) ConversationAnalysis {
	analysis := ConversationAnalysis{
		TotalFiles:     len(files),
		DuplicateFiles: []string{},
		Relationships:  make([]ConversationRelationship, 0, len(files)),
	}

	for i := range files {
		rel := ConversationRelationship{
			SessionID:      files[i].SessionID,
			MessageIDCount: len(files[i].MessageIDs),
			IsSubsetOf:     []string{},
		}
		for j := range files {
			if files[i].SessionID == files[j].SessionID {
				continue
			}
			if isSubset(files[i].MessageIDs, files[j].MessageIDs) {
				rel.IsSubsetOf = append(rel.IsSubsetOf, files[j].SessionID)
			}
		}
		if len(rel.IsSubsetOf) > 0 {
			analysis.DuplicateFiles = append(analysis.DuplicateFiles, rel.SessionID)
		}
		analysis.Relationships = append(analysis.Relationships, rel)
	}

	analysis.UniqueConversations = len(files) - len(analysis.DuplicateFiles)
	return analysis
}
