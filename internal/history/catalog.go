package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"cc_session_hub/internal/pathcodec"
)

// agentSessionPrefix marks sub-agent sessions, which are never "active"
const agentSessionPrefix = "agent-"

// Catalog answers history queries over one or more sets of store roots.
// The filesystem is the source of truth; nothing is cached.
type Catalog struct {
	mu     sync.RWMutex
	roots  []pathcodec.Roots
	ignore []string
	opts   LoadOptions
	log    *zap.Logger
}

// NewCatalog creates a catalog over the given roots
func NewCatalog(log *zap.Logger, roots ...pathcodec.Roots) *Catalog {
	if log == nil {
		log = zap.NewNop()
	}
	return &Catalog{
		roots: append([]pathcodec.Roots(nil), roots...),
		log:   log,
	}
}

// SetIgnore sets the doublestar globs of project paths to leave out of
// listings
func (c *Catalog) SetIgnore(patterns []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ignore = append([]string(nil), patterns...)
}

// SetLoadOptions changes how full conversations are parsed
func (c *Catalog) SetLoadOptions(opts LoadOptions) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opts = opts
}

// AddRoots registers another set of roots. Returns false if a set with the
// same store directories is already known.
func (c *Catalog) AddRoots(r pathcodec.Roots) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.roots {
		if existing.SameStores(r) {
			return false
		}
	}
	c.roots = append(c.roots, r)
	return true
}

// Roots returns a copy of the registered roots
func (c *Catalog) Roots() []pathcodec.Roots {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]pathcodec.Roots(nil), c.roots...)
}

// ignorePatterns returns a copy of the project ignore globs
func (c *Catalog) ignorePatterns() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]string(nil), c.ignore...)
}

func (c *Catalog) loadOptions() LoadOptions {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.opts
}

// projectDir returns where a tool keeps the given project, or "" if the
// tool has no such project layout
func projectDir(r pathcodec.Roots, tool Tool, encoded string) string {
	if storeDir(r, tool) == "" {
		return ""
	}
	switch tool {
	case ToolClaude:
		return filepath.Join(r.ClaudeProjects, encoded)
	case ToolOpenCode:
		if encoded == OpenCodeGlobalProject {
			return r.OpenCodeSessions()
		}
	case ToolGemini:
		return filepath.Join(r.GeminiTmp, encoded)
	}
	return ""
}

// validName rejects names that could escape a store directory
func validName(s string) bool {
	return s != "" && s != "." && s != ".." && !strings.ContainsAny(s, `/\`)
}

// collectFiles parses a project's conversation files for one tool
func (c *Catalog) collectFiles(r pathcodec.Roots, tool Tool, encoded string) ([]ConversationFile, error) {
	dir := projectDir(r, tool, encoded)
	if dir == "" || !isDir(dir) {
		return nil, nil
	}
	switch tool {
	case ToolClaude:
		return ParseClaudeSummaries(dir, c.log)
	case ToolOpenCode:
		return ParseOpenCodeSummaries(r, c.log)
	case ToolGemini:
		return ParseGeminiSummaries(dir, c.log)
	}
	return nil, nil
}

// ListSummaries returns the deduplicated conversations of a project.
// With no tools given, tools are tried in order and the first one holding
// conversations for the project wins. With tools given, the conversations
// of all of them are merged before grouping.
func (c *Catalog) ListSummaries(encoded string, tools ...Tool) ([]ConversationSummary, error) {
	if !validName(encoded) {
		return []ConversationSummary{}, nil
	}

	merge := len(tools) > 0
	if !merge {
		tools = AllTools
	}

	var all []ConversationFile
	for _, tool := range tools {
		for _, r := range c.Roots() {
			files, err := c.collectFiles(r, tool, encoded)
			if err != nil {
				return nil, fmt.Errorf("failed to list %s conversations: %w", tool, err)
			}
			if len(files) == 0 {
				continue
			}
			c.log.Debug("Found project conversations", toolFields(opSessionLoad, tool,
				zap.String("project", encoded), zap.Int("files", len(files)))...)
			if !merge {
				return GroupConversations(files, c.log), nil
			}
			all = append(all, files...)
		}
	}
	return GroupConversations(all, c.log), nil
}

// ActiveSession returns the most recently active conversation of a project,
// skipping sub-agent sessions. Returns nil when there is none.
func (c *Catalog) ActiveSession(encoded string, tools ...Tool) (*ConversationSummary, error) {
	summaries, err := c.ListSummaries(encoded, tools...)
	if err != nil {
		return nil, err
	}
	for i := range summaries {
		if !strings.HasPrefix(summaries[i].SessionID, agentSessionPrefix) {
			s := summaries[i]
			return &s, nil
		}
	}
	return nil, nil
}

// SessionRef locates the backing file of one conversation
type SessionRef struct {
	Tool      Tool
	Project   string
	SessionID string
	Path      string
	Roots     pathcodec.Roots
}

// sessionFile is where a tool stores the given session
func sessionFile(r pathcodec.Roots, tool Tool, encoded, sessionID string) string {
	dir := projectDir(r, tool, encoded)
	if dir == "" {
		return ""
	}
	switch tool {
	case ToolClaude:
		return filepath.Join(dir, sessionID+".jsonl")
	case ToolOpenCode:
		return filepath.Join(dir, "ses_"+sessionID+".json")
	case ToolGemini:
		return filepath.Join(dir, "chats", "session-"+sessionID+".json")
	}
	return ""
}

// ResolveSession finds the backing file of a conversation, trying each tool
// in order. Returns ErrSessionNotFound when no store has it.
func (c *Catalog) ResolveSession(encoded, sessionID string) (SessionRef, error) {
	if !validName(encoded) || !validName(sessionID) {
		return SessionRef{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	for _, r := range c.Roots() {
		for _, tool := range AllTools {
			path := sessionFile(r, tool, encoded, sessionID)
			if path == "" {
				continue
			}
			if _, err := os.Stat(path); err == nil {
				return SessionRef{
					Tool:      tool,
					Project:   encoded,
					SessionID: sessionID,
					Path:      path,
					Roots:     r,
				}, nil
			}
		}
	}
	return SessionRef{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
}

// Load fully parses the conversation a ref points at
func (c *Catalog) Load(ref SessionRef) (*ConversationHistory, error) {
	switch ref.Tool {
	case ToolClaude:
		return LoadClaudeConversation(ref.Path, c.loadOptions(), c.log)
	case ToolOpenCode:
		return LoadOpenCodeConversation(ref.Roots, ref.SessionID, c.log)
	case ToolGemini:
		h, err := LoadGeminiConversation(ref.Path, ref.SessionID, c.log)
		if err != nil {
			return nil, err
		}
		h.ProjectPath, h.ProjectName = pathcodec.DecodeGemini(ref.Roots.Home, ref.Project)
		return h, nil
	}
	return nil, fmt.Errorf("unsupported tool %q", ref.Tool)
}

// LoadConversation resolves and fully parses one conversation
func (c *Catalog) LoadConversation(encoded, sessionID string) (*ConversationHistory, error) {
	ref, err := c.ResolveSession(encoded, sessionID)
	if err != nil {
		return nil, err
	}
	c.log.Debug("Loading conversation", toolFields(opSessionLoad, ref.Tool,
		zap.String("session_id", sessionID), zap.String("path", ref.Path))...)
	return c.Load(ref)
}

// AnalyzeProject reports how a project's Claude conversation files overlap
func (c *Catalog) AnalyzeProject(encoded string) (ConversationAnalysis, error) {
	var all []ConversationFile
	for _, r := range c.Roots() {
		files, err := c.collectFiles(r, ToolClaude, encoded)
		if err != nil {
			return ConversationAnalysis{}, err
		}
		all = append(all, files...)
	}
	return AnalyzeRelationships(all), nil
}
