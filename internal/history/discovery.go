package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"cc_session_hub/internal/pathcodec"
)

// minGeminiHashLen filters tmp/ children that cannot be project hashes
const minGeminiHashLen = 10

// latestTime tracks the newest of a set of observed times
type latestTime struct {
	t   time.Time
	set bool
}

func (l *latestTime) observe(t time.Time) {
	if !l.set || t.After(l.t) {
		l.t = t
		l.set = true
	}
}

// orNow returns the newest observed time, or now when nothing was observed
func (l latestTime) orNow() time.Time {
	if !l.set {
		return time.Now().UTC()
	}
	return l.t.UTC()
}

// storeDir is the directory whose children are a tool's projects
func storeDir(r pathcodec.Roots, tool Tool) string {
	switch tool {
	case ToolClaude:
		return r.ClaudeProjects
	case ToolOpenCode:
		return r.OpenCodeSessions()
	case ToolGemini:
		return r.GeminiTmp
	}
	return ""
}

// toolConfigFile is the user-level config that may declare known projects
func toolConfigFile(r pathcodec.Roots, tool Tool) string {
	switch tool {
	case ToolClaude:
		return r.ClaudeConfigFile()
	case ToolOpenCode:
		return r.OpenCodeConfigFile()
	case ToolGemini:
		return r.GeminiConfigFile()
	}
	return ""
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func isHex(s string) bool {
	for _, c := range s {
		if !strings.ContainsRune("0123456789abcdefABCDEF", c) {
			return false
		}
	}
	return true
}

// countSessions counts a project's session files using the tool's layout
func countSessions(projectDir string, tool Tool) int {
	switch tool {
	case ToolClaude:
		return countPrefixed(projectDir, "", ".jsonl")
	case ToolOpenCode:
		return countPrefixed(projectDir, "ses_", ".json")
	case ToolGemini:
		return countPrefixed(filepath.Join(projectDir, "chats"), "session-", ".json")
	}
	return 0
}

// maxMtime returns the newest mtime of files in dir named <prefix>*<suffix>
func maxMtime(dir, prefix, suffix string) latestTime {
	var latest latestTime
	entries, err := os.ReadDir(dir)
	if err != nil {
		return latest
	}
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), prefix) || !strings.HasSuffix(e.Name(), suffix) {
			continue
		}
		if info, err := e.Info(); err == nil {
			latest.observe(info.ModTime())
		}
	}
	return latest
}

// projectLastUpdated returns when a project last changed. Gemini session
// files carry their own lastUpdated, which is more accurate than mtime.
func projectLastUpdated(projectDir string, tool Tool) time.Time {
	switch tool {
	case ToolClaude:
		return maxMtime(projectDir, "", ".jsonl").orNow()
	case ToolOpenCode:
		return maxMtime(projectDir, "ses_", ".json").orNow()
	case ToolGemini:
		return geminiLastUpdated(projectDir).orNow()
	}
	return time.Now().UTC()
}

// readDeclaredProjects returns the keys of the "projects" object in a
// tool's user config, or nil when the file is absent or unreadable
func readDeclaredProjects(path string) []string {
	var cfg struct {
		Projects map[string]json.RawMessage `json:"projects"`
	}
	if err := readJSONFile(path, &cfg); err != nil {
		return nil
	}
	paths := make([]string, 0, len(cfg.Projects))
	for p := range cfg.Projects {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// decodeProject derives the project path and display name from its
// directory name
func decodeProject(r pathcodec.Roots, tool Tool, encoded string) (path, name string) {
	switch tool {
	case ToolClaude:
		return pathcodec.SmartDecodeClaude(encoded)
	case ToolGemini:
		return pathcodec.DecodeGemini(r.Home, encoded)
	}
	p := pathcodec.DecodeClaude(encoded)
	return p, filepath.Base(p)
}

// scanTool discovers the projects of one tool below one set of roots.
// Projects declared in the tool's user config come first; the filesystem
// scan adds the rest.
func (c *Catalog) scanTool(r pathcodec.Roots, tool Tool) []ProjectInfo {
	dir := storeDir(r, tool)
	if !isDir(dir) {
		c.log.Debug("Store directory missing", toolFields(opProjectDiscovery, tool, zap.String("dir", dir))...)
		return nil
	}

	projects := make(map[string]ProjectInfo)
	var order []string
	add := func(p ProjectInfo) {
		if _, ok := projects[p.EncodedName]; !ok {
			order = append(order, p.EncodedName)
		}
		projects[p.EncodedName] = p
	}

	for _, declared := range readDeclaredProjects(toolConfigFile(r, tool)) {
		encoded := pathcodec.EncodeClaude(declared)
		projectDir := filepath.Join(dir, encoded)
		if !isDir(projectDir) {
			c.log.Debug("Declared project has no store directory", toolFields(opPathEncoding, tool,
				zap.String("path", declared), zap.String("encoded", encoded))...)
			continue
		}
		add(ProjectInfo{
			Name:         filepath.Base(declared),
			Path:         declared,
			EncodedName:  encoded,
			SessionCount: countSessions(projectDir, tool),
			AITool:       tool,
			LastUpdated:  projectLastUpdated(projectDir, tool),
			Origin:       r.Origin,
		})
	}

	if tool == ToolOpenCode {
		// all OpenCode sessions live in one flat directory
		if n := countSessions(dir, tool); n > 0 {
			workDir := openCodeWorkingDirectory(dir)
			name := ToolOpenCode.DisplayName()
			if workDir != "" {
				name = filepath.Base(workDir)
			} else {
				workDir = ToolOpenCode.DisplayName()
			}
			add(ProjectInfo{
				Name:         name,
				Path:         workDir,
				EncodedName:  OpenCodeGlobalProject,
				SessionCount: n,
				AITool:       tool,
				LastUpdated:  projectLastUpdated(dir, tool),
				Origin:       r.Origin,
			})
		}
		return collect(projects, order)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		c.log.Warn("Failed to read store directory", toolFields(opProjectDiscovery, tool,
			zap.String("dir", dir), zap.Error(err))...)
		return collect(projects, order)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		encoded := entry.Name()
		if tool == ToolGemini && (len(encoded) < minGeminiHashLen || !isHex(encoded)) {
			continue
		}
		if _, known := projects[encoded]; known {
			continue
		}

		projectDir := filepath.Join(dir, encoded)
		n := countSessions(projectDir, tool)
		if n == 0 {
			continue
		}

		path, name := decodeProject(r, tool, encoded)
		c.log.Debug("Counted sessions", toolFields(opSessionCount, tool,
			zap.String("project", name), zap.Int("sessions", n))...)

		add(ProjectInfo{
			Name:         name,
			Path:         path,
			EncodedName:  encoded,
			SessionCount: n,
			AITool:       tool,
			LastUpdated:  projectLastUpdated(projectDir, tool),
			Origin:       r.Origin,
		})
	}

	result := collect(projects, order)
	c.log.Debug("Discovered projects", toolFields(opProjectDiscovery, tool,
		zap.String("dir", dir), zap.Int("projects", len(result)))...)
	return result
}

func collect(projects map[string]ProjectInfo, order []string) []ProjectInfo {
	out := make([]ProjectInfo, 0, len(order))
	for _, k := range order {
		out = append(out, projects[k])
	}
	return out
}

// ListProjects discovers projects for every tool and root in parallel.
// Ignored paths are dropped and the result is sorted newest first.
func (c *Catalog) ListProjects(ctx context.Context) ([]ProjectInfo, error) {
	roots := c.Roots()
	results := make([][]ProjectInfo, len(roots)*len(AllTools))

	g, ctx := errgroup.WithContext(ctx)
	for ri, r := range roots {
		for ti, tool := range AllTools {
			idx := ri*len(AllTools) + ti
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					return err
				}
				results[idx] = c.scanTool(r, tool)
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	patterns := c.ignorePatterns()
	var all []ProjectInfo
	for _, ps := range results {
		for _, p := range ps {
			if ignored(p, patterns) {
				continue
			}
			all = append(all, p)
		}
	}
	SortProjects(all)

	c.log.Debug("Listed projects", zap.String("operation", opProjectDiscovery), zap.Int("total", len(all)))
	return all, nil
}

// ignored reports whether a project matches one of the ignore globs
func ignored(p ProjectInfo, patterns []string) bool {
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, p.Path); err == nil && ok {
			return true
		}
	}
	return false
}

// FilterProjects keeps projects whose name or path contains search,
// ignoring case. An empty search keeps everything.
func FilterProjects(projects []ProjectInfo, search string) []ProjectInfo {
	search = strings.ToLower(strings.TrimSpace(search))
	if search == "" {
		return projects
	}
	out := make([]ProjectInfo, 0, len(projects))
	for _, p := range projects {
		if strings.Contains(strings.ToLower(p.Name), search) || strings.Contains(strings.ToLower(p.Path), search) {
			out = append(out, p)
		}
	}
	return out
}

// SortProjects orders projects by last update, newest first
func SortProjects(projects []ProjectInfo) {
	sort.SliceStable(projects, func(i, j int) bool {
		return projects[i].LastUpdated.After(projects[j].LastUpdated)
	})
}
