package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cc_session_hub/internal/history"
)

type projectsOptions struct {
	search string
	json   bool
}

// NewProjectsCommand creates the projects command
func NewProjectsCommand(root *rootOptions) *cobra.Command {
	opts := &projectsOptions{}
	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List projects with conversation history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := root.setup(cmd.Context(), logToFileOnly)
			if err != nil {
				return err
			}
			defer e.close()

			projects, err := e.catalog.ListProjects(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to list projects: %w", err)
			}
			projects = history.FilterProjects(projects, opts.search)
			history.SortProjects(projects)

			if opts.json {
				if projects == nil {
					projects = []history.ProjectInfo{}
				}
				return writeJSON(cmd.OutOrStdout(), projects)
			}
			printProjects(cmd.OutOrStdout(), projects)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.search, "search", "", "Only show projects whose name or path contains this text")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print JSON instead of a table")
	return cmd
}

func printProjects(w io.Writer, projects []history.ProjectInfo) {
	if len(projects) == 0 {
		fmt.Fprintln(w, "No projects found")
		return
	}

	header := color.New(color.Bold, color.FgCyan)
	fmt.Fprintln(w, header.Sprintf("%-9s %-8s %-12s %s", "TOOL", "SESSIONS", "UPDATED", "PROJECT"))
	for _, p := range projects {
		name := p.Name
		if p.Origin != "" {
			name += " " + color.YellowString("[%s]", p.Origin)
		}
		fmt.Fprintf(w, "%-9s %8d %-12s %s\n",
			p.AITool.DisplayName(),
			p.SessionCount,
			formatTime(p.LastUpdated),
			name)
		fmt.Fprintf(w, "%-9s %8s %-12s %s\n", "", "", "", color.HiBlackString("%s  %s", p.Path, p.EncodedName))
	}
}

// writeJSON prints v indented
func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("Jan 02 15:04")
}
