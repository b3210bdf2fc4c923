package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cc_session_hub/internal/history"
)

type historiesOptions struct {
	tool string
	json bool
}

// NewHistoriesCommand creates the histories command
func NewHistoriesCommand(root *rootOptions) *cobra.Command {
	opts := &historiesOptions{}
	cmd := &cobra.Command{
		Use:   "histories <encoded-project>",
		Short: "List the grouped conversations of a project",
		Long: `List the conversations of a project, with continued sessions merged into
the conversation they extend. The project is given by its encoded name as
printed by the projects command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tools, err := history.ParseToolFilter(opts.tool)
			if err != nil {
				return err
			}

			e, err := root.setup(cmd.Context(), logToFileOnly)
			if err != nil {
				return err
			}
			defer e.close()

			summaries, err := e.catalog.ListSummaries(args[0], tools...)
			if err != nil {
				return fmt.Errorf("failed to list conversations: %w", err)
			}

			if opts.json {
				if summaries == nil {
					summaries = []history.ConversationSummary{}
				}
				return writeJSON(cmd.OutOrStdout(), summaries)
			}
			printSummaries(cmd.OutOrStdout(), args[0], summaries)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.tool, "tool", "", "Only read this tool's store (claude, opencode, gemini), or merge all of them")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print JSON instead of a table")
	return cmd
}

func printSummaries(w io.Writer, encoded string, summaries []history.ConversationSummary) {
	if len(summaries) == 0 {
		fmt.Fprintf(w, "No conversations found for %s\n", encoded)
		return
	}

	header := color.New(color.Bold, color.FgCyan)
	fmt.Fprintln(w, header.Sprintf("%-36s %5s %-12s %-12s", "SESSION", "MSGS", "STARTED", "LAST"))
	for _, s := range summaries {
		fmt.Fprintf(w, "%-36s %5d %-12s %-12s\n",
			s.SessionID,
			s.MessageCount,
			formatTime(s.StartTime),
			formatTime(s.LastTime))
		if preview := strings.Join(strings.Fields(s.LastMessagePreview), " "); preview != "" {
			fmt.Fprintf(w, "  %s\n", color.HiBlackString("%s", preview))
		}
	}
}
