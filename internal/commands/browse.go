package commands

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"cc_session_hub/internal/tui"
)

// NewBrowseCommand creates the browse command
func NewBrowseCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse projects, conversations and messages in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrowse(cmd, root)
		},
	}
}

func runBrowse(cmd *cobra.Command, root *rootOptions) error {
	e, err := root.setup(cmd.Context(), logToFileOnly)
	if err != nil {
		return err
	}
	defer e.close()

	m := tui.NewModel(tui.ModelOptions{
		Catalog: e.catalog,
		Config:  e.cfg,
		Log:     e.log,
		Watch:   e.cfg.Watch,
	})
	p := tea.NewProgram(m, tea.WithAltScreen())
	final, err := p.Run()
	if fm, ok := final.(tui.Model); ok {
		fm.Close()
	}
	if err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}
	return nil
}
