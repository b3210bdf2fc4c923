package commands

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"cc_session_hub/internal/provider"
)

// NewDetectCommand creates the detect command
func NewDetectCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "detect",
		Short: "Show which assistant CLIs are installed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			runDetect(ctx, cmd.OutOrStdout(), cfg.ProviderPaths())
			return nil
		},
	}
}

func runDetect(ctx context.Context, w io.Writer, paths map[provider.Kind]string) {
	for _, kind := range provider.AllKinds {
		d, err := provider.Detect(ctx, kind, paths[kind])
		if err != nil {
			fmt.Fprintf(w, "%-9s %s %s\n",
				kind.DisplayName(),
				color.RedString("%-16s", detectErrorName(err)),
				err.Error())
			continue
		}
		fmt.Fprintf(w, "%-9s %s %s\n",
			kind.DisplayName(),
			color.GreenString("%-16s", d.Version),
			d.Path)
	}
}

// detectErrorName names the kind of a detection failure
func detectErrorName(err error) string {
	var de *provider.DetectionError
	if !errors.As(err, &de) {
		return "Error"
	}
	switch de.Kind {
	case provider.NotFound:
		return "NotFound"
	case provider.ExecutionFailed:
		return "ExecutionFailed"
	case provider.InvalidVersion:
		return "InvalidVersion"
	case provider.DetectIOError:
		return "IoError"
	}
	return "Error"
}
