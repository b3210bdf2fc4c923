package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cc_session_hub/internal/manager"
	"cc_session_hub/internal/provider"
	"cc_session_hub/internal/server"
)

type chatOptions struct {
	provider       string
	session        string
	cwd            string
	permissionMode string
	allowedTools   []string
	images         []string
}

// NewChatCommand creates the chat command
func NewChatCommand(root *rootOptions) *cobra.Command {
	opts := &chatOptions{}
	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Run one chat turn and stream the CLI output as NDJSON",
		Long: `Run one chat turn through an assistant CLI. Each line of output is a JSON
object of type claude_json, error, done or aborted, as served by
POST /api/chat/native. Ctrl-C aborts the turn.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, root, opts, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.provider, "provider", "", "CLI to use: claude, opencode, gemini (default from config)")
	flags.StringVar(&opts.session, "session", "", "Resume this CLI session")
	flags.StringVar(&opts.cwd, "cwd", "", "Working directory for the CLI")
	flags.StringVar(&opts.permissionMode, "permission-mode", "", "default, plan or acceptEdits")
	flags.StringArrayVar(&opts.allowedTools, "allowed-tool", nil, "Allow a tool pattern without prompting (repeatable)")
	flags.StringArrayVar(&opts.images, "image", nil, "Attach an image file (repeatable)")
	return cmd
}

// executeOptions validates the flags and turns them into executor options
func (o *chatOptions) executeOptions(message string) (provider.ExecuteOptions, error) {
	mode, err := provider.ParsePermissionMode(o.permissionMode)
	if err != nil {
		return provider.ExecuteOptions{}, err
	}
	for _, img := range o.images {
		if _, err := os.Stat(img); err != nil {
			return provider.ExecuteOptions{}, fmt.Errorf("image %s: %w", img, err)
		}
	}
	return provider.NewExecuteOptions(message).
		WithSessionID(o.session).
		WithWorkingDirectory(o.cwd).
		WithAllowedTools(o.allowedTools).
		WithPermissionMode(mode).
		WithImages(o.images), nil
}

// selectProvider picks the requested provider, or the configured default
func (o *chatOptions) selectProvider(reg *provider.Registry, preferred provider.Kind) (provider.Provider, error) {
	if o.provider == "" {
		return reg.Default(preferred)
	}
	kind, err := provider.ParseKind(o.provider)
	if err != nil {
		return nil, err
	}
	p, ok := reg.Get(kind)
	if !ok {
		return nil, &provider.ExecutorError{Kind: provider.CLINotFound, Detail: kind.DisplayName()}
	}
	return p, nil
}

func runChat(cmd *cobra.Command, root *rootOptions, opts *chatOptions, message string) error {
	execOpts, err := opts.executeOptions(message)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	e, err := root.setup(ctx, logToStderr)
	if err != nil {
		return err
	}
	defer e.close()

	reg := provider.DetectAll(ctx, e.cfg.ProviderPaths(), e.log)
	p, err := opts.selectProvider(reg, e.cfg.DefaultProvider())
	if err != nil {
		return err
	}

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return streamChat(sigCtx, cmd.OutOrStdout(), manager.New(e.log), p, execOpts, e.log)
}

// streamChat runs one turn and writes its NDJSON stream to w. Cancelling
// ctx aborts the turn through mgr; the stream then ends with aborted.
func streamChat(ctx context.Context, w io.Writer, mgr *manager.Manager, p provider.Provider, opts provider.ExecuteOptions, log *zap.Logger) error {
	requestID := uuid.NewString()
	log = log.With(zap.String("request_id", requestID), zap.String("provider", string(p.Kind())))

	proc, err := provider.Execute(context.WithoutCancel(ctx), p, opts, log)
	if err != nil {
		return err
	}
	mgr.RegisterProcess(requestID, proc, opts.SessionID)

	finished := make(chan struct{})
	defer close(finished)
	go func() {
		select {
		case <-ctx.Done():
			log.Info("Aborting chat turn")
			if err := mgr.AbortProcess(requestID); err != nil {
				log.Debug("Abort after completion", zap.Error(err))
			}
		case <-finished:
		}
	}()

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	var writeErr error
	send := func(resp server.StreamResponse) {
		if writeErr == nil {
			writeErr = enc.Encode(resp)
		}
	}

	for line := range proc.Lines() {
		if line.Err != nil {
			send(server.StreamResponse{Type: server.StreamError, Error: line.Err.Error()})
			continue
		}
		raw := json.RawMessage(line.Text)
		if !json.Valid(raw) {
			log.Debug("Skipping non-JSON line", zap.String("line", line.Text))
			continue
		}
		send(server.StreamResponse{Type: server.StreamClaudeJSON, Data: raw})
	}

	mgr.UnregisterProcess(requestID)
	if proc.Killed() {
		send(server.StreamResponse{Type: server.StreamAborted})
	} else {
		send(server.StreamResponse{Type: server.StreamDone})
	}
	return writeErr
}
