package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"cc_session_hub/internal/manager"
	"cc_session_hub/internal/provider"
	"cc_session_hub/internal/server"
)

type serveOptions struct {
	addr string
}

// NewServeCommand creates the serve command
func NewServeCommand(root *rootOptions) *cobra.Command {
	opts := &serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve histories, chat and live sync over HTTP",
		Long: `Serve the history catalog, chat execution and live session sync over HTTP.
The server shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), root, opts)
		},
	}
	cmd.Flags().StringVar(&opts.addr, "addr", "", "Listen address (default from config server.addr, PORT overrides the port)")
	return cmd
}

func runServe(ctx context.Context, root *rootOptions, opts *serveOptions) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := root.setup(ctx, logToStderr)
	if err != nil {
		return err
	}
	defer e.close()

	providers := provider.DetectAll(ctx, e.cfg.ProviderPaths(), e.log)
	srv := server.New(server.App{
		Config:    e.cfg,
		Log:       e.log,
		Catalog:   e.catalog,
		Manager:   manager.New(e.log),
		Providers: providers,
	})

	addr := opts.addr
	if addr == "" {
		addr = e.cfg.ServerAddr()
	}
	e.log.Info("Starting server", zap.String("addr", addr))
	if err := srv.Serve(ctx, addr); err != nil {
		e.log.Error("Server stopped", zap.Error(err))
		return err
	}
	e.log.Info("Server stopped")
	return nil
}
