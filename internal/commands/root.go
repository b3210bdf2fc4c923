// Package commands wires the configuration, logging and session history
// catalog into the cc_session_hub command line.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"cc_session_hub/internal/config"
	"cc_session_hub/internal/devagent"
	"cc_session_hub/internal/history"
)

// rootOptions are the persistent flags shared by every subcommand
type rootOptions struct {
	configPath string
	logLevel   string
	logFile    string
}

// logMode says where a subcommand wants its logs
type logMode int

const (
	logToStderr logMode = iota
	logToFileOnly
)

// env is what a subcommand needs once flags and config are resolved
type env struct {
	cfg     *config.Config
	log     *zap.Logger
	catalog *history.Catalog
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cc_session_hub",
		Short: "Browse and drive Claude Code, OpenCode and Gemini CLI sessions",
		Long: `cc_session_hub reads the conversation histories of the Claude Code,
OpenCode and Gemini CLIs, serves them over HTTP with live updates, and runs
chat turns through whichever CLI is installed.

Without a subcommand it opens the terminal browser when attached to a tty.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return cmd.Help()
			}
			return runBrowse(cmd, opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "Path to config file (default: search standard locations)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error (default from config)")
	flags.StringVar(&opts.logFile, "log-file", "", "Write logs to this file")

	rootCmd.AddCommand(NewServeCommand(opts))
	rootCmd.AddCommand(NewBrowseCommand(opts))
	rootCmd.AddCommand(NewProjectsCommand(opts))
	rootCmd.AddCommand(NewHistoriesCommand(opts))
	rootCmd.AddCommand(NewDetectCommand(opts))
	rootCmd.AddCommand(NewChatCommand(opts))

	return rootCmd
}

// Execute runs the root command
func Execute() {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig reads --config, or the first config found in the standard
// locations
func (o *rootOptions) loadConfig() (*config.Config, error) {
	if o.configPath != "" {
		return config.Load(o.configPath)
	}
	return config.LoadFromDefaultPath()
}

// newLogger builds the process logger. JSON output goes to stderr unless
// stderr is a terminal, where the console encoding is easier to read.
func (o *rootOptions) newLogger(cfg *config.Config, mode logMode) (*zap.Logger, error) {
	levelName := o.logLevel
	if levelName == "" {
		levelName = cfg.Log.Level
	}
	level, err := zap.ParseAtomicLevel(levelName)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", levelName, err)
	}

	file := o.logFile
	if file == "" {
		file = cfg.Log.File
	}
	if file == "" && mode == logToFileOnly {
		return zap.NewNop(), nil
	}

	zcfg := zap.NewProductionConfig()
	zcfg.Level = level
	switch {
	case file != "":
		zcfg.OutputPaths = []string{file}
		zcfg.ErrorOutputPaths = []string{file}
	case term.IsTerminal(int(os.Stderr.Fd())):
		zcfg.Encoding = "console"
		zcfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zcfg.Build()
}

// setup resolves config, logger and catalog for a subcommand
func (o *rootOptions) setup(ctx context.Context, mode logMode) (*env, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, err
	}
	log, err := o.newLogger(cfg, mode)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, log: log, catalog: newCatalog(ctx, cfg, log)}, nil
}

// newCatalog builds the catalog over the local stores and, when enabled,
// the stores mounted into devagent containers
func newCatalog(ctx context.Context, cfg *config.Config, log *zap.Logger) *history.Catalog {
	catalog := history.NewCatalog(log, cfg.Roots())
	catalog.SetIgnore(cfg.Discovery.Ignore)
	catalog.SetLoadOptions(cfg.LoadOptions())

	if !cfg.Devagent.Enabled {
		return catalog
	}
	envs, err := devagent.Discover(ctx, cfg.Devagent.Binary)
	if err != nil {
		log.Warn("Devagent discovery failed", zap.Error(err))
		return catalog
	}
	for _, e := range envs {
		if catalog.AddRoots(e.Roots) {
			log.Info("Added devagent stores",
				zap.String("container", e.ContainerName),
				zap.String("project", e.ProjectPath),
				zap.String("state", e.State))
		}
	}
	return catalog
}

// close flushes buffered log entries
func (e *env) close() {
	_ = e.log.Sync()
}
