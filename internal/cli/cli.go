// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/toolshop-ai/toolshop/internal/config"
	"github.com/toolshop-ai/toolshop/internal/logging"
	"github.com/toolshop-ai/toolshop/internal/session"
	"github.com/toolshop-ai/toolshop/internal/tools"
	"github.com/toolshop-ai/toolshop/internal/ui"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// APPLICATION STATE
// =============================================================================

// app holds global flags and what PersistentPreRunE builds from them.
type app struct {
	configPath string
	logPreset  string
	logLevel   string
	yes        bool
	sessionID  string

	cfg    *config.Config
	logger *zap.Logger

	// fs is the filesystem handed to the file tools. Nil uses the OS.
	fs afero.Fs

	// confirm overrides the interactive prompt, for tests.
	confirm tools.PermissionCallback
}

// NewRootCommand builds the toolshop command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&app{})
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "toolshop",
		Short:         "Run LLM tools from the terminal, over HTTP or over MCP",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}
	root.SetVersionTemplate("toolshop version {{.Version}}\n")

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default ~/.toolshop/config.toml)")
	flags.StringVar(&a.logPreset, "log-preset", "", "log format: minimal_verbose or classic_verbose")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVarP(&a.yes, "yes", "y", false, "approve every tool call that requires confirmation")
	flags.StringVar(&a.sessionID, "session", "", "session ID to resume and persist")

	root.AddCommand(
		newToolsCommand(a),
		newDescribeCommand(a),
		newRunCommand(a),
		newReplCommand(a),
		newServeCommand(a),
		newMCPCommand(a),
		newSessionCommand(a),
		newConfigCommand(a),
		newVersionCommand(),
	)
	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, ui.ErrorLine(err.Error()))
		return 1
	}
	return 0
}

// init loads configuration and builds the logger.
func (a *app) init() error {
	var err error
	if a.configPath != "" {
		a.cfg, err = config.LoadFromPath(a.configPath)
	} else {
		a.cfg, err = config.Load()
	}
	if err != nil {
		return err
	}

	if a.logPreset != "" {
		a.cfg.Logging.Preset = a.logPreset
	}
	if a.logLevel != "" {
		a.cfg.Logging.Level = a.logLevel
	}

	a.logger, err = logging.New(logging.Options{
		Preset: logging.Preset(a.cfg.Logging.Preset),
		Level:  a.cfg.Logging.Level,
		File:   config.ExpandPath(a.cfg.Logging.File),
	})
	if err != nil {
		return err
	}

	ui.ApplyColorProfile()
	return nil
}

// =============================================================================
// SESSION AND TOOLSET WIRING
// =============================================================================

// openSession opens the session named by --session. Without an ID the
// session lives in memory only.
func (a *app) openSession() (*session.Manager, error) {
	cfg := session.Config{
		ID:                   a.sessionID,
		WatchExternalChanges: a.cfg.Session.WatchExternalChanges,
		IdleTimeout:          time.Duration(a.cfg.Session.IdleTimeoutMinutes) * time.Minute,
	}
	if a.sessionID != "" {
		cfg.StorePath = config.ExpandPath(a.cfg.Session.StorePath)
	}
	return session.NewManager(cfg, a.logger)
}

// openStore opens the session store for the session subcommands.
func (a *app) openStore() (*session.Store, error) {
	if a.cfg.Session.StorePath == "" {
		return nil, errors.New("session persistence is disabled (session.store_path is empty)")
	}
	return session.OpenStore(config.ExpandPath(a.cfg.Session.StorePath))
}

// permission returns the confirmation callback. Interactive surfaces prompt
// on the terminal; serve and mcp only honour --yes.
func (a *app) permission(interactive bool) tools.PermissionCallback {
	switch {
	case a.confirm != nil:
		return a.confirm
	case a.yes:
		return tools.AllowAllCallback()
	case interactive:
		return ui.PromptCallback(false, a.logger)
	default:
		return tools.DenyAllCallback()
	}
}

// newToolset builds the configured tools over state.
func (a *app) newToolset(state *session.State, interactive bool) (*tools.Toolset, error) {
	opts := []tools.ToolsetOption{
		tools.WithToolsetLogger(a.logger),
		tools.WithConfirmation(a.permission(interactive)),
	}
	if a.fs != nil {
		opts = append(opts, tools.WithToolsetFs(a.fs))
	}
	return tools.NewToolset(a.cfg, state, opts...)
}

// closeSession saves and closes m, logging instead of failing.
func (a *app) closeSession(m *session.Manager) {
	if err := m.Close(); err != nil {
		a.logger.Warn("failed to close session", zap.Error(err))
	}
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

func printLine(w io.Writer, s string) {
	fmt.Fprintln(w, s)
}
