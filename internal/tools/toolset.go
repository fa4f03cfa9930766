// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"net/http"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/toolshop-ai/toolshop/internal/config"
	"github.com/toolshop-ai/toolshop/internal/linestore"
	"github.com/toolshop-ai/toolshop/internal/logging"
	"github.com/toolshop-ai/toolshop/internal/session"
	"github.com/toolshop-ai/toolshop/internal/toolerr"
)

// =============================================================================
// TOOLSET
// =============================================================================

// Toolset is a registry of every configured tool plus the executor that
// runs them, all sharing one session state.
type Toolset struct {
	Registry *Registry
	Executor *Executor
	State    *session.State
}

type toolsetOptions struct {
	logger     *zap.Logger
	fs         afero.Fs
	httpClient *http.Client
	schemas    SchemaSourceFactory
	confirm    PermissionCallback
}

// ToolsetOption configures NewToolset.
type ToolsetOption func(*toolsetOptions)

// WithToolsetLogger sets the logger shared by the executor and the tools.
func WithToolsetLogger(l *zap.Logger) ToolsetOption {
	return func(o *toolsetOptions) { o.logger = l }
}

// WithToolsetFs sets the filesystem used by the file tools and the result
// redirect.
func WithToolsetFs(fsys afero.Fs) ToolsetOption {
	return func(o *toolsetOptions) { o.fs = fsys }
}

// WithHTTPClient sets the client used by browse.
func WithHTTPClient(c *http.Client) ToolsetOption {
	return func(o *toolsetOptions) { o.httpClient = c }
}

// WithSchemaSource sets how get_big_query_table_schema reaches BigQuery.
func WithSchemaSource(f SchemaSourceFactory) ToolsetOption {
	return func(o *toolsetOptions) { o.schemas = f }
}

// WithConfirmation sets the callback for tools that require confirmation.
func WithConfirmation(cb PermissionCallback) ToolsetOption {
	return func(o *toolsetOptions) { o.confirm = cb }
}

// NewToolset builds the default tools from cfg, filtered by
// cfg.Tools.Enabled, with per-tool confirmation and return-result overrides
// applied. A nil state builds tools without staleness tracking.
func NewToolset(cfg *config.Config, state *session.State, opts ...ToolsetOption) (*Toolset, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	o := toolsetOptions{logger: logging.Nop(), fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logging.Nop()
	}

	all := defaultTools(cfg, state, o)

	selected := all
	if len(cfg.Tools.Enabled) > 0 {
		byName := make(map[string]*Tool, len(all))
		for _, t := range all {
			byName[t.Name] = t
		}
		selected = make([]*Tool, 0, len(cfg.Tools.Enabled))
		for _, name := range cfg.Tools.Enabled {
			t, ok := byName[name]
			if !ok {
				return nil, toolerr.New(toolerr.ErrInvalidArgument, "toolset", "", "unknown tool in tools.enabled: %s", name)
			}
			selected = append(selected, t)
		}
	}

	registry := NewRegistry()
	for _, t := range selected {
		if v, ok := cfg.Tools.RequireConfirmation[t.Name]; ok {
			t.RequireConfirmation = v
		}
		if v, ok := cfg.Tools.ReturnResult[t.Name]; ok {
			t.ReturnResult = v
		}
		if err := registry.Register(t); err != nil {
			return nil, err
		}
	}

	execOpts := []ExecutorOption{
		WithLogger(o.logger),
		WithState(state),
		WithFs(o.fs),
		WithTimeout(time.Duration(cfg.Tools.TimeoutSeconds) * time.Second),
		WithMaxOutputSize(cfg.Tools.MaxOutputBytes),
		WithRateLimit(cfg.Tools.RateLimitPerSecond, cfg.Tools.RateBurst),
	}
	if o.confirm != nil {
		execOpts = append(execOpts, WithPermissionCallback(o.confirm))
	}

	return &Toolset{
		Registry: registry,
		Executor: NewExecutor(registry, execOpts...),
		State:    state,
	}, nil
}

// defaultTools builds every tool in documentation order.
func defaultTools(cfg *config.Config, state *session.State, o toolsetOptions) []*Tool {
	files, _ := NewFileTools(linestore.New(o.fs), state, o.logger).Tools()

	out := []*Tool{
		ShellTool(&ShellExecutor{
			Shell:           cfg.Shell.Shell,
			WorkDir:         config.ExpandPath(cfg.Shell.WorkDir),
			BlockedCommands: cfg.Shell.BlockedCommands,
			Logger:          o.logger,
		}),
		PythonExecTool(&PythonExecutor{
			Interpreter: cfg.Python.Interpreter,
			Timeout:     time.Duration(cfg.Python.TimeoutSeconds) * time.Second,
			Logger:      o.logger,
		}),
		BrowseTool(&BrowseExecutor{
			Client:          o.httpClient,
			Timeout:         time.Duration(cfg.Web.TimeoutSeconds) * time.Second,
			UserAgent:       cfg.Web.UserAgent,
			MaxBodyBytes:    cfg.Web.MaxBodyBytes,
			ConvertMarkdown: cfg.Web.ConvertMarkdown,
		}),
		SQLTool(&SQLExecutor{
			DefaultDriver: cfg.SQL.DefaultDriver,
			MaxRows:       cfg.SQL.MaxRows,
		}),
		HistogramTool(),
		ResultToFileTool(state),
	}
	out = append(out, files...)
	out = append(out,
		BigQuerySchemaTool(&BigQuerySchemaExecutor{Open: o.schemas}),
		AuthenticateGCPTool(&AuthenticateGCPExecutor{Shell: cfg.Shell.Shell, Logger: o.logger}),
	)
	return out
}
