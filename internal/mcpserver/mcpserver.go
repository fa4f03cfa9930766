// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mcpserver serves the tool registry over the Model Context Protocol
// on stdio. Every registered tool becomes an MCP tool with the same schema,
// and calls run through the shared Executor.
package mcpserver

import (
	"context"
	"io"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/toolshop-ai/toolshop/internal/logging"
	"github.com/toolshop-ai/toolshop/internal/session"
	"github.com/toolshop-ai/toolshop/internal/tools"
)

// ServerName is reported to MCP clients during initialization.
const ServerName = "toolshop"

// Server wraps an MCP server exposing a Toolset.
type Server struct {
	mcp     *server.MCPServer
	toolset *tools.Toolset
	session *session.Manager
	logger  *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSession saves the session after every tool call.
func WithSession(m *session.Manager) Option {
	return func(s *Server) { s.session = m }
}

// New builds an MCP server for ts and registers every tool.
func New(ts *tools.Toolset, version string, opts ...Option) *Server {
	s := &Server{
		toolset: ts,
		logger:  logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(ServerName, version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, tool := range ts.Registry.All() {
		s.mcp.AddTool(ToMCPTool(tool), s.handler(tool.Name))
	}
	return s
}

// MCP returns the underlying server.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// ServeStdio serves JSON-RPC on in and out until ctx is cancelled or in is
// closed.
func (s *Server) ServeStdio(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))

	s.logger.Info("MCP server starting on stdio", zap.Int("tools", s.toolset.Registry.Len()))
	return stdio.Listen(ctx, in, out)
}

// handler runs one tool through the executor. Tool failures are returned
// as error results so the client sees the message.
func (s *Server) handler(name string) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		params := request.GetArguments()
		if params == nil {
			params = map[string]interface{}{}
		}

		if s.session != nil {
			if _, err := s.session.ExpireIfIdle(); err != nil {
				s.logger.Warn("failed to reset idle session", zap.Error(err))
			}
		}
		res := s.toolset.Executor.Execute(ctx, tools.ToolCall{Name: name, Params: params})
		if s.session != nil {
			if err := s.session.Touch(); err != nil {
				s.logger.Warn("failed to save session", zap.Error(err))
			}
		}

		if !res.Success {
			return mcp.NewToolResultError(res.Error), nil
		}
		return mcp.NewToolResultText(res.Output), nil
	}
}

// =============================================================================
// SCHEMA CONVERSION
// =============================================================================

// ToMCPTool converts a tool definition to an MCP tool with a JSON Schema
// input.
func ToMCPTool(t *tools.Tool) mcp.Tool {
	properties := make(map[string]interface{}, len(t.Schema.Parameters))
	var required []string

	for _, p := range t.Schema.Parameters {
		prop := map[string]interface{}{
			"type":        jsonSchemaType(p.Type),
			"description": p.Description,
		}
		if p.Type == "array" && p.Items != "" {
			prop["items"] = map[string]interface{}{"type": jsonSchemaType(p.Items)}
		}
		if p.Default != nil {
			prop["default"] = p.Default
		}
		properties[p.Name] = prop
		if p.Required {
			required = append(required, p.Name)
		}
	}

	return mcp.Tool{
		Name:        t.Name,
		Description: t.Documentation(),
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: properties,
			Required:   required,
		},
	}
}

func jsonSchemaType(t string) string {
	switch t {
	case "string", "integer", "number", "boolean", "array", "object":
		return t
	default:
		return "string"
	}
}
