// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/toolshop-ai/toolshop/internal/mcpserver"
	"github.com/toolshop-ai/toolshop/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tools over HTTP",
		Long: `Serve the tools over HTTP.

Tools that require confirmation are denied unless --yes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}

			mgr, err := a.openSession()
			if err != nil {
				return err
			}
			defer a.closeSession(mgr)

			ts, err := a.newToolset(mgr.State(), false)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.NewServer(addr, ts, server.WithLogger(a.logger), server.WithSession(mgr))
			return srv.Run(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from server.addr)")
	return cmd
}

func newMCPCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the tools over MCP on stdio",
		Long: `Serve the tools as a Model Context Protocol server on stdin and stdout.

Tools that require confirmation are denied unless --yes is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := a.openSession()
			if err != nil {
				return err
			}
			defer a.closeSession(mgr)

			ts, err := a.newToolset(mgr.State(), false)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := mcpserver.New(ts, Version, mcpserver.WithLogger(a.logger), mcpserver.WithSession(mgr))
			return srv.ServeStdio(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}
