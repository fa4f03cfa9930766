// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/toolshop-ai/toolshop/internal/session"
	"github.com/toolshop-ai/toolshop/internal/toolerr"
	"github.com/toolshop-ai/toolshop/internal/ui"
	"github.com/toolshop-ai/toolshop/internal/ui/styles"
)

func newSessionCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Inspect or reset stored sessions",
	}
	cmd.AddCommand(newSessionShowCommand(a), newSessionResetCommand(a))
	return cmd
}

func newSessionShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "List stored sessions, or show one",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := a.sessionID
			if len(args) == 1 {
				id = args[0]
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()
			out := cmd.OutOrStdout()

			if id == "" {
				sums, err := store.List()
				if err != nil {
					return err
				}
				if len(sums) == 0 {
					printLine(out, ui.InfoLine("no stored sessions"))
					return nil
				}
				printLine(out, sessionTable(sums))
				return nil
			}

			st, err := store.Load(id)
			if err != nil {
				return err
			}
			printState(out, st)
			return nil
		},
	}
}

func newSessionResetCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "reset [id]",
		Short: "Forget every read and write record of a session",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := a.sessionID
			if len(args) == 1 {
				id = args[0]
			}
			if id == "" {
				return toolerr.New(toolerr.ErrInvalidArgument, "session reset", "", "no session given, pass an ID or --session")
			}

			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Delete(id); err != nil && !errors.Is(err, toolerr.ErrNotFound) {
				return err
			}
			printLine(cmd.OutOrStdout(), ui.SuccessLine("session "+id+" reset"))
			return nil
		},
	}
}

// =============================================================================
// RENDERING
// =============================================================================

func sessionTable(sums []session.Summary) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(styles.TextMuted)).
		Headers("SESSION", "PATHS", "UPDATED")
	for _, s := range sums {
		t.Row(s.ID, fmt.Sprint(s.Paths), formatTime(s.UpdatedAt))
	}
	return t.Render()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// printState writes the records of a stored session.
func printState(w io.Writer, st *session.State) {
	printLine(w, styles.Label.Render("Session: ")+styles.Value.Render(st.ID))
	if path := st.ResultToFile(); path != "" {
		printLine(w, styles.Label.Render("Result to file: ")+styles.Value.Render(path))
	}
	paths := st.Tracker().Paths()
	printLine(w, styles.Label.Render("Tracked paths: ")+styles.Value.Render(fmt.Sprint(len(paths))))
	for _, p := range paths {
		printLine(w, "  "+p)
	}
}

// printStatus writes the status of a live session.
func printStatus(w io.Writer, s session.Status) {
	persisted := "no"
	if s.Persistent {
		persisted = "yes"
	}
	printLine(w, styles.Label.Render("Session: ")+styles.Value.Render(s.SessionID))
	printLine(w, styles.Label.Render("Persistent: ")+styles.Value.Render(persisted))
	printLine(w, styles.Label.Render("Duration: ")+styles.Value.Render(session.FormatDuration(s.Duration)))
	printLine(w, styles.Label.Render("Tracked paths: ")+styles.Value.Render(fmt.Sprint(s.TrackedPaths)))
	if s.ResultToFile != "" {
		printLine(w, styles.Label.Render("Result to file: ")+styles.Value.Render(s.ResultToFile))
	}
}
