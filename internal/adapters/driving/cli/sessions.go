package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage stored chat sessions",
	RunE:  runSessionsList,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, most recent first",
	Args:  cobra.NoArgs,
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show [session-id]",
	Short: "Print a session transcript",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename [session-id] [title]",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE:  runSessionsRename,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [session-id]",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsRenameCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, _ []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	sessions, err := sessionService.List(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		cmd.Println("No sessions.")
		return nil
	}

	for _, s := range sessions {
		cmd.Printf("  %s\n", s.ID)
		cmd.Printf("    Title:    %s\n", s.Title)
		cmd.Printf("    Messages: %d\n", s.MessageCount)
		cmd.Printf("    Updated:  %s\n", s.UpdatedAt.Format("2006-01-02 15:04"))
		cmd.Println()
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}

	session, err := sessionService.Get(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("failed to get session: %w", err)
	}

	st := stylesFor(cmd.OutOrStdout())
	cmd.Println(st.Title.Render(session.Title))
	cmd.Println()
	for _, m := range session.Messages {
		cmd.Println(st.Citation.Render(m.Role + ">"))
		cmd.Println(m.Content)
		cmd.Println()
	}
	if len(session.RelevantNoteIDs) > 0 {
		cmd.Println(st.Muted.Render("Notes: " + strings.Join(session.RelevantNoteIDs, ", ")))
	}
	return nil
}

func runSessionsRename(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}
	if err := sessionService.Rename(commandContext(cmd), args[0], args[1]); err != nil {
		return fmt.Errorf("failed to rename session: %w", err)
	}
	cmd.Printf("Session %s renamed.\n", args[0])
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	if sessionService == nil {
		return errors.New("session service not configured")
	}
	if err := sessionService.Delete(commandContext(cmd), args[0]); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	cmd.Printf("Session %s deleted.\n", args[0])
	return nil
}
