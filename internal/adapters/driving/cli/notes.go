package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	notesTag   string
	notesLimit int
)

var notesCmd = &cobra.Command{
	Use:   "notes",
	Short: "Browse loaded notes",
	Long:  `List and view notes. Notes carrying an excluded tag are hidden.`,
}

var notesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	Args:  cobra.NoArgs,
	RunE:  runNotesList,
}

var notesShowCmd = &cobra.Command{
	Use:   "show [note-id]",
	Short: "Print a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runNotesShow,
}

func init() {
	notesListCmd.Flags().StringVarP(&notesTag, "tag", "t", "", "only notes with this tag")
	notesListCmd.Flags().IntVarP(&notesLimit, "limit", "n", 0, "maximum number of notes (0 = all)")

	notesCmd.AddCommand(notesListCmd)
	notesCmd.AddCommand(notesShowCmd)
	rootCmd.AddCommand(notesCmd)
}

func runNotesList(cmd *cobra.Command, _ []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}
	if err := ensureIndexed(commandContext(cmd)); err != nil {
		return err
	}

	count := 0
	for _, n := range noteService.Notes() {
		if notesTag != "" && n.Tag != notesTag {
			continue
		}
		if notesLimit > 0 && count == notesLimit {
			break
		}
		count++
		cmd.Printf("  %s\n", n.ID)
		cmd.Printf("    Title: %s\n", noteTitle(n))
		if n.Tag != "" {
			cmd.Printf("    Tag: %s\n", n.Tag)
		}
		cmd.Println()
	}

	if count == 0 {
		cmd.Println("No notes found.")
		return nil
	}
	cmd.Printf("Total: %d notes\n", count)
	return nil
}

func runNotesShow(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}
	if err := ensureIndexed(commandContext(cmd)); err != nil {
		return err
	}

	n, err := noteService.Get(args[0])
	if err != nil {
		return fmt.Errorf("failed to get note: %w", err)
	}

	st := stylesFor(cmd.OutOrStdout())
	cmd.Println(st.Title.Render(noteTitle(n)))
	cmd.Printf("  ID:      %s\n", n.ID)
	cmd.Printf("  Source:  %s\n", n.Source)
	if n.URI != "" {
		cmd.Printf("  URI:     %s\n", n.URI)
	}
	if !n.Created.IsZero() {
		cmd.Printf("  Created: %s\n", n.Created.Format("2006-01-02 15:04:05"))
	}
	if !n.Edited.IsZero() {
		cmd.Printf("  Edited:  %s\n", n.Edited.Format("2006-01-02 15:04:05"))
	}
	if n.Tag != "" {
		cmd.Printf("  Tag:     %s\n", n.Tag)
	}
	if len(n.Labels) > 0 {
		cmd.Printf("  Labels:  %s\n", strings.Join(n.Labels, ", "))
	}
	for _, img := range n.Images {
		cmd.Printf("  Image:   %s\n", img.Path)
	}
	cmd.Println()
	cmd.Println(n.Content)
	return nil
}
