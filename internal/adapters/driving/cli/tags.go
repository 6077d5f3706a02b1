package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var tagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "Manage note tags",
	Long: `Assign one tag per note and hide tags from search and chat.

Tags are stored locally and survive re-indexing. Notes whose tag is
excluded are hidden from every search, cluster and chat context.`,
	RunE: runTagsList,
}

var tagsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tags with note counts",
	Args:  cobra.NoArgs,
	RunE:  runTagsList,
}

var tagsSetCmd = &cobra.Command{
	Use:   "set [tag] [note-id...]",
	Short: "Tag notes",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runTagsSet,
}

var tagsClearCmd = &cobra.Command{
	Use:   "clear [note-id]",
	Short: "Remove the tag of a note",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagsClear,
}

var tagsDeleteCmd = &cobra.Command{
	Use:   "delete [tag]",
	Short: "Remove a tag from every note",
	Args:  cobra.ExactArgs(1),
	RunE:  runTagsDelete,
}

var tagsExcludeCmd = &cobra.Command{
	Use:   "exclude [tag...]",
	Short: "Set the excluded tags",
	Long:  `Replaces the excluded tag set. Run without arguments to clear it.`,
	RunE:  runTagsExclude,
}

func init() {
	tagsCmd.AddCommand(tagsListCmd)
	tagsCmd.AddCommand(tagsSetCmd)
	tagsCmd.AddCommand(tagsClearCmd)
	tagsCmd.AddCommand(tagsDeleteCmd)
	tagsCmd.AddCommand(tagsExcludeCmd)
	rootCmd.AddCommand(tagsCmd)
}

func runTagsList(cmd *cobra.Command, _ []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}
	if err := ensureIndexed(commandContext(cmd)); err != nil {
		return err
	}

	tags := noteService.Tags()
	excluded := noteService.ExcludedTags()
	if len(tags) == 0 {
		cmd.Println("No tags.")
	}
	hidden := make(map[string]bool, len(excluded))
	for _, t := range excluded {
		hidden[t] = true
	}
	for _, tc := range tags {
		suffix := ""
		if hidden[tc.Tag] {
			suffix = " (excluded)"
		}
		cmd.Printf("  %-20s %d%s\n", tc.Tag, tc.Count, suffix)
	}
	if len(excluded) > 0 {
		cmd.Printf("\nExcluded: %s\n", strings.Join(excluded, ", "))
	}
	return nil
}

func runTagsSet(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}
	ctx := commandContext(cmd)
	if err := ensureIndexed(ctx); err != nil {
		return err
	}

	tag, ids := args[0], args[1:]
	if err := noteService.TagNotes(ctx, ids, tag); err != nil {
		return fmt.Errorf("failed to tag notes: %w", err)
	}
	cmd.Printf("Tagged %d notes as %q.\n", len(ids), tag)
	return nil
}

func runTagsClear(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}
	ctx := commandContext(cmd)
	if err := ensureIndexed(ctx); err != nil {
		return err
	}

	if err := noteService.RemoveTag(ctx, args[0]); err != nil {
		return fmt.Errorf("failed to clear tag: %w", err)
	}
	cmd.Printf("Cleared tag of %s.\n", args[0])
	return nil
}

func runTagsDelete(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}
	ctx := commandContext(cmd)
	if err := ensureIndexed(ctx); err != nil {
		return err
	}

	n, err := noteService.RemoveTagFromAll(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	cmd.Printf("Removed %q from %d notes.\n", args[0], n)
	return nil
}

func runTagsExclude(cmd *cobra.Command, args []string) error {
	if noteService == nil {
		return errors.New("note service not configured")
	}
	ctx := commandContext(cmd)
	if err := ensureIndexed(ctx); err != nil {
		return err
	}

	if err := noteService.SetExcludedTags(ctx, args); err != nil {
		return fmt.Errorf("failed to set excluded tags: %w", err)
	}
	if len(args) == 0 {
		cmd.Println("No tags excluded.")
		return nil
	}
	cmd.Printf("Excluded tags: %s\n", strings.Join(args, ", "))
	return nil
}
