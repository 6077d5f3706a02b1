package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/ports/driving"
)

var (
	indexForce bool
	indexWatch bool
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build the retrieval indexes",
	Long: `Loads notes from the configured source and builds the note and chunk
embeddings, the vector store and, when enabled, the relation graph and the
summary tree.

Embeddings are cached by content; unchanged notes are not re-embedded.
Use --force to ignore caches and rebuild everything.
Use --watch to rebuild whenever the notes change (Keep and markdown sources).`,
	Args: cobra.NoArgs,
	RunE: runIndex,
}

func init() {
	indexCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "ignore caches and rebuild every index")
	indexCmd.Flags().BoolVarP(&indexWatch, "watch", "w", false, "rebuild when notes change")
	rootCmd.AddCommand(indexCmd)
}

func runIndex(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	ctx := commandContext(cmd)
	cmd.Println("Indexing notes...")
	if err := buildAndReport(ctx, cmd, indexService, indexForce); err != nil {
		return err
	}

	if !indexWatch {
		return nil
	}
	if noteWatcher == nil {
		return errors.New("the configured note source cannot be watched")
	}

	cmd.Println("Watching for changes (Ctrl+C to stop)...")
	changes := make(chan struct{}, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- noteWatcher.Watch(ctx, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watch notes: %w", err)
			}
			return nil
		case <-changes:
			cmd.Println("Notes changed, re-indexing...")
			if err := buildAndReport(ctx, cmd, indexService, false); err != nil {
				// Keep watching; the next change may fix the notes.
				cmd.PrintErrf("Index failed: %v\n", err)
			}
		}
	}
}

// buildAndReport runs one index build and prints its report.
func buildAndReport(ctx context.Context, cmd *cobra.Command, svc driving.IndexService, force bool) error {
	report, err := svc.Build(ctx, force)
	if err != nil {
		return fmt.Errorf("index failed: %w", err)
	}

	indexMu.Lock()
	indexReady = true
	indexMu.Unlock()

	cmd.Printf("Indexed %d notes%s\n", report.Notes, cachedSuffix(report.NotesFromCache))
	if report.ChunkingStrategy != "" {
		cmd.Printf("  Chunks:    %d (%s)%s\n", report.Chunks, report.ChunkingStrategy, cachedSuffix(report.ChunksFromCache))
	}
	if report.ImagesIndexed > 0 {
		cmd.Printf("  Images:    %d\n", report.ImagesIndexed)
	}
	cmd.Printf("  Graph:     %s\n", readyLabel(report.Relations))
	cmd.Printf("  Tree:      %s\n", readyLabel(report.Tree))
	return nil
}

func cachedSuffix(cached bool) string {
	if cached {
		return " (from cache)"
	}
	return ""
}

func readyLabel(ok bool) string {
	if ok {
		return "ready"
	}
	return "not built"
}
