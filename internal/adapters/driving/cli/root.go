// Package cli provides the cobra command tree of the recall binary.
package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// version is set by SetVersion from build flags.
var version = "dev"

var verbose bool

// Services injected by main. Any of them may be nil; commands that need a
// missing service fail with a "not configured" error.
var (
	indexService       driving.IndexService
	searchService      driving.SearchService
	chunkSearchService driving.ChunkSearchService
	clusterService     driving.ClusterService
	retrievalService   driving.RetrievalService
	chatService        driving.ChatService
	sessionService     driving.SessionService
	noteService        driving.NoteService
	settingsService    driving.SettingsService
	noteWatcher        driven.NoteWatcher
)

// indexReady records that the indexes were built in this process.
var (
	indexMu    sync.Mutex
	indexReady bool
)

// Services holds the driving ports used by the commands.
type Services struct {
	Index       driving.IndexService
	Search      driving.SearchService
	ChunkSearch driving.ChunkSearchService
	Clusters    driving.ClusterService
	Retrieval   driving.RetrievalService
	Chat        driving.ChatService
	Sessions    driving.SessionService
	Notes       driving.NoteService
	Settings    driving.SettingsService

	// Watcher reports note changes for "index --watch". Optional.
	Watcher driven.NoteWatcher
}

var rootCmd = &cobra.Command{
	Use:   "recall",
	Short: "Chat with your notes",
	Long: `Recall indexes personal notes (Google Keep exports, markdown folders or
Notion) and answers questions about them with citations back to the notes.

Run 'recall settings' to choose a note source and AI providers, then
'recall index' to build the indexes.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "print progress and diagnostics to stderr")
}

// SetServices injects the services used by the commands.
func SetServices(s Services) {
	indexService = s.Index
	searchService = s.Search
	chunkSearchService = s.ChunkSearch
	clusterService = s.Clusters
	retrievalService = s.Retrieval
	chatService = s.Chat
	sessionService = s.Sessions
	noteService = s.Notes
	settingsService = s.Settings
	noteWatcher = s.Watcher

	indexMu.Lock()
	indexReady = false
	indexMu.Unlock()
}

// SetVersion sets the version printed by "recall version".
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// ensureIndexed loads notes and the indexes before a read command.
// Cached embeddings and persisted graph and tree make this cheap after
// the first "recall index".
func ensureIndexed(ctx context.Context) error {
	indexMu.Lock()
	defer indexMu.Unlock()
	if indexReady {
		return nil
	}
	if indexService == nil {
		return errors.New("index service not configured")
	}
	if _, err := indexService.Build(ctx, false); err != nil {
		return fmt.Errorf("load index: %w", err)
	}
	indexReady = true
	return nil
}

// commandContext returns the command context or a background context.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
