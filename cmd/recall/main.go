// Command recall indexes personal notes and answers questions about them
// with citations.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/recall/internal/adapters/driven/ai"
	"github.com/custodia-labs/recall/internal/adapters/driven/config/file"
	"github.com/custodia-labs/recall/internal/adapters/driven/graph"
	"github.com/custodia-labs/recall/internal/adapters/driven/raptor"
	"github.com/custodia-labs/recall/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/recall/internal/adapters/driven/vector/chromem"
	"github.com/custodia-labs/recall/internal/adapters/driving/cli"
	"github.com/custodia-labs/recall/internal/connectors/keep"
	"github.com/custodia-labs/recall/internal/connectors/markdown"
	"github.com/custodia-labs/recall/internal/connectors/notion"
	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/services"
	"github.com/custodia-labs/recall/internal/postprocessors/chunker"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// Environment variables that supply secrets when the config file has none.
//
//nolint:gosec // G101: variable names, not credentials.
var secretEnv = map[string]string{
	"RECALL_LLM_API_KEY":       "llm.api_key",
	"RECALL_EMBEDDING_API_KEY": "embedding.api_key",
	"RECALL_NOTION_TOKEN":      "notes.notion_token",
}

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	app, err := wire()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	defer app.close()

	cli.SetServices(app.services)
	cli.SetVersion(version)
	return cli.Execute(ctx)
}

// app holds the wired services and the resources to release on exit.
type app struct {
	services cli.Services
	closers  []func()
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// wire builds every adapter and service from the stored settings.
// Missing AI providers or note sources leave the dependent features
// disabled rather than failing startup, so "recall settings" always runs.
func wire() (*app, error) {
	a := &app{}

	configStore, err := file.NewConfigStore("")
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	for env, key := range secretEnv {
		if v := os.Getenv(env); v != "" {
			configStore.Overlay(key, v)
		}
	}

	settingsService := services.NewSettingsService(configStore, ai.NewConfigValidator())
	settings, err := settingsService.Get()
	if err != nil {
		return nil, fmt.Errorf("load settings: %w", err)
	}

	aiServices := ai.Initialise(*settings)
	a.closers = append(a.closers, aiServices.Close)

	store, err := sqlite.NewStore("")
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.closers = append(a.closers, func() { _ = store.Close() })

	prompts, err := file.NewPromptStore("")
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open prompts: %w", err)
	}

	source, watcher, err := newNoteSource(settings.Notes)
	if err != nil {
		a.close()
		return nil, err
	}

	strategy, err := chunker.New(string(settings.Retrieval.ChunkingStrategy))
	if err != nil {
		a.close()
		return nil, fmt.Errorf("create chunker: %w", err)
	}

	vectorPath, err := chromem.DefaultPath()
	if err != nil {
		a.close()
		return nil, err
	}
	vectors, err := chromem.NewStore(chromem.Config{Path: vectorPath, Embedder: aiServices.EmbeddingService})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("open vector store: %w", err)
	}
	a.closers = append(a.closers, func() { _ = vectors.Close() })

	var graphIndex driven.GraphIndex
	if settings.Retrieval.EnableGraph {
		graphIndex = graph.NewIndex(graph.Config{
			LLM:      aiServices.LLMService,
			Embedder: aiServices.EmbeddingService,
			Store:    store.GraphStore(),
			Prompts:  prompts,
		})
	}

	var treeIndex driven.TreeIndex
	if settings.Retrieval.EnableTree {
		treeStore, err := raptor.NewFileStore("")
		if err != nil {
			a.close()
			return nil, fmt.Errorf("open tree store: %w", err)
		}
		treeIndex = raptor.NewTree(raptor.Config{
			LLM:      aiServices.LLMService,
			Embedder: aiServices.EmbeddingService,
			Store:    treeStore,
			Prompts:  prompts,
		})
	}

	var images driven.ImageEmbedder
	if settings.Image.Enabled {
		images = aiServices.ImageEmbedder
	}

	notes := services.NewNoteService(source, store.TagStore())
	embeddings := services.NewEmbeddingIndex(aiServices.EmbeddingService, store.EmbeddingCache())
	search := services.NewSearchService(notes, embeddings, images, services.ScorerConfig{
		MaxResults:        settings.Retrieval.MaxResults,
		SemanticThreshold: settings.Retrieval.SearchThreshold,
		ImageThreshold:    settings.Retrieval.ImageThreshold,
		ImageWeight:       settings.Retrieval.ImageWeight,
	})
	chunks := services.NewChunkService(strategy, embeddings, notes)
	clusters := services.NewClusterService(search, notes, settings.Retrieval.DefaultClusters)

	router := services.NewRouter(services.RouterBackends{
		Vector: vectors,
		Chunks: chunks,
		Search: search,
		Graph:  graphIndex,
		Tree:   treeIndex,
		Notes:  notes,
	})

	contexts := services.NewContextManager(search, chunks, aiServices.LLMService, services.ContextConfig{
		ContextNotes:           settings.Chat.ContextNotes,
		MaxRecentMessages:      settings.Chat.MaxRecentMessages,
		SummarizationThreshold: settings.Chat.SummarizationThreshold,
	})
	contexts.SetPromptStore(prompts)

	sessions := services.NewSessionService(store.SessionStore())
	chat := services.NewChatService(router, contexts, aiServices.LLMService, search, services.ChatConfig{
		ContextNotes: settings.Chat.ContextNotes,
	})
	chat.SetSessionService(sessions)
	chat.SetPromptStore(prompts)

	index := services.NewIndexService(notes, search, chunks, vectors, graphIndex, treeIndex, services.IndexConfig{
		Images: images != nil,
		Graph:  graphIndex != nil,
		Tree:   treeIndex != nil,
	})

	a.services = cli.Services{
		Index:       index,
		Search:      search,
		ChunkSearch: chunks,
		Clusters:    clusters,
		Retrieval:   router,
		Chat:        chat,
		Sessions:    sessions,
		Notes:       notes,
		Settings:    settingsService,
		Watcher:     watcher,
	}
	return a, nil
}

// newNoteSource builds the configured connector. Both results are nil when
// no source is configured yet; the watcher is nil for sources that cannot
// report changes.
func newNoteSource(cfg domain.NotesSettings) (driven.NoteSource, driven.NoteWatcher, error) {
	if !cfg.IsConfigured() {
		return nil, nil, nil
	}

	switch cfg.Source {
	case domain.NoteSourceKeep:
		src := keep.New(cfg.Path)
		return src, src, nil
	case domain.NoteSourceMarkdown:
		src := markdown.New(cfg.Path)
		return src, src, nil
	case domain.NoteSourceNotion:
		src, err := notion.New(notion.Config{Token: cfg.NotionToken})
		if err != nil {
			return nil, nil, fmt.Errorf("create notion source: %w", err)
		}
		return src, nil, nil
	default:
		return nil, nil, fmt.Errorf("note source %q: %w", cfg.Source, domain.ErrUnsupportedType)
	}
}
