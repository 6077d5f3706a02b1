package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// IndexConfig selects the optional parts of an index build.
type IndexConfig struct {
	// Images embeds attached images for image-aware search.
	Images bool

	// Graph builds the relation graph.
	Graph bool

	// Tree builds the summary tree.
	Tree bool
}

// IndexService loads the corpus and rebuilds every retrieval index.
type IndexService struct {
	notes  *NoteService
	search *SearchService
	chunks *ChunkService
	vector driven.VectorStore
	graph  driven.GraphIndex
	tree   driven.TreeIndex
	cfg    IndexConfig
}

// NewIndexService creates an index service.
// The vector, graph and tree parameters are optional (can be nil).
func NewIndexService(
	notes *NoteService,
	search *SearchService,
	chunks *ChunkService,
	vector driven.VectorStore,
	graph driven.GraphIndex,
	tree driven.TreeIndex,
	cfg IndexConfig,
) *IndexService {
	return &IndexService{
		notes:  notes,
		search: search,
		chunks: chunks,
		vector: vector,
		graph:  graph,
		tree:   tree,
		cfg:    cfg,
	}
}

// Build loads notes and rebuilds the indexes. Without force, cached
// embeddings and a persisted graph or tree are reused.
//
// Indexes cover every note, excluded or not; exclusion is applied when
// results are read so that tag changes never invalidate the cache.
func (s *IndexService) Build(ctx context.Context, force bool) (*driving.IndexReport, error) {
	logger.Section("Building Index")

	if err := s.notes.Load(ctx); err != nil {
		return nil, fmt.Errorf("load notes: %w", err)
	}
	all := s.notes.All()
	report := &driving.IndexReport{Notes: len(all)}
	logger.Info("Loaded %d notes", len(all))

	fromCache, err := s.search.Index(ctx, all, force)
	if err != nil {
		return nil, fmt.Errorf("index notes: %w", err)
	}
	report.NotesFromCache = fromCache

	if s.cfg.Images {
		n, err := s.search.IndexImages(ctx)
		switch {
		case errors.Is(err, domain.ErrImageSearchUnavailable):
			logger.Warn("Image indexing skipped: %v", err)
		case err != nil:
			return nil, fmt.Errorf("index images: %w", err)
		}
		report.ImagesIndexed = n
	}

	if s.chunks != nil {
		fromCache, err := s.chunks.Build(ctx, all, force)
		if err != nil {
			return nil, fmt.Errorf("index chunks: %w", err)
		}
		report.ChunksFromCache = fromCache
		report.Chunks = len(s.chunks.Chunks())
		report.ChunkingStrategy = s.chunks.Strategy()
	}

	if err := s.replaceVectors(ctx); err != nil {
		return nil, err
	}

	if s.cfg.Graph && s.graph != nil {
		ok, err := s.buildGraph(ctx, all, force)
		if err != nil {
			logger.Warn("Relation graph unavailable: %v", err)
		}
		report.Relations = ok
	}

	if s.cfg.Tree && s.tree != nil {
		ok, err := s.buildTree(ctx, force)
		if err != nil {
			logger.Warn("Summary tree unavailable: %v", err)
		}
		report.Tree = ok
	}

	logger.Info("Index ready: %d notes, %d chunks", report.Notes, report.Chunks)
	return report, nil
}

// replaceVectors mirrors the current embeddings into the vector store.
func (s *IndexService) replaceVectors(ctx context.Context) error {
	if s.vector == nil {
		return nil
	}
	notes, noteVectors := s.search.Snapshot()
	if noteVectors == nil {
		logger.Debug("No note embeddings, vector store left empty")
		return nil
	}

	var chunks []domain.Chunk
	var chunkVectors [][]float32
	if s.chunks != nil {
		chunks, chunkVectors = s.chunks.Snapshot()
		if chunkVectors == nil {
			chunks = nil
		}
	}

	if err := s.vector.Replace(ctx, notes, noteVectors, chunks, chunkVectors); err != nil {
		return fmt.Errorf("replace vector store: %w", err)
	}
	return nil
}

func (s *IndexService) buildGraph(ctx context.Context, notes []domain.Note, force bool) (bool, error) {
	if !force {
		loaded, err := s.graph.Load(ctx)
		if err != nil {
			logger.Warn("Failed to load relation graph, rebuilding: %v", err)
		}
		if loaded {
			logger.Debug("Relation graph loaded from store")
			return true, nil
		}
	}
	if err := s.graph.Build(ctx, notes); err != nil {
		return false, err
	}
	return true, nil
}

func (s *IndexService) buildTree(ctx context.Context, force bool) (bool, error) {
	if !force {
		loaded, err := s.tree.Load(ctx)
		if err != nil {
			logger.Warn("Failed to load summary tree, rebuilding: %v", err)
		}
		if loaded {
			logger.Debug("Summary tree loaded from store")
			return true, nil
		}
	}
	if s.chunks == nil {
		return false, errors.New("summary tree needs chunks")
	}
	chunks, vectors := s.chunks.Snapshot()
	if vectors == nil {
		return false, domain.ErrEmbeddingUnavailable
	}
	if err := s.tree.Build(ctx, chunks, vectors); err != nil {
		return false, err
	}
	return true, nil
}
