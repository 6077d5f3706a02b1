package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/core/ports/driving"
	"github.com/custodia-labs/recall/internal/kmeans"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure ChunkService implements the interface.
var _ driving.ChunkSearchService = (*ChunkService)(nil)

// ChunkService splits notes into chunks and searches them.
// Chunks and their vectors are replaced as a whole by Build.
type ChunkService struct {
	chunker driven.Chunker
	index   *EmbeddingIndex
	notes   noteView

	mu      sync.RWMutex
	chunks  []domain.Chunk
	vectors [][]float32
}

// NewChunkService creates a chunk service.
func NewChunkService(chunker driven.Chunker, index *EmbeddingIndex, notes noteView) *ChunkService {
	return &ChunkService{
		chunker: chunker,
		index:   index,
		notes:   notes,
	}
}

// Build chunks every note and embeds the chunks, reporting whether the
// embeddings came from the cache. Chunks are kept without vectors when
// no embedder is configured.
func (s *ChunkService) Build(ctx context.Context, notes []domain.Note, force bool) (bool, error) {
	logger.Section("Chunking")
	logger.Debug("Strategy: %s", s.chunker.Name())

	var chunks []domain.Chunk
	for i, n := range notes {
		chunks = append(chunks, s.chunker.Chunk(n)...)
		logger.Progress("chunking", i+1, len(notes))
	}
	logger.Info("Created %d chunks from %d notes", len(chunks), len(notes))

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	var vectors [][]float32
	fromCache := false
	set, cached, err := s.index.LoadOrCompute(ctx, s.cacheKey(), texts, force)
	switch {
	case errors.Is(err, domain.ErrEmbeddingUnavailable):
		logger.Warn("Embeddings unavailable, chunk search disabled")
	case err != nil:
		return false, fmt.Errorf("chunk embeddings: %w", err)
	default:
		vectors = set.Vectors
		fromCache = cached
	}

	s.mu.Lock()
	s.chunks = chunks
	s.vectors = vectors
	s.mu.Unlock()
	return fromCache, nil
}

// cacheKey separates chunk caches per strategy.
func (s *ChunkService) cacheKey() string {
	return "chunks_" + s.chunker.Name()
}

// Strategy names the chunker in use.
func (s *ChunkService) Strategy() string {
	return s.chunker.Name()
}

// Chunks returns the current chunks.
func (s *ChunkService) Chunks() []domain.Chunk {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks
}

// Snapshot returns the chunks and their index-aligned vectors.
func (s *ChunkService) Snapshot() ([]domain.Chunk, [][]float32) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chunks, s.vectors
}

// Search returns visible notes ranked by their best matching chunk.
func (s *ChunkService) Search(ctx context.Context, query string, maxResults int) ([]domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	s.mu.RLock()
	chunks, vectors := s.chunks, s.vectors
	s.mu.RUnlock()
	if query == "" || len(vectors) == 0 || len(vectors) != len(chunks) {
		return []domain.SearchResult{}, nil
	}
	if maxResults <= 0 {
		maxResults = DefaultScorerConfig().MaxResults
	}

	qvec, err := s.index.EncodeQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("chunk search: %w", err)
	}

	best := make(map[string]int)
	scores := make([]float64, len(chunks))
	for i, v := range vectors {
		scores[i] = kmeans.Cosine(qvec, v)
		if scores[i] < 0 {
			continue
		}
		id := chunks[i].NoteID
		if j, ok := best[id]; !ok || scores[i] > scores[j] {
			best[id] = i
		}
	}

	results := make([]domain.SearchResult, 0, len(best))
	for id, i := range best {
		if !s.notes.Visible(id) {
			continue
		}
		note, err := s.notes.Get(id)
		if err != nil {
			continue
		}
		results = append(results, domain.SearchResult{
			Note:          note,
			Score:         scores[i],
			SemanticScore: scores[i],
			MatchedChunk:  &domain.ChunkMatch{Chunk: chunks[i], Score: scores[i]},
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Note.ID < results[j].Note.ID
	})
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
