// Package chromem provides a persistent vector store for notes and chunks
// backed by chromem-go.
package chromem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// Ensure Store implements the interface.
var _ driven.VectorStore = (*Store)(nil)

// Collection names.
const (
	notesCollection  = "notes"
	chunksCollection = "chunks"
)

// Metadata keys.
const (
	metaNoteID       = "note_id"
	metaNoteTitle    = "note_title"
	metaTag          = "tag"
	metaChunkIndex   = "chunk_index"
	metaStart        = "start"
	metaEnd          = "end"
	metaHeadingTrail = "heading_trail"
)

// MinChunkFetch is the smallest candidate pool fetched for chunk search
// before collapsing to one chunk per note.
const MinChunkFetch = 50

// Config holds configuration for the vector store.
type Config struct {
	// Path is the directory of the persistent database. Empty keeps the
	// database in memory.
	Path string

	// Embedder embeds query text. Without one the store is never ready.
	Embedder driven.EmbeddingService
}

// DefaultPath returns the default database directory (~/.recall/data/vectors).
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home directory: %w", err)
	}
	return filepath.Join(home, ".recall", "data", "vectors"), nil
}

// Store holds one collection of note vectors and one of chunk vectors.
type Store struct {
	mu       sync.RWMutex
	db       *chromem.DB
	embedder driven.EmbeddingService
	notes    *chromem.Collection
	chunks   *chromem.Collection
}

// NewStore opens or creates the database and its collections.
func NewStore(cfg Config) (*Store, error) {
	var db *chromem.DB
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		if err := os.MkdirAll(cfg.Path, 0700); err != nil {
			return nil, fmt.Errorf("create vector directory: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.Path, false)
		if err != nil {
			return nil, fmt.Errorf("open vector database: %w", err)
		}
	}

	s := &Store{db: db, embedder: cfg.Embedder}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

// open binds the collections, creating them when absent.
func (s *Store) open() error {
	notes, err := s.db.GetOrCreateCollection(notesCollection, cosineSpace(), s.embed)
	if err != nil {
		return fmt.Errorf("open %s collection: %w", notesCollection, err)
	}
	chunks, err := s.db.GetOrCreateCollection(chunksCollection, cosineSpace(), s.embed)
	if err != nil {
		return fmt.Errorf("open %s collection: %w", chunksCollection, err)
	}
	s.notes = notes
	s.chunks = chunks
	return nil
}

func cosineSpace() map[string]string {
	return map[string]string{"hnsw:space": "cosine"}
}

// embed is the collection embedding function. Documents always carry
// their own vectors, so it only runs for query text.
func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	if s.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}
	return s.embedder.Embed(ctx, text)
}

// IsReady reports whether an embedder is set and notes are indexed.
func (s *Store) IsReady() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.embedder != nil && s.notes.Count() > 0
}

// Replace drops both collections and adds the given entities.
// Entities whose vector is empty or zero are skipped.
func (s *Store) Replace(
	ctx context.Context,
	notes []domain.Note,
	noteVectors [][]float32,
	chunks []domain.Chunk,
	chunkVectors [][]float32,
) error {
	if len(notes) != len(noteVectors) {
		return fmt.Errorf("%w: %d notes, %d vectors", domain.ErrInvalidInput, len(notes), len(noteVectors))
	}
	if len(chunks) != len(chunkVectors) {
		return fmt.Errorf("%w: %d chunks, %d vectors", domain.ErrInvalidInput, len(chunks), len(chunkVectors))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, name := range []string{notesCollection, chunksCollection} {
		if err := s.db.DeleteCollection(name); err != nil {
			return fmt.Errorf("delete %s collection: %w", name, err)
		}
	}
	if err := s.open(); err != nil {
		return err
	}

	noteDocs := make([]chromem.Document, 0, len(notes))
	for i, n := range notes {
		if !usable(noteVectors[i]) {
			continue
		}
		noteDocs = append(noteDocs, chromem.Document{
			ID:        n.ID,
			Content:   n.Text(),
			Embedding: noteVectors[i],
			Metadata: map[string]string{
				metaNoteID:    n.ID,
				metaNoteTitle: n.Title,
				metaTag:       n.Tag,
			},
		})
	}

	chunkDocs := make([]chromem.Document, 0, len(chunks))
	for i, c := range chunks {
		if !usable(chunkVectors[i]) {
			continue
		}
		trail, err := json.Marshal(c.HeadingTrail)
		if err != nil {
			return fmt.Errorf("marshal heading trail: %w", err)
		}
		chunkDocs = append(chunkDocs, chromem.Document{
			ID:        c.CitationID(),
			Content:   c.Text,
			Embedding: chunkVectors[i],
			Metadata: map[string]string{
				metaNoteID:       c.NoteID,
				metaNoteTitle:    c.Title,
				metaTag:          c.Tag,
				metaChunkIndex:   strconv.Itoa(c.Index),
				metaStart:        strconv.Itoa(c.Start),
				metaEnd:          strconv.Itoa(c.End),
				metaHeadingTrail: string(trail),
			},
		})
	}

	if len(noteDocs) > 0 {
		if err := s.notes.AddDocuments(ctx, noteDocs, 1); err != nil {
			return fmt.Errorf("add note vectors: %w", err)
		}
	}
	if len(chunkDocs) > 0 {
		if err := s.chunks.AddDocuments(ctx, chunkDocs, 1); err != nil {
			return fmt.Errorf("add chunk vectors: %w", err)
		}
	}

	logger.Debug("Vector store replaced: %d notes, %d chunks", len(noteDocs), len(chunkDocs))
	return nil
}

// SearchNotes returns the k notes most similar to query.
func (s *Store) SearchNotes(ctx context.Context, query string, k int) ([]driven.NoteHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.query(ctx, s.notes, query, k)
	if err != nil {
		return nil, err
	}

	hits := make([]driven.NoteHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, driven.NoteHit{
			NoteID:     r.Metadata[metaNoteID],
			NoteTitle:  r.Metadata[metaNoteTitle],
			Text:       r.Content,
			Similarity: float64(r.Similarity),
		})
	}
	return hits, nil
}

// SearchChunks returns up to k chunks most similar to query, keeping only
// the best chunk of each note.
func (s *Store) SearchChunks(ctx context.Context, query string, k int) ([]driven.ChunkHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results, err := s.query(ctx, s.chunks, query, max(k*5, MinChunkFetch))
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	hits := make([]driven.ChunkHit, 0, k)
	for _, r := range results {
		if len(hits) >= k {
			break
		}
		noteID := r.Metadata[metaNoteID]
		if seen[noteID] {
			continue
		}
		seen[noteID] = true

		hit, err := chunkHit(r)
		if err != nil {
			logger.Warn("Skipping chunk %s: %v", r.ID, err)
			continue
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// query embeds query and returns up to n results, most similar first.
func (s *Store) query(ctx context.Context, c *chromem.Collection, query string, n int) ([]chromem.Result, error) {
	if n <= 0 {
		return nil, nil
	}
	n = min(n, c.Count())
	if n == 0 {
		return nil, nil
	}
	results, err := c.Query(ctx, query, n, nil, nil)
	if err != nil {
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("query %s: %w", c.Name, err)
	}
	return results, nil
}

func chunkHit(r chromem.Result) (driven.ChunkHit, error) {
	index, err := strconv.Atoi(r.Metadata[metaChunkIndex])
	if err != nil {
		return driven.ChunkHit{}, fmt.Errorf("chunk index: %w", err)
	}
	start, err := strconv.Atoi(r.Metadata[metaStart])
	if err != nil {
		return driven.ChunkHit{}, fmt.Errorf("chunk start: %w", err)
	}
	end, err := strconv.Atoi(r.Metadata[metaEnd])
	if err != nil {
		return driven.ChunkHit{}, fmt.Errorf("chunk end: %w", err)
	}
	var trail []string
	if raw := r.Metadata[metaHeadingTrail]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &trail); err != nil {
			return driven.ChunkHit{}, fmt.Errorf("heading trail: %w", err)
		}
	}

	return driven.ChunkHit{
		NoteID:       r.Metadata[metaNoteID],
		NoteTitle:    r.Metadata[metaNoteTitle],
		ChunkIndex:   index,
		Text:         r.Content,
		Start:        start,
		End:          end,
		HeadingTrail: trail,
		Similarity:   float64(r.Similarity),
	}, nil
}

// usable reports whether v has a non-zero norm.
func usable(v []float32) bool {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return sum > 0 && !math.IsNaN(sum)
}

// Close releases resources. The persistent database writes on every
// change, so there is nothing to flush.
func (s *Store) Close() error {
	return nil
}
