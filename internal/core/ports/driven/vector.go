package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Retrieval backends are optional engines queried by the router.
// Construction never fails on missing data: an unbuilt backend reports
// IsReady() == false and must not be queried.

// VectorBackend answers nearest-neighbour queries over notes and chunks.
type VectorBackend interface {
	// IsReady reports whether the backend holds indexed data.
	IsReady() bool

	// SearchNotes returns the k most similar notes.
	SearchNotes(ctx context.Context, query string, k int) ([]NoteHit, error)

	// SearchChunks returns the k most similar chunks.
	SearchChunks(ctx context.Context, query string, k int) ([]ChunkHit, error)
}

// VectorStore is a VectorBackend that can be rebuilt.
type VectorStore interface {
	VectorBackend

	// Replace rebuilds the store from index-aligned entities and vectors.
	Replace(ctx context.Context, notes []domain.Note, noteVectors [][]float32,
		chunks []domain.Chunk, chunkVectors [][]float32) error

	// Close releases resources.
	Close() error
}

// GraphBackend answers relational queries.
type GraphBackend interface {
	// IsReady reports whether the graph is built or loaded.
	IsReady() bool

	// QueryRelations returns up to k relation rows relevant to query.
	QueryRelations(ctx context.Context, query string, k int) ([]RelationHit, error)
}

// GraphIndex is a GraphBackend that can be built and reloaded.
type GraphIndex interface {
	GraphBackend

	// Build extracts relations from notes and persists them.
	Build(ctx context.Context, notes []domain.Note) error

	// Load restores a persisted graph. Returns false when none exists.
	Load(ctx context.Context) (bool, error)
}

// TreeBackend answers summary queries.
type TreeBackend interface {
	// IsReady reports whether the tree is built or loaded.
	IsReady() bool

	// QuerySummaries returns up to k tree nodes relevant to query.
	QuerySummaries(ctx context.Context, query string, k int) ([]SummaryHit, error)
}

// TreeIndex is a TreeBackend that can be built and reloaded.
type TreeIndex interface {
	TreeBackend

	// Build constructs the tree bottom-up from index-aligned chunks and vectors.
	Build(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error

	// Load restores a persisted tree. Returns false when none exists.
	Load(ctx context.Context) (bool, error)
}

// NoteHit is a note-level vector search row.
type NoteHit struct {
	NoteID    string
	NoteTitle string
	Text      string

	// Similarity is the cosine similarity, higher is better.
	Similarity float64
}

// ChunkHit is a chunk-level vector search row.
type ChunkHit struct {
	NoteID       string
	NoteTitle    string
	ChunkIndex   int
	Text         string
	Start        int
	End          int
	HeadingTrail []string

	// Similarity is the cosine similarity, higher is better.
	Similarity float64
}

// RelationHit is a graph search row.
type RelationHit struct {
	NoteID    string
	NoteTitle string
	Text      string

	// Score is zero when the backend did not score the row.
	Score float64
}

// SummaryHit is a tree search row.
type SummaryHit struct {
	NodeID  string
	Text    string
	Score   float64
	Level   int
	NoteIDs []string

	// ChunkIndex is set on leaf rows built from a single chunk.
	ChunkIndex *int
}
