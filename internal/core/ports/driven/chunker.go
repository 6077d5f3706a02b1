package driven

import "github.com/custodia-labs/recall/internal/core/domain"

// Chunker splits notes into offset-tracked chunks.
// Implementations never fail: on internal errors they degrade to a
// single chunk spanning the whole note.
type Chunker interface {
	// Name identifies the strategy (e.g., "structure", "hierarchical").
	Name() string

	// Chunk splits one note. Chunk indexes start at zero.
	Chunk(note domain.Note) []domain.Chunk
}
