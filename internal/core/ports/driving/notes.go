package driving

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// NoteService manages the loaded corpus and its tags.
type NoteService interface {
	// Notes returns visible notes (excluded tags filtered out).
	Notes() []domain.Note

	// Get returns a note by id.
	Get(id string) (domain.Note, error)

	// TagNotes assigns tag to every listed note.
	TagNotes(ctx context.Context, ids []string, tag string) error

	// RemoveTag clears the tag of one note.
	RemoveTag(ctx context.Context, id string) error

	// RemoveTagFromAll clears tag from every note carrying it.
	RemoveTagFromAll(ctx context.Context, tag string) (int, error)

	// Tags returns tags with note counts.
	Tags() []domain.TagCount

	// ExcludedTags returns the hidden tags.
	ExcludedTags() []string

	// SetExcludedTags replaces the hidden tags.
	SetExcludedTags(ctx context.Context, tags []string) error
}

// IndexReport summarises one index build.
type IndexReport struct {
	Notes            int
	Chunks           int
	NotesFromCache   bool
	ChunksFromCache  bool
	Relations        bool
	Tree             bool
	ImagesIndexed    int
	ChunkingStrategy string
}

// IndexService builds and reloads the retrieval indexes.
type IndexService interface {
	// Build loads notes and rebuilds every index. force bypasses caches.
	Build(ctx context.Context, force bool) (*IndexReport, error)
}
