package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// NoteSource loads the notes corpus from one origin.
// A note that fails to parse is skipped and logged, never fatal to the load.
type NoteSource interface {
	// Name identifies the source (e.g., "keep", "markdown", "notion").
	Name() string

	// Load returns every note of the source.
	Load(ctx context.Context) ([]domain.Note, error)
}

// NoteWatcher is implemented by sources that can report changes.
type NoteWatcher interface {
	// Watch blocks until ctx is cancelled, calling onChange after the
	// source's notes change.
	Watch(ctx context.Context, onChange func()) error
}
