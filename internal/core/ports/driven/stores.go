package driven

import (
	"context"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// TagStore persists user tags and the excluded tag set.
type TagStore interface {
	// Tags returns every note id to tag assignment.
	Tags(ctx context.Context) (map[string]string, error)

	// SetTag assigns a tag to a note, replacing any previous tag.
	SetTag(ctx context.Context, noteID, tag string) error

	// DeleteTag removes the tag of a note. Missing notes are ignored.
	DeleteTag(ctx context.Context, noteID string) error

	// ExcludedTags returns the tags whose notes are hidden from retrieval.
	ExcludedTags(ctx context.Context) ([]string, error)

	// SetExcludedTags replaces the excluded tag set.
	SetExcludedTags(ctx context.Context, tags []string) error
}

// SessionStore persists chat sessions.
type SessionStore interface {
	// Save inserts or replaces a session.
	Save(ctx context.Context, session *domain.ChatSession) error

	// Get returns a session or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.ChatSession, error)

	// List returns session summaries, most recently updated first.
	List(ctx context.Context) ([]domain.SessionSummary, error)

	// Delete removes a session or returns domain.ErrNotFound.
	Delete(ctx context.Context, id string) error
}

// EmbeddingCache persists whole embedding sets under a key.
// A set is always replaced as a unit, never patched.
type EmbeddingCache interface {
	// Load returns the set stored under key, or domain.ErrCacheMiss.
	Load(ctx context.Context, key string) (*domain.EmbeddingSet, error)

	// Save replaces the set stored under key.
	Save(ctx context.Context, key string, set *domain.EmbeddingSet) error
}

// GraphStore persists extracted relations.
type GraphStore interface {
	// ReplaceRelations replaces every stored relation.
	ReplaceRelations(ctx context.Context, relations []domain.Relation) error

	// Relations returns every stored relation.
	Relations(ctx context.Context) ([]domain.Relation, error)
}

// TreeStore persists the summary tree as a flat node map.
type TreeStore interface {
	// Save replaces the stored tree. A partial write never replaces a valid tree.
	Save(ctx context.Context, nodes map[string]domain.TreeNode) error

	// Load returns the stored tree, or domain.ErrNotFound when none exists.
	Load(ctx context.Context) (map[string]domain.TreeNode, error)
}
