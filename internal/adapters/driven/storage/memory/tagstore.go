package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure TagStore implements the interface.
var _ driven.TagStore = (*TagStore)(nil)

// TagStore is an in-memory implementation of driven.TagStore.
type TagStore struct {
	mu       sync.RWMutex
	tags     map[string]string
	excluded []string
}

// NewTagStore creates a new in-memory tag store.
func NewTagStore() *TagStore {
	return &TagStore{
		tags: make(map[string]string),
	}
}

// Tags returns a copy of every note id to tag assignment.
func (s *TagStore) Tags(_ context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[string]string, len(s.tags))
	for id, tag := range s.tags {
		result[id] = tag
	}
	return result, nil
}

// SetTag assigns a tag to a note.
func (s *TagStore) SetTag(_ context.Context, noteID, tag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tags[noteID] = tag
	return nil
}

// DeleteTag removes the tag of a note.
func (s *TagStore) DeleteTag(_ context.Context, noteID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tags, noteID)
	return nil
}

// ExcludedTags returns the excluded tags, sorted.
func (s *TagStore) ExcludedTags(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := append([]string{}, s.excluded...)
	sort.Strings(result)
	return result, nil
}

// SetExcludedTags replaces the excluded tag set.
func (s *TagStore) SetExcludedTags(_ context.Context, tags []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.excluded = append([]string{}, tags...)
	return nil
}
