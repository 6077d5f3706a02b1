package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure GraphStore and TreeStore implement the interfaces.
var (
	_ driven.GraphStore = (*GraphStore)(nil)
	_ driven.TreeStore  = (*TreeStore)(nil)
)

// GraphStore is an in-memory implementation of driven.GraphStore.
type GraphStore struct {
	mu        sync.RWMutex
	relations []domain.Relation
}

// NewGraphStore creates a new in-memory graph store.
func NewGraphStore() *GraphStore {
	return &GraphStore{}
}

// ReplaceRelations replaces every stored relation.
func (s *GraphStore) ReplaceRelations(_ context.Context, relations []domain.Relation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.relations = append([]domain.Relation{}, relations...)
	return nil
}

// Relations returns every stored relation.
func (s *GraphStore) Relations(_ context.Context) ([]domain.Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.Relation{}, s.relations...), nil
}

// TreeStore is an in-memory implementation of driven.TreeStore.
type TreeStore struct {
	mu    sync.RWMutex
	nodes map[string]domain.TreeNode
}

// NewTreeStore creates a new in-memory tree store.
func NewTreeStore() *TreeStore {
	return &TreeStore{}
}

// Save replaces the stored tree.
func (s *TreeStore) Save(_ context.Context, nodes map[string]domain.TreeNode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]domain.TreeNode, len(nodes))
	for id, n := range nodes {
		s.nodes[id] = n
	}
	return nil
}

// Load returns the stored tree.
func (s *TreeStore) Load(_ context.Context) (map[string]domain.TreeNode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.nodes == nil {
		return nil, domain.ErrNotFound
	}
	result := make(map[string]domain.TreeNode, len(s.nodes))
	for id, n := range s.nodes {
		result[id] = n
	}
	return result, nil
}
