package memory

import (
	"context"
	"sync"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// Ensure EmbeddingCache implements the interface.
var _ driven.EmbeddingCache = (*EmbeddingCache)(nil)

// EmbeddingCache is an in-memory implementation of driven.EmbeddingCache.
type EmbeddingCache struct {
	mu   sync.RWMutex
	sets map[string]domain.EmbeddingSet

	// Saves counts Save calls.
	Saves int
}

// NewEmbeddingCache creates a new in-memory embedding cache.
func NewEmbeddingCache() *EmbeddingCache {
	return &EmbeddingCache{
		sets: make(map[string]domain.EmbeddingSet),
	}
}

// Load returns the set stored under key.
func (c *EmbeddingCache) Load(_ context.Context, key string) (*domain.EmbeddingSet, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.sets[key]
	if !ok {
		return nil, domain.ErrCacheMiss
	}
	return &set, nil
}

// Save replaces the set stored under key.
func (c *EmbeddingCache) Save(_ context.Context, key string, set *domain.EmbeddingSet) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sets[key] = *set
	c.Saves++
	return nil
}
