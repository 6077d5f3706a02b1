package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
)

// embeddingCache implements driven.EmbeddingCache.
// A set is stored as one row holding every vector back to back.
type embeddingCache struct {
	store *Store
}

var _ driven.EmbeddingCache = (*embeddingCache)(nil)

// Load returns the set stored under key. A missing or malformed row is a
// cache miss.
func (c *embeddingCache) Load(ctx context.Context, key string) (*domain.EmbeddingSet, error) {
	row := c.store.db.QueryRowContext(ctx, `
		SELECT hash, count, dimensions, vectors FROM embedding_sets WHERE key = ?
	`, key)

	var set domain.EmbeddingSet
	var blob []byte
	if err := row.Scan(&set.Hash, &set.Count, &set.Dimensions, &blob); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrCacheMiss
		}
		return nil, fmt.Errorf("scanning embedding set: %w", err)
	}

	if set.Count < 0 || set.Dimensions < 0 || len(blob) != set.Count*set.Dimensions*4 {
		return nil, fmt.Errorf("%w: malformed vectors for %s", domain.ErrCacheMiss, key)
	}

	flat := decodeVector(blob)
	set.Vectors = make([][]float32, set.Count)
	for i := range set.Vectors {
		set.Vectors[i] = flat[i*set.Dimensions : (i+1)*set.Dimensions : (i+1)*set.Dimensions]
	}
	return &set, nil
}

// Save replaces the set stored under key.
func (c *embeddingCache) Save(ctx context.Context, key string, set *domain.EmbeddingSet) error {
	for i, v := range set.Vectors {
		if len(v) != set.Dimensions {
			return fmt.Errorf("vector %d: %w", i, domain.ErrDimensionMismatch)
		}
	}
	if len(set.Vectors) != set.Count {
		return fmt.Errorf("embedding set count %d with %d vectors: %w",
			set.Count, len(set.Vectors), domain.ErrInvalidInput)
	}

	flat := make([]float32, 0, set.Count*set.Dimensions)
	for _, v := range set.Vectors {
		flat = append(flat, v...)
	}

	_, err := c.store.db.ExecContext(ctx, `
		INSERT INTO embedding_sets (key, hash, count, dimensions, vectors, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			hash = excluded.hash,
			count = excluded.count,
			dimensions = excluded.dimensions,
			vectors = excluded.vectors,
			updated_at = excluded.updated_at
	`, key, set.Hash, set.Count, set.Dimensions, encodeVector(flat), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("saving embedding set: %w", err)
	}
	return nil
}
