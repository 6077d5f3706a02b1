package services

import (
	"context"
	"crypto/md5" //nolint:gosec // content fingerprint, not a security boundary
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/recall/internal/core/domain"
	"github.com/custodia-labs/recall/internal/core/ports/driven"
	"github.com/custodia-labs/recall/internal/logger"
)

// Embedding index defaults.
const (
	DefaultEmbedBatchSize = 32
	DefaultEmbedRate      = 10 // batches per second
)

// EmbeddingIndex computes embedding sets and caches them whole.
// A cached set is reused only when its content hash, count and
// dimensionality all match; anything else recomputes every vector.
type EmbeddingIndex struct {
	embedder  driven.EmbeddingService
	cache     driven.EmbeddingCache
	limiter   *rate.Limiter
	batchSize int
}

// EmbeddingIndexOption configures an EmbeddingIndex.
type EmbeddingIndexOption func(*EmbeddingIndex)

// WithBatchSize sets how many texts are sent per embedding call.
func WithBatchSize(n int) EmbeddingIndexOption {
	return func(x *EmbeddingIndex) {
		if n > 0 {
			x.batchSize = n
		}
	}
}

// WithRateLimit bounds embedding calls per second.
func WithRateLimit(limit rate.Limit, burst int) EmbeddingIndexOption {
	return func(x *EmbeddingIndex) {
		x.limiter = rate.NewLimiter(limit, burst)
	}
}

// NewEmbeddingIndex creates an embedding index. The embedder may be nil,
// in which case every operation reports domain.ErrEmbeddingUnavailable.
func NewEmbeddingIndex(
	embedder driven.EmbeddingService, cache driven.EmbeddingCache, opts ...EmbeddingIndexOption,
) *EmbeddingIndex {
	x := &EmbeddingIndex{
		embedder:  embedder,
		cache:     cache,
		limiter:   rate.NewLimiter(rate.Limit(DefaultEmbedRate), 1),
		batchSize: DefaultEmbedBatchSize,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Available reports whether an embedder is configured.
func (x *EmbeddingIndex) Available() bool {
	return x != nil && x.embedder != nil
}

// Encode embeds texts in batches, preserving order.
func (x *EmbeddingIndex) Encode(ctx context.Context, texts []string) ([][]float32, error) {
	if !x.Available() {
		return nil, domain.ErrEmbeddingUnavailable
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += x.batchSize {
		end := min(start+x.batchSize, len(texts))
		if err := x.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("wait for embedding slot: %w", err)
		}

		batch, err := x.embedder.EmbedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("embed batch %d-%d: got %d vectors", start, end, len(batch))
		}
		vectors = append(vectors, batch...)
		logger.Progress("embeddings", len(vectors), len(texts))
	}
	return vectors, nil
}

// EncodeQuery embeds a single query text.
func (x *EmbeddingIndex) EncodeQuery(ctx context.Context, text string) ([]float32, error) {
	if !x.Available() {
		return nil, domain.ErrEmbeddingUnavailable
	}
	vec, err := x.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return vec, nil
}

// LoadOrCompute returns the embedding set for texts, from the cache under
// key when valid, and reports whether the cache was used. force always
// recomputes. Cache faults never fail the call.
func (x *EmbeddingIndex) LoadOrCompute(
	ctx context.Context, key string, texts []string, force bool,
) (*domain.EmbeddingSet, bool, error) {
	if !x.Available() {
		return nil, false, domain.ErrEmbeddingUnavailable
	}

	hash := ContentHash(texts)
	if !force && x.cache != nil {
		set, err := x.cache.Load(ctx, key)
		switch {
		case errors.Is(err, domain.ErrCacheMiss):
			logger.Debug("No cached %s embeddings", key)
		case err != nil:
			logger.Warn("Unreadable %s embedding cache, recomputing: %v", key, err)
		default:
			if verr := x.validate(set, hash, len(texts)); verr != nil {
				logger.Info("Cached %s embeddings are stale, recomputing: %v", key, verr)
			} else {
				logger.Info("Loaded %d %s embeddings from cache", set.Count, key)
				return set, true, nil
			}
		}
	}

	logger.Info("Computing embeddings for %d %s", len(texts), key)
	vectors, err := x.Encode(ctx, texts)
	if err != nil {
		return nil, false, err
	}

	set := &domain.EmbeddingSet{
		Hash:       hash,
		Count:      len(texts),
		Dimensions: dimensionsOf(vectors),
		Vectors:    vectors,
	}
	if x.cache != nil {
		if err := x.cache.Save(ctx, key, set); err != nil {
			logger.Warn("Failed to cache %s embeddings: %v", key, err)
		}
	}
	return set, false, nil
}

// validate checks a cached set against the current texts and model.
func (x *EmbeddingIndex) validate(set *domain.EmbeddingSet, hash string, count int) error {
	if set == nil {
		return errors.New("empty cache entry")
	}
	if set.Hash != hash {
		return errors.New("content hash changed")
	}
	if set.Count != count || len(set.Vectors) != count {
		return fmt.Errorf("count %d, want %d", len(set.Vectors), count)
	}
	if want := x.embedder.Dimensions(); want > 0 && set.Dimensions != want && count > 0 {
		return fmt.Errorf("%w: cached %d, model %d", domain.ErrDimensionMismatch, set.Dimensions, want)
	}
	for _, v := range set.Vectors {
		if len(v) != set.Dimensions {
			return fmt.Errorf("%w: ragged cached vectors", domain.ErrDimensionMismatch)
		}
	}
	return nil
}

// ContentHash fingerprints an ordered text list.
func ContentHash(texts []string) string {
	h := md5.New() //nolint:gosec // content fingerprint
	for _, t := range texts {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

func dimensionsOf(vectors [][]float32) int {
	if len(vectors) == 0 {
		return 0
	}
	return len(vectors[0])
}
