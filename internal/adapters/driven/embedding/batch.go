// Package embedding holds helpers shared by the embedding adapters in its
// subpackages.
package embedding

import (
	"context"
	"fmt"

	"github.com/custodia-labs/recall/internal/core/domain"
)

// Batched calls embed on consecutive slices of at most size texts and
// concatenates the results. Each call must return one vector per input.
func Batched(
	ctx context.Context,
	texts []string,
	size int,
	embed func(context.Context, []string) ([][]float32, error),
) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if size <= 0 {
		size = len(texts)
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += size {
		end := min(start+size, len(texts))
		vecs, err := embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("embed texts %d-%d: %w", start, end-1, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("embed texts %d-%d: got %d vectors", start, end-1, len(vecs))
		}
		out = append(out, vecs...)
	}
	return out, nil
}

// ToFloat32 converts a decoded JSON vector, checking its length against
// dims when dims is positive.
func ToFloat32(v []float64, dims int) ([]float32, error) {
	if dims > 0 && len(v) != dims {
		return nil, fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(v), dims)
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out, nil
}
