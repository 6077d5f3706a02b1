package embedding

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/recall/internal/core/domain"
)

func lengths(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

func TestBatched(t *testing.T) {
	var calls []int
	embed := func(ctx context.Context, texts []string) ([][]float32, error) {
		calls = append(calls, len(texts))
		return lengths(ctx, texts)
	}

	out, err := Batched(context.Background(), []string{"a", "bb", "ccc", "dddd", "eeeee"}, 2, embed)

	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {2}, {3}, {4}, {5}}, out)
	assert.Equal(t, []int{2, 2, 1}, calls)
}

func TestBatched_EmptyAndUnbounded(t *testing.T) {
	out, err := Batched(context.Background(), nil, 2, lengths)
	require.NoError(t, err)
	assert.Nil(t, out)

	out, err = Batched(context.Background(), []string{"a", "b", "c"}, 0, lengths)
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestBatched_Errors(t *testing.T) {
	_, err := Batched(context.Background(), []string{"a", "b", "c"}, 2,
		func(context.Context, []string) ([][]float32, error) { return nil, errors.New("offline") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embed texts 0-1: offline")

	_, err = Batched(context.Background(), []string{"a", "b"}, 2,
		func(context.Context, []string) ([][]float32, error) { return [][]float32{{1}}, nil })
	assert.ErrorContains(t, err, "got 1 vectors")
}

func TestToFloat32(t *testing.T) {
	v, err := ToFloat32([]float64{0.5, -1}, 2)
	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, -1}, v)

	_, err = ToFloat32([]float64{1}, 2)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	v, err = ToFloat32([]float64{1, 2, 3}, 0)
	require.NoError(t, err)
	assert.Len(t, v, 3)
}
