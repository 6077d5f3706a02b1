package kmeans

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoBlobs() [][]float64 {
	return [][]float64{
		{0, 0}, {0.1, 0}, {0, 0.1}, {0.1, 0.1},
		{10, 10}, {10.1, 10}, {10, 10.1}, {10.1, 10.1},
	}
}

func TestFit_SeparatesBlobs(t *testing.T) {
	res, err := Fit(twoBlobs(), 2, DefaultOptions())
	require.NoError(t, err)

	require.Len(t, res.Labels, 8)
	for i := 1; i < 4; i++ {
		assert.Equal(t, res.Labels[0], res.Labels[i])
	}
	for i := 5; i < 8; i++ {
		assert.Equal(t, res.Labels[4], res.Labels[i])
	}
	assert.NotEqual(t, res.Labels[0], res.Labels[4])
	assert.Less(t, res.Inertia, 0.1)
}

func TestFit_Deterministic(t *testing.T) {
	a, err := Fit(twoBlobs(), 3, DefaultOptions())
	require.NoError(t, err)
	b, err := Fit(twoBlobs(), 3, DefaultOptions())
	require.NoError(t, err)

	assert.Equal(t, a.Labels, b.Labels)
	assert.Equal(t, a.Centroids, b.Centroids)
}

func TestFit_ClampsK(t *testing.T) {
	res, err := Fit([][]float64{{1}, {2}}, 5, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, res.Centroids, 2)
}

func TestFit_IdenticalPoints(t *testing.T) {
	res, err := Fit([][]float64{{1, 1}, {1, 1}, {1, 1}}, 2, DefaultOptions())
	require.NoError(t, err)
	assert.Len(t, res.Labels, 3)
	assert.Equal(t, 0.0, res.Inertia)
}

func TestFit_Errors(t *testing.T) {
	_, err := Fit(nil, 2, DefaultOptions())
	assert.ErrorIs(t, err, ErrNoPoints)

	_, err = Fit([][]float64{{1}}, 0, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = Fit([][]float64{{1}, {1, 2}}, 1, DefaultOptions())
	assert.ErrorIs(t, err, ErrRaggedPoints)
}

func TestFromFloat32(t *testing.T) {
	out := FromFloat32([][]float32{{1, 2}, {3}})
	assert.Equal(t, [][]float64{{1, 2}, {3}}, out)
}
