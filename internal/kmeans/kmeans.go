// Package kmeans implements seeded k-means clustering with k-means++
// initialisation and multiple restarts. Results are deterministic for a
// given seed.
package kmeans

import (
	"errors"
	"math"
	"math/rand"
)

var (
	// ErrNoPoints is returned when Fit is called without points.
	ErrNoPoints = errors.New("kmeans: no points")

	// ErrInvalidK is returned when k is less than one.
	ErrInvalidK = errors.New("kmeans: k must be at least 1")

	// ErrRaggedPoints is returned when points differ in dimensionality.
	ErrRaggedPoints = errors.New("kmeans: points have different dimensions")
)

// Options configures Fit.
type Options struct {
	// Seed drives initialisation. Equal seeds give equal results.
	Seed int64

	// Restarts is how many initialisations run; the lowest inertia wins.
	Restarts int

	// MaxIterations bounds each Lloyd run.
	MaxIterations int

	// Tolerance stops a run once no centroid moves further than it.
	Tolerance float64
}

// DefaultOptions returns seed 42 with 10 restarts.
func DefaultOptions() Options {
	return Options{
		Seed:          42,
		Restarts:      10,
		MaxIterations: 300,
		Tolerance:     1e-4,
	}
}

// Result is a fitted clustering.
type Result struct {
	// Labels assigns each point to a centroid index.
	Labels []int

	// Centroids has k rows.
	Centroids [][]float64

	// Inertia is the sum of squared distances to assigned centroids.
	Inertia float64
}

// Fit clusters points into k groups. k is clamped to len(points).
func Fit(points [][]float64, k int, opts Options) (*Result, error) {
	if len(points) == 0 {
		return nil, ErrNoPoints
	}
	if k < 1 {
		return nil, ErrInvalidK
	}
	dims := len(points[0])
	for _, p := range points {
		if len(p) != dims {
			return nil, ErrRaggedPoints
		}
	}
	if k > len(points) {
		k = len(points)
	}
	if opts.Restarts < 1 {
		opts.Restarts = 1
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	var best *Result
	for r := 0; r < opts.Restarts; r++ {
		res := run(points, k, opts, rng)
		if best == nil || res.Inertia < best.Inertia {
			best = res
		}
	}
	return best, nil
}

func run(points [][]float64, k int, opts Options, rng *rand.Rand) *Result {
	centroids := seedPlusPlus(points, k, rng)
	labels := make([]int, len(points))

	for iter := 0; iter < opts.MaxIterations; iter++ {
		assign(points, centroids, labels)
		next := recompute(points, labels, centroids)
		shift := 0.0
		for i := range centroids {
			shift = math.Max(shift, Distance(centroids[i], next[i]))
		}
		centroids = next
		if shift <= opts.Tolerance {
			break
		}
	}
	inertia := assign(points, centroids, labels)
	return &Result{Labels: labels, Centroids: centroids, Inertia: inertia}
}

// seedPlusPlus picks initial centroids with probability proportional to
// squared distance from the nearest centroid chosen so far.
func seedPlusPlus(points [][]float64, k int, rng *rand.Rand) [][]float64 {
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, clone(points[rng.Intn(len(points))]))

	dist := make([]float64, len(points))
	for len(centroids) < k {
		total := 0.0
		for i, p := range points {
			d := math.MaxFloat64
			for _, c := range centroids {
				d = math.Min(d, squared(p, c))
			}
			dist[i] = d
			total += d
		}
		if total == 0 {
			// All remaining points coincide with a centroid.
			centroids = append(centroids, clone(points[rng.Intn(len(points))]))
			continue
		}
		target := rng.Float64() * total
		idx := len(points) - 1
		for i, d := range dist {
			target -= d
			if target <= 0 {
				idx = i
				break
			}
		}
		centroids = append(centroids, clone(points[idx]))
	}
	return centroids
}

func assign(points, centroids [][]float64, labels []int) float64 {
	inertia := 0.0
	for i, p := range points {
		bestIdx, bestDist := 0, math.MaxFloat64
		for j, c := range centroids {
			if d := squared(p, c); d < bestDist {
				bestIdx, bestDist = j, d
			}
		}
		labels[i] = bestIdx
		inertia += bestDist
	}
	return inertia
}

// recompute returns the mean of each cluster. Empty clusters keep their
// previous centroid.
func recompute(points [][]float64, labels []int, prev [][]float64) [][]float64 {
	dims := len(points[0])
	sums := make([][]float64, len(prev))
	counts := make([]int, len(prev))
	for i := range sums {
		sums[i] = make([]float64, dims)
	}
	for i, p := range points {
		l := labels[i]
		counts[l]++
		for d, v := range p {
			sums[l][d] += v
		}
	}
	for i := range sums {
		if counts[i] == 0 {
			sums[i] = clone(prev[i])
			continue
		}
		for d := range sums[i] {
			sums[i][d] /= float64(counts[i])
		}
	}
	return sums
}

// Distance returns the Euclidean distance between a and b.
func Distance(a, b []float64) float64 {
	return math.Sqrt(squared(a, b))
}

func squared(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

func clone(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

// FromFloat32 widens float32 vectors for clustering.
func FromFloat32(vectors [][]float32) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		out[i] = make([]float64, len(v))
		for j, x := range v {
			out[i][j] = float64(x)
		}
	}
	return out
}
