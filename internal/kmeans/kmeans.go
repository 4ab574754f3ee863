// Package kmeans is the numeric engine behind the reference algorithm service:
// dataset generation, centroid seeding, and Lloyd iterations over 2-D points.
package kmeans

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/floats/scalar"
	"gonum.org/v1/gonum/stat"

	"kmeansviz/internal/api"
	"kmeansviz/internal/core"
	"kmeansviz/internal/logger"
)

var (
	// ErrInvalidK is returned when k is not in 1..len(dataset)
	ErrInvalidK = errors.New("invalid number of clusters")

	// ErrUnknownMethod is returned for an unrecognized initialization method
	ErrUnknownMethod = errors.New("unknown initialization method")

	// ErrEmptyDataset is returned when an operation needs at least one point
	ErrEmptyDataset = errors.New("dataset is empty")
)

// Config holds configuration for the engine
type Config struct {
	DatasetSize   int     // Number of points generated per dataset
	MaxIterations int     // Upper bound on iterations for a run to convergence
	RelTolerance  float64 // Relative tolerance for centroid equality
	AbsTolerance  float64 // Absolute tolerance for centroid equality
	Seed          int64   // Random seed; 0 seeds from the clock
}

// DefaultConfig returns the defaults used by the original visualizer
func DefaultConfig() Config {
	return Config{
		DatasetSize:   200,
		MaxIterations: 300,
		RelTolerance:  1e-5,
		AbsTolerance:  1e-8,
	}
}

// Engine runs K-means rounds. It is safe for concurrent use.
type Engine struct {
	config Config
	mu     sync.Mutex // guards rng
	rng    *rand.Rand
	log    *slog.Logger
}

// NewEngine creates a new engine
func NewEngine(config Config) *Engine {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultConfig().MaxIterations
	}
	return &Engine{
		config: config,
		rng:    rand.New(rand.NewSource(seed)),
		log:    logger.Component("kmeans"),
	}
}

// Config returns the engine configuration
func (e *Engine) Config() Config {
	return e.config
}

// GenerateDataset draws DatasetSize points from a standard 2-D normal distribution
func (e *Engine) GenerateDataset() core.Dataset {
	e.mu.Lock()
	defer e.mu.Unlock()

	data := make(core.Dataset, e.config.DatasetSize)
	for i := range data {
		data[i] = core.NewPoint(e.rng.NormFloat64(), e.rng.NormFloat64())
	}
	return data
}

// InitialCentroids seeds k centroids for the given method. Manual seeding
// returns an empty set: the operator places the centroids.
func (e *Engine) InitialCentroids(method string, k int, data core.Dataset) (core.CentroidSet, error) {
	if len(data) == 0 {
		return nil, ErrEmptyDataset
	}
	if k <= 0 || k > len(data) {
		return nil, fmt.Errorf("%w: %d (must be 1-%d)", ErrInvalidK, k, len(data))
	}

	switch method {
	case api.MethodManual:
		return core.CentroidSet{}, nil
	case api.MethodRandom, "":
		return e.initializeRandom(data, k), nil
	case api.MethodKMeansPP:
		return e.initializeKMeansPP(data, k), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMethod, method)
	}
}

// initializeRandom picks k distinct dataset points
func (e *Engine) initializeRandom(data core.Dataset, k int) core.CentroidSet {
	e.mu.Lock()
	defer e.mu.Unlock()

	indices := e.rng.Perm(len(data))[:k]
	centroids := make(core.CentroidSet, k)
	for i, idx := range indices {
		centroids[i] = data[idx]
	}
	return centroids
}

// initializeKMeansPP uses K-means++ seeding: each next centroid is drawn with
// probability proportional to its squared distance to the nearest chosen one
func (e *Engine) initializeKMeansPP(data core.Dataset, k int) core.CentroidSet {
	e.mu.Lock()
	defer e.mu.Unlock()

	centroids := make(core.CentroidSet, 0, k)
	centroids = append(centroids, data[e.rng.Intn(len(data))])

	distances := make([]float64, len(data))
	for len(centroids) < k {
		totalDistance := 0.0
		for j, p := range data {
			_, d := nearest(p, centroids)
			distances[j] = d * d
			totalDistance += distances[j]
		}

		if totalDistance == 0 {
			centroids = append(centroids, data[e.rng.Intn(len(data))])
			continue
		}

		target := e.rng.Float64() * totalDistance
		cumulative := 0.0
		selected := len(data) - 1
		for j, d := range distances {
			cumulative += d
			if cumulative >= target {
				selected = j
				break
			}
		}
		centroids = append(centroids, data[selected])
	}

	return centroids
}

// Assign groups every point with its nearest centroid. Ties go to the lower index.
func Assign(centroids core.CentroidSet, data core.Dataset) core.Partition {
	clusters := make(core.Partition, len(centroids))
	for i := range clusters {
		clusters[i] = []core.Point{}
	}
	if len(centroids) == 0 {
		return clusters
	}
	for _, p := range data {
		idx, _ := nearest(p, centroids)
		clusters[idx] = append(clusters[idx], p)
	}
	return clusters
}

// nearest returns the index of and distance to the closest centroid
func nearest(p core.Point, centroids core.CentroidSet) (int, float64) {
	minDistance := math.Inf(1)
	nearestIndex := 0
	ps := p.Slice()
	for i, c := range centroids {
		d := floats.Distance(ps, c.Slice(), 2)
		if d < minDistance {
			minDistance = d
			nearestIndex = i
		}
	}
	return nearestIndex, minDistance
}

// Recalculate returns the mean of each cluster. An empty cluster gets a fresh
// uniform point in [0,1)^2 so that it can pick up members in the next round.
func (e *Engine) Recalculate(clusters core.Partition) core.CentroidSet {
	centroids := make(core.CentroidSet, len(clusters))
	for i, cluster := range clusters {
		if len(cluster) == 0 {
			e.mu.Lock()
			centroids[i] = core.NewPoint(e.rng.Float64(), e.rng.Float64())
			e.mu.Unlock()
			continue
		}
		xs := make([]float64, len(cluster))
		ys := make([]float64, len(cluster))
		for j, p := range cluster {
			xs[j], ys[j] = p.X(), p.Y()
		}
		centroids[i] = core.NewPoint(stat.Mean(xs, nil), stat.Mean(ys, nil))
	}
	return centroids
}

// StepResult is the outcome of one assignment/update round
type StepResult struct {
	Centroids core.CentroidSet
	Clusters  core.Partition
	Converged bool
	Inertia   float64
}

// Step performs one round: assign points to the current centroids, then move
// each centroid to the mean of its cluster. Converged reports whether the move
// left every centroid within tolerance of where it was.
func (e *Engine) Step(centroids core.CentroidSet, data core.Dataset) (StepResult, error) {
	if len(data) == 0 {
		return StepResult{}, ErrEmptyDataset
	}
	if len(centroids) == 0 {
		return StepResult{}, fmt.Errorf("%w: no centroids", ErrInvalidK)
	}

	clusters := Assign(centroids, data)
	updated := e.Recalculate(clusters)
	return StepResult{
		Centroids: updated,
		Clusters:  clusters,
		Converged: e.AllClose(centroids, updated),
		Inertia:   Inertia(updated, clusters),
	}, nil
}

// ConvergeResult is the terminal state of a run to completion
type ConvergeResult struct {
	StepResult
	Iterations int
}

// Converge repeats Step until the centroids stop moving or MaxIterations is hit
func (e *Engine) Converge(centroids core.CentroidSet, data core.Dataset) (ConvergeResult, error) {
	current := centroids
	var result ConvergeResult
	for result.Iterations < e.config.MaxIterations {
		step, err := e.Step(current, data)
		if err != nil {
			return ConvergeResult{}, err
		}
		result.Iterations++
		result.StepResult = step
		current = step.Centroids
		if step.Converged {
			return result, nil
		}
	}

	e.log.Warn("Iteration limit reached before convergence",
		"max_iterations", e.config.MaxIterations,
		"k", len(centroids),
	)
	return result, nil
}

// AllClose reports whether two centroid sets are element-wise equal within the
// configured tolerances
func (e *Engine) AllClose(a, b core.CentroidSet) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		for d := 0; d < 2; d++ {
			if !scalar.EqualWithinAbsOrRel(a[i][d], b[i][d], e.config.AbsTolerance, e.config.RelTolerance) {
				return false
			}
		}
	}
	return true
}

// Inertia is the within-cluster sum of squared distances to each centroid
func Inertia(centroids core.CentroidSet, clusters core.Partition) float64 {
	total := 0.0
	for i, cluster := range clusters {
		if i >= len(centroids) {
			break
		}
		c := centroids[i].Slice()
		for _, p := range cluster {
			d := floats.Distance(p.Slice(), c, 2)
			total += d * d
		}
	}
	return total
}
