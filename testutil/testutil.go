package testutil

import (
	"math/rand"
	"sync"

	"github.com/hupe1980/hamlsh/bitvec"
	"github.com/hupe1980/hamlsh/index"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe and satisfies both lsh.Rand and bitvec.Rand.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Seed returns the initial seed.
func (r *RNG) Seed() int64 {
	return r.seed
}

// Intn returns a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Uint64 returns a pseudo-random uint64.
func (r *RNG) Uint64() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Uint64()
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// BinaryVectors generates num vectors of the given bit length with
// independent uniform coordinates.
func (r *RNG) BinaryVectors(num, dimensions int) []bitvec.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([]bitvec.Vector, num)
	for i := range num {
		vectors[i] = bitvec.Random(r.rand, dimensions)
	}

	return vectors
}

// Perturb returns a copy of v with flips distinct coordinates inverted.
// flips is clamped to v.Len().
func (r *RNG) Perturb(v bitvec.Vector, flips int) bitvec.Vector {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.perturbLocked(v, flips)
}

// perturbLocked is the internal implementation (caller must hold lock).
func (r *RNG) perturbLocked(v bitvec.Vector, flips int) bitvec.Vector {
	coords := v.Bits()
	flips = min(flips, len(coords))

	// Partial Fisher-Yates over positions picks distinct coordinates.
	perm := r.rand.Perm(len(coords))
	for _, pos := range perm[:flips] {
		coords[pos] ^= 1
	}

	out, _ := bitvec.FromBits(coords)
	return out
}

// ClusteredVectors generates vectors scattered around random centroids.
// Each vector differs from its centroid in exactly spread coordinates.
// Useful for testing recall on non-uniform data.
func (r *RNG) ClusteredVectors(num, dimensions, clusters, spread int) []bitvec.Vector {
	centroids := r.BinaryVectors(clusters, dimensions)

	r.mu.Lock()
	defer r.mu.Unlock()

	vectors := make([]bitvec.Vector, num)
	for i := range num {
		vectors[i] = r.perturbLocked(centroids[i%clusters], spread)
	}

	return vectors
}

// ExactTopK returns the k nearest dataset vectors to query by brute force.
// IDs are dataset positions; ties keep dataset order.
func ExactTopK(query bitvec.Vector, dataset []bitvec.Vector, k int) []index.SearchResult {
	results := make([]index.SearchResult, len(dataset))
	for i, v := range dataset {
		results[i] = index.SearchResult{
			ID:       uint32(i),
			Vector:   v,
			Distance: bitvec.PaddedDistance(query, v),
		}
	}
	return index.TopK(results, k)
}

// ComputeRecall computes recall@k by comparing approximate results against ground truth.
func ComputeRecall(groundTruth, approximate []index.SearchResult) float64 {
	if len(groundTruth) == 0 || len(approximate) == 0 {
		if len(groundTruth) == 0 && len(approximate) == 0 {
			return 1.0
		}
		return 0.0
	}

	k := min(len(approximate), len(groundTruth))

	truthSet := make(map[uint32]struct{}, k)
	for i := range k {
		truthSet[groundTruth[i].ID] = struct{}{}
	}

	hits := 0
	for _, r := range approximate {
		if _, ok := truthSet[r.ID]; ok {
			hits++
		}
	}

	return float64(hits) / float64(k)
}
