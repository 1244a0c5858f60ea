package hamlsh

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/hupe1980/hamlsh/bitvec"
	"github.com/hupe1980/hamlsh/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newScenarioIndex(t testing.TB, replicas int, opts ...Option) *Index {
	t.Helper()

	base := []Option{
		WithHashBits(16),
		WithReplicas(replicas),
		WithRand(testutil.NewRNG(1)),
	}
	idx, err := New(512, 2, 0.5, append(base, opts...)...)
	require.NoError(t, err)
	return idx
}

func zeros(n, dim int) []bitvec.Vector {
	out := make([]bitvec.Vector, n)
	for i := range out {
		out[i] = bitvec.Zero(dim)
	}
	return out
}

func TestNew_Scenario(t *testing.T) {
	idx := newScenarioIndex(t, 1)

	assert.Equal(t, 512, idx.Size())
	assert.Equal(t, 37, idx.Dimensions())
	assert.Equal(t, 1, idx.Replicas())
	assert.Equal(t, 17, idx.HashBits())
	assert.Equal(t, 3, idx.HashGroups())
	assert.Equal(t, 8, idx.StorageSize())
	assert.Equal(t, 2.0, idx.R1())
	assert.Equal(t, 3.0, idx.R2())
	assert.InDelta(t, 35.0/37.0, idx.P1(), 1e-12)
	assert.InDelta(t, 34.0/37.0, idx.P2(), 1e-12)
	assert.Equal(t, "Index(d=37, replicas=1, groups=3, bits=17, r1=2, r2=3, p1=0.9459, p2=0.9189)", idx.String())
	assert.False(t, idx.Fitted())
}

func TestNew_CollisionProbabilityAndTolerance(t *testing.T) {
	idx, err := New(512, 2, 0.5,
		WithCollisionProbability(0.75),
		WithTolerance(0.3),
		WithSeed(7),
	)
	require.NoError(t, err)

	assert.Equal(t, 8, idx.Dimensions())
	assert.Equal(t, 4, idx.Replicas())
	assert.InDelta(t, 0.75, idx.P1(), 1e-12)
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name     string
		size     int
		r        float64
		opts     []Option
		sentinel error
		param    string
	}{
		{
			name:     "hash bits and probability",
			opts:     []Option{WithHashBits(16), WithCollisionProbability(0.9), WithReplicas(1)},
			sentinel: ErrMutuallyExclusive,
		},
		{
			name:     "neither hash bits nor probability",
			opts:     []Option{WithReplicas(1)},
			sentinel: ErrMissingOption,
		},
		{
			name:     "replicas and tolerance",
			opts:     []Option{WithHashBits(16), WithReplicas(1), WithTolerance(0.5)},
			sentinel: ErrMutuallyExclusive,
		},
		{
			name:     "neither replicas nor tolerance",
			opts:     []Option{WithHashBits(16)},
			sentinel: ErrMissingOption,
		},
		{
			name:  "dimension below minimum",
			opts:  []Option{WithHashBits(16), WithReplicas(1), WithMinDimensions(40)},
			param: "dimension",
		},
		{
			name:  "too many hash groups",
			opts:  []Option{WithHashBits(16), WithReplicas(1), WithMaxHashGroups(2)},
			param: "hash_groups",
		},
		{
			name:  "size not above bucket size",
			size:  100,
			opts:  []Option{WithHashBits(16), WithReplicas(1)},
			param: "size",
		},
		{
			name:  "zero hash bits",
			opts:  []Option{WithHashBits(0), WithReplicas(1)},
			param: "hash_bits",
		},
		{
			name:  "probability out of range",
			opts:  []Option{WithCollisionProbability(1), WithReplicas(1)},
			param: "collision_probability",
		},
		{
			name:  "zero tolerance",
			opts:  []Option{WithHashBits(16), WithTolerance(0)},
			param: "tolerance",
		},
		{
			name:  "zero replicas",
			opts:  []Option{WithHashBits(16), WithReplicas(0)},
			param: "replicas",
		},
		{
			name:  "negative distance",
			r:     -1,
			opts:  []Option{WithHashBits(16), WithReplicas(1)},
			param: "r",
		},
		{
			name:  "zero workers",
			opts:  []Option{WithHashBits(16), WithReplicas(1), WithWorkers(0)},
			param: "workers",
		},
		{
			name:  "far distance reaches dimension",
			opts:  []Option{WithCollisionProbability(0.1), WithReplicas(1)},
			param: "p2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			size, r := 512, 2.0
			if tt.size != 0 {
				size = tt.size
			}
			if tt.r != 0 {
				r = tt.r
			}

			_, err := New(size, r, 0.5, append(tt.opts, WithSeed(1))...)
			require.Error(t, err)

			if tt.sentinel != nil {
				assert.ErrorIs(t, err, tt.sentinel)
				return
			}

			var cfgErr *ErrConfig
			require.True(t, errors.As(err, &cfgErr), "got %v", err)
			assert.Equal(t, tt.param, cfgErr.Param)
		})
	}
}

func TestKNeighbours_StoredPointIsTopOne(t *testing.T) {
	for _, replicas := range []int{1, 4} {
		idx := newScenarioIndex(t, replicas)
		data := testutil.NewRNG(42).BinaryVectors(512, 32)
		require.NoError(t, idx.Fit(t.Context(), data))

		res, err := idx.KNeighbours(t.Context(), data[0], 1)
		require.NoError(t, err)
		require.Len(t, res, 1)
		assert.Equal(t, uint32(0), res[0].ID)
		assert.Equal(t, 0, res[0].Distance)
		assert.True(t, res[0].Vector.Equal(data[0]))
	}
}

func TestKNeighbours_AllZeros(t *testing.T) {
	idx := newScenarioIndex(t, 1)
	require.NoError(t, idx.Fit(t.Context(), zeros(512, 32)))

	res, err := idx.KNeighbours(t.Context(), bitvec.Zero(32), 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, 0, res[0].Distance)

	st := idx.Stats()
	assert.Equal(t, 512, st.Points)
	assert.Equal(t, 128, st.Stored)
	assert.Equal(t, 3*512-128, st.Dropped)
	assert.Equal(t, 128, st.MaxOccupancy)
}

func TestKNeighbours_DedupAcrossReplicas(t *testing.T) {
	idx := newScenarioIndex(t, 3)
	require.NoError(t, idx.Fit(t.Context(), zeros(512, 32)))

	// Every replica returns IDs 0..3; the merge keeps each once.
	res, err := idx.KNeighbours(t.Context(), bitvec.Zero(32), 100)
	require.NoError(t, err)
	require.Len(t, res, 4)

	seen := map[uint32]bool{}
	for i, r := range res {
		assert.False(t, seen[r.ID], "duplicate id %d", r.ID)
		seen[r.ID] = true
		assert.Equal(t, uint32(i), r.ID)
	}
}

func TestKNeighbours_Ranking(t *testing.T) {
	rng := testutil.NewRNG(8)
	data := rng.BinaryVectors(512, 32)

	idx := newScenarioIndex(t, 3)
	require.NoError(t, idx.Fit(t.Context(), data))

	for _, q := range rng.BinaryVectors(50, 32) {
		res, err := idx.KNeighbours(t.Context(), q, 10)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res), 10)

		// Build the union of candidate pools.
		pool := map[uint32]bool{}
		for _, s := range idx.stores {
			c, err := s.NeighbourCandidates(q)
			require.NoError(t, err)
			for _, e := range c {
				pool[e.ID] = true
			}
		}

		for i, r := range res {
			assert.True(t, pool[r.ID], "id %d not among candidates", r.ID)
			assert.Equal(t, bitvec.PaddedDistance(q, data[r.ID]), r.Distance)
			if i > 0 {
				assert.LessOrEqual(t, res[i-1].Distance, r.Distance)
			}
		}
	}
}

func TestKNeighbours_RecallGrowsWithReplicas(t *testing.T) {
	rng := testutil.NewRNG(123)
	data := rng.BinaryVectors(512, 32)

	queries := make([]bitvec.Vector, 0, 120)
	for trial := range 120 {
		queries = append(queries, rng.Perturb(data[trial%12], 1))
	}

	var prev int
	for _, replicas := range []int{1, 2, 4, 8} {
		// Same seed: the first replicas of a larger ensemble equal the smaller one.
		idx := newScenarioIndex(t, replicas, WithRand(testutil.NewRNG(99)))
		require.NoError(t, idx.Fit(t.Context(), data))

		var hits int
		for _, q := range queries {
			exact := testutil.ExactTopK(q, data, 1)
			res, err := idx.KNeighbours(t.Context(), q, 1)
			require.NoError(t, err)
			if len(res) > 0 && res[0].Distance == exact[0].Distance {
				hits++
			}
		}

		assert.GreaterOrEqual(t, hits, prev, "replicas=%d", replicas)
		prev = hits
	}
	assert.Positive(t, prev)
}

func TestKNeighbours_ShortVectors(t *testing.T) {
	idx := newScenarioIndex(t, 2)
	data := []bitvec.Vector{
		bitvec.MustFromBits([]uint8{1, 0, 1}),
		bitvec.MustFromBits([]uint8{1, 1, 1, 1, 1, 1}),
		bitvec.MustFromBits([]uint8{0, 1}),
	}
	require.NoError(t, idx.Fit(t.Context(), data))

	res, err := idx.KNeighbours(t.Context(), bitvec.MustFromBits([]uint8{0, 1, 0, 1}), 3)
	require.NoError(t, err)
	require.NotEmpty(t, res)
	assert.Equal(t, uint32(0), res[0].ID)
	assert.Equal(t, 0, res[0].Distance)
}

func TestLifecycleErrors(t *testing.T) {
	idx := newScenarioIndex(t, 1)
	ctx := t.Context()

	_, err := idx.KNeighbours(ctx, bitvec.Zero(32), 1)
	assert.ErrorIs(t, err, ErrNotFitted)

	err = idx.Fit(ctx, []bitvec.Vector{bitvec.Zero(32), bitvec.Zero(38)})
	var tooLong *ErrVectorTooLong
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, 37, tooLong.Dimension)
	assert.Equal(t, 38, tooLong.Length)

	// Validation failures leave the index empty.
	require.NoError(t, idx.Fit(ctx, zeros(10, 32)))
	assert.True(t, idx.Fitted())
	assert.ErrorIs(t, idx.Fit(ctx, zeros(10, 32)), ErrAlreadyFitted)

	_, err = idx.KNeighbours(ctx, bitvec.Zero(32), 0)
	assert.ErrorIs(t, err, ErrInvalidK)

	_, err = idx.KNeighbours(ctx, bitvec.Zero(40), 1)
	require.ErrorAs(t, err, &tooLong)
	assert.Equal(t, 40, tooLong.Length)
}

func TestFit_EmptyDataset(t *testing.T) {
	idx := newScenarioIndex(t, 2)
	require.NoError(t, idx.Fit(t.Context(), nil))

	res, err := idx.KNeighbours(t.Context(), bitvec.Zero(32), 5)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestFit_Canceled(t *testing.T) {
	idx := newScenarioIndex(t, 2)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err := idx.Fit(ctx, zeros(512, 32))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, idx.Fitted())
}

func TestFit_MemoryLimit(t *testing.T) {
	idx := newScenarioIndex(t, 2, WithMemoryLimit(1024))

	err := idx.Fit(t.Context(), testutil.NewRNG(1).BinaryVectors(512, 32))
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.False(t, idx.Fitted())
	assert.LessOrEqual(t, idx.MemoryUsage(), int64(1024))
}

func TestFit_MemoryUsage(t *testing.T) {
	idx := newScenarioIndex(t, 2)
	require.NoError(t, idx.Fit(t.Context(), zeros(512, 32)))

	assert.Positive(t, idx.MemoryUsage())
	var perReplica int64
	for _, s := range idx.stores {
		perReplica += s.MemoryUsage()
	}
	assert.Equal(t, perReplica, idx.MemoryUsage())
}

func TestKNeighbours_QueryRateLimit(t *testing.T) {
	idx := newScenarioIndex(t, 1, WithQueryRateLimit(0.001, 1))
	require.NoError(t, idx.Fit(t.Context(), zeros(200, 32)))

	_, err := idx.KNeighbours(t.Context(), bitvec.Zero(32), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Millisecond)
	defer cancel()
	_, err = idx.KNeighbours(ctx, bitvec.Zero(32), 1)
	assert.Error(t, err)
}

func TestKNeighbours_QueryRejection(t *testing.T) {
	idx := newScenarioIndex(t, 1, WithQueryRateLimit(0.001, 2), WithQueryRejection())
	require.NoError(t, idx.Fit(t.Context(), zeros(200, 32)))

	for range 2 {
		_, err := idx.KNeighbours(t.Context(), bitvec.Zero(32), 1)
		require.NoError(t, err)
	}

	res, err := idx.KNeighbours(t.Context(), bitvec.Zero(32), 1)
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Nil(t, res)
}

func TestKNeighbours_QueryRejectionWithoutLimit(t *testing.T) {
	idx := newScenarioIndex(t, 1, WithQueryRejection())
	require.NoError(t, idx.Fit(t.Context(), zeros(200, 32)))

	for range 10 {
		_, err := idx.KNeighbours(t.Context(), bitvec.Zero(32), 1)
		require.NoError(t, err)
	}
}

func TestKNeighbours_Concurrent(t *testing.T) {
	rng := testutil.NewRNG(5)
	data := rng.BinaryVectors(512, 32)
	queries := rng.BinaryVectors(64, 32)

	idx := newScenarioIndex(t, 4, WithWorkers(2))
	require.NoError(t, idx.Fit(t.Context(), data))

	want := make([][]SearchResult, len(queries))
	for i, q := range queries {
		res, err := idx.KNeighbours(t.Context(), q, 5)
		require.NoError(t, err)
		want[i] = res
	}

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, q := range queries {
				res, err := idx.KNeighbours(context.Background(), q, 5)
				assert.NoError(t, err)
				assert.Equal(t, want[i], res)
			}
		}()
	}
	wg.Wait()
}

func TestMetricsCollector(t *testing.T) {
	mc := &BasicMetricsCollector{}
	idx := newScenarioIndex(t, 1, WithMetricsCollector(mc))

	require.NoError(t, idx.Fit(t.Context(), zeros(512, 32)))
	_, err := idx.KNeighbours(t.Context(), bitvec.Zero(32), 3)
	require.NoError(t, err)
	_, err = idx.KNeighbours(t.Context(), bitvec.Zero(32), -1)
	require.Error(t, err)

	stats := mc.GetStats()
	assert.Equal(t, int64(1), stats.FitCount)
	assert.Equal(t, int64(0), stats.FitErrors)
	assert.Equal(t, int64(512), stats.FitPoints)
	assert.Equal(t, int64(3*512-128), stats.FitDropped)
	assert.Equal(t, int64(2), stats.SearchCount)
	assert.Equal(t, int64(1), stats.SearchErrors)
}

func BenchmarkFit(b *testing.B) {
	data := testutil.NewRNG(1).BinaryVectors(4096, 32)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		b.StopTimer()
		idx, err := New(4096, 2, 0.5, WithHashBits(16), WithReplicas(4), WithSeed(1))
		require.NoError(b, err)
		b.StartTimer()

		require.NoError(b, idx.Fit(context.Background(), data))
	}
}

func BenchmarkKNeighbours(b *testing.B) {
	rng := testutil.NewRNG(1)
	data := rng.BinaryVectors(4096, 32)
	queries := rng.BinaryVectors(256, 32)

	idx, err := New(4096, 2, 0.5, WithHashBits(16), WithReplicas(4), WithSeed(1))
	require.NoError(b, err)
	require.NoError(b, idx.Fit(context.Background(), data))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.KNeighbours(context.Background(), queries[i%len(queries)], 10)
	}
}
