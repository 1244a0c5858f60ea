package hamlsh

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/hamlsh/bitvec"
	"github.com/hupe1980/hamlsh/index"
	"github.com/hupe1980/hamlsh/index/bucket"
	"github.com/hupe1980/hamlsh/internal/resource"
)

// SearchResult is one neighbour returned by KNeighbours.
type SearchResult = index.SearchResult

// Stats describes bucket occupancy summed over all replicas.
type Stats = index.Stats

// cancelCheckInterval is how many insertions run between context checks.
const cancelCheckInterval = 256

// Index is an ensemble of independent LSH stores over the same data.
//
// Every point is inserted into every replica; replicas differ only in their
// random hash draws, so adding replicas raises recall. Fit loads the data
// once. KNeighbours is safe for concurrent use after Fit returned.
type Index struct {
	size      int
	dimension int
	stores    []*bucket.Store

	rc             *resource.Controller
	rejectOverRate bool
	logger         *Logger
	metrics        MetricsCollector

	mu     sync.RWMutex
	loaded bool // insertion started
	fitted bool // insertion completed
}

// New creates an index for about size points, similar below distance r and
// distinct beyond r*(1+margin).
//
// Exactly one of WithHashBits or WithCollisionProbability and exactly one of
// WithReplicas or WithTolerance must be supplied.
func New(size int, r, margin float64, optFns ...Option) (*Index, error) {
	opts := applyOptions(optFns)

	dimension, err := deriveDimension(size, r, margin, opts)
	if err != nil {
		return nil, err
	}
	if opts.minDimensions > 0 && dimension < opts.minDimensions {
		return nil, &ErrConfig{
			Param:  "dimension",
			Value:  dimension,
			Reason: fmt.Sprintf("below required minimum %d", opts.minDimensions),
		}
	}

	replicas, err := deriveReplicas(opts)
	if err != nil {
		return nil, err
	}

	if opts.workers <= 0 {
		return nil, &ErrConfig{Param: "workers", Value: opts.workers, Reason: "must be positive"}
	}

	if opts.rng == nil {
		opts.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	rc := resource.NewController(resource.Config{
		MemoryLimitBytes: opts.memoryLimit,
		MaxWorkers:       int64(opts.workers),
		QueriesPerSecond: opts.queryRate,
		QueryBurst:       opts.queryBurst,
	})

	stores := make([]*bucket.Store, replicas)
	for i := range stores {
		s, err := bucket.New(func(o *bucket.Options) {
			o.AllowedDistance = r
			o.Margin = margin
			o.Size = size
			o.Dimension = dimension
			o.BucketSize = opts.bucketSize
			o.MemoryUtilization = opts.memoryUtilization
			o.MaxHashGroups = opts.maxHashGroups
			o.Rand = opts.rng
			o.Resources = rc
		})
		if err != nil {
			return nil, translateError(err)
		}
		stores[i] = s
	}

	idx := &Index{
		size:           size,
		dimension:      dimension,
		stores:         stores,
		rc:             rc,
		rejectOverRate: opts.rejectOverRate,
		logger:         opts.logger,
		metrics:        opts.metricsCollector,
	}

	idx.logger.LogBuild(context.Background(), idx)

	return idx, nil
}

func deriveDimension(size int, r, margin float64, opts options) (int, error) {
	switch {
	case opts.hashBits != nil && opts.collisionProbability != nil:
		return 0, fmt.Errorf("%w: hash bits and collision probability", ErrMutuallyExclusive)
	case opts.hashBits == nil && opts.collisionProbability == nil:
		return 0, fmt.Errorf("%w: hash bits or collision probability", ErrMissingOption)
	}

	if r <= 0 {
		return 0, &ErrConfig{Param: "r", Value: r, Reason: "must be positive"}
	}
	if margin < 0 {
		return 0, &ErrConfig{Param: "margin", Value: margin, Reason: "must not be negative"}
	}

	var d float64
	if opts.hashBits != nil {
		bits := *opts.hashBits
		if bits <= 0 {
			return 0, &ErrConfig{Param: "hash_bits", Value: bits, Reason: "must be positive"}
		}
		if opts.bucketSize <= 0 || size <= opts.bucketSize {
			return 0, &ErrConfig{
				Param:  "size",
				Value:  size,
				Reason: fmt.Sprintf("must exceed bucket_size %d", opts.bucketSize),
			}
		}
		p2 := math.Pow(float64(opts.bucketSize)/float64(size), 1/float64(bits))
		d = math.Ceil(r * (1 + margin) / (1 - p2))
	} else {
		p := *opts.collisionProbability
		if !(p > 0 && p < 1) {
			return 0, &ErrConfig{Param: "collision_probability", Value: p, Reason: "must be in (0, 1)"}
		}
		d = math.Ceil(r / (1 - p))
	}

	if math.IsInf(d, 0) || math.IsNaN(d) || d < 1 || d > math.MaxInt32 {
		return 0, &ErrConfig{Param: "dimension", Value: d, Reason: "derived value is not a usable positive integer"}
	}
	return int(d), nil
}

func deriveReplicas(opts options) (int, error) {
	switch {
	case opts.replicas != nil && opts.tolerance != nil:
		return 0, fmt.Errorf("%w: replicas and tolerance", ErrMutuallyExclusive)
	case opts.replicas == nil && opts.tolerance == nil:
		return 0, fmt.Errorf("%w: replicas or tolerance", ErrMissingOption)
	}

	if opts.replicas != nil {
		n := *opts.replicas
		if n <= 0 {
			return 0, &ErrConfig{Param: "replicas", Value: n, Reason: "must be positive"}
		}
		return n, nil
	}

	tol := *opts.tolerance
	if !(tol > 0 && tol <= 1) {
		return 0, &ErrConfig{Param: "tolerance", Value: tol, Reason: "must be in (0, 1]"}
	}
	return int(math.Ceil(1 / tol)), nil
}

// Fit inserts every vector of data into every replica. The ID of a vector is
// its position in data. Fit can only be called once.
func (idx *Index) Fit(ctx context.Context, data []bitvec.Vector) (err error) {
	start := time.Now()
	var dropped int
	defer func() {
		idx.metrics.RecordFit(len(data), dropped, time.Since(start), err)
		idx.logger.LogFit(ctx, len(data), dropped, time.Since(start), err)
	}()

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.loaded {
		return ErrAlreadyFitted
	}
	if uint64(len(data)) > math.MaxUint32 {
		return &ErrConfig{Param: "points", Value: len(data), Reason: "too many points"}
	}
	for _, v := range data {
		if v.Len() > idx.dimension {
			return &ErrVectorTooLong{Dimension: idx.dimension, Length: v.Len()}
		}
	}

	idx.loaded = true

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range idx.stores {
		g.Go(func() error {
			if err := idx.rc.AcquireWorker(gctx); err != nil {
				return err
			}
			defer idx.rc.ReleaseWorker()

			for i, v := range data {
				if i%cancelCheckInterval == 0 {
					if err := gctx.Err(); err != nil {
						return err
					}
				}
				if err := s.Put(uint32(i), v); err != nil {
					return err
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return translateError(err)
	}

	idx.fitted = true
	dropped = idx.statsLocked().Dropped
	return nil
}

// KNeighbours returns up to k approximate nearest neighbours of q ordered by
// ascending Hamming distance.
//
// Each replica ranks its own candidates; the lists are merged in replica
// order and a point seen in an earlier replica shadows later occurrences.
// Fewer than k results are returned when the candidate pools are small.
func (idx *Index) KNeighbours(ctx context.Context, q bitvec.Vector, k int) (results []SearchResult, err error) {
	start := time.Now()
	var candidates int
	defer func() {
		idx.metrics.RecordSearch(k, time.Since(start), err)
		idx.logger.LogSearch(ctx, k, candidates, len(results), err)
	}()

	if k <= 0 {
		return nil, ErrInvalidK
	}
	if q.Len() > idx.dimension {
		return nil, &ErrVectorTooLong{Dimension: idx.dimension, Length: q.Len()}
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if !idx.fitted {
		return nil, ErrNotFitted
	}

	if idx.rejectOverRate {
		if !idx.rc.AllowQuery() {
			return nil, ErrRateLimited
		}
	} else if err := idx.rc.WaitQuery(ctx); err != nil {
		return nil, err
	}

	lists := make([][]SearchResult, len(idx.stores))

	if len(idx.stores) == 1 {
		lists[0], err = idx.stores[0].KNeighbours(q, k)
		if err != nil {
			return nil, translateError(err)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		for i, s := range idx.stores {
			g.Go(func() error {
				if err := idx.rc.AcquireWorker(gctx); err != nil {
					return err
				}
				defer idx.rc.ReleaseWorker()

				res, err := s.KNeighbours(q, k)
				if err != nil {
					return err
				}
				lists[i] = res
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, translateError(err)
		}
	}

	for _, l := range lists {
		candidates += len(l)
	}

	return index.MergeUnique(k, lists...), nil
}

// Fitted reports whether Fit completed successfully.
func (idx *Index) Fitted() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.fitted
}

// Size returns the expected number of points the index was tuned for.
func (idx *Index) Size() int { return idx.size }

// Dimensions returns the derived bit length of the hash family.
func (idx *Index) Dimensions() int { return idx.dimension }

// Replicas returns the number of independent stores.
func (idx *Index) Replicas() int { return len(idx.stores) }

// HashBits returns the number of bit hashes per band.
func (idx *Index) HashBits() int { return idx.stores[0].HashBits() }

// HashGroups returns the number of bands per replica.
func (idx *Index) HashGroups() int { return idx.stores[0].HashGroups() }

// StorageSize returns the number of buckets per replica.
func (idx *Index) StorageSize() int { return idx.stores[0].StorageSize() }

// R1 returns the distance below which points are considered similar.
func (idx *Index) R1() float64 { return idx.stores[0].Family().R1() }

// R2 returns the distance beyond which points are considered distinct.
func (idx *Index) R2() float64 { return idx.stores[0].Family().R2() }

// P1 returns the single-hash collision probability at distance R1.
func (idx *Index) P1() float64 { return idx.stores[0].Family().P1() }

// P2 returns the single-hash collision probability at distance R2.
func (idx *Index) P2() float64 { return idx.stores[0].Family().P2() }

// Stats returns bucket statistics summed over all replicas.
func (idx *Index) Stats() Stats {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.statsLocked()
}

func (idx *Index) statsLocked() Stats {
	var st Stats
	for _, s := range idx.stores {
		st.Add(s.Stats())
	}
	return st
}

// MemoryUsage returns the bytes charged for occupied bucket slots.
func (idx *Index) MemoryUsage() int64 {
	return idx.rc.MemoryUsage()
}

// String renders the derived configuration.
func (idx *Index) String() string {
	return fmt.Sprintf("Index(d=%d, replicas=%d, groups=%d, bits=%d, r1=%g, r2=%g, p1=%.4f, p2=%.4f)",
		idx.Dimensions(), idx.Replicas(), idx.HashGroups(), idx.HashBits(),
		idx.R1(), idx.R2(), idx.P1(), idx.P2())
}
