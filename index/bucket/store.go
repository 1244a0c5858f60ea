package bucket

import (
	"fmt"
	"math"
	"math/rand"
	"time"
	"unsafe"

	"github.com/hupe1980/hamlsh/bitvec"
	"github.com/hupe1980/hamlsh/index"
	"github.com/hupe1980/hamlsh/internal/idset"
	"github.com/hupe1980/hamlsh/internal/resource"
	"github.com/hupe1980/hamlsh/lsh"
)

// CandidateFactor bounds the candidate pool of one query to
// CandidateFactor * hash_groups points.
const CandidateFactor = 4

// entryBytes is the memory charged for one bucket slot. Vectors are shared
// with the caller, so only the slot itself is counted.
const entryBytes = int64(unsafe.Sizeof(Entry{}))

// Options contains configuration options for the bucket store.
type Options struct {
	// AllowedDistance is r1, the distance below which points are similar.
	AllowedDistance float64

	// Margin is the relative gap between r1 and r2 = r1 * (1 + Margin).
	Margin float64

	// Size is the expected number of points.
	Size int

	// Dimension is the bit length the hashes are drawn for.
	Dimension int

	// BucketSize is the capacity of one bucket.
	BucketSize int

	// MemoryUtilization scales the number of buckets relative to Size/BucketSize.
	MemoryUtilization float64

	// MaxHashGroups rejects configurations that need more bands. 0 disables the check.
	MaxHashGroups int

	// Rand is the source for hash draws. A time-seeded source is used if nil.
	Rand lsh.Rand

	// Resources tracks bucket memory. Optional.
	Resources *resource.Controller
}

// DefaultOptions contains the default configuration options for the bucket store.
var DefaultOptions = Options{
	BucketSize:        128,
	MemoryUtilization: 2,
}

// Entry is one stored point.
type Entry struct {
	ID     uint32
	Vector bitvec.Vector
}

// Store is a single LSH table.
type Store struct {
	opts   Options
	family lsh.Family

	hashBits    int
	hashGroups  int
	storageSize int

	groups  []*lsh.HashGroup
	buckets [][]Entry

	points  int
	stored  int
	dropped int
}

// New creates a new bucket store and draws its bands.
func New(optFns ...func(o *Options)) (*Store, error) {
	opts := DefaultOptions

	for _, fn := range optFns {
		fn(&opts)
	}

	if err := validateOptions(opts); err != nil {
		return nil, err
	}

	family := lsh.NewFamily(opts.Dimension, opts.AllowedDistance, opts.Margin)
	p2 := family.P2()
	if !(p2 > 0 && p2 < 1) {
		return nil, &index.ErrConfig{
			Param:  "p2",
			Value:  p2,
			Reason: fmt.Sprintf("must be in (0, 1); r2=%g needs 0 < r2 < dimension %d", family.R2(), opts.Dimension),
		}
	}

	size, bucketSize := float64(opts.Size), float64(opts.BucketSize)

	hashBits, err := ceilPositive("hash_bits", math.Log(bucketSize/size)/math.Log(p2))
	if err != nil {
		return nil, err
	}

	hashGroups, err := ceilPositive("hash_groups", math.Pow(size/bucketSize, family.Rho()))
	if err != nil {
		return nil, err
	}
	if opts.MaxHashGroups > 0 && hashGroups > opts.MaxHashGroups {
		return nil, &index.ErrConfig{
			Param:  "hash_groups",
			Value:  hashGroups,
			Reason: fmt.Sprintf("exceeds maximum of %d", opts.MaxHashGroups),
		}
	}

	storageSize, err := ceilPositive("storage_size", opts.MemoryUtilization*size/bucketSize)
	if err != nil {
		return nil, err
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	groups := make([]*lsh.HashGroup, hashGroups)
	for i := range groups {
		g, err := lsh.RandomHashGroup(family, hashBits, rng)
		if err != nil {
			return nil, err
		}
		groups[i] = g
	}

	return &Store{
		opts:        opts,
		family:      family,
		hashBits:    hashBits,
		hashGroups:  hashGroups,
		storageSize: storageSize,
		groups:      groups,
		buckets:     make([][]Entry, storageSize),
	}, nil
}

func validateOptions(opts Options) error {
	switch {
	case opts.Dimension <= 0:
		return &index.ErrConfig{Param: "dimension", Value: opts.Dimension, Reason: "must be positive"}
	case opts.AllowedDistance < 0:
		return &index.ErrConfig{Param: "allowed_distance", Value: opts.AllowedDistance, Reason: "must not be negative"}
	case opts.Margin < 0:
		return &index.ErrConfig{Param: "margin", Value: opts.Margin, Reason: "must not be negative"}
	case opts.BucketSize <= 0:
		return &index.ErrConfig{Param: "bucket_size", Value: opts.BucketSize, Reason: "must be positive"}
	case opts.Size <= opts.BucketSize:
		return &index.ErrConfig{
			Param:  "size",
			Value:  opts.Size,
			Reason: fmt.Sprintf("must exceed bucket_size %d", opts.BucketSize),
		}
	case opts.MemoryUtilization <= 0:
		return &index.ErrConfig{Param: "memory_utilization", Value: opts.MemoryUtilization, Reason: "must be positive"}
	case opts.MaxHashGroups < 0:
		return &index.ErrConfig{Param: "max_hash_groups", Value: opts.MaxHashGroups, Reason: "must not be negative"}
	}
	return nil
}

// ceilPositive rounds x up and rejects results that are not a positive int.
func ceilPositive(param string, x float64) (int, error) {
	c := math.Ceil(x)
	if math.IsNaN(c) || c < 1 || c > math.MaxInt32 {
		return 0, &index.ErrConfig{Param: param, Value: x, Reason: "derived value is not a usable positive integer"}
	}
	return int(c), nil
}

// Family returns the hash family the bands were drawn from.
func (s *Store) Family() lsh.Family { return s.family }

// Dimension returns the bit length of the hash family.
func (s *Store) Dimension() int { return s.opts.Dimension }

// HashBits returns the number of bit hashes per band.
func (s *Store) HashBits() int { return s.hashBits }

// HashGroups returns the number of bands.
func (s *Store) HashGroups() int { return s.hashGroups }

// StorageSize returns the number of buckets.
func (s *Store) StorageSize() int { return s.storageSize }

// BucketSize returns the capacity of one bucket.
func (s *Store) BucketSize() int { return s.opts.BucketSize }

// MaxCandidates returns the candidate cap of a single query.
func (s *Store) MaxCandidates() int { return CandidateFactor * s.hashGroups }

// bucketID maps v to its bucket under band g.
func (s *Store) bucketID(g *lsh.HashGroup, v bitvec.Vector) (int, error) {
	key, err := g.Eval(v)
	if err != nil {
		return 0, err
	}
	return int(key % uint64(s.storageSize)), nil
}

// Put inserts v under id into the bucket of every band. Bands whose bucket is
// full drop the point silently; the loss is visible in Stats.
func (s *Store) Put(id uint32, v bitvec.Vector) error {
	if v.Len() > s.opts.Dimension {
		return &index.ErrVectorTooLong{Dimension: s.opts.Dimension, Length: v.Len()}
	}

	// Reserve for the worst case and give back what the bands did not use.
	reserved := entryBytes * int64(len(s.groups))
	if err := s.opts.Resources.AcquireMemory(reserved); err != nil {
		return fmt.Errorf("put %d: %w", id, err)
	}

	var used int64
	for _, g := range s.groups {
		b, err := s.bucketID(g, v)
		if err != nil {
			s.opts.Resources.ReleaseMemory(reserved - used)
			return err
		}

		if len(s.buckets[b]) >= s.opts.BucketSize {
			s.dropped++
			continue
		}

		s.buckets[b] = append(s.buckets[b], Entry{ID: id, Vector: v})
		s.stored++
		used += entryBytes
	}

	s.opts.Resources.ReleaseMemory(reserved - used)
	s.points++
	return nil
}

// NeighbourCandidates gathers the contents of the query's bucket in each band,
// in band order, until the pool holds MaxCandidates entries. The pool may
// repeat a point that several bands map to the same bucket.
func (s *Store) NeighbourCandidates(q bitvec.Vector) ([]Entry, error) {
	if q.Len() > s.opts.Dimension {
		return nil, &index.ErrVectorTooLong{Dimension: s.opts.Dimension, Length: q.Len()}
	}

	limit := s.MaxCandidates()
	pool := make([]Entry, 0, limit)

	for _, g := range s.groups {
		if len(pool) >= limit {
			break
		}
		b, err := s.bucketID(g, q)
		if err != nil {
			return nil, err
		}
		pool = append(pool, s.buckets[b]...)
	}

	if len(pool) > limit {
		pool = pool[:limit]
	}
	return pool, nil
}

// KNeighbours returns up to k candidates ranked by exact Hamming distance to
// q. Each point appears at most once; equal distances keep candidate order.
// A point reached through several bands is counted once, so the result can
// be shorter than both k and the NeighbourCandidates pool.
func (s *Store) KNeighbours(q bitvec.Vector, k int) ([]index.SearchResult, error) {
	if k <= 0 {
		return nil, index.ErrInvalidK
	}

	pool, err := s.NeighbourCandidates(q)
	if err != nil {
		return nil, err
	}

	seen := idset.Get()
	defer idset.Put(seen)

	results := make([]index.SearchResult, 0, len(pool))
	for _, e := range pool {
		if !seen.Add(e.ID) {
			continue
		}
		results = append(results, index.SearchResult{
			ID:       e.ID,
			Vector:   e.Vector,
			Distance: bitvec.PaddedDistance(q, e.Vector),
		})
	}

	return index.TopK(results, k), nil
}

// Occupancy returns the number of points in each bucket.
func (s *Store) Occupancy() []int {
	out := make([]int, len(s.buckets))
	for i, b := range s.buckets {
		out[i] = len(b)
	}
	return out
}

// Stats returns insertion and occupancy counters.
func (s *Store) Stats() index.Stats {
	st := index.Stats{
		Points:  s.points,
		Stored:  s.stored,
		Dropped: s.dropped,
		Buckets: len(s.buckets),
	}
	for _, b := range s.buckets {
		if len(b) > 0 {
			st.NonEmptyBuckets++
		}
		st.MaxOccupancy = max(st.MaxOccupancy, len(b))
	}
	return st
}

// MemoryUsage returns the bytes charged for occupied bucket slots.
func (s *Store) MemoryUsage() int64 {
	return int64(s.stored) * entryBytes
}
