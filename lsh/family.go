package lsh

import (
	"fmt"
	"math"

	"github.com/hupe1980/hamlsh/bitvec"
)

// Rand is the source of randomness for hash draws. *rand.Rand satisfies it.
type Rand interface {
	// Intn returns a uniform integer in [0, n). It may panic if n <= 0.
	Intn(n int) int
}

// ErrVectorTooLong is returned when a vector longer than the hash dimension
// is evaluated.
type ErrVectorTooLong struct {
	Dimension int
	Length    int
}

func (e *ErrVectorTooLong) Error() string {
	return fmt.Sprintf("lsh: vector of length %d exceeds hash dimension %d", e.Length, e.Dimension)
}

// Family is the bit-sampling hash family H(r1, r2, p1, p2) over {0,1}^d.
//
// Callers must keep r2 below the dimension; otherwise P2 becomes negative.
type Family struct {
	dimension       int
	allowedDistance float64
	margin          float64
}

// NewFamily returns the family for the given dimension, allowed distance r
// and relative margin eps (r2 = r * (1 + eps)).
func NewFamily(dimension int, allowedDistance, margin float64) Family {
	return Family{
		dimension:       dimension,
		allowedDistance: allowedDistance,
		margin:          margin,
	}
}

// Dimension returns d.
func (f Family) Dimension() int { return f.dimension }

// R1 returns the distance below which points are considered similar.
func (f Family) R1() float64 { return f.allowedDistance }

// R2 returns the distance beyond which points are considered distinct.
func (f Family) R2() float64 { return f.allowedDistance * (1 + f.margin) }

// P1 returns the single-hash collision probability for points at distance R1.
func (f Family) P1() float64 { return 1 - f.R1()/float64(f.dimension) }

// P2 returns the single-hash collision probability for points at distance R2.
func (f Family) P2() float64 { return 1 - f.R2()/float64(f.dimension) }

// Rho returns the LSH exponent log(1/p1) / log(1/p2).
func (f Family) Rho() float64 {
	return math.Log(1/f.P1()) / math.Log(1/f.P2())
}

// New draws a fresh member with a projection chosen uniformly from [0, d).
// It panics if d is not positive.
func (f Family) New(rng Rand) BitHash {
	return BitHash{
		dimension:  f.dimension,
		projection: rng.Intn(f.dimension),
	}
}

// BitHash selects a single coordinate of its input.
//
// Inputs shorter than the dimension are treated as left-padded with zeros.
type BitHash struct {
	dimension  int
	projection int
}

// NewBitHash returns the hash selecting coordinate projection of a
// dimension-length vector.
func NewBitHash(dimension, projection int) (BitHash, error) {
	if dimension <= 0 {
		return BitHash{}, fmt.Errorf("lsh: dimension must be positive, got %d", dimension)
	}
	if projection < 0 || projection >= dimension {
		return BitHash{}, fmt.Errorf("lsh: projection %d out of range [0, %d)", projection, dimension)
	}
	return BitHash{dimension: dimension, projection: projection}, nil
}

// Dimension returns the configured dimension.
func (h BitHash) Dimension() int { return h.dimension }

// Projection returns the selected coordinate.
func (h BitHash) Projection() int { return h.projection }

// Eval returns the hash of v as 0 or 1.
func (h BitHash) Eval(v bitvec.Vector) (uint64, error) {
	if v.Len() > h.dimension {
		return 0, &ErrVectorTooLong{Dimension: h.dimension, Length: v.Len()}
	}
	return h.eval(v), nil
}

// eval assumes v.Len() <= h.dimension.
func (h BitHash) eval(v bitvec.Vector) uint64 {
	j := h.projection - (h.dimension - v.Len())
	if j < 0 {
		return 0
	}
	return uint64(v.Bit(j))
}
