// Package bitvec provides an immutable, bit-packed binary vector.
//
// Bit i of a Vector is stored in word i/64 at position i%64. Padding bits in
// the final word are always zero, so word-wise popcount distances never see
// stale bits.
package bitvec

import (
	"errors"
	"fmt"
	"math/bits"
	"strings"

	"github.com/hupe1980/hamlsh/distance"
)

var (
	// ErrInvalidBit is returned when a coordinate is not 0 or 1.
	ErrInvalidBit = errors.New("bitvec: coordinate must be 0 or 1")

	// ErrLengthMismatch is returned when two vectors of different length are compared.
	ErrLengthMismatch = errors.New("bitvec: vector lengths do not match")
)

// Rand is the random source used by Random. *rand.Rand satisfies it.
type Rand interface {
	Uint64() uint64
}

// Vector is an immutable bit-packed binary vector.
type Vector struct {
	n     int
	words []uint64
}

func numWords(n int) int { return (n + 63) / 64 }

// Zero returns the all-zero vector of length n.
func Zero(n int) Vector {
	if n < 0 {
		n = 0
	}
	return Vector{n: n, words: make([]uint64, numWords(n))}
}

// FromBits packs a slice of 0/1 coordinates.
func FromBits(coords []uint8) (Vector, error) {
	v := Zero(len(coords))
	for i, b := range coords {
		switch b {
		case 0:
		case 1:
			v.words[i/64] |= 1 << (i % 64)
		default:
			return Vector{}, fmt.Errorf("%w: got %d at position %d", ErrInvalidBit, b, i)
		}
	}
	return v, nil
}

// MustFromBits is like FromBits but panics on invalid input.
// Intended for tests and static fixtures.
func MustFromBits(coords []uint8) Vector {
	v, err := FromBits(coords)
	if err != nil {
		panic(err)
	}
	return v
}

// Parse builds a vector from a string of '0' and '1' characters.
func Parse(s string) (Vector, error) {
	v := Zero(len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '0':
		case '1':
			v.words[i/64] |= 1 << (i % 64)
		default:
			return Vector{}, fmt.Errorf("%w: got %q at position %d", ErrInvalidBit, s[i], i)
		}
	}
	return v, nil
}

// FromWords constructs a vector of length n from packed words.
// len(words) must equal ceil(n/64). The words are copied and padding bits zeroed.
func FromWords(n int, words []uint64) (Vector, error) {
	if n < 0 {
		return Vector{}, fmt.Errorf("bitvec: negative length %d", n)
	}
	if len(words) != numWords(n) {
		return Vector{}, fmt.Errorf("bitvec: %d words cannot hold exactly %d bits", len(words), n)
	}
	v := Vector{n: n, words: make([]uint64, len(words))}
	copy(v.words, words)
	v.clearPadding()
	return v, nil
}

// Random returns a vector of length n with independent uniform bits.
func Random(rng Rand, n int) Vector {
	v := Zero(n)
	for i := range v.words {
		v.words[i] = rng.Uint64()
	}
	v.clearPadding()
	return v
}

func (v *Vector) clearPadding() {
	if rem := v.n % 64; rem != 0 {
		v.words[len(v.words)-1] &= (1 << rem) - 1
	}
}

// Len returns the number of coordinates.
func (v Vector) Len() int { return v.n }

// Bit returns coordinate i as 0 or 1. It panics if i is out of range.
func (v Vector) Bit(i int) uint8 {
	if i < 0 || i >= v.n {
		panic(fmt.Sprintf("bitvec: index %d out of range [0, %d)", i, v.n))
	}
	return uint8(v.words[i/64]>>(i%64)) & 1
}

// Bits unpacks the vector into one byte per coordinate.
func (v Vector) Bits() []uint8 {
	out := make([]uint8, v.n)
	for i := range out {
		out[i] = uint8(v.words[i/64]>>(i%64)) & 1
	}
	return out
}

// Words returns a copy of the packed representation.
func (v Vector) Words() []uint64 {
	out := make([]uint64, len(v.words))
	copy(out, v.words)
	return out
}

// OnesCount returns the number of set coordinates.
func (v Vector) OnesCount() int {
	var c int
	for _, w := range v.words {
		c += bits.OnesCount64(w)
	}
	return c
}

// Equal reports whether v and o have the same length and coordinates.
func (v Vector) Equal(o Vector) bool {
	if v.n != o.n {
		return false
	}
	for i := range v.words {
		if v.words[i] != o.words[i] {
			return false
		}
	}
	return true
}

// Distance returns the Hamming distance between equal-length vectors.
func (v Vector) Distance(o Vector) (int, error) {
	if v.n != o.n {
		return 0, fmt.Errorf("%w: %d != %d", ErrLengthMismatch, v.n, o.n)
	}
	return distance.Hamming(v.words, o.words), nil
}

// PaddedDistance returns the Hamming distance between the left-zero-padded
// forms of v and o: the shorter vector is treated as if prefixed with zero
// bits up to the longer length.
func PaddedDistance(v, o Vector) int {
	if v.n == o.n {
		return distance.Hamming(v.words, o.words)
	}
	if v.n < o.n {
		v, o = o, v
	}

	// v is longer; o[j] aligns with v[j+shift].
	shift := v.n - o.n
	var d int
	for i := 0; i < shift; i++ {
		d += int(v.Bit(i))
	}
	for j := 0; j < o.n; j++ {
		if v.Bit(j+shift) != o.Bit(j) {
			d++
		}
	}
	return d
}

// String renders the vector as a string of '0' and '1'.
func (v Vector) String() string {
	var sb strings.Builder
	sb.Grow(v.n)
	for i := 0; i < v.n; i++ {
		sb.WriteByte('0' + byte(v.words[i/64]>>(i%64))&1)
	}
	return sb.String()
}
