package lsh

import (
	"errors"
	"fmt"

	"github.com/hupe1980/hamlsh/bitvec"
)

// HashGroup is one band: several BitHash outputs folded into a single key
// sum(base_i * bit_i).
type HashGroup struct {
	dimension int
	hashes    []BitHash
	bases     []uint64
}

// NewHashGroup builds a band from hashes and bases. If bases is nil, each
// base is drawn uniformly from [0, len(hashes)) using rng.
func NewHashGroup(hashes []BitHash, bases []uint64, rng Rand) (*HashGroup, error) {
	if len(hashes) == 0 {
		return nil, errors.New("lsh: hash group needs at least one hash")
	}

	dim := hashes[0].dimension
	for i, h := range hashes {
		if h.dimension != dim {
			return nil, fmt.Errorf("lsh: hash %d has dimension %d, want %d", i, h.dimension, dim)
		}
	}

	g := &HashGroup{
		dimension: dim,
		hashes:    make([]BitHash, len(hashes)),
	}
	copy(g.hashes, hashes)

	switch {
	case bases != nil:
		if len(bases) != len(hashes) {
			return nil, fmt.Errorf("lsh: %d bases for %d hashes", len(bases), len(hashes))
		}
		g.bases = make([]uint64, len(bases))
		copy(g.bases, bases)
	case rng != nil:
		g.bases = make([]uint64, len(hashes))
		for i := range g.bases {
			g.bases[i] = uint64(rng.Intn(len(hashes)))
		}
	default:
		return nil, errors.New("lsh: bases or a random source are required")
	}

	return g, nil
}

// RandomHashGroup draws bits fresh members of f and random bases.
func RandomHashGroup(f Family, bits int, rng Rand) (*HashGroup, error) {
	if bits <= 0 {
		return nil, fmt.Errorf("lsh: hash bits must be positive, got %d", bits)
	}
	hashes := make([]BitHash, bits)
	for i := range hashes {
		hashes[i] = f.New(rng)
	}
	return NewHashGroup(hashes, nil, rng)
}

// Len returns the number of hashes in the group.
func (g *HashGroup) Len() int { return len(g.hashes) }

// Dimension returns the dimension shared by all hashes.
func (g *HashGroup) Dimension() int { return g.dimension }

// Bases returns a copy of the positional weights.
func (g *HashGroup) Bases() []uint64 {
	out := make([]uint64, len(g.bases))
	copy(out, g.bases)
	return out
}

// Hashes returns a copy of the member hashes.
func (g *HashGroup) Hashes() []BitHash {
	out := make([]BitHash, len(g.hashes))
	copy(out, g.hashes)
	return out
}

// Eval returns the band key of v.
func (g *HashGroup) Eval(v bitvec.Vector) (uint64, error) {
	if v.Len() > g.dimension {
		return 0, &ErrVectorTooLong{Dimension: g.dimension, Length: v.Len()}
	}

	var key uint64
	for i, h := range g.hashes {
		key += g.bases[i] * h.eval(v)
	}
	return key, nil
}
