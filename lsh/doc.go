// Package lsh implements the locality-sensitive hash primitives for binary
// vectors under Hamming distance.
//
// A Family is the classical (r1, r2, p1, p2) bit-sampling family: each member
// (BitHash) returns one randomly chosen coordinate of its input. Two points at
// distance r collide under a random member with probability 1 - r/d.
//
// A HashGroup combines several BitHash outputs into one integer band key as a
// weighted sum with per-hash integer bases. Bases are drawn from [0, k) and may
// repeat, so the key is not a bit-concatenation: distinct bit patterns can map
// to the same key. This is the scheme's collision semantics and is kept as is.
//
// All randomness comes from an explicit Rand, so hash draws are reproducible
// with a seeded source:
//
//	rng := rand.New(rand.NewSource(42))
//	fam := lsh.NewFamily(64, 4, 0.5)
//	g, _ := lsh.RandomHashGroup(fam, 12, rng)
//	key, _ := g.Eval(v)
package lsh
