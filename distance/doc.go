// Package distance provides the Hamming distance kernel for bit-packed binary vectors.
//
// Vectors are packed 64 bits per word (bit i lives in word i/64 at position i%64).
// Distances count differing bits using math/bits popcount, which the compiler
// lowers to POPCNT/CNT instructions where available.
//
// # Usage
//
//	d := distance.Hamming(a, b) // packed uint64 words
package distance
