// Package testutil provides testing utilities for hamlsh.
//
// This package is intended for use in tests and benchmarks only.
// It provides helpers for generating random binary vectors, computing exact
// nearest neighbours, and verifying search recall.
//
// # Random Vector Generation
//
//	rng := testutil.NewRNG(seed)
//	data := rng.BinaryVectors(512, 32)    // uniform bits
//	q := rng.Perturb(data[0], 2)          // data[0] with 2 bits flipped
//
// # Exact Search (Ground Truth)
//
//	results := testutil.ExactTopK(q, data, k)
//
// # Recall Verification
//
//	recall := testutil.ComputeRecall(exactResults, approxResults)
package testutil
