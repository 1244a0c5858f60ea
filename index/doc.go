// Package index provides the types shared by the LSH stores and the ensemble
// index: search results, occupancy statistics and index-level error kinds.
//
// # Result Ordering
//
// Results are ordered by ascending Hamming distance. Ties keep the order in
// which candidates were gathered (bands in order, replicas in order), so a
// seeded index answers identically across runs.
//
// # Merging
//
// MergeUnique combines per-store result lists into one list with each point
// ID appearing once. The first occurrence wins; later duplicates are dropped
// even if they report a different distance.
package index
