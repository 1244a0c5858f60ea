// Package bucket implements one LSH table over binary vectors.
//
// A Store owns hash_groups bands (lsh.HashGroup) and a fixed array of
// storage_size buckets, each holding at most BucketSize points. The
// parameters are derived once from the dataset size, the bucket size and
// the collision probabilities of the hash family:
//
//	hash_bits    = ceil(log(B/N) / log(p2))
//	hash_groups  = ceil((N/B)^rho)
//	storage_size = ceil(mu * N / B)
//
// Insertion is lossy: a band whose bucket is full drops the point for that
// band. Queries probe bands in order and stop once 4*hash_groups candidates
// were gathered, so query cost does not grow with the dataset.
//
// A Store is not safe for concurrent Put. Concurrent queries are safe once
// all insertions have completed.
package bucket
