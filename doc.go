// Package hamlsh provides approximate nearest neighbour search over binary
// vectors in Hamming space using locality-sensitive hashing.
//
// An Index is an ensemble of independent LSH tables (replicas). Each table
// hashes a vector with several bands of random bit projections and keeps it
// in fixed-capacity buckets. Queries probe a bounded number of buckets per
// table, rerank the candidates by exact Hamming distance and merge the
// per-table results.
//
// # Quick Start
//
//	idx, err := hamlsh.New(512, 2, 0.5, // size, r, margin
//	    hamlsh.WithHashBits(16),
//	    hamlsh.WithReplicas(4),
//	    hamlsh.WithSeed(42),
//	)
//	if err != nil {
//	    return err
//	}
//
//	if err := idx.Fit(ctx, data); err != nil {
//	    return err
//	}
//
//	results, err := idx.KNeighbours(ctx, query, 10)
//	for _, r := range results {
//	    fmt.Println(r.ID, r.Distance)
//	}
//
// # Parameters
//
// Points within distance r are similar, points beyond r*(1+margin) are
// distinct. The vector dimension is derived from either the number of bit
// hashes per band (WithHashBits) or the single-bit collision probability for
// similar points (WithCollisionProbability). The replica count is given
// directly (WithReplicas) or as ceil(1/tol) (WithTolerance).
//
// Per replica the index derives:
//
//	p1, p2       = 1 - r1/d, 1 - r2/d
//	hash_bits    = ceil(log(B/N) / log(p2))
//	hash_groups  = ceil((N/B)^rho),  rho = log(1/p1) / log(1/p2)
//	storage_size = ceil(mu * N / B)
//
// with N the expected size, B the bucket size and mu the memory utilization.
//
// # Lossy Buckets
//
// Buckets never grow beyond their capacity. A band whose bucket is full
// drops the point for that band; Stats reports how many insertions were
// dropped. Queries gather at most 4*hash_groups candidates per replica, so
// search cost is independent of the dataset size.
//
// # Variable-length Vectors
//
// Vectors shorter than the dimension are treated as left-padded with zeros,
// both when hashing and when computing distances. Longer vectors are
// rejected with ErrVectorTooLong.
package hamlsh
