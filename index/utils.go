package index

import (
	"slices"

	"github.com/hupe1980/hamlsh/internal/idset"
)

// SortResults sorts results by ascending distance, keeping the relative
// order of equal distances.
func SortResults(results []SearchResult) {
	slices.SortStableFunc(results, func(a, b SearchResult) int {
		return a.Distance - b.Distance
	})
}

// TopK sorts results and truncates them to at most k entries.
func TopK(results []SearchResult, k int) []SearchResult {
	SortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// MergeUnique merges result lists in the given order into a single list of at
// most k results without duplicate IDs. The first occurrence of an ID wins.
func MergeUnique(k int, lists ...[]SearchResult) []SearchResult {
	seen := idset.Get()
	defer idset.Put(seen)

	var total int
	for _, l := range lists {
		total += len(l)
	}

	merged := make([]SearchResult, 0, total)
	for _, l := range lists {
		for _, r := range l {
			if seen.Add(r.ID) {
				merged = append(merged, r)
			}
		}
	}

	return TopK(merged, k)
}
