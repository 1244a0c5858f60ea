package distance

import "math/bits"

// Hamming returns the number of differing bits between two packed word slices.
// Assumes slices are the same length (caller's responsibility); extra words
// in the longer slice are ignored.
func Hamming(a, b []uint64) int {
	n := min(len(a), len(b))
	a, b = a[:n], b[:n]

	var dist int

	i := 0
	for ; i+4 <= n; i += 4 {
		dist += bits.OnesCount64(a[i]^b[i]) +
			bits.OnesCount64(a[i+1]^b[i+1]) +
			bits.OnesCount64(a[i+2]^b[i+2]) +
			bits.OnesCount64(a[i+3]^b[i+3])
	}

	for ; i < n; i++ {
		dist += bits.OnesCount64(a[i] ^ b[i])
	}

	return dist
}
