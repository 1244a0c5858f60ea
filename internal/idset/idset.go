// Package idset provides a compressed set of point IDs backed by a Roaring bitmap.
//
// It is used to deduplicate neighbours gathered from several independent
// stores: membership is O(1) amortized and insertion order is irrelevant.
package idset

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Set is a set of uint32 IDs. The zero value is not usable; call Get.
type Set struct {
	rb *roaring.Bitmap
}

var pool = sync.Pool{
	New: func() any {
		return &Set{rb: roaring.New()}
	},
}

// Get takes an empty set from the pool. Call Put when done.
func Get() *Set {
	s := pool.Get().(*Set)
	s.rb.Clear()
	return s
}

// Put returns s to the pool.
func Put(s *Set) {
	if s == nil {
		return
	}
	s.rb.Clear()
	pool.Put(s)
}

// Add inserts id and reports whether it was not already present.
func (s *Set) Add(id uint32) bool {
	return s.rb.CheckedAdd(id)
}

// Contains reports whether id is in the set.
func (s *Set) Contains(id uint32) bool {
	return s.rb.Contains(id)
}

// Len returns the number of IDs in the set.
func (s *Set) Len() int {
	return int(s.rb.GetCardinality())
}

// Clear removes all IDs.
func (s *Set) Clear() {
	s.rb.Clear()
}

// ToSlice returns the IDs in ascending order.
func (s *Set) ToSlice() []uint32 {
	return s.rb.ToArray()
}
