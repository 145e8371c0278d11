// Package slab implements the tile-slab iterator, the slab-info calculator,
// the resumable copy engine and its attendant state types. These are the
// "hard engineering" pieces of the cell re-layout pipeline: translating
// between the user's subarray order and the array's global cell order one
// tile-aligned slab at a time.
package slab

import (
	"github.com/arraylab/tdbcore/coord"
	"github.com/arraylab/tdbcore/domain"
)

// Slab is one tile-aligned sub-box of the expanded subarray: exactly one
// tile wide along the slowest-varying dimension of the user's requested
// order, full extent along every faster dimension.
type Slab[T coord.Value] struct {
	Ranges []coord.Range[T]
}

// Iterator produces successive tile slabs of an expanded subarray in the
// user's requested order. It walks the *expanded* subarray (which is tile
// boundary aligned at both ends by construction), so every slab except
// possibly the last is exactly one full tile wide along the slow dimension;
// the union of all slabs produced equals the expanded subarray exactly. It
// never fails; exhaustion is reported by Next returning ok=false.
type Iterator[T coord.Value] struct {
	expanded domain.Subarray[T]
	doms     []domain.Domain[T]
	prev     *Slab[T]
	slowDim  int // 0 for row-major, NumDims-1 for col-major
	done     bool
	empty    bool
}

// NewIterator builds an iterator over subarray's expanded region, walking
// slabs in the given user order.
func NewIterator[T coord.Value](order domain.Order, subarray domain.Subarray[T], doms []domain.Domain[T]) *Iterator[T] {
	it := &Iterator[T]{doms: doms}
	if subarray.NumDims() == 0 {
		it.empty = true
		return it
	}
	for _, r := range subarray.Ranges {
		if coord.ToInt64(r.Hi) < coord.ToInt64(r.Lo) {
			it.empty = true
			return it
		}
	}
	it.expanded = domain.Expand(subarray, doms)
	if order == domain.ColMajor {
		it.slowDim = subarray.NumDims() - 1
	}
	return it
}

// Next returns the next slab in sequence, or ok=false when the expanded
// subarray is exhausted.
func (it *Iterator[T]) Next() (Slab[T], bool) {
	if it.done || it.empty {
		return Slab[T]{}, false
	}
	d := it.slowDim
	slowDom := it.doms[d]

	s := Slab[T]{Ranges: make([]coord.Range[T], len(it.expanded.Ranges))}
	copy(s.Ranges, it.expanded.Ranges)

	if it.prev == nil {
		s.Ranges[d].Lo = it.expanded.Ranges[d].Lo
	} else {
		s.Ranges[d].Lo = coord.Add[T](it.prev.Ranges[d].Hi, 1)
	}
	if slowDom.HasExtent() {
		boundary := coord.RoundUpToTileBoundary(coord.Add[T](s.Ranges[d].Lo, coord.ToInt64(slowDom.Extent)), slowDom.Range.Lo, slowDom.Extent)
		hi := coord.Add[T](boundary, -1)
		s.Ranges[d].Hi = minT(it.expanded.Ranges[d].Hi, hi)
	} else {
		s.Ranges[d].Hi = it.expanded.Ranges[d].Hi
	}

	prev := s
	it.prev = &prev
	if coord.ToInt64(s.Ranges[d].Hi) >= coord.ToInt64(it.expanded.Ranges[d].Hi) {
		it.done = true
	}
	return s, true
}

func minT[T coord.Value](a, b T) T {
	if coord.ToInt64(a) < coord.ToInt64(b) {
		return a
	}
	return b
}

// Normalized returns s translated so that each dimension's domain origin
// becomes zero.
func Normalized[T coord.Value](s Slab[T], doms []domain.Domain[T]) Slab[T] {
	out := Slab[T]{Ranges: make([]coord.Range[T], len(s.Ranges))}
	for i, r := range s.Ranges {
		out.Ranges[i] = domain.Normalize(r, doms[i].Range.Lo)
	}
	return out
}
