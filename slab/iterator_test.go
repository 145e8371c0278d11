package slab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arraylab/tdbcore/coord"
	"github.com/arraylab/tdbcore/domain"
)

func dims4x4() []domain.Domain[int32] {
	return []domain.Domain[int32]{
		{Range: coord.Range[int32]{Lo: 0, Hi: 3}, Extent: 2},
		{Range: coord.Range[int32]{Lo: 0, Hi: 3}, Extent: 2},
	}
}

func TestIteratorCoversExpandedSubarrayExactly(t *testing.T) {
	doms := dims4x4()
	sub := domain.Subarray[int32]{Ranges: []coord.Range[int32]{{Lo: 1, Hi: 3}, {Lo: 0, Hi: 3}}}
	it := NewIterator[int32](domain.RowMajor, sub, doms)
	var slabs []Slab[int32]
	for {
		s, ok := it.Next()
		if !ok {
			break
		}
		slabs = append(slabs, s)
	}
	expanded := domain.Expand(sub, doms)
	require.NotEmpty(t, slabs)
	require.Equal(t, expanded.Ranges[0].Lo, slabs[0].Ranges[0].Lo)
	last := slabs[len(slabs)-1]
	require.Equal(t, expanded.Ranges[0].Hi, last.Ranges[0].Hi)
	// Consecutive slabs must be adjacent along the slow axis.
	for i := 1; i < len(slabs); i++ {
		require.Equal(t, coord.ToInt64(slabs[i-1].Ranges[0].Hi)+1, coord.ToInt64(slabs[i].Ranges[0].Lo))
		for d := 1; d < len(slabs[i].Ranges); d++ {
			require.Equal(t, expanded.Ranges[d], slabs[i].Ranges[d])
		}
	}
}

func TestIteratorEmptySubarray(t *testing.T) {
	doms := dims4x4()
	sub := domain.Subarray[int32]{Ranges: []coord.Range[int32]{{Lo: 3, Hi: 1}, {Lo: 0, Hi: 3}}}
	it := NewIterator[int32](domain.RowMajor, sub, doms)
	_, ok := it.Next()
	require.False(t, ok)
}

func TestIteratorSingleTileSubarray(t *testing.T) {
	doms := dims4x4()
	sub := domain.Subarray[int32]{Ranges: []coord.Range[int32]{{Lo: 0, Hi: 1}, {Lo: 0, Hi: 1}}}
	it := NewIterator[int32](domain.RowMajor, sub, doms)
	_, ok := it.Next()
	require.True(t, ok)
	_, ok = it.Next()
	require.False(t, ok)
}

func TestIteratorColumnMajorUsesLastDimAsSlow(t *testing.T) {
	doms := dims4x4()
	sub := domain.Subarray[int32]{Ranges: []coord.Range[int32]{{Lo: 0, Hi: 3}, {Lo: 0, Hi: 3}}}
	it := NewIterator[int32](domain.ColMajor, sub, doms)
	s, ok := it.Next()
	require.True(t, ok)
	require.Equal(t, int32(1), s.Ranges[1].Hi-s.Ranges[1].Lo)
	require.Equal(t, doms[0].Range, s.Ranges[0])
}
