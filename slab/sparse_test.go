package slab

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arraylab/tdbcore/coord"
)

func TestCopySparseReadFiltersAndCopies(t *testing.T) {
	slabNorm := Slab[int32]{Ranges: []coord.Range[int32]{{Lo: 0, Hi: 3}, {Lo: 0, Hi: 3}}}
	cells := []SparseCell{
		{Coord: []int64{0, 0}, Index: 0},
		{Coord: []int64{5, 5}, Index: 1}, // out of bounds, must be skipped
		{Coord: []int64{1, 2}, Index: 2},
		{Coord: []int64{3, 3}, Index: 3},
	}
	local := []byte{
		1, 0, 0, 0,
		9, 9, 9, 9,
		2, 0, 0, 0,
		3, 0, 0, 0,
	}
	state := NewSparseState(cells)
	cstate := &CopyState{}
	userBuf := make([]byte, 64)
	var outCoords [][]int64

	CopySparseRead[int32](slabNorm, 4, local, userBuf, &outCoords, state, cstate)

	require.False(t, cstate.Overflow)
	require.True(t, state.Done())
	want := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}
	require.Equal(t, want, userBuf[:12])
	require.Len(t, outCoords, 3)
}

func TestCopySparseReadOverflowResumes(t *testing.T) {
	slabNorm := Slab[int32]{Ranges: []coord.Range[int32]{{Lo: 0, Hi: 9}}}
	cells := []SparseCell{
		{Coord: []int64{0}, Index: 0},
		{Coord: []int64{1}, Index: 1},
		{Coord: []int64{2}, Index: 2},
	}
	local := []byte{1, 0, 0, 0, 2, 0, 0, 0, 3, 0, 0, 0}
	state := NewSparseState(cells)
	cstate := &CopyState{}

	small := make([]byte, 8) // room for exactly two cells
	var coords1 [][]int64
	CopySparseRead[int32](slabNorm, 4, local, small, &coords1, state, cstate)
	require.True(t, cstate.Overflow)
	require.False(t, state.Done())
	require.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0}, small)

	cstate.Overflow = false
	cstate.UserOffset = 0
	fresh := make([]byte, 8)
	var coords2 [][]int64
	CopySparseRead[int32](slabNorm, 4, local, fresh, &coords2, state, cstate)
	require.False(t, cstate.Overflow)
	require.True(t, state.Done())
	require.Equal(t, []byte{3, 0, 0, 0}, fresh[:4])
}
