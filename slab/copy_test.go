package slab

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/arraylab/tdbcore/coord"
	"github.com/arraylab/tdbcore/domain"
)

// buildLocal4x4ColMajor stores a 4x4 int32 array physically in column-major
// cell order (tiled 2x2), with each cell holding its row-major logical
// linear value (1..16). A row-major read must reconstruct 1..16 regardless
// of the column-major physical layout; that reconstruction is the point of
// end-to-end scenario S5.
func buildLocal4x4ColMajor(info Info) []byte {
	buf := make([]byte, 16*4)
	for tid := int64(0); tid < info.TileNum; tid++ {
		tile := info.Tiles[tid]
		base := info.StartOffsets[0][tid]
		for r := tile.RangeOverlap[0].Lo; r <= tile.RangeOverlap[0].Hi; r++ {
			for c := tile.RangeOverlap[1].Lo; c <= tile.RangeOverlap[1].Hi; c++ {
				coordv := []int64{r, c}
				off := base + cellOffsetWithinTile(tile, coordv)*4
				val := int32(1 + r*4 + c)
				binary.LittleEndian.PutUint32(buf[off:], uint32(val))
			}
		}
	}
	return buf
}

// TestCopyFixedReadRowMajorOverColMajorArray reproduces end-to-end scenario
// S5: reading a 4x4 column-major array in row-major order must yield
// 1,2,...,16 in that order.
func TestCopyFixedReadRowMajorOverColMajorArray(t *testing.T) {
	doms := []domain.Domain[int32]{
		{Range: coord.Range[int32]{Lo: 0, Hi: 3}, Extent: 2},
		{Range: coord.Range[int32]{Lo: 0, Hi: 3}, Extent: 2},
	}
	slabNorm := Slab[int32]{Ranges: []coord.Range[int32]{{Lo: 0, Hi: 3}, {Lo: 0, Hi: 3}}}
	info := Compute[int32](slabNorm, doms, domain.RowMajor, domain.ColMajor, []AttrSpec{{Size: 4}}, false)
	local := buildLocal4x4ColMajor(info)

	userBuf := make([]byte, 16*4)
	state := NewTileSlabState[int32](info, slabNorm)
	cstate := &CopyState{}
	CopyFixedRead[int32](info, slabNorm, domain.RowMajor, 4, info.StartOffsets[0], local, userBuf, state, cstate)

	require.True(t, state.Done())
	require.False(t, cstate.Overflow)
	for i := 0; i < 16; i++ {
		got := int32(binary.LittleEndian.Uint32(userBuf[i*4:]))
		require.Equal(t, int32(i+1), got)
	}
}

// TestCopyFixedReadOverflowResumes reproduces end-to-end scenario S6: a user
// buffer too small to hold the whole slab must stop cleanly with Overflow
// set and no partial cell written, then a resumed call with state/cstate
// carried forward must pick up exactly where it left off.
func TestCopyFixedReadOverflowResumes(t *testing.T) {
	doms := []domain.Domain[int32]{
		{Range: coord.Range[int32]{Lo: 0, Hi: 3}, Extent: 2},
		{Range: coord.Range[int32]{Lo: 0, Hi: 3}, Extent: 2},
	}
	slabNorm := Slab[int32]{Ranges: []coord.Range[int32]{{Lo: 0, Hi: 3}, {Lo: 0, Hi: 3}}}
	info := Compute[int32](slabNorm, doms, domain.RowMajor, domain.ColMajor, []AttrSpec{{Size: 4}}, false)
	local := buildLocal4x4ColMajor(info)

	// Row-major/col-major disagreement forces a 1-cell cell-slab length, so a
	// 6-cell buffer overflows partway through the walk.
	userBuf := make([]byte, 6*4)
	state := NewTileSlabState[int32](info, slabNorm)
	cstate := &CopyState{}
	CopyFixedRead[int32](info, slabNorm, domain.RowMajor, 4, info.StartOffsets[0], local, userBuf, state, cstate)

	require.True(t, cstate.Overflow)
	require.False(t, state.Done())
	require.Equal(t, int64(6*4), cstate.UserOffset)
	for i := 0; i < 6; i++ {
		got := int32(binary.LittleEndian.Uint32(userBuf[i*4:]))
		require.Equal(t, int32(i+1), got)
	}

	// Resume into a fresh, larger buffer; cstate.Overflow must be cleared by
	// the caller (mirroring the reference coordinator's per-call reset) but
	// UserOffset starts back at 0 against the new buffer.
	cstate.Overflow = false
	cstate.UserOffset = 0
	rest := make([]byte, 10*4)
	CopyFixedRead[int32](info, slabNorm, domain.RowMajor, 4, info.StartOffsets[0], local, rest, state, cstate)
	require.True(t, state.Done())
	require.False(t, cstate.Overflow)
	for i := 0; i < 10; i++ {
		got := int32(binary.LittleEndian.Uint32(rest[i*4:]))
		require.Equal(t, int32(i+7), got)
	}
}

// TestCopyFixedWriteRoundTrips scatters a row-major user buffer (1..16) into
// a column-major array layout, then reads it back in row-major order and
// checks it matches the original input exactly.
func TestCopyFixedWriteRoundTrips(t *testing.T) {
	doms := []domain.Domain[int32]{
		{Range: coord.Range[int32]{Lo: 0, Hi: 3}, Extent: 2},
		{Range: coord.Range[int32]{Lo: 0, Hi: 3}, Extent: 2},
	}
	slabNorm := Slab[int32]{Ranges: []coord.Range[int32]{{Lo: 0, Hi: 3}, {Lo: 0, Hi: 3}}}
	info := Compute[int32](slabNorm, doms, domain.RowMajor, domain.ColMajor, []AttrSpec{{Size: 4}}, true)

	userIn := make([]byte, 16*4)
	for i := 0; i < 16; i++ {
		binary.LittleEndian.PutUint32(userIn[i*4:], uint32(i+1))
	}
	local := make([]byte, 16*4)
	wstate := NewTileSlabState[int32](info, slabNorm)
	wcstate := &CopyState{}
	CopyFixedWrite[int32](info, slabNorm, domain.RowMajor, 4, info.StartOffsets[0], local, userIn, wstate, wcstate)
	require.True(t, wstate.Done())
	require.False(t, wcstate.Overflow)

	userOut := make([]byte, 16*4)
	rstate := NewTileSlabState[int32](info, slabNorm)
	rcstate := &CopyState{}
	CopyFixedRead[int32](info, slabNorm, domain.RowMajor, 4, info.StartOffsets[0], local, userOut, rstate, rcstate)
	require.True(t, rstate.Done())
	require.False(t, rcstate.Overflow)
	require.Equal(t, userIn, userOut)
}
