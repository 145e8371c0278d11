package slab

import (
	"github.com/arraylab/tdbcore/coord"
	"github.com/arraylab/tdbcore/domain"
)

// TileSlabState tracks one attribute's walk through a tile slab's cells, in
// the user's requested order. It survives across resumed calls: a copy that
// stops on overflow resumes from exactly the cell it left off at.
type TileSlabState struct {
	curCoord []int64
	tid      int64
	done     bool
}

// NewTileSlabState starts a walk at the first cell of the slab (its
// slab-normalized lower corner).
func NewTileSlabState[T coord.Value](info Info, slabNorm Slab[T]) *TileSlabState {
	c := make([]int64, len(slabNorm.Ranges))
	for i, r := range slabNorm.Ranges {
		c[i] = coord.ToInt64(r.Lo)
	}
	return &TileSlabState{curCoord: c, tid: info.TileAt(c)}
}

// Done reports whether this attribute's walk has consumed the whole slab.
func (s *TileSlabState) Done() bool { return s.done }

// CopyState tracks how much of the caller-supplied user buffers have been
// consumed, across possibly-resumed copy calls for one attribute.
type CopyState struct {
	UserOffset    int64 // bytes written/read so far in the fixed (or offsets) user buffer
	UserVarOffset int64 // bytes written/read so far in the variable-length user buffer
	Overflow      bool  // true once a copy call could not fit the next cell slab
}

func lowHigh[T coord.Value](slabNorm Slab[T]) ([]int64, []int64) {
	lo := make([]int64, len(slabNorm.Ranges))
	hi := make([]int64, len(slabNorm.Ranges))
	for i, r := range slabNorm.Ranges {
		lo[i] = coord.ToInt64(r.Lo)
		hi[i] = coord.ToInt64(r.Hi)
	}
	return lo, hi
}

// userOrderDims lists dimension indices from fastest-varying to
// slowest-varying under order.
func userOrderDims(d int, order domain.Order) []int {
	dims := make([]int, d)
	if order == domain.RowMajor {
		for i := 0; i < d; i++ {
			dims[i] = d - 1 - i
		}
	} else {
		for i := 0; i < d; i++ {
			dims[i] = i
		}
	}
	return dims
}

// advanceCoord adds delta cells to coordv's fastest-varying dimension under
// order, carrying into successively slower dimensions (mixed-radix
// increment) bounded by [lo,hi] in each dimension. Returns true once the
// coordinate has advanced past the slowest dimension's hi (walk exhausted).
func advanceCoord(coordv, lo, hi []int64, order domain.Order, delta int64) bool {
	dims := userOrderDims(len(coordv), order)
	coordv[dims[0]] += delta
	for i := 0; i < len(dims); i++ {
		d := dims[i]
		span := hi[d] - lo[d] + 1
		if coordv[d] <= hi[d] {
			return false
		}
		overflow := coordv[d] - hi[d] - 1
		coordv[d] = lo[d] + overflow%span
		carry := overflow/span + 1
		if i+1 >= len(dims) {
			return true
		}
		coordv[dims[i+1]] += carry
	}
	return false
}

// cellOffsetWithinTile returns the linear cell offset (in array cell order)
// of coordv within the tile it belongs to, per the tile's CellOffsetPerDim.
func cellOffsetWithinTile(tile TileInfo, coordv []int64) int64 {
	off := int64(0)
	for d := range coordv {
		off += (coordv[d] - tile.RangeOverlap[d].Lo) * tile.CellOffsetPerDim[d]
	}
	return off
}

// CopyFixedRead copies fixed-size cells from the slab's local (already
// filter-reversed) buffer into the user's result buffer, in user order,
// resuming from state/cstate and stopping the instant userBuf can't hold the
// next cell slab. startOffsets is this attribute's row of Info.StartOffsets.
// It returns after either the slab is exhausted (state.Done() becomes true)
// or the user buffer overflows (cstate.Overflow becomes true).
func CopyFixedRead[T coord.Value](info Info, slabNorm Slab[T], userOrder domain.Order, attrSize int64, startOffsets []int64, local []byte, userBuf []byte, state *TileSlabState, cstate *CopyState) {
	if state.done {
		return
	}
	lo, hi := lowHigh(slabNorm)
	for !state.done {
		tile := info.Tiles[state.tid]
		cellSlabLen := info.CellSlabNum[state.tid]
		nBytes := cellSlabLen * attrSize
		if cstate.UserOffset+nBytes > int64(len(userBuf)) {
			cstate.Overflow = true
			return
		}
		srcOff := startOffsets[state.tid] + cellOffsetWithinTile(tile, state.curCoord)*attrSize
		copy(userBuf[cstate.UserOffset:cstate.UserOffset+nBytes], local[srcOff:srcOff+nBytes])
		cstate.UserOffset += nBytes

		if advanceCoord(state.curCoord, lo, hi, userOrder, cellSlabLen) {
			state.done = true
			return
		}
		state.tid = info.TileAt(state.curCoord)
	}
}

// CopyFixedWrite is CopyFixedRead's inverse: it scatters cells from the
// user's input buffer into the slab's local buffer (still in its native
// cell order, pre-filter) so the filter pipeline can run forward over it
// before the tile is serialized to storage.
func CopyFixedWrite[T coord.Value](info Info, slabNorm Slab[T], userOrder domain.Order, attrSize int64, startOffsets []int64, local []byte, userBuf []byte, state *TileSlabState, cstate *CopyState) {
	if state.done {
		return
	}
	lo, hi := lowHigh(slabNorm)
	for !state.done {
		tile := info.Tiles[state.tid]
		cellSlabLen := info.CellSlabNum[state.tid]
		nBytes := cellSlabLen * attrSize
		if cstate.UserOffset+nBytes > int64(len(userBuf)) {
			cstate.Overflow = true
			return
		}
		dstOff := startOffsets[state.tid] + cellOffsetWithinTile(tile, state.curCoord)*attrSize
		copy(local[dstOff:dstOff+nBytes], userBuf[cstate.UserOffset:cstate.UserOffset+nBytes])
		cstate.UserOffset += nBytes

		if advanceCoord(state.curCoord, lo, hi, userOrder, cellSlabLen) {
			state.done = true
			return
		}
		state.tid = info.TileAt(state.curCoord)
	}
}

// CopyVarRead copies variable-length cells: fixed uint64 byte-offsets into
// the user's offsets buffer, and the corresponding variable-length bytes
// from localVar into the user's variable-length buffer. cellLen reports the
// byte length of the cell at a given absolute cell id within the tile's
// local variable data (the reference implementation derives this from the
// tile's own offsets array, stored separately per fieldio.Reader's
// convention of decoding lengths alongside values).
func CopyVarRead[T coord.Value](info Info, slabNorm Slab[T], userOrder domain.Order, localVar []byte, cellLen func(tid int64, cellIdx int64) int64, userOffBuf []byte, userVarBuf []byte, state *TileSlabState, cstate *CopyState) {
	if state.done {
		return
	}
	lo, hi := lowHigh(slabNorm)
	for !state.done {
		tile := info.Tiles[state.tid]
		cellSlabLen := info.CellSlabNum[state.tid]
		offBytes := cellSlabLen * 8
		if cstate.UserOffset+offBytes > int64(len(userOffBuf)) {
			cstate.Overflow = true
			return
		}
		cellIdx := cellOffsetWithinTile(tile, state.curCoord)
		// Compute total variable bytes this cell slab needs before
		// committing, so a var-buffer overflow never leaves the offsets
		// buffer half-written.
		varBytesNeeded := int64(0)
		lens := make([]int64, cellSlabLen)
		for i := int64(0); i < cellSlabLen; i++ {
			lens[i] = cellLen(state.tid, cellIdx+i)
			varBytesNeeded += lens[i]
		}
		if cstate.UserVarOffset+varBytesNeeded > int64(len(userVarBuf)) {
			cstate.Overflow = true
			return
		}

		localVarOff := int64(0)
		for i := int64(0); i < cellIdx; i++ {
			localVarOff += cellLen(state.tid, i)
		}
		for i := int64(0); i < cellSlabLen; i++ {
			putUint64LE(userOffBuf[cstate.UserOffset+i*8:], uint64(cstate.UserVarOffset))
			n := lens[i]
			copy(userVarBuf[cstate.UserVarOffset:cstate.UserVarOffset+n], localVar[localVarOff:localVarOff+n])
			cstate.UserVarOffset += n
			localVarOff += n
		}
		cstate.UserOffset += offBytes

		if advanceCoord(state.curCoord, lo, hi, userOrder, cellSlabLen) {
			state.done = true
			return
		}
		state.tid = info.TileAt(state.curCoord)
	}
}

func putUint64LE(b []byte, v uint64) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
	b[4] = byte(v >> 32)
	b[5] = byte(v >> 40)
	b[6] = byte(v >> 48)
	b[7] = byte(v >> 56)
}
