package pipeline

import (
	"context"
	"sync"

	"v.io/x/lib/vlog"

	"github.com/arraylab/tdbcore/coord"
	"github.com/arraylab/tdbcore/domain"
	"github.com/arraylab/tdbcore/filter"
	"github.com/arraylab/tdbcore/slab"
	"github.com/arraylab/tdbcore/storage"
	"github.com/arraylab/tdbcore/tderrors"
)

// localBufSize returns the byte size of the per-slab local buffer the copy
// engine scatters/gathers cells into: one tile's worth of cells, summed
// over every tile the slab touches.
func localBufSize(info slab.Info, attrSize int64) int64 {
	if info.TileNum == 0 {
		return 0
	}
	last := info.TileNum - 1
	return info.StartOffsets[0][last] + info.Tiles[last].TileCellNum*attrSize
}

// RunWrite implements the §4.4 write-side coordinator loop for one
// attribute: it walks userData's subarray one tile slab at a time via it,
// scatters each slab's cells into a local buffer with slab.CopyFixedWrite,
// runs the filter pipeline forward over that buffer, and hands the result
// to the Coordinator. Because Coordinator.Submit alternates between its two
// slots and blocks only until the slot it picks is free, slab k+1's
// copy_tile_slab work naturally overlaps slab k's still-in-flight flush — RunWrite doesn't
// need to manage that overlap itself, only call Submit once per slab in
// order.
//
// When the array's physical tile order disagrees with the user's write
// order (SeparatesFragments), a single slab's bytes land scattered rather
// than contiguous; RunWrite brackets that slab's submit call with
// SetState(ResumePostMid)/(ResumePostEnd) and then sets ResumeNone before
// the next slab, without waiting for the flush. The state therefore does
// not show whether a slab's flush has landed.
func RunWrite[T coord.Value](
	ctx context.Context,
	c *Coordinator,
	idx *storage.FragmentIndex,
	attrID int,
	it *slab.Iterator[T],
	doms []domain.Domain[T],
	userOrder, arrayOrder domain.Order,
	attr slab.AttrSpec,
	userData []byte,
	pl *filter.Pipeline,
	opts filter.Options,
) error {
	cstate := &slab.CopyState{}
	separates := SeparatesFragments(userOrder, arrayOrder)
	var idxMu sync.Mutex
	var slabID int64

	for {
		s, ok := it.Next()
		if !ok {
			break
		}
		slabNorm := slab.Normalized(s, doms)
		info := slab.Compute[T](slabNorm, doms, userOrder, arrayOrder, []slab.AttrSpec{attr}, true)
		local := make([]byte, localBufSize(info, attr.Size))

		state := slab.NewTileSlabState[T](info, slabNorm)
		slab.CopyFixedWrite[T](info, slabNorm, userOrder, attr.Size, info.StartOffsets[0], local, userData, state, cstate)
		if cstate.Overflow {
			return tderrors.E(tderrors.BufferOverflow, "pipeline.RunWrite", "user buffer does not cover the full subarray")
		}
		if !state.Done() {
			return tderrors.E(tderrors.Other, "pipeline.RunWrite", "slab failed to consume its full cell range")
		}

		meta, filtered, err := pl.Forward([]filter.Part{local}, opts)
		if err != nil {
			return err
		}
		frame := EncodeFrame(meta, filtered)

		sum, err := storage.Checksum(storage.ChecksumSeahash, frame)
		if err != nil {
			return err
		}

		if separates {
			c.SetState(ResumePostMid)
		}
		id := slabID
		c.SubmitIndexed(ctx, frame, func(off int64) {
			idxMu.Lock()
			idx.Put(attrID, id, storage.TileLocation{Offset: off, Size: int64(len(frame)), OrigSize: int64(len(local)), Checksum: sum})
			idxMu.Unlock()
		})
		if separates {
			c.SetState(ResumePostEnd)
		}
		vlog.VI(1).Infof("pipeline: submitted slab %d (%d -> %d bytes) for attribute %d", slabID, len(local), len(frame), attrID)
		c.SetState(ResumeNone)
		slabID++
	}

	if err := c.Drain(); err != nil {
		return err
	}
	return c.Err()
}

// RunRead implements the §4.4 read-side loop: it walks subarray's tile
// slabs via it in the same order RunWrite wrote them, fetches each slab's
// persisted frame from storage through the Coordinator's two-slot gate
// (the same async worker pool RunWrite's flushes use, here running a read
// instead), reverses the filter pipeline, and scatters the recovered
// cells into userBuf with slab.CopyFixedRead, resuming across slabs
// through a single CopyState the way CopyFixedRead itself resumes within
// one slab.
//
// RunRead returns the number of bytes written to userBuf. If userBuf can't
// hold the whole subarray it returns a tderrors.BufferOverflow error after
// filling userBuf as far as it goes. RunRead keeps no position between
// calls: each call numbers the slabs it looks up in idx from 0, and the
// cells of the overflowing slab that were not copied are not carried over
// to a later call.
func RunRead[T coord.Value](
	ctx context.Context,
	c *Coordinator,
	idx *storage.FragmentIndex,
	attrID int,
	it *slab.Iterator[T],
	doms []domain.Domain[T],
	userOrder, arrayOrder domain.Order,
	attr slab.AttrSpec,
	userBuf []byte,
	pl *filter.Pipeline,
	opts filter.Options,
) (int64, error) {
	cstate := &slab.CopyState{}
	backend := c.Backend()
	var slabID int64

	for {
		s, ok := it.Next()
		if !ok {
			break
		}
		slabNorm := slab.Normalized(s, doms)
		info := slab.Compute[T](slabNorm, doms, userOrder, arrayOrder, []slab.AttrSpec{attr}, false)

		loc, err := idx.Get(attrID, slabID)
		if err != nil {
			return cstate.UserOffset, err
		}
		frame := make([]byte, loc.Size)
		fut := c.submitFunc(func() error {
			_, rerr := backend.ReadFromFile(ctx, frame, loc.Offset)
			return rerr
		})
		if err := fut.Wait(); err != nil {
			return cstate.UserOffset, err
		}
		if loc.Checksum != 0 {
			if err := storage.Verify(storage.ChecksumSeahash, frame, loc.Checksum); err != nil {
				return cstate.UserOffset, err
			}
		}

		meta, data, err := DecodeFrame(frame)
		if err != nil {
			return cstate.UserOffset, err
		}
		back, err := pl.Reverse(meta, data, opts)
		if err != nil {
			return cstate.UserOffset, err
		}
		if len(back) == 0 {
			return cstate.UserOffset, tderrors.E(tderrors.CompressionError, "pipeline.RunRead", "filter pipeline produced no data parts")
		}
		local := back[0]

		state := slab.NewTileSlabState[T](info, slabNorm)
		slab.CopyFixedRead[T](info, slabNorm, userOrder, attr.Size, info.StartOffsets[0], local, userBuf, state, cstate)
		if cstate.Overflow {
			return cstate.UserOffset, tderrors.E(tderrors.BufferOverflow, "pipeline.RunRead", "result buffer too small; call again with a larger buffer to resume")
		}
		vlog.VI(1).Infof("pipeline: consumed slab %d (%d bytes) for attribute %d", slabID, len(frame), attrID)
		slabID++
	}
	return cstate.UserOffset, c.Err()
}
