// Package filterbuffer implements the filter pipeline's scatter/gather
// buffer: a sequence of owned-or-view byte segments presented as a single
// logical stream, per the Design Notes §9 instruction to replace void*
// buffers with external length tracking with a small enum of
// {Owned(Arc<Vec<u8>>), View(Arc<Vec<u8>>, offset, len)}. Segment storage is
// grounded on bufpool.Handle. Segments never grow: Write only fills bytes
// that a segment already holds.
package filterbuffer

import (
	"github.com/arraylab/tdbcore/bufpool"
	"github.com/arraylab/tdbcore/tderrors"
)

// segment is either an owned handle or a view into another segment's bytes.
type segment struct {
	handle *bufpool.Handle
	data   []byte // the segment's logical bytes; for a view this is a sub-slice of the viewed handle's bytes
}

func (s *segment) len() int { return len(s.data) }

// Buffer is an ordered list of byte segments forming one logical stream.
type Buffer struct {
	pool      *bufpool.Pool
	segments  []*segment
	offset    int64 // current logical read/write cursor
	size      int64 // sum of segment logical sizes
	readOnly  bool
	fixedOnce bool   // true once set_fixed_allocation has consumed its one-shot mutation
	fixed     bool   // fixed-allocation mode is active
	fixedBacking []byte // externally supplied backing array in fixed-allocation mode
}

// New creates an empty buffer backed by pool for owned-segment allocation.
func New(pool *bufpool.Pool) *Buffer {
	return &Buffer{pool: pool}
}

// Init wraps an externally owned region as the sole segment. Rejected if any
// segments already exist.
func (b *Buffer) Init(data []byte) error {
	if len(b.segments) > 0 {
		return tderrors.E(tderrors.InvalidArgument, "filterbuffer.Init", "buffer already has segments")
	}
	b.segments = []*segment{{data: data}}
	b.size = int64(len(data))
	return nil
}

// SetReadOnly toggles read-only mode; once true, every mutator fails.
func (b *Buffer) SetReadOnly(ro bool) { b.readOnly = ro }

// SetFixedAllocation switches the buffer into fixed-allocation mode,
// permitting exactly one follow-up Prepend or Append that reuses buf.
func (b *Buffer) SetFixedAllocation(buf []byte) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	b.fixed = true
	b.fixedOnce = false
	b.segments = []*segment{{data: buf[:0]}}
	b.fixedBacking = buf
	b.size = 0
	return nil
}

func (b *Buffer) checkMutable() error {
	if b.readOnly {
		return tderrors.E(tderrors.ReadOnly, "filterbuffer", "buffer is read-only")
	}
	return nil
}

// Prepend requests a fresh segment of at least nbytes, places it at the
// head of the segment list, and resets the logical offset to 0.
func (b *Buffer) Prepend(nbytes int) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	if b.fixed {
		if b.fixedOnce {
			return tderrors.E(tderrors.FixedAllocViolation, "filterbuffer.Prepend", "fixed-allocation buffer already consumed its one mutation")
		}
		if nbytes > len(b.fixedBacking) {
			return tderrors.E(tderrors.BufferOverflow, "filterbuffer.Prepend", "fixed allocation too small")
		}
		b.fixedOnce = true
		seg := &segment{data: b.fixedBacking[:nbytes]}
		b.segments = []*segment{seg}
		b.size = int64(nbytes)
		b.offset = 0
		return nil
	}
	h := b.pool.Acquire()
	if cap(h.Bytes) < nbytes {
		h.Bytes = make([]byte, 0, nbytes)
	}
	h.Bytes = h.Bytes[:nbytes]
	seg := &segment{handle: h, data: h.Bytes}
	b.segments = append([]*segment{seg}, b.segments...)
	b.size += int64(nbytes)
	b.offset = 0
	return nil
}

// Append adds a fresh owned segment of at least nbytes to the tail.
func (b *Buffer) Append(nbytes int) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	if b.fixed {
		return b.appendFixed(nbytes)
	}
	h := b.pool.Acquire()
	if cap(h.Bytes) < nbytes {
		h.Bytes = make([]byte, 0, nbytes)
	}
	h.Bytes = h.Bytes[:nbytes]
	seg := &segment{handle: h, data: h.Bytes}
	b.segments = append(b.segments, seg)
	b.size += int64(nbytes)
	return nil
}

func (b *Buffer) appendFixed(nbytes int) error {
	if b.fixedOnce {
		return tderrors.E(tderrors.FixedAllocViolation, "filterbuffer.Append", "fixed-allocation buffer already consumed its one mutation")
	}
	if nbytes > len(b.fixedBacking) {
		return tderrors.E(tderrors.BufferOverflow, "filterbuffer.Append", "fixed allocation too small")
	}
	b.fixedOnce = true
	seg := &segment{data: b.fixedBacking[:nbytes]}
	b.segments = append(b.segments, seg)
	b.size += int64(nbytes)
	return nil
}

// AppendView adds a zero-copy view segment pinning other's memory via a
// reference count (bufpool.Handle.Retain/Release).
func (b *Buffer) AppendView(other *Buffer, offset, nbytes int64) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	data, handle, err := other.sliceAt(offset, nbytes)
	if err != nil {
		return err
	}
	if handle != nil {
		handle.Retain()
	}
	b.segments = append(b.segments, &segment{handle: handle, data: data})
	b.size += nbytes
	return nil
}

// sliceAt locates the segment(s) backing the logical range [offset,
// offset+nbytes) and, when it falls entirely within one segment, returns a
// sub-slice and that segment's handle (nil for segments with no pool
// backing, e.g. ones created via Init).
func (b *Buffer) sliceAt(offset, nbytes int64) ([]byte, *bufpool.Handle, error) {
	if offset < 0 || offset+nbytes > b.size {
		return nil, nil, tderrors.E(tderrors.InvalidArgument, "filterbuffer.sliceAt", "range out of bounds")
	}
	segOff := int64(0)
	for _, seg := range b.segments {
		segLen := int64(seg.len())
		if offset >= segOff && offset+nbytes <= segOff+segLen {
			rel := offset - segOff
			return seg.data[rel : rel+nbytes], seg.handle, nil
		}
		segOff += segLen
	}
	return nil, nil, tderrors.E(tderrors.InvalidArgument, "filterbuffer.sliceAt", "view spans multiple segments, unsupported")
}

// Clear releases all segments. Backing memory referenced by views returns
// to the pool only once every view's Release has run.
func (b *Buffer) Clear() {
	for _, seg := range b.segments {
		if seg.handle != nil {
			seg.handle.Release()
		}
	}
	b.segments = nil
	b.size = 0
	b.offset = 0
	b.fixed = false
	b.fixedOnce = false
	b.fixedBacking = nil
}

// Size returns the logical stream length.
func (b *Buffer) Size() int64 { return b.size }

// Offset returns the current logical cursor.
func (b *Buffer) Offset() int64 { return b.offset }

// SetOffset repositions the logical cursor.
func (b *Buffer) SetOffset(o int64) error {
	if o < 0 || o > b.size {
		return tderrors.E(tderrors.InvalidArgument, "filterbuffer.SetOffset", "offset out of bounds")
	}
	b.offset = o
	return nil
}

// AdvanceOffset moves the cursor forward by delta bytes.
func (b *Buffer) AdvanceOffset(delta int64) error {
	return b.SetOffset(b.offset + delta)
}

// Write copies data into the stream starting at the current offset,
// crossing segment boundaries transparently, and advances the offset.
// Writing past the allocated tail of the last segment fails with
// BufferOverflow; no segment is grown or added.
func (b *Buffer) Write(data []byte) error {
	if err := b.checkMutable(); err != nil {
		return err
	}
	remaining := data
	segOff := int64(0)
	cursor := b.offset
	for _, seg := range b.segments {
		segLen := int64(seg.len())
		if cursor >= segOff+segLen {
			segOff += segLen
			continue
		}
		if len(remaining) == 0 {
			break
		}
		rel := cursor - segOff
		n := int64(len(remaining))
		if n > segLen-rel {
			n = segLen - rel
		}
		copy(seg.data[rel:rel+n], remaining[:n])
		remaining = remaining[n:]
		cursor += n
		segOff += segLen
	}
	if len(remaining) > 0 {
		return tderrors.E(tderrors.BufferOverflow, "filterbuffer.Write", "write past allocated tail")
	}
	b.offset = cursor
	return nil
}

// Read copies len(dst) bytes from the stream starting at the current
// offset into dst, crossing segment boundaries transparently, and advances
// the offset.
func (b *Buffer) Read(dst []byte) error {
	remaining := dst
	segOff := int64(0)
	cursor := b.offset
	for _, seg := range b.segments {
		segLen := int64(seg.len())
		if cursor >= segOff+segLen {
			segOff += segLen
			continue
		}
		if len(remaining) == 0 {
			break
		}
		rel := cursor - segOff
		n := int64(len(remaining))
		if n > segLen-rel {
			n = segLen - rel
		}
		copy(remaining[:n], seg.data[rel:rel+n])
		remaining = remaining[n:]
		cursor += n
		segOff += segLen
	}
	if len(remaining) > 0 {
		return tderrors.E(tderrors.InvalidArgument, "filterbuffer.Read", "read past end of stream")
	}
	b.offset = cursor
	return nil
}
