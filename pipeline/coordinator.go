// Package pipeline implements the §4.4 async I/O coordinator: a two-slot
// double-buffered handoff between the cell re-layout copy engine and a
// storage.Backend, so the next tile slab can be filled while the previous
// one is still being filtered and flushed. Grounded on the teacher's
// fieldio.Writer double-buffering (encoding/pam/fieldio/writer.go): its
// WriteBufPool is a capacity-N syncqueue.LIFO of reusable buffers, NewBuf
// blocks when none are free, and FlushBuf hands the full buffer to an
// async recordio flush that returns it to the pool on completion.
// Coordinator generalizes that to exactly two slots with an explicit
// resume-state enum instead of recordio's own bookkeeping.
package pipeline

import (
	"context"
	"sync"

	"github.com/arraylab/tdbcore/domain"
	"github.com/arraylab/tdbcore/storage"
	"github.com/arraylab/tdbcore/tderrors"
)

// ResumeState is a marker that callers record with SetState and read back
// with State. The coordinator only stores it; Submit and SubmitIndexed do
// not consult it.
type ResumeState int

const (
	// ResumeNone: no marker set. RunWrite returns the state to this value
	// after every slab.
	ResumeNone ResumeState = iota
	// ResumePostMid: RunWrite sets this just before submitting a slab whose
	// cells land scattered (SeparatesFragments holds).
	ResumePostMid
	// ResumePostEnd: RunWrite sets this once that slab's submit call has
	// returned; the flush itself may still be in flight.
	ResumePostEnd
)

// FlushFunc performs the actual storage write for one filled slot. It
// receives the slot's bytes and the backend to write them to, and returns
// the offset they landed at.
type FlushFunc func(ctx context.Context, backend storage.Backend, data []byte) (offset int64, err error)

type slot struct {
	mu      sync.Mutex
	cond    *sync.Cond
	busy    bool // true while a flush for this slot is in flight
	lastErr error
}

func newSlot() *slot {
	s := &slot{}
	s.cond = sync.NewCond(&s.mu)
	return s
}

// acquire blocks until the slot is not busy, then marks it busy.
func (s *slot) acquire() {
	s.mu.Lock()
	for s.busy {
		s.cond.Wait()
	}
	s.busy = true
	s.mu.Unlock()
}

// release marks the slot free and records err, waking any waiter blocked in
// acquire or Drain.
func (s *slot) release(err error) {
	s.mu.Lock()
	s.busy = false
	s.lastErr = err
	s.cond.Broadcast()
	s.mu.Unlock()
}

func (s *slot) wait() error {
	s.mu.Lock()
	for s.busy {
		s.cond.Wait()
	}
	err := s.lastErr
	s.mu.Unlock()
	return err
}

// Coordinator alternates writes between two slots so the copy engine can be
// filling slot 1 while slot 0's bytes are still being flushed.
type Coordinator struct {
	backend storage.Backend
	flush   FlushFunc

	slots  [2]*slot
	cur    int
	state  ResumeState
	stateM sync.Mutex

	cancelled bool
	cancelMu  sync.Mutex

	errMu    sync.Mutex
	firstErr error // latched the moment any flush fails, mirroring fieldio's errorreporter.T
}

// NewCoordinator constructs a coordinator writing to backend via flush.
func NewCoordinator(backend storage.Backend, flush FlushFunc) *Coordinator {
	return &Coordinator{
		backend: backend,
		flush:   flush,
		slots:   [2]*slot{newSlot(), newSlot()},
	}
}

// Submit hands one filled slab's bytes to the next slot in strict
// alternation (0, 1, 0, ...) and returns a Future the caller may wait on;
// it blocks until that particular slot's previous flush has completed, even
// if the other slot is free (the coordinator never holds more than two
// outstanding writes).
func (c *Coordinator) Submit(ctx context.Context, data []byte) *storage.Future {
	return c.SubmitIndexed(ctx, data, nil)
}

// SubmitIndexed behaves exactly like Submit, but additionally invokes
// record with the offset FlushFunc reported, from inside the same async
// worker that performed the write and before the slot is released. This
// lets a caller that needs to know where a slab landed (RunWrite, updating
// a storage.FragmentIndex) avoid blocking on the Future just to read back
// an offset.
func (c *Coordinator) SubmitIndexed(ctx context.Context, data []byte, record func(offset int64)) *storage.Future {
	if err := c.checkErr(); err != nil {
		return errFuture(err)
	}
	return c.submitFunc(func() error {
		off, err := c.flush(ctx, c.backend, data)
		if err == nil && record != nil {
			record(off)
		}
		return err
	})
}

// Backend returns the storage.Backend this coordinator flushes to, for
// callers (like RunRead) that need to issue reads alongside the
// coordinator's writes.
func (c *Coordinator) Backend() storage.Backend { return c.backend }

// submitFunc hands fn to the next free slot's async worker, gated by the
// same two-slot cycle Submit uses; it is the mechanism both the write path
// (via Submit/FlushFunc) and a read-ahead prefetcher (via RunRead, which
// has no (offset, data) shape to hand FlushFunc) share.
func (c *Coordinator) submitFunc(fn func() error) *storage.Future {
	c.cancelMu.Lock()
	cancelled := c.cancelled
	c.cancelMu.Unlock()
	if cancelled {
		return errFuture(tderrors.E(tderrors.StorageError, "pipeline.Coordinator.Submit", "coordinator cancelled"))
	}

	s := c.slots[c.cur]
	c.cur = 1 - c.cur
	s.acquire()

	return c.backend.SubmitAsync(func() error {
		err := fn()
		if err != nil {
			c.latchErr(err)
		}
		s.release(err)
		return err
	})
}

func (c *Coordinator) latchErr(err error) {
	c.errMu.Lock()
	if c.firstErr == nil {
		c.firstErr = err
	}
	c.errMu.Unlock()
}

func (c *Coordinator) checkErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.firstErr
}

// Err returns the first flush error the coordinator has observed, if any.
// RunRead/RunWrite callers check this after the loop to tell "subarray
// fully processed" apart from "stopped early because a flush failed".
func (c *Coordinator) Err() error {
	return c.checkErr()
}

// errFuture returns an already-failed storage.Future.
func errFuture(err error) *storage.Future {
	fut := storage.NewFailedFuture(err)
	return fut
}

// State returns the coordinator's current resume state.
func (c *Coordinator) State() ResumeState {
	c.stateM.Lock()
	defer c.stateM.Unlock()
	return c.state
}

// SetState records the resume state; RunWrite calls it around the single
// submit of a slab whose cells land scattered.
func (c *Coordinator) SetState(s ResumeState) {
	c.stateM.Lock()
	c.state = s
	c.stateM.Unlock()
}

// Drain blocks until both slots' in-flight flushes (if any) have completed,
// returning the first error encountered, if any.
func (c *Coordinator) Drain() error {
	var firstErr error
	for _, s := range c.slots {
		if err := s.wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Cancel marks the coordinator so future Submit calls fail fast, then
// drains any flushes already in flight.
func (c *Coordinator) Cancel() error {
	c.cancelMu.Lock()
	c.cancelled = true
	c.cancelMu.Unlock()
	return c.Drain()
}

// SeparatesFragments reports whether a tile written in tileOrder, when
// iterated by a user query in userOrder, has a slab's cells land scattered
// in the tile rather than as one contiguous run. It holds exactly when the
// user's iteration order disagrees with the array's physical tile order;
// RunWrite uses it to decide whether to bracket a slab's single submit with
// ResumePostMid/ResumePostEnd.
func SeparatesFragments(userOrder, tileOrder domain.Order) bool {
	return userOrder != tileOrder
}
