// Package bufpool implements a ref-counted pool of reusable scratch byte
// buffers, the collaborator package filterbuffer uses to back its owned
// segments. The free list is a github.com/grailbio/base/syncqueue.LIFO,
// the same structure the teacher's fieldio.WriteBufPool uses to recycle its
// write buffers: LIFO reuse favors buffers still warm in cache.
package bufpool

import (
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/grailbio/base/syncqueue"
)

// Handle is a ref-counted owning buffer. The pool hands out handles with a
// ref count of one; callers that retain additional references (e.g. a
// filterbuffer view) call Retain, and must call Release exactly once per
// Retain/initial handout.
type Handle struct {
	Bytes []byte
	pool  *Pool
	refs  int32
}

// Retain increments the reference count. Must be balanced by Release.
func (h *Handle) Retain() {
	atomic.AddInt32(&h.refs, 1)
}

// Release decrements the reference count; once it reaches zero the buffer
// is reset (length zero, capacity preserved) and returned to the pool's
// free list.
func (h *Handle) Release() {
	if atomic.AddInt32(&h.refs, -1) > 0 {
		return
	}
	h.Bytes = h.Bytes[:0]
	h.pool.reclaim(h)
}

// Pool is a pool of reusable owning byte buffers, shared across every
// scatter/gather buffer in a process. Acquire/Release are safe for
// concurrent callers (syncqueue.LIFO is itself concurrency-safe).
type Pool struct {
	free         *syncqueue.LIFO
	initialBytes int
}

// New creates a pool whose freshly-allocated buffers start with capacity
// initialBytes, rounded up to a multiple of the platform page size the way
// the teacher's allocator-adjacent code sizes scratch regions.
func New(initialBytes int) *Pool {
	page := unix.Getpagesize()
	if initialBytes <= 0 {
		initialBytes = page
	} else {
		initialBytes = ((initialBytes + page - 1) / page) * page
	}
	return &Pool{free: syncqueue.NewLIFO(), initialBytes: initialBytes}
}

// Acquire returns a handle from the free list, allocating a fresh buffer
// when the free list is empty.
func (p *Pool) Acquire() *Handle {
	if v, ok := p.free.Get(); ok {
		h := v.(*Handle)
		h.refs = 1
		return h
	}
	return &Handle{Bytes: make([]byte, 0, p.initialBytes), pool: p, refs: 1}
}

func (p *Pool) reclaim(h *Handle) {
	p.free.Put(h)
}
