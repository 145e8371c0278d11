// Package storage implements the §6.1 backend abstraction the filter
// pipeline's compressed tiles are read from and written to. Grounded on the
// teacher's fieldio.Writer, which holds a file.File plus an io.Writer
// wrapper and flushes compressed blocks asynchronously under a
// sync.Mutex/sync.Cond pair (encoding/pam/fieldio/writer.go); Backend here
// plays the role of the teacher's file.File but generalizes Open/Create to
// the random-access read/write-at-offset shape tile storage needs.
package storage

import (
	"context"

	"github.com/arraylab/tdbcore/tderrors"
)

// Backend is a fragment's random-access byte store. Implementations must be
// safe for concurrent ReadFromFile calls. The pipeline coordinator can have
// two WriteToFile calls in flight at once, so both backends here serialize
// WriteToFile under their own mutex.
type Backend interface {
	// ReadFromFile reads len(p) bytes starting at offset off.
	ReadFromFile(ctx context.Context, p []byte, off int64) (int, error)
	// WriteToFile appends p and returns the offset it was written at.
	WriteToFile(ctx context.Context, p []byte) (off int64, err error)
	// FileSize reports the current length of the backing object.
	FileSize(ctx context.Context) (int64, error)
	// SubmitAsync schedules fn to run on a background worker and returns a
	// handle whose Wait blocks until fn returns. Grounded on fieldio's async
	// buf-flusher goroutine, generalized to an explicit future instead of a
	// shared condvar so callers outside the writer package can wait on it.
	SubmitAsync(fn func() error) *Future
}

// Future is a handle to an in-flight SubmitAsync call.
type Future struct {
	done chan struct{}
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

// NewFailedFuture returns a Future that is already complete with err.
func NewFailedFuture(err error) *Future {
	f := newFuture()
	f.finish(err)
	return f
}

func (f *Future) finish(err error) {
	f.err = err
	close(f.done)
}

// Wait blocks until the submitted work completes and returns its error.
func (f *Future) Wait() error {
	<-f.done
	return f.err
}

// WaitContext blocks until ctx is done or the work completes, whichever
// comes first.
func (f *Future) WaitContext(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return tderrors.E(tderrors.StorageError, "storage.Future.WaitContext", ctx.Err())
	}
}
