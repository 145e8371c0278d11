package storage

import (
	"context"
	"os"
	"sync"

	"v.io/x/lib/vlog"

	"github.com/arraylab/tdbcore/tderrors"
)

// LocalBackend stores a fragment as a single append-only local file.
// Grounded on fieldio.Writer's out file.File: here *os.File plays that
// role directly, since the pack's file.File abstraction isn't vendored in
// the retrieval set.
type LocalBackend struct {
	mu   sync.Mutex
	f    *os.File
	size int64

	workers chan struct{} // bounded async-worker semaphore
}

// NewLocalBackend opens (creating if necessary) path for read/write.
func NewLocalBackend(path string, maxConcurrentAsync int) (*LocalBackend, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, tderrors.E(tderrors.StorageError, "storage.NewLocalBackend", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, tderrors.E(tderrors.StorageError, "storage.NewLocalBackend", err)
	}
	if maxConcurrentAsync <= 0 {
		maxConcurrentAsync = 4
	}
	return &LocalBackend{f: f, size: info.Size(), workers: make(chan struct{}, maxConcurrentAsync)}, nil
}

func (b *LocalBackend) ReadFromFile(ctx context.Context, p []byte, off int64) (int, error) {
	n, err := b.f.ReadAt(p, off)
	if err != nil {
		return n, tderrors.E(tderrors.StorageError, "storage.LocalBackend.ReadFromFile", err)
	}
	return n, nil
}

func (b *LocalBackend) WriteToFile(ctx context.Context, p []byte) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	off := b.size
	n, err := b.f.WriteAt(p, off)
	if err != nil {
		return 0, tderrors.E(tderrors.StorageError, "storage.LocalBackend.WriteToFile", err)
	}
	b.size += int64(n)
	vlog.VI(2).Infof("storage: wrote %d bytes to %s at offset %d", n, b.f.Name(), off)
	return off, nil
}

func (b *LocalBackend) FileSize(ctx context.Context) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size, nil
}

// SubmitAsync runs fn on a new goroutine, gated by a bounded semaphore so a
// burst of flushes can't spawn unbounded goroutines, mirroring fieldio's
// single dedicated flusher generalized to a small worker pool.
func (b *LocalBackend) SubmitAsync(fn func() error) *Future {
	fut := newFuture()
	b.workers <- struct{}{}
	go func() {
		defer func() { <-b.workers }()
		err := fn()
		if err != nil {
			vlog.Errorf("storage: async flush to %s failed: %v", b.f.Name(), err)
		}
		fut.finish(err)
	}()
	return fut
}

// Close flushes and closes the backing file.
func (b *LocalBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.f.Sync(); err != nil {
		return tderrors.E(tderrors.StorageError, "storage.LocalBackend.Close", err)
	}
	vlog.VI(1).Infof("storage: closing %s (%d bytes)", b.f.Name(), b.size)
	return b.f.Close()
}
