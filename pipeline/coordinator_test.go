package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/grailbio/testutil"

	"github.com/arraylab/tdbcore/domain"
	"github.com/arraylab/tdbcore/storage"
)

func newTestBackend(t *testing.T) (*storage.LocalBackend, func()) {
	tempDir, cleanup := testutil.TempDir(t, "", "")
	b, err := storage.NewLocalBackend(filepath.Join(tempDir, "frag.tdb"), 2)
	require.NoError(t, err)
	return b, func() { b.Close(); cleanup() }
}

func appendFlush(ctx context.Context, backend storage.Backend, data []byte) (int64, error) {
	return backend.WriteToFile(ctx, data)
}

func TestCoordinatorSubmitAndDrain(t *testing.T) {
	b, cleanup := newTestBackend(t)
	defer cleanup()

	c := NewCoordinator(b, appendFlush)
	ctx := context.Background()

	fut1 := c.Submit(ctx, []byte("slab-0"))
	fut2 := c.Submit(ctx, []byte("slab-1"))
	require.NoError(t, fut1.Wait())
	require.NoError(t, fut2.Wait())
	require.NoError(t, c.Drain())

	size, err := b.FileSize(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(len("slab-0slab-1")), size)
}

func TestCoordinatorThirdSubmitWaitsForFirstSlot(t *testing.T) {
	b, cleanup := newTestBackend(t)
	defer cleanup()

	c := NewCoordinator(b, appendFlush)
	ctx := context.Background()

	futs := make([]*storage.Future, 0, 3)
	for i := 0; i < 3; i++ {
		futs = append(futs, c.Submit(ctx, []byte("x")))
	}
	for _, f := range futs {
		require.NoError(t, f.Wait())
	}
	size, err := b.FileSize(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(3), size)
}

func TestCoordinatorCancelRejectsNewSubmits(t *testing.T) {
	b, cleanup := newTestBackend(t)
	defer cleanup()

	c := NewCoordinator(b, appendFlush)
	ctx := context.Background()

	require.NoError(t, c.Cancel())
	fut := c.Submit(ctx, []byte("too-late"))
	require.Error(t, fut.Wait())
}

func TestSeparatesFragments(t *testing.T) {
	require.False(t, SeparatesFragments(domain.RowMajor, domain.RowMajor))
	require.True(t, SeparatesFragments(domain.RowMajor, domain.ColMajor))
}

func TestCoordinatorStateTransitions(t *testing.T) {
	b, cleanup := newTestBackend(t)
	defer cleanup()
	c := NewCoordinator(b, appendFlush)
	require.Equal(t, ResumeNone, c.State())
	c.SetState(ResumePostMid)
	require.Equal(t, ResumePostMid, c.State())
	c.SetState(ResumePostEnd)
	require.Equal(t, ResumePostEnd, c.State())
}
