package pool

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestFuture_CompletesWithOutcome(t *testing.T) {
	p := newTestPool(t, 2)

	f, err := p.Submit(TaskFunc(func() error { return nil }))
	require.NoError(t, err)
	require.Len(t, f.ID(), 26)

	waitFor(t, f.Done(), time.Second, "future")
	require.NoError(t, f.Err())
	require.NoError(t, f.Wait(context.Background()))
}

func TestFuture_IdsAreUnique(t *testing.T) {
	p := newTestPool(t, 2)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		f, err := p.Submit(TaskFunc(func() error { return nil }))
		require.NoError(t, err)
		require.False(t, seen[f.ID()])
		seen[f.ID()] = true
	}
}

func TestFuture_WaitHonoursContext(t *testing.T) {
	p := newTestPool(t, 1)

	release := make(chan struct{})
	f, err := p.Submit(TaskFunc(func() error {
		<-release
		return nil
	}))
	require.NoError(t, err)

	require.NoError(t, f.Err(), "Err must be nil before the task finishes")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, f.Wait(ctx), context.Canceled)

	close(release)
	require.NoError(t, f.Wait(context.Background()))
}
