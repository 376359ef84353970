package workerpool_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shashiranjanraj/leppupy/pkg/workerpool"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestPool_SubmitAndExecute(t *testing.T) {
	pool := workerpool.New(4)
	defer pool.Shutdown()

	const n = 100
	var count atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)

	for i := 0; i < n; i++ {
		require.NoError(t, pool.SubmitWait(context.Background(), func(context.Context) {
			defer wg.Done()
			count.Add(1)
		}))
	}
	wg.Wait()

	assert.Equal(t, int64(n), count.Load())
}

func TestPool_ErrPoolFull(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()

	blocker := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func(context.Context) {
		close(started)
		<-blocker
	}))
	<-started

	// Buffer is 2× the worker count.
	require.NoError(t, pool.Submit(func(context.Context) {}))
	require.NoError(t, pool.Submit(func(context.Context) {}))

	assert.ErrorIs(t, pool.Submit(func(context.Context) {}), workerpool.ErrPoolFull)
	close(blocker)
}

func TestPool_ErrPoolClosed(t *testing.T) {
	pool := workerpool.New(2)
	pool.Shutdown()

	assert.ErrorIs(t, pool.Submit(func(context.Context) {}), workerpool.ErrPoolClosed)
	assert.ErrorIs(t, pool.SubmitWait(context.Background(), func(context.Context) {}), workerpool.ErrPoolClosed)
	pool.Shutdown()
}

func TestPool_PanicRecovery(t *testing.T) {
	pool := workerpool.New(1)
	defer pool.Shutdown()

	require.NoError(t, pool.Submit(func(context.Context) { panic("boom") }))

	done := make(chan struct{})
	require.NoError(t, pool.SubmitWait(context.Background(), func(context.Context) { close(done) }))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not survive a panicking task")
	}
}

func TestPool_ShutdownCancelsTaskContext(t *testing.T) {
	pool := workerpool.New(1)
	cancelled := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, pool.Submit(func(ctx context.Context) {
		close(started)
		<-ctx.Done()
		close(cancelled)
	}))
	<-started

	pool.Shutdown()
	select {
	case <-cancelled:
	default:
		t.Fatal("task context was not cancelled before Shutdown returned")
	}
}
