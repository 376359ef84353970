package queue_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/shashiranjanraj/leppupy/pkg/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// ─── Job types ────────────────────────────────────────────────────────────────

var echoed sync.Map

type echoJob struct {
	Val string `json:"val"`
}

func (j *echoJob) Handle(context.Context) error {
	echoed.Store(j.Val, true)
	return nil
}

var failAttempts atomic.Int32

type failJob struct{}

func (j *failJob) Handle(context.Context) error {
	failAttempts.Add(1)
	return errors.New("always fails")
}

type recordingStore struct {
	mu   sync.Mutex
	jobs []queue.FailedJob
}

func (s *recordingStore) Save(_ context.Context, f queue.FailedJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, f)
	return nil
}

func (s *recordingStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func newManager() *queue.Manager {
	m := queue.New(queue.NewMemoryDriver())
	m.SetBackoff(func(int) time.Duration { return 0 })
	m.Register(func() queue.Job { return &echoJob{} })
	m.Register(func() queue.Job { return &failJob{} })
	return m
}

func run(t *testing.T, m *queue.Manager) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx, 2)
	t.Cleanup(func() {
		cancel()
		m.Wait()
	})
}

// ─── Tests ────────────────────────────────────────────────────────────────────

func TestDispatchAndProcess(t *testing.T) {
	m := newManager()
	run(t, m)

	require.NoError(t, m.Dispatch(context.Background(), &echoJob{Val: "hello"}))

	assert.Eventually(t, func() bool {
		_, ok := echoed.Load("hello")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestFailedJobExhaustsRetries(t *testing.T) {
	m := newManager()
	m.SetMaxRetry(2)
	store := &recordingStore{}
	m.UseFailedStore(store)
	run(t, m)

	before := failAttempts.Load()
	require.NoError(t, m.Dispatch(context.Background(), &failJob{}))

	assert.Eventually(t, func() bool { return store.len() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), failAttempts.Load()-before)

	failed := m.FailedJobs()
	require.Len(t, failed, 1)
	assert.Equal(t, "*queue_test.failJob", failed[0].Type)
	assert.EqualError(t, failed[0].Err, "always fails")
}

func TestDispatchAfter(t *testing.T) {
	m := newManager()
	run(t, m)

	require.NoError(t, m.DispatchAfter(context.Background(), &echoJob{Val: "later"}, 50*time.Millisecond))

	assert.Eventually(t, func() bool {
		_, ok := echoed.Load("later")
		return ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDispatchConcurrent(t *testing.T) {
	m := newManager()
	run(t, m)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Dispatch(context.Background(), &echoJob{Val: "c"}))
		}()
	}
	wg.Wait()
}

func TestMemoryDriverFull(t *testing.T) {
	d := queue.NewMemoryDriver()
	ctx := context.Background()
	for i := 0; i < 1000; i++ {
		require.NoError(t, d.Push(ctx, []byte("x")))
	}
	assert.ErrorIs(t, d.Push(ctx, []byte("x")), queue.ErrQueueFull)
}
