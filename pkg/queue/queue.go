// Package queue runs background jobs with retries.
//
//	type SendVerificationJob struct{ UserID string }
//	func (j *SendVerificationJob) Handle(ctx context.Context) error { ... }
//
//	queue.Register(func() queue.Job { return &SendVerificationJob{} })
//	queue.Dispatch(ctx, &SendVerificationJob{UserID: id})
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/shashiranjanraj/leppupy/pkg/logger"
	"github.com/shashiranjanraj/leppupy/pkg/metrics"
)

// Job is the interface every queued job must satisfy. Jobs are serialized
// as JSON, so state must live in exported fields.
type Job interface {
	Handle(ctx context.Context) error
}

// Driver is the queue storage backend.
type Driver interface {
	Push(ctx context.Context, payload []byte) error
	// Pop blocks until a payload is available. A nil payload with a nil
	// error means the wait timed out.
	Pop(ctx context.Context) ([]byte, error)
}

// DelayedDriver can hold payloads until a later time.
type DelayedDriver interface {
	PushDelayed(ctx context.Context, payload []byte, delay time.Duration) error
}

// promoter is implemented by drivers that need a background loop to move
// delayed payloads onto the ready queue.
type promoter interface {
	promote(ctx context.Context)
}

// FailedJob holds a job that exhausted its retries.
type FailedJob struct {
	Type     string
	Payload  []byte
	Err      error
	FailedAt time.Time
	Attempts int
}

// FailedStore persists failed jobs.
type FailedStore interface {
	Save(ctx context.Context, f FailedJob) error
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Manager dispatches jobs onto a driver and runs workers that consume them.
type Manager struct {
	mu       sync.RWMutex
	driver   Driver
	registry map[string]func() Job
	failed   []FailedJob
	store    FailedStore
	maxRetry int
	backoff  func(attempt int) time.Duration
	wg       sync.WaitGroup
}

// New creates a manager over d with three attempts and linear backoff.
func New(d Driver) *Manager {
	return &Manager{
		driver:   d,
		registry: map[string]func() Job{},
		maxRetry: 3,
		backoff:  func(attempt int) time.Duration { return time.Duration(attempt) * time.Second },
	}
}

// SetDriver swaps the backend. Call before Start.
func (m *Manager) SetDriver(d Driver) {
	m.mu.Lock()
	m.driver = d
	m.mu.Unlock()
}

// SetMaxRetry sets how many attempts a job gets.
func (m *Manager) SetMaxRetry(n int) {
	m.mu.Lock()
	m.maxRetry = max(n, 1)
	m.mu.Unlock()
}

// SetBackoff replaces the delay between attempts.
func (m *Manager) SetBackoff(fn func(attempt int) time.Duration) {
	m.mu.Lock()
	m.backoff = fn
	m.mu.Unlock()
}

// UseFailedStore persists exhausted jobs in addition to the in-memory list.
func (m *Manager) UseFailedStore(s FailedStore) {
	m.mu.Lock()
	m.store = s
	m.mu.Unlock()
}

// Register makes a job type available for decoding. The type name is
// taken from the value the factory returns.
func (m *Manager) Register(factory func() Job) {
	m.mu.Lock()
	m.registry[typeName(factory())] = factory
	m.mu.Unlock()
}

func typeName(j Job) string { return fmt.Sprintf("%T", j) }

func (m *Manager) encode(job Job) ([]byte, error) {
	name := typeName(job)
	payload, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("queue: marshal job %s: %w", name, err)
	}
	env, err := json.Marshal(envelope{Type: name, Payload: payload})
	if err != nil {
		return nil, fmt.Errorf("queue: marshal envelope: %w", err)
	}
	return env, nil
}

func (m *Manager) currentDriver() Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.driver
}

// Dispatch pushes job onto the queue.
func (m *Manager) Dispatch(ctx context.Context, job Job) error {
	env, err := m.encode(job)
	if err != nil {
		return err
	}
	return m.currentDriver().Push(ctx, env)
}

// DispatchAfter pushes job after delay. Drivers without delay support get
// the job immediately.
func (m *Manager) DispatchAfter(ctx context.Context, job Job, delay time.Duration) error {
	env, err := m.encode(job)
	if err != nil {
		return err
	}
	d := m.currentDriver()
	if dd, ok := d.(DelayedDriver); ok {
		return dd.PushDelayed(ctx, env, delay)
	}
	return d.Push(ctx, env)
}

// Start launches n workers that run until ctx is cancelled. Use Wait to
// block until they exit.
func (m *Manager) Start(ctx context.Context, n int) {
	d := m.currentDriver()
	if p, ok := d.(promoter); ok {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			p.promote(ctx)
		}()
	}
	for i := 0; i < n; i++ {
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			m.work(ctx, d)
		}()
	}
	logger.Info("queue: workers started", "count", n)
}

// Wait blocks until every worker started by Start has returned.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) work(ctx context.Context, d Driver) {
	for ctx.Err() == nil {
		raw, err := d.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Warn("queue: pop failed", "error", err)
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if raw == nil {
			continue
		}
		m.process(ctx, raw)
	}
}

func (m *Manager) process(ctx context.Context, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Error("queue: bad envelope", "error", err)
		return
	}

	m.mu.RLock()
	factory, ok := m.registry[env.Type]
	m.mu.RUnlock()
	if !ok {
		logger.Warn("queue: unregistered job type", "type", env.Type)
		return
	}

	job := factory()
	if err := json.Unmarshal(env.Payload, job); err != nil {
		logger.Error("queue: unmarshal payload", "type", env.Type, "error", err)
		return
	}
	m.runWithRetry(ctx, job, env)
}

func (m *Manager) runWithRetry(ctx context.Context, job Job, env envelope) {
	m.mu.RLock()
	attempts, backoff := m.maxRetry, m.backoff
	m.mu.RUnlock()

	start := time.Now()
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = job.Handle(ctx); lastErr == nil {
			metrics.RecordQueueJob(env.Type, "success", start)
			logger.Debug("queue: job processed", "type", env.Type)
			return
		}
		logger.Warn("queue: job failed", "type", env.Type, "attempt", attempt, "error", lastErr)
		if attempt < attempts && !sleep(ctx, backoff(attempt)) {
			break
		}
	}

	metrics.RecordQueueJob(env.Type, "failed", start)
	logger.Error("queue: job exhausted retries", "type", env.Type, "error", lastErr)
	m.persistFailed(ctx, FailedJob{
		Type:     env.Type,
		Payload:  env.Payload,
		Err:      lastErr,
		FailedAt: time.Now(),
		Attempts: attempts,
	})
}

// FailedJobs returns a snapshot of the in-memory failure list.
func (m *Manager) FailedJobs() []FailedJob {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]FailedJob, len(m.failed))
	copy(out, m.failed)
	return out
}

func (m *Manager) persistFailed(ctx context.Context, f FailedJob) {
	m.mu.Lock()
	m.failed = append(m.failed, f)
	store := m.store
	m.mu.Unlock()

	if store == nil {
		return
	}
	// The worker context may already be cancelled during shutdown.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := store.Save(saveCtx, f); err != nil {
		logger.Error("queue: persist failed job", "type", f.Type, "error", err)
	}
}

// sleep waits for d or until ctx ends; it reports whether the full delay
// elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// ─── Default manager ──────────────────────────────────────────────────────────

var defaultManager = New(NewMemoryDriver())

// Default returns the process-wide manager.
func Default() *Manager { return defaultManager }

func Register(factory func() Job)                  { defaultManager.Register(factory) }
func SetDriver(d Driver)                           { defaultManager.SetDriver(d) }
func Dispatch(ctx context.Context, job Job) error { return defaultManager.Dispatch(ctx, job) }
func StartWorkers(ctx context.Context, n int)      { defaultManager.Start(ctx, n) }
