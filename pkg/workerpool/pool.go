// Package workerpool provides a bounded goroutine pool with backpressure.
//
// When every worker is busy and the buffer is full, Submit returns
// ErrPoolFull immediately so the caller can fall back or reject.
//
//	pool := workerpool.New(4)
//	defer pool.Shutdown()
//
//	err := pool.Submit(func(ctx context.Context) {
//	    archiveExport(ctx, orderID, data)
//	})
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/shashiranjanraj/leppupy/pkg/logger"
)

var (
	// ErrPoolFull is returned by Submit when the task buffer is at capacity.
	ErrPoolFull = errors.New("workerpool: pool is full")
	// ErrPoolClosed is returned after Shutdown.
	ErrPoolClosed = errors.New("workerpool: pool is closed")
)

// Task receives a context that is cancelled when the pool shuts down.
type Task func(ctx context.Context)

// Pool is a bounded goroutine pool.
type Pool struct {
	tasks  chan Task
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
	ctx    context.Context
	cancel context.CancelFunc
}

// New starts size workers with a buffer of 2×size tasks.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		tasks:  make(chan Task, size*2),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < size; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	return p
}

// Submit enqueues task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	default:
		return ErrPoolFull
	}
}

// SubmitWait blocks until a slot is free, ctx ends, or the pool closes.
func (p *Pool) SubmitWait(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.tasks <- task:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.ctx.Done():
		return ErrPoolClosed
	}
}

// Shutdown stops accepting tasks, drains the buffer and waits for the
// workers. Safe to call more than once.
func (p *Pool) Shutdown() {
	p.cancel()
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.tasks)
	}
	p.mu.Unlock()
	p.wg.Wait()
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.safeRun(task)
	}
}

func (p *Pool) safeRun(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("workerpool: task panicked", "error", fmt.Sprint(r))
		}
	}()
	task(p.ctx)
}
