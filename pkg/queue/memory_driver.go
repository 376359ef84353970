package queue

import (
	"context"
	"errors"
	"time"
)

// ErrQueueFull is returned when the in-memory buffer is exhausted.
var ErrQueueFull = errors.New("queue: memory driver full")

// MemoryDriver is an in-process, channel-backed driver. Not durable.
type MemoryDriver struct {
	ch chan []byte
}

// NewMemoryDriver creates an in-memory queue with a buffer of 1000 jobs.
func NewMemoryDriver() *MemoryDriver {
	return &MemoryDriver{ch: make(chan []byte, 1000)}
}

func (d *MemoryDriver) Push(ctx context.Context, payload []byte) error {
	select {
	case d.ch <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	default:
		return ErrQueueFull
	}
}

func (d *MemoryDriver) Pop(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case payload := <-d.ch:
		return payload, nil
	}
}

// PushDelayed enqueues payload once delay has passed.
func (d *MemoryDriver) PushDelayed(_ context.Context, payload []byte, delay time.Duration) error {
	time.AfterFunc(delay, func() {
		select {
		case d.ch <- payload:
		default:
		}
	})
	return nil
}
