// Package event is an in-process publish/subscribe dispatcher.
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/shashiranjanraj/leppupy/pkg/logger"
)

// Names of events fired by the domain services.
const (
	OrderPlaced        = "order.placed"
	OrderStatusChanged = "order.status_changed"
	OrderDeleted       = "order.deleted"
	CatalogChanged     = "catalog.changed"
	UserRegistered     = "user.registered"
)

// Handler receives an event payload.
type Handler func(ctx context.Context, payload any)

// Bus routes events to listeners.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	subs     map[*subscription]struct{}
	wg       sync.WaitGroup
}

func NewBus() *Bus {
	return &Bus{handlers: map[string][]Handler{}, subs: map[*subscription]struct{}{}}
}

// Message is an event delivered to a subscriber.
type Message struct {
	Name    string
	Payload any
}

type subscription struct {
	names map[string]bool
	ch    chan Message
}

// Subscribe returns a channel receiving the named events until cancel is
// called. Delivery never blocks the publisher: when the buffer is full the
// event is dropped for that subscriber.
func (b *Bus) Subscribe(buffer int, names ...string) (<-chan Message, func()) {
	sub := &subscription{names: map[string]bool{}, ch: make(chan Message, buffer)}
	for _, n := range names {
		sub.names[n] = true
	}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return sub.ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
}

// publish hands the event to matching subscribers. The read lock keeps
// cancel from closing a channel mid-send.
func (b *Bus) publish(name string, payload any) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if !sub.names[name] {
			continue
		}
		select {
		case sub.ch <- Message{Name: name, Payload: payload}:
		default:
		}
	}
}

// Listen registers handler for name.
func (b *Bus) Listen(name string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[name] = append(b.handlers[name], handler)
}

func (b *Bus) snapshot(name string) []Handler {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]Handler(nil), b.handlers[name]...)
}

// Fire calls every listener synchronously.
func (b *Bus) Fire(ctx context.Context, name string, payload any) {
	b.publish(name, payload)
	for _, h := range b.snapshot(name) {
		b.call(ctx, name, h, payload)
	}
}

// FireAsync calls every listener in its own goroutine. The listeners get a
// context detached from the caller's cancellation.
func (b *Bus) FireAsync(ctx context.Context, name string, payload any) {
	b.publish(name, payload)
	ctx = context.WithoutCancel(ctx)
	for _, h := range b.snapshot(name) {
		b.wg.Add(1)
		go func(h Handler) {
			defer b.wg.Done()
			b.call(ctx, name, h, payload)
		}(h)
	}
}

// Wait blocks until async listeners have returned.
func (b *Bus) Wait() { b.wg.Wait() }

func (b *Bus) call(ctx context.Context, name string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			logger.WithCtx(ctx).Error("event: listener panicked", "event", name, "panic", fmt.Sprint(r))
		}
	}()
	h(ctx, payload)
}

// Flush removes all listeners.
func (b *Bus) Flush() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = map[string][]Handler{}
}
