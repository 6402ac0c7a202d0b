package events

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrQueueFull = errors.New("events: queue full, event dropped")
	ErrClosed    = errors.New("events: publisher closed")
)

// Async hands events to a background worker so callers never wait on a broker.
// When the queue is full the event is dropped and Publish reports ErrQueueFull.
type Async struct {
	next    Publisher
	timeout time.Duration
	onError func(ev SessionEvent, err error)

	mu     sync.RWMutex
	closed bool
	queue  chan SessionEvent
	done   chan struct{}
}

// NewAsync starts the worker. onError receives delivery failures of next and may be nil.
func NewAsync(next Publisher, size int, timeout time.Duration, onError func(ev SessionEvent, err error)) *Async {
	a := &Async{
		next:    next,
		timeout: timeout,
		onError: onError,
		queue:   make(chan SessionEvent, max(size, 1)),
		done:    make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *Async) Publish(_ context.Context, ev SessionEvent) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return ErrClosed
	}
	select {
	case a.queue <- ev:
		return nil
	default:
		return ErrQueueFull
	}
}

func (a *Async) run() {
	defer close(a.done)
	for ev := range a.queue {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		err := a.next.Publish(ctx, ev)
		cancel()
		if err != nil && a.onError != nil {
			a.onError(ev, err)
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered or for ctx to end.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.queue)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
