package events

import "sync"

// Publisher fans an ordered Event stream for one run out to every current
// subscriber — the caller's returned channel, plus an optional SSE handler
// or WebSocket bridge (pkg/api) — without any cross-process delivery.
// Grounded on the teacher's ConnectionManager channel/connection bookkeeping
// (manager.go), narrowed from "any channel, any pod" to "this run's single
// producer, in-process subscribers only" since a single `execute` invocation
// never needs cross-pod fan-out (see DESIGN.md).
type Publisher struct {
	mu          sync.Mutex
	subscribers []chan Event
	closed      bool
}

// NewPublisher creates an empty Publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

// Subscribe registers a new buffered receiver. The channel is closed when
// the Publisher is closed. Buffer size bounds how far a slow subscriber
// (e.g. a stalled WebSocket write) may lag before Publish starts blocking
// the engine's own goroutine — callers that can't guarantee a fast reader
// should drain in their own goroutine.
func (p *Publisher) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		close(ch)
		return ch
	}
	p.subscribers = append(p.subscribers, ch)
	return ch
}

// Publish delivers event to every current subscriber, in the order called.
// Per §5's ordering guarantee, Publish must only ever be invoked from the
// run's single producing goroutine.
func (p *Publisher) Publish(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	for _, ch := range p.subscribers {
		ch <- event
	}
}

// Close closes every subscriber channel. Call once, after the terminal
// task_execution_complete/task_execution_error event has been published.
func (p *Publisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for _, ch := range p.subscribers {
		close(ch)
	}
}
