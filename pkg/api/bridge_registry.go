package api

import (
	"sync"

	"github.com/flowforge/orchestrator/pkg/events"
)

// bridgeRegistry maps a running task's ID to the Publisher its queue
// worker is writing events to, so an inbound WebSocket client can find and
// subscribe to the right stream without the HTTP layer owning execution.
type bridgeRegistry struct {
	mu  sync.RWMutex
	pub map[string]*events.Publisher
}

func newBridgeRegistry() *bridgeRegistry {
	return &bridgeRegistry{pub: make(map[string]*events.Publisher)}
}

// Register associates taskID with pub. Call Unregister once the task's
// execution completes and pub is closed.
func (r *bridgeRegistry) Register(taskID string, pub *events.Publisher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pub[taskID] = pub
}

// Unregister removes taskID's association.
func (r *bridgeRegistry) Unregister(taskID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pub, taskID)
}

// Get returns the Publisher registered for taskID, if any.
func (r *bridgeRegistry) Get(taskID string) (*events.Publisher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.pub[taskID]
	return p, ok
}

// PublisherFor adapts the registry into the publisherFor callback shape
// pkg/queue.Worker expects: register taskID now, return a fresh Publisher
// the engine will publish to.
func (r *bridgeRegistry) PublisherFor(taskID string) *events.Publisher {
	pub := events.NewPublisher()
	r.Register(taskID, pub)
	return pub
}
