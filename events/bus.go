// Package events provides a small synchronous pub/sub bus scoped to one
// manager instance. Handlers run in registration order on the goroutine
// that publishes; there is no global registry.
package events

import "sync"

// Handler receives the positional payload of a published event.
type Handler func(args ...any)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus dispatches named events synchronously to all current subscribers.
// The zero value is not usable; call NewBus.
type Bus struct {
	mu     sync.Mutex
	nextID uint64
	subs   map[string][]subscription
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler for the named event and returns a token
// that removes exactly this registration when called. Unsubscribing
// twice is a no-op.
func (b *Bus) Subscribe(event string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.subs[event] = append(b.subs[event], subscription{id: id, handler: h})
	return func() { b.remove(event, id) }
}

func (b *Bus) remove(event string, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[event]
	for i, s := range subs {
		if s.id == id {
			b.subs[event] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish invokes every handler currently registered for the event, in
// registration order, with the given payload. Dispatch is synchronous:
// Publish returns after the last handler does.
func (b *Bus) Publish(event string, args ...any) {
	b.mu.Lock()
	subs := make([]subscription, len(b.subs[event]))
	copy(subs, b.subs[event])
	b.mu.Unlock()

	for _, s := range subs {
		s.handler(args...)
	}
}
