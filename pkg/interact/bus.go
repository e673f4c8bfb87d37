package interact

import "sync"

// EventKind identifies a pointer or search event.
type EventKind string

const (
	EventEnterNode EventKind = "enterNode"
	EventLeaveNode EventKind = "leaveNode"
	EventClickNode EventKind = "clickNode"
	EventSelect    EventKind = "select"
)

// Event is delivered to bus subscribers. Node is empty for EventLeaveNode
// and for a cleared selection.
type Event struct {
	Kind EventKind `json:"kind"`
	Node string    `json:"node,omitempty"`
}

// Bus fans pointer and search events out to subscribers. It outlives any
// single graph: controllers attach on load and detach on reload.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventKind]map[uint64]func(Event)
	next     uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[EventKind]map[uint64]func(Event))}
}

// Subscribe registers fn for events of kind. The returned function removes
// the registration and is safe to call more than once.
func (b *Bus) Subscribe(kind EventKind, fn func(Event)) (unsubscribe func()) {
	b.mu.Lock()
	id := b.next
	b.next++
	if b.handlers[kind] == nil {
		b.handlers[kind] = make(map[uint64]func(Event))
	}
	b.handlers[kind][id] = fn
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.handlers[kind], id)
			b.mu.Unlock()
		})
	}
}

// Emit delivers ev synchronously to every subscriber of its kind.
func (b *Bus) Emit(ev Event) {
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.handlers[ev.Kind]))
	for _, fn := range b.handlers[ev.Kind] {
		fns = append(fns, fn)
	}
	b.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Len returns the number of registered handlers across all kinds.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, hs := range b.handlers {
		n += len(hs)
	}
	return n
}
