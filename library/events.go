package library

import "sync"

// EventKind tells subscribers what changed.
type EventKind int

const (
	GameChanged EventKind = iota
	LibraryReloaded
	OperationFailed
)

func (k EventKind) String() string {
	switch k {
	case GameChanged:
		return "game_changed"
	case LibraryReloaded:
		return "library_reloaded"
	case OperationFailed:
		return "operation_failed"
	default:
		return "unknown"
	}
}

// Event is a change notification. Game is empty for library wide events.
type Event struct {
	Kind EventKind
	Game string
	Op   string
	Err  error
}

const subscriberBuffer = 64

type broker struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	next   int
	closed bool
}

func newBroker() *broker {
	return &broker{subs: make(map[int]chan Event)}
}

func (b *broker) subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan Event, subscriberBuffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if c, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(c)
			}
		})
	}
}

// publish never blocks; a subscriber whose buffer is full misses the event.
func (b *broker) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

func (b *broker) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}
