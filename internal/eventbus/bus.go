// Package eventbus is a bounded, multi-subscriber, drop-on-full publish/
// subscribe broker for progress and filesystem notification events.
// Grounded on the teacher's own statusUpdateChan bounded-channel plus
// "select { case ch <- v: default: }" non-blocking send pattern
// (backup.go/main.go), generalized from one UI channel to N subscriber
// channels keyed by registration.
package eventbus

import "sync"

// DefaultBufferSize is each subscriber's channel capacity.
const DefaultBufferSize = 100

// Event is published on the bus. Kind distinguishes snapshot lifecycle
// events from filesystem notifications; Payload carries kind-specific data.
type Event struct {
	Kind    string
	Payload any
}

// Event kinds.
const (
	KindSnapshotStarted  = "snapshot_started"
	KindSnapshotProgress = "snapshot_progress"
	KindSnapshotError    = "snapshot_error"
	KindSnapshotComplete = "snapshot_complete"
	KindFileEvent        = "file_event"
)

// Bus fans a published Event out to every current subscriber.
type Bus struct {
	mu          sync.Mutex
	subscribers map[int]chan Event
	nextID      int
	bufferSize  int
}

// New creates a Bus whose subscriber channels have the given buffer size.
// A bufferSize of 0 uses DefaultBufferSize.
func New(bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Bus{
		subscribers: make(map[int]chan Event),
		bufferSize:  bufferSize,
	}
}

// Subscribe registers a new subscriber and returns its channel and an
// unsubscribe function.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan Event, b.bufferSize)
	b.subscribers[id] = ch

	unsubscribe := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if existing, ok := b.subscribers[id]; ok {
			delete(b.subscribers, id)
			close(existing)
		}
	}
	return ch, unsubscribe
}

// Publish fans out ev to every subscriber. A subscriber whose buffer is
// full drops this event; no other subscriber is affected.
func (b *Bus) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports the current number of live subscribers, mostly
// useful for tests and diagnostics.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
