// Package tap implements an in-process event broker publishing one Event
// per dispatched command, and the Event type itself. Publish is
// non-blocking fan-out to buffered per-subscriber channels, so a slow TUI
// subscriber never stalls the router.
package tap

import (
	"sync"
	"time"

	"github.com/solatis/mongofront/bsondoc"
)

// Event describes one completed command dispatch: legacy opcodes and
// OP_MSG commands alike, including fire-and-forget writes the wire
// protocol itself never acknowledges.
type Event struct {
	ConnID    int64
	OpCode    string
	Command   string
	Namespace string
	StartTime time.Time
	Duration  time.Duration
	Error     string
	// Document is the command's own document (the OP_MSG kind-0 section,
	// or the OP_QUERY query), kept for inspector display only.
	Document *bsondoc.Document
}

// Broker is a buffered fan-out publisher: every subscriber gets its own
// buffered channel, and Publish never blocks — a subscriber that falls
// behind simply misses events rather than stalling the publisher.
type Broker struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
	bufSize     int
}

// New returns a Broker whose subscriber channels are buffered to bufSize.
func New(bufSize int) *Broker {
	if bufSize <= 0 {
		bufSize = 1
	}
	return &Broker{
		subscribers: make(map[chan Event]struct{}),
		bufSize:     bufSize,
	}
}

// Subscribe registers a new listener, returning its event channel and an
// unsubscribe function that closes the channel and removes it.
func (b *Broker) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.bufSize)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	unsub := func() {
		b.mu.Lock()
		if _, ok := b.subscribers[ch]; ok {
			delete(b.subscribers, ch)
			close(ch)
		}
		b.mu.Unlock()
	}
	return ch, unsub
}

// Publish fans ev out to every current subscriber without blocking; a
// subscriber whose buffer is full drops the event.
func (b *Broker) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// SubscriberCount reports how many listeners are currently registered.
func (b *Broker) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subscribers)
}
