package feed

import (
	"sync"

	"github.com/qlconsole/qlconsole-go/pkg/qlconsole"
)

// DefaultSubscriberBuffer is the number of deltas a subscriber may lag
// behind before it is dropped.
const DefaultSubscriberBuffer = 64

// Hub is a qlconsole.Sink that fans deltas out to subscribers. A subscriber
// whose buffer is full is dropped and its channel closed; Publish never
// blocks.
type Hub struct {
	buffer int

	mu   sync.Mutex
	subs map[chan qlconsole.RosterDelta]struct{}
}

// NewHub returns a hub whose subscribers buffer up to buffer deltas.
// A buffer below 1 uses DefaultSubscriberBuffer.
func NewHub(buffer int) *Hub {
	if buffer < 1 {
		buffer = DefaultSubscriberBuffer
	}
	return &Hub{
		buffer: buffer,
		subs:   make(map[chan qlconsole.RosterDelta]struct{}),
	}
}

// Subscribe returns a channel of deltas and a function that cancels the
// subscription. The channel is closed on cancel or when the subscriber
// falls too far behind.
func (h *Hub) Subscribe() (<-chan qlconsole.RosterDelta, func()) {
	ch := make(chan qlconsole.RosterDelta, h.buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() { h.remove(ch) })
	}
}

// Publish implements qlconsole.Sink.
func (h *Hub) Publish(d qlconsole.RosterDelta) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for ch := range h.subs {
		select {
		case ch <- d:
		default:
			delete(h.subs, ch)
			close(ch)
		}
	}
}

// Len returns the number of subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) remove(ch chan qlconsole.RosterDelta) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}
