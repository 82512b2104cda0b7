package broker

import (
	"sync"

	"github.com/yuiseki/acomm/internal/protocol"
)

// hubCapacity is the broadcast channel capacity specified for the
// bridge: every subscriber may lag behind the publisher by up to this
// many events before it starts losing them.
const hubCapacity = 100

// Hub is a multi-subscriber broadcast fanout. Every event Published is
// offered to every current subscriber; a subscriber that cannot keep
// up simply misses events it had no room for (a "lag"), which is
// non-fatal — the bounded backlog is the recovery mechanism for a
// reconnecting client, not redelivery to a lagging one.
type Hub struct {
	mu   sync.RWMutex
	subs map[uint64]chan protocol.Event
	next uint64
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[uint64]chan protocol.Event)}
}

// Subscribe registers a new subscriber and returns its id (for
// Unsubscribe) and the channel it will receive events on. The channel
// is closed by Unsubscribe; callers must not close it themselves.
func (h *Hub) Subscribe() (uint64, <-chan protocol.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.next
	h.next++
	ch := make(chan protocol.Event, hubCapacity)
	h.subs[id] = ch
	return id, ch
}

// Unsubscribe removes and closes the subscriber's channel.
func (h *Hub) Unsubscribe(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subs[id]; ok {
		delete(h.subs, id)
		close(ch)
	}
}

// Publish offers e to every current subscriber. A subscriber whose
// channel is full does not block the publisher and does not receive
// e — it has lagged and will simply resume from whatever is published
// next.
func (h *Hub) Publish(e protocol.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}
