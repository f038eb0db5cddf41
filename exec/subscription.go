package exec

import (
	"context"
	"sync"

	"github.com/chaingraph-labs/engine/eventqueue"
)

// Subscription is a live, resumable view of one execution's event stream
// (spec §6.2).
type Subscription struct {
	id     int64
	bus    *eventBus
	q      *eventqueue.Queue[Event]
	filter map[EventType]bool
}

// Next blocks for the subscription's next event, honoring ctx cancellation.
func (s *Subscription) Next(ctx context.Context) (Event, bool, error) {
	it := s.q.Iterator()
	return it.Next(ctx)
}

// Close unregisters the subscription from its execution's bus (spec §6.2
// step 6: "On subscriber disconnect, queue is closed and unregistered").
func (s *Subscription) Close() {
	s.bus.unsubscribe(s.id)
	s.q.Close()
}

// eventBus fans an execution's events out to every live subscription's own
// queue (spec §4.2: "one queue per subscription, each fed by the same
// publisher"). Filtered-out events are never pushed to a subscriber's
// queue, but the event's global index is never renumbered, satisfying
// §6.2's "index continues to increase across skipped events".
type eventBus struct {
	mu     sync.Mutex
	subs   map[int64]*subEntry
	nextID int64
	closed bool
}

type subEntry struct {
	q      *eventqueue.Queue[Event]
	filter map[EventType]bool
}

func newEventBus() *eventBus {
	return &eventBus{subs: make(map[int64]*subEntry)}
}

func (b *eventBus) subscribe(capacity int, eventTypes []EventType) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	var filter map[EventType]bool
	if len(eventTypes) > 0 {
		filter = make(map[EventType]bool, len(eventTypes))
		for _, t := range eventTypes {
			filter[t] = true
		}
	}

	id := b.nextID
	b.nextID++
	q := eventqueue.New[Event](capacity)
	if b.closed {
		// The execution already reached a terminal status and closeAll has
		// already run; there will never be another publish to wait for, so
		// don't register this queue (nothing would ever unsubscribe it) and
		// hand back one that's already closed. Next(ctx) then returns
		// ok=false immediately instead of blocking until ctx's caller-supplied
		// deadline fires (spec §6.2 step 4/6).
		q.Close()
		return &Subscription{id: id, bus: b, q: q, filter: filter}
	}
	b.subs[id] = &subEntry{q: q, filter: filter}
	return &Subscription{id: id, bus: b, q: q, filter: filter}
}

func (b *eventBus) unsubscribe(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, id)
}

func (b *eventBus) publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, sub := range b.subs {
		if sub.filter != nil && !sub.filter[e.Type] {
			continue
		}
		sub.q.Publish(e)
	}
}

// closeAll closes every live subscriber's queue, signaling end-of-stream
// (called once the execution reaches a terminal status).
func (b *eventBus) closeAll() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for _, sub := range b.subs {
		sub.q.Close()
	}
}
