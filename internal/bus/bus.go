package bus

import (
	"sync"
)

// Filter narrows a subscription to a subset of a table's events.
// A nil Filter receives every event for the table.
type Filter func(evt Event) bool

// Bus is an in-process change feed with per-table, filtered subscriptions.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscription
	next int
}

type subscription struct {
	table  string
	filter Filter
	ch     chan Event
}

// New creates a new change feed bus.
func New() *Bus {
	return &Bus{
		subs: make(map[int]*subscription),
	}
}

// Publish delivers an event to all subscribers of its table whose filter
// accepts it. Events for a single subscription are delivered in publish
// order; ordering across distinct subscriptions is not guaranteed.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.table != evt.Table {
			continue
		}
		if sub.filter != nil && !sub.filter(evt) {
			continue
		}
		select {
		case sub.ch <- evt:
		default:
			// Drop event if subscriber is full (non-blocking).
		}
	}
}

// Subscribe returns a channel receiving events for the given table that
// match the filter. bufSize controls the channel buffer. The returned
// function cancels the subscription; it is safe to call more than once,
// and no events are delivered after it returns.
func (b *Bus) Subscribe(table string, filter Filter, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscription{table: table, filter: filter, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
