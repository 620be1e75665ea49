package store

import "sync"

// FeedEvent is a raw insertion event emitted by the store. It carries the
// full message and is not filtered by scope or session membership;
// consumers discard events for scopes they are not viewing.
type FeedEvent struct {
	Message *Message
}

// Feed is the store's change-data-capture stream. Every successful append
// is published to all subscribers. Delivery is best-effort: a subscriber
// whose buffer is full misses that event and recovers via query.
type Feed struct {
	mu   sync.RWMutex
	subs map[int64]chan FeedEvent
	next int64
}

// NewFeed constructs an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int64]chan FeedEvent)}
}

// Subscribe registers a consumer and returns its event channel plus a
// cancel function. The channel is closed on cancel.
func (f *Feed) Subscribe(buffer int) (<-chan FeedEvent, func()) {
	if buffer <= 0 {
		buffer = 16
	}

	f.mu.Lock()
	id := f.next
	f.next++
	ch := make(chan FeedEvent, buffer)
	f.subs[id] = ch
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		if sub, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(sub)
		}
		f.mu.Unlock()
	}
	return ch, cancel
}

// Publish fans the event out to every subscriber without blocking.
func (f *Feed) Publish(ev FeedEvent) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			// Drop if slow consumer.
		}
	}
}
