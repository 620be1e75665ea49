package store

import (
	"testing"
	"time"
)

func TestFeedFanoutToAllSubscribers(t *testing.T) {
	f := NewFeed()

	a, cancelA := f.Subscribe(4)
	b, cancelB := f.Subscribe(4)
	defer cancelA()
	defer cancelB()

	msg := &Message{ID: 1, ScopeKey: "dm:1:2", Body: "hi"}
	f.Publish(FeedEvent{Message: msg})

	for name, ch := range map[string]<-chan FeedEvent{"a": a, "b": b} {
		select {
		case ev := <-ch:
			if ev.Message.ID != 1 {
				t.Fatalf("subscriber %s: unexpected event %+v", name, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %s: no event", name)
		}
	}
}

func TestFeedDropsWhenSubscriberFull(t *testing.T) {
	f := NewFeed()

	ch, cancel := f.Subscribe(1)
	defer cancel()

	f.Publish(FeedEvent{Message: &Message{ID: 1}})
	f.Publish(FeedEvent{Message: &Message{ID: 2}}) // buffer full, dropped

	ev := <-ch
	if ev.Message.ID != 1 {
		t.Fatalf("unexpected first event: %+v", ev)
	}
	select {
	case ev := <-ch:
		t.Fatalf("expected drop, got %+v", ev)
	default:
	}
}

func TestFeedCancelClosesChannel(t *testing.T) {
	f := NewFeed()

	ch, cancel := f.Subscribe(1)
	cancel()
	cancel() // idempotent

	if _, open := <-ch; open {
		t.Fatal("expected closed channel after cancel")
	}

	// Publishing after cancel must not panic or deliver.
	f.Publish(FeedEvent{Message: &Message{ID: 3}})
}
