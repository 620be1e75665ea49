package reconcile

import (
	"testing"
	"time"

	"github.com/edulink/classchat/internal/chat"
)

var base = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

func durable(id int64, scope chat.Scope, senderID int64, body string, at time.Time) chat.Message {
	return chat.Message{
		ID:         id,
		Scope:      scope,
		SenderID:   senderID,
		SenderName: "sender",
		Body:       body,
		CreatedAt:  at,
	}
}

func pendingEcho(tempID string, scope chat.Scope, senderID int64, body string, at time.Time) Echo {
	return Echo{
		TempID:     tempID,
		Scope:      scope,
		SenderID:   senderID,
		SenderName: "sender",
		Body:       body,
		LocalTime:  at,
	}
}

func assertConverged(t *testing.T, view View, wantIDs ...int64) {
	t.Helper()

	if len(view.Entries) != len(wantIDs) {
		t.Fatalf("expected %d entries, got %d: %+v", len(wantIDs), len(view.Entries), view.Entries)
	}
	for i, want := range wantIDs {
		entry := view.Entries[i]
		if entry.Pending() {
			t.Fatalf("entry %d still pending: %+v", i, entry)
		}
		if entry.Message.ID != want {
			t.Fatalf("entry %d: expected message id %d, got %d", i, want, entry.Message.ID)
		}
	}
}

func TestEchoThenAck(t *testing.T) {
	scope := chat.DirectScope(1, 2)
	e := New(WithClock(func() time.Time { return base }))
	e.SetViewing(scope)

	echo := pendingEcho("tmp:a", scope, 1, "hello", base)
	view := e.Apply(LocalEcho{Echo: echo})
	if len(view.Entries) != 1 || !view.Entries[0].Pending() {
		t.Fatalf("expected one pending entry, got %+v", view.Entries)
	}

	msg := durable(10, scope, 1, "hello", base.Add(50*time.Millisecond))
	view = e.Apply(AppendAck{TempID: "tmp:a", Message: msg})
	assertConverged(t, view, 10)
}

// The append response, the push delivery, and the change-feed delivery of
// the same send race freely. Whatever order they land in, the view must
// end with exactly one non-pending entry.
func TestSendConvergesUnderAnyChannelOrder(t *testing.T) {
	scope := chat.DirectScope(1, 2)
	msg := durable(42, scope, 1, "hello", base.Add(time.Second))

	deliveries := map[string]Event{
		"ack":  AppendAck{TempID: "tmp:a", Message: msg},
		"push": PushMessage{Message: msg},
		"feed": FeedMessage{Message: msg},
	}
	orders := [][]string{
		{"ack", "push", "feed"},
		{"ack", "feed", "push"},
		{"push", "ack", "feed"},
		{"push", "feed", "ack"},
		{"feed", "ack", "push"},
		{"feed", "push", "ack"},
	}

	for _, order := range orders {
		name := order[0] + "-" + order[1] + "-" + order[2]
		t.Run(name, func(t *testing.T) {
			e := New(WithClock(func() time.Time { return base }))
			e.SetViewing(scope)
			e.Apply(LocalEcho{Echo: pendingEcho("tmp:a", scope, 1, "hello", base)})

			var view View
			for _, step := range order {
				view = e.Apply(deliveries[step])
			}
			assertConverged(t, view, 42)
		})
	}
}

func TestPushOvertakesAckReplacesEcho(t *testing.T) {
	scope := chat.DirectScope(1, 2)
	e := New(WithClock(func() time.Time { return base.Add(time.Second) }))
	e.SetViewing(scope)

	e.Apply(LocalEcho{Echo: pendingEcho("tmp:a", scope, 1, "hi", base)})

	// Push lands before the ack; the echo is replaced by content match,
	// not left alongside the durable copy.
	msg := durable(7, scope, 1, "hi", base.Add(time.Second))
	view := e.Apply(PushMessage{Message: msg})
	assertConverged(t, view, 7)

	// The late ack is now a routine duplicate.
	view = e.Apply(AppendAck{TempID: "tmp:a", Message: msg})
	assertConverged(t, view, 7)
}

func TestEchoOutsideWindowStillConvergesOnAck(t *testing.T) {
	scope := chat.DirectScope(1, 2)
	now := base.Add(time.Minute)
	e := New(WithClock(func() time.Time { return now }))
	e.SetViewing(scope)

	// Echo is a minute old; the recency window no longer lets the push
	// delivery claim it.
	e.Apply(LocalEcho{Echo: pendingEcho("tmp:a", scope, 1, "hi", base)})

	msg := durable(7, scope, 1, "hi", now)
	view := e.Apply(PushMessage{Message: msg})
	if len(view.Entries) != 2 {
		t.Fatalf("expected echo and durable copy side by side, got %+v", view.Entries)
	}

	// The ack still carries the temp id and retires the echo.
	view = e.Apply(AppendAck{TempID: "tmp:a", Message: msg})
	assertConverged(t, view, 7)
}

func TestOtherSenderNeverClaimsEcho(t *testing.T) {
	scope := chat.DirectScope(1, 2)
	e := New(WithClock(func() time.Time { return base }))
	e.SetViewing(scope)

	e.Apply(LocalEcho{Echo: pendingEcho("tmp:a", scope, 1, "same words", base)})

	// Identical body from the peer inside the window: different sender,
	// so it must not reconcile against the echo.
	view := e.Apply(PushMessage{Message: durable(9, scope, 2, "same words", base)})
	if len(view.Entries) != 2 {
		t.Fatalf("expected echo plus peer message, got %+v", view.Entries)
	}
}

func TestAppendFailedRetiresEcho(t *testing.T) {
	scope := chat.DirectScope(1, 2)
	e := New(WithClock(func() time.Time { return base }))
	e.SetViewing(scope)

	e.Apply(LocalEcho{Echo: pendingEcho("tmp:a", scope, 1, "doomed", base)})
	view := e.Apply(AppendFailed{TempID: "tmp:a", EchoScope: scope})
	if len(view.Entries) != 0 {
		t.Fatalf("expected empty view after failed append, got %+v", view.Entries)
	}
}

func TestViewOrderedByStoreTimestamp(t *testing.T) {
	scope := chat.GroupScope(5)
	e := New(WithClock(func() time.Time { return base }))
	e.SetViewing(scope)

	// Deliveries land out of store order over different channels.
	e.Apply(PushMessage{Message: durable(3, scope, 2, "third", base.Add(3*time.Second))})
	e.Apply(FeedMessage{Message: durable(1, scope, 1, "first", base.Add(1*time.Second))})
	view := e.Apply(PushMessage{Message: durable(2, scope, 3, "second", base.Add(2*time.Second))})

	assertConverged(t, view, 1, 2, 3)
}

func TestSameTimestampOrderedByID(t *testing.T) {
	scope := chat.GroupScope(5)
	e := New(WithClock(func() time.Time { return base }))
	e.SetViewing(scope)

	at := base.Add(time.Second)
	e.Apply(PushMessage{Message: durable(8, scope, 2, "b", at)})
	view := e.Apply(PushMessage{Message: durable(4, scope, 1, "a", at)})

	assertConverged(t, view, 4, 8)
}

func TestFeedFilteredToViewedScope(t *testing.T) {
	viewed := chat.GroupScope(1)
	other := chat.GroupScope(2)

	e := New(WithClock(func() time.Time { return base }))
	e.SetViewing(viewed)

	// Feed events for a scope not being viewed are discarded, not queued.
	view := e.Apply(FeedMessage{Message: durable(11, other, 3, "elsewhere", base)})
	if len(view.Entries) != 0 {
		t.Fatalf("feed event for another scope leaked into view: %+v", view.Entries)
	}

	view = e.Apply(FeedMessage{Message: durable(12, viewed, 3, "here", base)})
	assertConverged(t, view, 12)

	// Switching scopes starts from what other channels supply; the
	// discarded event does not reappear.
	e.SetViewing(other)
	if got := e.View(other); len(got.Entries) != 0 {
		t.Fatalf("discarded feed event resurfaced: %+v", got.Entries)
	}
}

func TestHistoryMergeIsIdempotent(t *testing.T) {
	scope := chat.DirectScope(1, 2)
	e := New(WithClock(func() time.Time { return base }))
	e.SetViewing(scope)

	history := []chat.Message{
		durable(1, scope, 1, "a", base.Add(1*time.Second)),
		durable(2, scope, 2, "b", base.Add(2*time.Second)),
	}
	e.Apply(HistoryLoaded{Scope: scope, Messages: history})

	// A second pull over the same range changes nothing.
	view := e.Apply(HistoryLoaded{Scope: scope, Messages: history})
	assertConverged(t, view, 1, 2)
}

func TestHistoryReconcilesPendingEcho(t *testing.T) {
	scope := chat.DirectScope(1, 2)
	e := New(WithClock(func() time.Time { return base }))
	e.SetViewing(scope)

	e.Apply(LocalEcho{Echo: pendingEcho("tmp:a", scope, 1, "hi", base)})

	// A reconnect query returns the durable copy before the ack arrives.
	view := e.Apply(HistoryLoaded{Scope: scope, Messages: []chat.Message{
		durable(5, scope, 1, "hi", base),
	}})
	assertConverged(t, view, 5)
}

func TestPendingEchoSortsByLocalTime(t *testing.T) {
	scope := chat.DirectScope(1, 2)
	e := New(WithClock(func() time.Time { return base.Add(2 * time.Second) }))
	e.SetViewing(scope)

	e.Apply(PushMessage{Message: durable(1, scope, 2, "old", base)})
	view := e.Apply(LocalEcho{Echo: pendingEcho("tmp:a", scope, 1, "new", base.Add(2*time.Second))})

	if len(view.Entries) != 2 {
		t.Fatalf("expected two entries, got %+v", view.Entries)
	}
	if view.Entries[0].Pending() || !view.Entries[1].Pending() {
		t.Fatalf("expected durable then pending, got %+v", view.Entries)
	}
}
