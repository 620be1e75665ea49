// Package reconcile merges the three uncoordinated delivery channels of a
// chat client - the synchronous append acknowledgment, push deliveries,
// and change-feed deliveries - plus the client's own optimistic echoes
// into one duplicate-free, ordered conversation view per scope.
//
// The engine is a pure merge structure: every inbound event is a typed
// value handed to Apply, which mutates the per-scope list and returns the
// resulting view. It is owned by a single session event loop and needs no
// locking, but it tolerates any interleaving of the event types, since no
// channel waits for another.
package reconcile

import (
	"sort"
	"time"

	"github.com/edulink/classchat/internal/chat"
)

// DefaultEchoWindow bounds the fuzzy match between a pending echo and an
// authoritative message that arrives ahead of the echo's own ack. A
// heuristic, not a protocol guarantee: two identical sends from the same
// sender inside the window can alias, which is acceptable for a chat view.
const DefaultEchoWindow = 5 * time.Second

// Engine holds per-scope entry lists and the currently viewed scope.
type Engine struct {
	echoWindow time.Duration
	now        func() time.Time

	viewing chat.Scope
	lists   map[string][]Entry
}

// Option configures an Engine.
type Option func(*Engine)

// WithEchoWindow overrides the fuzzy-match recency window.
func WithEchoWindow(d time.Duration) Option {
	return func(e *Engine) { e.echoWindow = d }
}

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New constructs an engine with no scopes and nothing viewed.
func New(opts ...Option) *Engine {
	e := &Engine{
		echoWindow: DefaultEchoWindow,
		now:        time.Now,
		lists:      make(map[string][]Entry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetViewing switches the currently viewed scope. Change-feed events for
// any other scope are discarded while it is viewed.
func (e *Engine) SetViewing(scope chat.Scope) {
	e.viewing = scope
	if !scope.IsZero() {
		if _, ok := e.lists[scope.Key()]; !ok {
			e.lists[scope.Key()] = nil
		}
	}
}

// Viewing returns the currently viewed scope.
func (e *Engine) Viewing() chat.Scope {
	return e.viewing
}

// Apply merges one inbound event and returns the view of the scope it
// affected (the viewed scope for discarded feed events).
func (e *Engine) Apply(ev Event) View {
	switch ev := ev.(type) {
	case LocalEcho:
		return e.applyEcho(ev.Echo)
	case AppendAck:
		return e.applyAck(ev)
	case AppendFailed:
		return e.applyFailed(ev)
	case PushMessage:
		return e.mergeAuthoritative(ev.Message)
	case FeedMessage:
		// The feed is not scope-filtered; discard events for scopes not
		// currently viewed.
		if ev.Message.Scope != e.viewing {
			return e.View(e.viewing)
		}
		return e.mergeAuthoritative(ev.Message)
	case HistoryLoaded:
		return e.applyHistory(ev)
	}
	return e.View(e.viewing)
}

// View returns a snapshot of the ordered entries for a scope.
func (e *Engine) View(scope chat.Scope) View {
	entries := e.lists[scope.Key()]
	out := make([]Entry, len(entries))
	copy(out, entries)
	return View{Scope: scope, Entries: out}
}

// applyEcho inserts a pending optimistic echo immediately, before the
// append call is even made.
func (e *Engine) applyEcho(echo Echo) View {
	key := echo.Scope.Key()
	copied := echo
	e.lists[key] = append(e.lists[key], Entry{Echo: &copied})
	e.resort(key)
	return e.View(echo.Scope)
}

// applyAck reconciles the synchronous append response. If a faster
// channel already delivered the authoritative copy, the response is a
// routine duplicate: drop it and retire the initiating echo. Otherwise
// the initiating echo is replaced in place.
func (e *Engine) applyAck(ack AppendAck) View {
	key := ack.Message.Scope.Key()
	list := e.lists[key]

	if indexByMessageID(list, ack.Message.ID) >= 0 {
		e.lists[key] = removeEcho(list, ack.TempID)
		e.resort(key)
		return e.View(ack.Message.Scope)
	}

	if i := indexByTempID(list, ack.TempID); i >= 0 {
		list[i] = Entry{Message: &ack.Message}
	} else {
		// The echo is gone (failed view reset or evicted); the message is
		// still authoritative, so it enters as a new entry.
		list = append(list, Entry{Message: &ack.Message})
		e.lists[key] = list
	}
	e.resort(key)
	return e.View(ack.Message.Scope)
}

// applyFailed retires a pending echo whose append never succeeded. The
// echo must not linger: nothing will ever reconcile it.
func (e *Engine) applyFailed(ev AppendFailed) View {
	key := ev.EchoScope.Key()
	e.lists[key] = removeEcho(e.lists[key], ev.TempID)
	e.resort(key)
	return e.View(ev.EchoScope)
}

// applyHistory merges a query result. Pull results run through the same
// dedup as live deliveries, so repeated queries are idempotent.
func (e *Engine) applyHistory(ev HistoryLoaded) View {
	for i := range ev.Messages {
		e.merge(ev.Messages[i])
	}
	e.resort(ev.Scope.Key())
	return e.View(ev.Scope)
}

// mergeAuthoritative merges a single authoritative message and returns
// the updated view of its scope.
func (e *Engine) mergeAuthoritative(msg chat.Message) View {
	e.merge(msg)
	e.resort(msg.Scope.Key())
	return e.View(msg.Scope)
}

func (e *Engine) merge(msg chat.Message) {
	key := msg.Scope.Key()
	list := e.lists[key]

	// Duplicate by id: the primary and sufficient dedup key. The same
	// message routinely arrives over more than one path; this is the
	// expected outcome, not an error.
	if indexByMessageID(list, msg.ID) >= 0 {
		return
	}

	// A pending echo whose ack has not arrived yet, overtaken by a faster
	// channel: same sender, same scope, identical content, local
	// timestamp within the recency window.
	if i := e.fuzzyEchoMatch(list, msg); i >= 0 {
		list[i] = Entry{Message: &msg}
		return
	}

	// Normal case for messages from other senders.
	e.lists[key] = append(list, Entry{Message: &msg})
}

func (e *Engine) fuzzyEchoMatch(list []Entry, msg chat.Message) int {
	now := e.now()
	for i, entry := range list {
		if entry.Echo == nil {
			continue
		}
		echo := entry.Echo
		if echo.SenderID != msg.SenderID || echo.Body != msg.Body {
			continue
		}
		age := now.Sub(echo.LocalTime)
		if age < 0 {
			age = -age
		}
		if age <= e.echoWindow {
			return i
		}
	}
	return -1
}

// resort re-orders a scope's entries. Fan-out is unordered relative to
// append, so the list cannot be assumed append-only: every mutation
// re-sorts by (store timestamp; local timestamp for pending echoes).
func (e *Engine) resort(key string) {
	list := e.lists[key]
	sort.SliceStable(list, func(i, j int) bool {
		wi, wj := list[i].When(), list[j].When()
		if !wi.Equal(wj) {
			return wi.Before(wj)
		}
		// Same instant: durable entries order by store id and precede
		// still-pending echoes.
		switch {
		case list[i].Message != nil && list[j].Message != nil:
			return list[i].Message.ID < list[j].Message.ID
		case list[i].Message != nil:
			return true
		case list[j].Message != nil:
			return false
		default:
			return list[i].Echo.TempID < list[j].Echo.TempID
		}
	})
}

func indexByMessageID(list []Entry, id int64) int {
	for i, entry := range list {
		if entry.Message != nil && entry.Message.ID == id {
			return i
		}
	}
	return -1
}

func indexByTempID(list []Entry, tempID string) int {
	for i, entry := range list {
		if entry.Echo != nil && entry.Echo.TempID == tempID {
			return i
		}
	}
	return -1
}

func removeEcho(list []Entry, tempID string) []Entry {
	if i := indexByTempID(list, tempID); i >= 0 {
		return append(list[:i], list[i+1:]...)
	}
	return list
}
