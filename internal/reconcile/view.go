package reconcile

import (
	"strconv"
	"time"

	"github.com/edulink/classchat/internal/chat"
	"github.com/edulink/classchat/internal/store"
)

// Echo is a client-local, not-yet-durable placeholder for a message in
// flight. It exists only inside the sending client's engine and is
// destroyed on reconciliation or failure.
type Echo struct {
	TempID     string
	Scope      chat.Scope
	SenderID   int64
	SenderName string
	Body       string
	Attachment *store.Attachment
	LocalTime  time.Time
}

// Entry is one row of a conversation view: exactly one of Message
// (durable) or Echo (pending) is set.
type Entry struct {
	Message *chat.Message
	Echo    *Echo
}

// ID returns the entry's display identity: the store-assigned id for
// durable messages, the temporary id for pending echoes.
func (e Entry) ID() string {
	if e.Message != nil {
		return strconv.FormatInt(e.Message.ID, 10)
	}
	return e.Echo.TempID
}

// Pending reports whether the entry is a still-unreconciled echo.
func (e Entry) Pending() bool {
	return e.Echo != nil
}

// When returns the ordering timestamp: store time for durable messages,
// local time for pending echoes.
func (e Entry) When() time.Time {
	if e.Message != nil {
		return e.Message.CreatedAt
	}
	return e.Echo.LocalTime
}

// Body returns the entry's textual content.
func (e Entry) Body() string {
	if e.Message != nil {
		return e.Message.Body
	}
	return e.Echo.Body
}

// View is the derived, per-scope ordered sequence presented to the user.
// It is rebuilt on every inbound event and never contains two entries
// representing the same underlying message.
type View struct {
	Scope   chat.Scope
	Entries []Entry
}

// Event is a typed inbound notification applied to the engine.
type Event interface{ isEvent() }

// LocalEcho inserts the optimistic echo of a send-in-flight.
type LocalEcho struct {
	Echo Echo
}

// AppendAck carries the synchronous create acknowledgment, correlated to
// the initiating echo by TempID.
type AppendAck struct {
	TempID  string
	Message chat.Message
}

// AppendFailed reports that the append call itself failed; the echo is
// retired from the visible list.
type AppendFailed struct {
	TempID    string
	EchoScope chat.Scope
}

// PushMessage is a delivery over the push channel.
type PushMessage struct {
	Message chat.Message
}

// FeedMessage is a delivery over the change feed. Unlike push, the feed
// is not scope-filtered at the source.
type FeedMessage struct {
	Message chat.Message
}

// HistoryLoaded carries a query result for a scope.
type HistoryLoaded struct {
	Scope    chat.Scope
	Messages []chat.Message
}

func (LocalEcho) isEvent()     {}
func (AppendAck) isEvent()     {}
func (AppendFailed) isEvent()  {}
func (PushMessage) isEvent()   {}
func (FeedMessage) isEvent()   {}
func (HistoryLoaded) isEvent() {}
