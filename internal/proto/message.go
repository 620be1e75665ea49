package proto

import "encoding/json"

// Inbound is the envelope for push-channel messages coming from the client.
type Inbound struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

const (
	ProtocolVersion = 1

	InboundTypeJoin  = "join"
	InboundTypeLeave = "leave"

	OutboundTypeEvent = "event"
	OutboundTypeError = "error"

	EventNameMessage  = "message"
	EventNameFeed     = "feed"
	EventNamePresence = "presence"
	EventNameHistory  = "history"
)

// JoinData requests a scoped subscription for the session's lifetime.
// Scope is the canonical key ("dm:{a}:{b}" or "class:{id}").
type JoinData struct {
	Scope string `json:"scope"`
}

// Outbound is the envelope for messages sent to the client.
type Outbound struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error *Error `json:"error,omitempty"`
}

// AttachmentData is the wire form of an attachment reference.
type AttachmentData struct {
	URL  string `json:"url"`
	Kind string `json:"kind"`
}

// EventMessage is the wire form of a full message. It is carried by both
// the push path ("message") and the change-feed path ("feed"); the feed
// is not scope-filtered and receivers discard scopes they are not viewing.
type EventMessage struct {
	ID         int64           `json:"id"`
	Scope      string          `json:"scope"`
	SenderID   int64           `json:"sender_id"`
	Sender     string          `json:"sender"`
	Body       string          `json:"body"`
	Attachment *AttachmentData `json:"attachment,omitempty"`
	TS         int64           `json:"ts"` // store timestamp, unix milliseconds
}

// EventHistory delivers message history for a scope upon joining it.
type EventHistory struct {
	Scope    string         `json:"scope"`
	Messages []EventMessage `json:"messages"`
}

// EventPresence notifies that a contact's onlineness changed.
type EventPresence struct {
	UserID int64  `json:"user_id"`
	User   string `json:"user"`
	Online bool   `json:"online"`
}

// Error describes a protocol-level error response.
type Error struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
}
