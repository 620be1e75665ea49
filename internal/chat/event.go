package chat

// EventKind is a notification the core emits to sessions.
type EventKind int

const (
	// EventPushMessage delivers a message to sessions joined to its scope.
	EventPushMessage EventKind = iota
	// EventFeedMessage is a raw change-feed insertion, delivered to every
	// feed subscriber regardless of scope membership.
	EventFeedMessage
	// EventPresence notifies a session that a contact went on/offline.
	EventPresence
	// EventHistory delivers message history to a session upon joining a scope.
	EventHistory
	// EventError notifies a session about a domain error.
	EventError
)

// Event is sent to sessions to describe what happened in the system.
type Event struct {
	Kind     EventKind
	Message  Message
	Messages []Message // for EventHistory
	Scope    Scope     // for EventHistory
	Presence *PresenceEvent
	Error    *CoreError
}

// PresenceEvent describes an online/offline transition of a contact.
type PresenceEvent struct {
	UserID   int64
	Username string
	Online   bool
}
