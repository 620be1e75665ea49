package chat

// Session is a connected push-channel client as seen by the core layer.
// One user may hold several concurrent sessions; scope subscriptions are
// per session, not per user.
type Session struct {
	ID       string
	UserID   int64
	Username string
	Commands chan *Command
	Events   chan *Event
}

// NewSession constructs a session with initialized channels.
func NewSession(id string, userID int64, username string) *Session {
	return &Session{
		ID:       id,
		UserID:   userID,
		Username: username,
		Commands: make(chan *Command, 8),
		Events:   make(chan *Event, 32),
	}
}
