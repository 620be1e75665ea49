package chat

// CommandKind describes what the session wants to do on the push channel.
// Message creation is not a push-channel command; it goes through the
// synchronous Service.Send call.
type CommandKind int

const (
	// CommandJoinScope subscribes the session to a scope for its lifetime.
	CommandJoinScope CommandKind = iota
	// CommandLeaveScope unsubscribes the session from a scope.
	CommandLeaveScope
)

// Command represents an action requested over a session's push channel.
type Command struct {
	Kind  CommandKind
	Scope Scope
}
