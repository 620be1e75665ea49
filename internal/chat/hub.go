package chat

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/edulink/classchat/internal/store"
)

// ContactResolver answers which user identities should hear about a
// user's presence transitions.
type ContactResolver interface {
	ContactIDs(ctx context.Context, userID int64) ([]int64, error)
}

const defaultHistoryLimit = 50

// Hub coordinates push-channel sessions: scope subscriptions, the push
// fan-out, the change-feed fan-out, and presence broadcasts. All session
// and scope state is owned by the single Run goroutine.
type Hub struct {
	st       store.Store
	contacts ContactResolver
	presence *PresenceTracker
	log      *zerolog.Logger

	register   chan *Session
	unregister chan *Session
	commands   chan sessionCommand
	broadcasts chan Message
	presenceCh chan presenceChange

	sessions map[*Session]struct{}
	byUser   map[int64]map[*Session]struct{}
	scopes   map[string]map[*Session]struct{}

	// done is closed when Run returns, unblocking registration and
	// command pumps that would otherwise wait on a dead loop.
	done chan struct{}

	historyLimit int
}

type sessionCommand struct {
	sess *Session
	cmd  *Command
}

type presenceChange struct {
	userID int64
	online bool
}

// NewHub constructs a hub. contacts may be nil, in which case presence
// transitions are tracked but not broadcast.
func NewHub(st store.Store, contacts ContactResolver, presenceGrace time.Duration, logger *zerolog.Logger) *Hub {
	h := &Hub{
		st:           st,
		contacts:     contacts,
		log:          logger,
		register:     make(chan *Session),
		unregister:   make(chan *Session),
		commands:     make(chan sessionCommand),
		broadcasts:   make(chan Message, 128),
		presenceCh:   make(chan presenceChange, 64),
		done:         make(chan struct{}),
		sessions:     make(map[*Session]struct{}),
		byUser:       make(map[int64]map[*Session]struct{}),
		scopes:       make(map[string]map[*Session]struct{}),
		historyLimit: defaultHistoryLimit,
	}
	h.presence = NewPresenceTracker(presenceGrace, func(userID int64, online bool) {
		select {
		case h.presenceCh <- presenceChange{userID: userID, online: online}:
		default:
			// Drop if the hub is saturated; presence is best-effort.
		}
	})
	return h
}

// Presence exposes the process-wide tracker, for onlineness lookups.
func (h *Hub) Presence() *PresenceTracker {
	return h.presence
}

// SetContactResolver installs the resolver used for presence broadcasts.
// Must be called before Run; the resolver usually needs the hub's own
// presence tracker, hence the two-step wiring.
func (h *Hub) SetContactResolver(r ContactResolver) {
	h.contacts = r
}

// RegisterSession hands a session to the hub and marks its user connected.
// A no-op once the hub has shut down.
func (h *Hub) RegisterSession(s *Session) {
	select {
	case h.register <- s:
	case <-h.done:
	}
}

// UnregisterSession detaches a session. The caller must close
// s.Commands once it stops writing commands. A no-op once the hub has
// shut down.
func (h *Hub) UnregisterSession(s *Session) {
	select {
	case h.unregister <- s:
	case <-h.done:
	}
}

// BroadcastMessage requests a push fan-out for a freshly appended message.
// Non-blocking: if the hub is saturated, joined sessions miss the push and
// recover via the change feed or the next query.
func (h *Hub) BroadcastMessage(msg Message) {
	select {
	case h.broadcasts <- msg:
	default:
		h.log.Warn().Int64("message_id", msg.ID).Msg("push fan-out dropped, hub saturated")
	}
}

// Run processes hub traffic until context cancellation. It also pumps the
// store's change feed to every connected session, unfiltered by scope.
func (h *Hub) Run(ctx context.Context) {
	feed, cancel := h.st.Feed().Subscribe(128)
	defer cancel()
	defer h.presence.Stop()
	defer close(h.done)

	for {
		select {
		case s := <-h.register:
			h.addSession(s)
		case s := <-h.unregister:
			h.removeSession(s)
		case sc := <-h.commands:
			h.handleCommand(ctx, sc.sess, sc.cmd)
		case msg := <-h.broadcasts:
			h.fanoutPush(msg)
		case ev := <-feed:
			h.fanoutFeed(ev)
		case pc := <-h.presenceCh:
			h.fanoutPresence(ctx, pc)
		case <-ctx.Done():
			return
		}
	}
}

func (h *Hub) addSession(s *Session) {
	h.sessions[s] = struct{}{}
	if h.byUser[s.UserID] == nil {
		h.byUser[s.UserID] = make(map[*Session]struct{})
	}
	h.byUser[s.UserID][s] = struct{}{}

	// Pump the session's commands into the hub loop. Ends when the
	// transport closes s.Commands or the hub shuts down.
	go func() {
		for cmd := range s.Commands {
			select {
			case h.commands <- sessionCommand{sess: s, cmd: cmd}:
			case <-h.done:
				return
			}
		}
	}()

	h.presence.Connect(s.UserID)
	h.log.Debug().Str("session_id", s.ID).Int64("user_id", s.UserID).Msg("session registered")
}

func (h *Hub) removeSession(s *Session) {
	if _, ok := h.sessions[s]; !ok {
		return
	}
	delete(h.sessions, s)
	if set := h.byUser[s.UserID]; set != nil {
		delete(set, s)
		if len(set) == 0 {
			delete(h.byUser, s.UserID)
		}
	}
	for key, set := range h.scopes {
		delete(set, s)
		if len(set) == 0 {
			delete(h.scopes, key)
		}
	}
	close(s.Events)

	h.presence.Disconnect(s.UserID)
	h.log.Debug().Str("session_id", s.ID).Int64("user_id", s.UserID).Msg("session unregistered")
}

func (h *Hub) handleCommand(ctx context.Context, s *Session, cmd *Command) {
	// A command can race the session's removal; its events channel is
	// closed by then, so it must not be touched.
	if _, ok := h.sessions[s]; !ok {
		return
	}
	switch cmd.Kind {
	case CommandJoinScope:
		h.handleJoin(ctx, s, cmd.Scope)
	case CommandLeaveScope:
		h.handleLeave(s, cmd.Scope)
	}
}

// handleJoin subscribes the session to a scope for the rest of its
// lifetime. Join is never automatic on connect; the client requests it
// after selecting a conversation. A successful join also delivers recent
// history so the client can seed its view.
func (h *Hub) handleJoin(ctx context.Context, s *Session, scope Scope) {
	if scope.IsZero() {
		h.sendError(s, coreError(ErrCodeBadRequest, "scope is required"))
		return
	}
	if err := AuthorizeScope(ctx, h.st, s.UserID, scope); err != nil {
		if errors.Is(err, ErrUnauthorizedScope) {
			h.sendError(s, coreError(ErrCodeUnauthorizedScope, "scope not accessible"))
		} else {
			h.log.Error().Err(err).Str("scope", scope.Key()).Msg("authorize join")
			h.sendError(s, coreError(ErrCodeBadRequest, "join failed"))
		}
		return
	}

	key := scope.Key()
	if set := h.scopes[key]; set != nil {
		if _, joined := set[s]; joined {
			h.sendError(s, coreError(ErrCodeAlreadyJoined, "already joined"))
			return
		}
	}
	if h.scopes[key] == nil {
		h.scopes[key] = make(map[*Session]struct{})
	}
	h.scopes[key][s] = struct{}{}

	stored, err := h.st.ListRecentMessages(ctx, key, h.historyLimit)
	if err != nil {
		h.log.Error().Err(err).Str("scope", key).Msg("load history on join")
		return
	}
	history := make([]Message, 0, len(stored))
	for _, m := range stored {
		msg, convErr := messageFromStore(m)
		if convErr != nil {
			h.log.Warn().Err(convErr).Int64("message_id", m.ID).Msg("skip malformed stored message")
			continue
		}
		history = append(history, msg)
	}
	h.send(s, &Event{Kind: EventHistory, Scope: scope, Messages: history})
}

func (h *Hub) handleLeave(s *Session, scope Scope) {
	key := scope.Key()
	set := h.scopes[key]
	if set == nil {
		h.sendError(s, coreError(ErrCodeNotJoined, "not joined"))
		return
	}
	if _, joined := set[s]; !joined {
		h.sendError(s, coreError(ErrCodeNotJoined, "not joined"))
		return
	}
	delete(set, s)
	if len(set) == 0 {
		delete(h.scopes, key)
	}
}

// fanoutPush delivers a message to every session joined to its scope.
func (h *Hub) fanoutPush(msg Message) {
	for s := range h.scopes[msg.Scope.Key()] {
		h.send(s, &Event{Kind: EventPushMessage, Message: msg})
	}
}

// fanoutFeed replicates a store insertion to every connected session,
// regardless of scope membership. Receivers filter client-side.
func (h *Hub) fanoutFeed(ev store.FeedEvent) {
	if ev.Message == nil {
		return
	}
	msg, err := messageFromStore(ev.Message)
	if err != nil {
		h.log.Warn().Err(err).Int64("message_id", ev.Message.ID).Msg("skip malformed feed event")
		return
	}
	for s := range h.sessions {
		h.send(s, &Event{Kind: EventFeedMessage, Message: msg})
	}
}

func (h *Hub) fanoutPresence(ctx context.Context, pc presenceChange) {
	if h.contacts == nil {
		return
	}
	user, err := h.st.GetUserByID(ctx, pc.userID)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", pc.userID).Msg("presence lookup failed")
		return
	}
	ids, err := h.contacts.ContactIDs(ctx, pc.userID)
	if err != nil {
		h.log.Warn().Err(err).Int64("user_id", pc.userID).Msg("resolve presence contacts")
		return
	}
	ev := &Event{Kind: EventPresence, Presence: &PresenceEvent{
		UserID:   pc.userID,
		Username: user.Username,
		Online:   pc.online,
	}}
	for _, id := range ids {
		for s := range h.byUser[id] {
			h.send(s, ev)
		}
	}
}

func (h *Hub) send(s *Session, ev *Event) {
	select {
	case s.Events <- ev:
	default:
		// Drop if slow consumer; the session recovers via query.
	}
}

func (h *Hub) sendError(s *Session, cerr *CoreError) {
	h.send(s, &Event{Kind: EventError, Error: cerr})
}
