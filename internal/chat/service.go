package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edulink/classchat/internal/store"
)

// AuthorizeScope decides whether a user may post into or subscribe to a
// scope. Unknown scopes fail with ErrUnauthorizedScope, same as forbidden
// ones, so callers cannot enumerate scopes they may not join.
func AuthorizeScope(ctx context.Context, st store.Store, userID int64, scope Scope) error {
	switch scope.Type {
	case ScopeDirect:
		if !scope.Includes(userID) {
			return ErrUnauthorizedScope
		}
		peer := scope.UserA
		if peer == userID {
			peer = scope.UserB
		}
		if _, err := st.GetUserByID(ctx, peer); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUnauthorizedScope
			}
			return fmt.Errorf("lookup peer: %w", err)
		}
		return nil
	case ScopeGroup:
		if _, err := st.GetClassByID(ctx, scope.ClassID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrUnauthorizedScope
			}
			return fmt.Errorf("lookup class: %w", err)
		}
		member, err := st.IsClassMember(ctx, userID, scope.ClassID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}
		if !member {
			return ErrUnauthorizedScope
		}
		return nil
	}
	return ErrBadRequest
}

// Service is the synchronous create-and-query surface over the message
// store. Send is the single source of truth for id and timestamp
// assignment; the push and change-feed fan-outs are triggered as side
// effects of a successful append and carry no ordering guarantee relative
// to Send's return.
type Service struct {
	st  store.Store
	hub *Hub
	log *zerolog.Logger
}

// NewService builds the message service.
func NewService(st store.Store, hub *Hub, logger *zerolog.Logger) *Service {
	return &Service{st: st, hub: hub, log: logger}
}

// Send validates and appends a message, then requests the push fan-out.
// The returned message carries the authoritative id and timestamp. Content
// may be empty only when an attachment is present.
func (s *Service) Send(ctx context.Context, sender *store.User, scope Scope, body string, att *store.Attachment) (Message, error) {
	if scope.IsZero() {
		return Message{}, ErrBadRequest
	}
	if body == "" && att == nil {
		return Message{}, fmt.Errorf("%w: empty message", ErrBadRequest)
	}
	if att != nil && !store.ValidMediaKind(att.Kind) {
		return Message{}, fmt.Errorf("%w: unknown media kind %q", ErrBadRequest, att.Kind)
	}
	if err := AuthorizeScope(ctx, s.st, sender.ID, scope); err != nil {
		return Message{}, err
	}

	stored, err := s.st.AppendMessage(ctx, &store.Message{
		ScopeKey:   scope.Key(),
		SenderID:   sender.ID,
		SenderName: sender.Username,
		Body:       body,
		Attachment: att,
	})
	if err != nil {
		return Message{}, fmt.Errorf("append message: %w", err)
	}

	msg, err := messageFromStore(stored)
	if err != nil {
		return Message{}, fmt.Errorf("map stored message: %w", err)
	}

	if s.hub != nil {
		s.hub.BroadcastMessage(msg)
	}

	s.log.Debug().
		Int64("message_id", msg.ID).
		Str("scope", scope.Key()).
		Int64("sender_id", sender.ID).
		Msg("message appended")

	return msg, nil
}

// History returns messages for a scope in store order, for the initial
// load and for reconciling after a disconnect. Safe to call repeatedly.
func (s *Service) History(ctx context.Context, userID int64, scope Scope, sinceID int64, limit int) ([]Message, error) {
	if scope.IsZero() {
		return nil, ErrBadRequest
	}
	if err := AuthorizeScope(ctx, s.st, userID, scope); err != nil {
		return nil, err
	}

	stored, err := s.st.ListMessages(ctx, scope.Key(), sinceID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]Message, 0, len(stored))
	for _, m := range stored {
		msg, convErr := messageFromStore(m)
		if convErr != nil {
			s.log.Warn().Err(convErr).Int64("message_id", m.ID).Msg("skip malformed stored message")
			continue
		}
		messages = append(messages, msg)
	}
	return messages, nil
}
