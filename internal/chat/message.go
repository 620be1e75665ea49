package chat

import (
	"time"

	"github.com/edulink/classchat/internal/store"
)

// Message is the domain model for a chat message. ID and CreatedAt are
// authoritative, assigned by the store at append time.
type Message struct {
	ID         int64
	Scope      Scope
	SenderID   int64
	SenderName string
	Body       string
	Attachment *store.Attachment
	CreatedAt  time.Time
}

func messageFromStore(m *store.Message) (Message, error) {
	scope, err := ParseScopeKey(m.ScopeKey)
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:         m.ID,
		Scope:      scope,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Body:       m.Body,
		Attachment: m.Attachment,
		CreatedAt:  m.CreatedAt,
	}, nil
}
