package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/edulink/classchat/internal/log"
	"github.com/edulink/classchat/internal/store"
)

func seededStore() *memStore {
	st := newMemStore()
	st.addUser(1, "alice", store.RoleStudent)
	st.addUser(2, "bob", store.RoleTeacher)
	st.addUser(3, "carol", store.RoleStudent)
	st.addClass(10, "7B", 1, 2)
	return st
}

func TestAuthorizeScope(t *testing.T) {
	st := seededStore()
	ctx := context.Background()

	tests := []struct {
		name    string
		userID  int64
		scope   Scope
		wantErr error
	}{
		{"direct participant", 1, DirectScope(1, 2), nil},
		{"direct other participant", 2, DirectScope(1, 2), nil},
		{"direct outsider", 3, DirectScope(1, 2), ErrUnauthorizedScope},
		{"direct peer does not exist", 1, DirectScope(1, 99), ErrUnauthorizedScope},
		{"class member", 1, GroupScope(10), nil},
		{"class non-member", 3, GroupScope(10), ErrUnauthorizedScope},
		{"class does not exist", 1, GroupScope(99), ErrUnauthorizedScope},
		{"zero scope", 1, Scope{}, ErrBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := AuthorizeScope(ctx, st, tt.userID, tt.scope)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestServiceSendAssignsIDAndTimestamp(t *testing.T) {
	st := seededStore()
	svc := NewService(st, nil, log.Nop())

	alice, _ := st.GetUserByID(context.Background(), 1)
	scope := DirectScope(1, 2)

	msg, err := svc.Send(context.Background(), alice, scope, "hello", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.ID == 0 {
		t.Fatal("expected store-assigned id")
	}
	if msg.CreatedAt.IsZero() {
		t.Fatal("expected store-assigned timestamp")
	}
	if msg.Scope != scope || msg.SenderID != 1 || msg.SenderName != "alice" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	// A second send gets a strictly larger id.
	next, err := svc.Send(context.Background(), alice, scope, "again", nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if next.ID <= msg.ID {
		t.Fatalf("expected monotonic ids, got %d then %d", msg.ID, next.ID)
	}
}

func TestServiceSendValidation(t *testing.T) {
	st := seededStore()
	svc := NewService(st, nil, log.Nop())
	ctx := context.Background()

	alice, _ := st.GetUserByID(ctx, 1)

	tests := []struct {
		name    string
		scope   Scope
		body    string
		att     *store.Attachment
		wantErr error
	}{
		{"zero scope", Scope{}, "hi", nil, ErrBadRequest},
		{"empty body no attachment", DirectScope(1, 2), "", nil, ErrBadRequest},
		{"unknown media kind", DirectScope(1, 2), "", &store.Attachment{URL: "/u/x", Kind: "GIF"}, ErrBadRequest},
		{"unauthorized scope", DirectScope(2, 3), "hi", nil, ErrUnauthorizedScope},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Send(ctx, alice, tt.scope, tt.body, tt.att); !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	// Empty body with a valid attachment is the one allowed empty form.
	msg, err := svc.Send(ctx, alice, DirectScope(1, 2), "", &store.Attachment{URL: "/u/x", Kind: store.MediaImage})
	if err != nil {
		t.Fatalf("attachment-only send: %v", err)
	}
	if msg.Attachment == nil || msg.Attachment.Kind != store.MediaImage {
		t.Fatalf("attachment not carried: %+v", msg)
	}
}

func TestServiceHistory(t *testing.T) {
	st := seededStore()
	svc := NewService(st, nil, log.Nop())
	ctx := context.Background()

	alice, _ := st.GetUserByID(ctx, 1)
	scope := DirectScope(1, 2)

	var lastID int64
	for _, body := range []string{"a", "b", "c"} {
		msg, err := svc.Send(ctx, alice, scope, body, nil)
		if err != nil {
			t.Fatalf("send: %v", err)
		}
		lastID = msg.ID
	}

	all, err := svc.History(ctx, 1, scope, 0, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(all) != 3 || all[0].Body != "a" || all[2].Body != "c" {
		t.Fatalf("unexpected history: %+v", all)
	}

	// Incremental pull since the second message.
	since, err := svc.History(ctx, 1, scope, lastID-1, 0)
	if err != nil {
		t.Fatalf("history since: %v", err)
	}
	if len(since) != 1 || since[0].Body != "c" {
		t.Fatalf("unexpected incremental history: %+v", since)
	}

	// The peer's history is not readable by an outsider.
	if _, err := svc.History(ctx, 3, scope, 0, 0); !errors.Is(err, ErrUnauthorizedScope) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}
