package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/edulink/classchat/internal/store"
)

func mustEvent(t *testing.T, ch <-chan *Event, kind EventKind) *Event {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev == nil {
				continue
			}
			if ev.Kind == kind {
				return ev
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
	t.Fatalf("expected event kind %v not received", kind)
	return nil
}

func assertNoEvent(t *testing.T, ch <-chan *Event, kind EventKind) {
	t.Helper()

	deadline := time.Now().Add(300 * time.Millisecond)
	for time.Now().Before(deadline) {
		select {
		case ev := <-ch:
			if ev != nil && ev.Kind == kind {
				t.Fatalf("unexpected event kind %v: %+v", kind, ev)
			}
		default:
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// memStore is an in-memory store.Store for hub and service tests.
type memStore struct {
	mu       sync.Mutex
	users    map[int64]*store.User
	classes  map[int64]*store.Class
	members  map[int64][]int64
	messages []*store.Message
	nextID   int64
	feed     *store.Feed
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[int64]*store.User),
		classes: make(map[int64]*store.Class),
		members: make(map[int64][]int64),
		feed:    store.NewFeed(),
	}
}

func (m *memStore) addUser(id int64, username string, role store.Role) {
	m.users[id] = &store.User{ID: id, Username: username, Role: role}
}

func (m *memStore) addClass(id int64, name string, memberIDs ...int64) {
	m.classes[id] = &store.Class{ID: id, Name: name}
	m.members[id] = memberIDs
}

func (m *memStore) GetUserByID(_ context.Context, id int64) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetUserByUsername(_ context.Context, username string) (*store.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *memStore) GetClassByID(_ context.Context, id int64) (*store.Class, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.classes[id]; ok {
		return c, nil
	}
	return nil, store.ErrNotFound
}

func (m *memStore) ListStudentsForTeacher(context.Context, int64) ([]*store.User, error) {
	return nil, nil
}

func (m *memStore) ListTeachersForStudent(context.Context, int64) ([]*store.User, error) {
	return nil, nil
}

func (m *memStore) ListClassesForUser(context.Context, int64) ([]*store.Class, error) {
	return nil, nil
}

func (m *memStore) IsClassMember(_ context.Context, userID, classID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.members[classID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListClassMemberIDs(_ context.Context, classID int64) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int64{}, m.members[classID]...), nil
}

func (m *memStore) AppendMessage(_ context.Context, msg *store.Message) (*store.Message, error) {
	m.mu.Lock()
	m.nextID++
	stored := &store.Message{
		ID:         m.nextID,
		ScopeKey:   msg.ScopeKey,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Body:       msg.Body,
		Attachment: msg.Attachment,
		CreatedAt:  time.Now().UTC(),
	}
	m.messages = append(m.messages, stored)
	m.mu.Unlock()

	m.feed.Publish(store.FeedEvent{Message: stored})
	return stored, nil
}

func (m *memStore) ListMessages(_ context.Context, scopeKey string, sinceID int64, limit int) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*store.Message{}
	for _, msg := range m.messages {
		if msg.ScopeKey != scopeKey || msg.ID <= sinceID {
			continue
		}
		out = append(out, msg)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memStore) ListRecentMessages(_ context.Context, scopeKey string, limit int) ([]*store.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := []*store.Message{}
	for _, msg := range m.messages {
		if msg.ScopeKey == scopeKey {
			out = append(out, msg)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *memStore) Feed() *store.Feed {
	return m.feed
}

func (m *memStore) Close() error {
	return nil
}
