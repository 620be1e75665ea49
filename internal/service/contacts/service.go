// Package contacts resolves the visible contact list for a user by role:
// teachers see students across their taught classes, students see
// teachers across their enrolled classes, and both see their classes as
// group conversations. Contacts are derived from roster queries on
// demand, never stored.
package contacts

import (
	"context"
	"fmt"

	"github.com/edulink/classchat/internal/chat"
	"github.com/edulink/classchat/internal/store"
)

// Contact is a resolved conversation target with a live onlineness flag.
type Contact struct {
	UserID      int64
	DisplayName string
	Role        store.Role
	ScopeType   chat.ScopeType
	Scope       chat.Scope
	Online      bool
}

// Service resolves contacts against the directory.
type Service struct {
	users    store.UserStore
	dir      store.Directory
	presence *chat.PresenceTracker
}

// NewService builds the resolver. presence may be nil; contacts then all
// read as offline.
func NewService(users store.UserStore, dir store.Directory, presence *chat.PresenceTracker) *Service {
	return &Service{users: users, dir: dir, presence: presence}
}

// Resolve computes the contact list for the user: role-directed peers,
// deduplicated by identity, followed by the user's group scopes.
func (s *Service) Resolve(ctx context.Context, user *store.User) ([]Contact, error) {
	peers, err := s.peersFor(ctx, user)
	if err != nil {
		return nil, err
	}

	contacts := make([]Contact, 0, len(peers))
	seen := make(map[int64]struct{}, len(peers))
	for _, peer := range peers {
		if peer.ID == user.ID {
			continue
		}
		if _, dup := seen[peer.ID]; dup {
			continue
		}
		seen[peer.ID] = struct{}{}
		contacts = append(contacts, Contact{
			UserID:      peer.ID,
			DisplayName: displayName(peer),
			Role:        peer.Role,
			ScopeType:   chat.ScopeDirect,
			Scope:       chat.DirectScope(user.ID, peer.ID),
			Online:      s.online(peer.ID),
		})
	}

	classes, err := s.dir.ListClassesForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	for _, class := range classes {
		contacts = append(contacts, Contact{
			DisplayName: class.Name,
			ScopeType:   chat.ScopeGroup,
			Scope:       chat.GroupScope(class.ID),
		})
	}

	return contacts, nil
}

// ContactIDs returns just the peer identities, for presence broadcasts.
func (s *Service) ContactIDs(ctx context.Context, userID int64) ([]int64, error) {
	user, err := s.userByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	peers, err := s.peersFor(ctx, user)
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(peers))
	seen := make(map[int64]struct{}, len(peers))
	for _, peer := range peers {
		if peer.ID == userID {
			continue
		}
		if _, dup := seen[peer.ID]; dup {
			continue
		}
		seen[peer.ID] = struct{}{}
		ids = append(ids, peer.ID)
	}
	return ids, nil
}

func (s *Service) peersFor(ctx context.Context, user *store.User) ([]*store.User, error) {
	switch user.Role {
	case store.RoleTeacher:
		peers, err := s.dir.ListStudentsForTeacher(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("list students: %w", err)
		}
		return peers, nil
	case store.RoleStudent:
		peers, err := s.dir.ListTeachersForStudent(ctx, user.ID)
		if err != nil {
			return nil, fmt.Errorf("list teachers: %w", err)
		}
		return peers, nil
	}
	return nil, fmt.Errorf("unknown role %q", user.Role)
}

func (s *Service) online(userID int64) bool {
	if s.presence == nil {
		return false
	}
	return s.presence.Online(userID)
}

func (s *Service) userByID(ctx context.Context, userID int64) (*store.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return user, nil
}

func displayName(u *store.User) string {
	if u.DisplayName != "" {
		return u.DisplayName
	}
	return u.Username
}
