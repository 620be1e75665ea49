package chat

import (
	"fmt"
	"strconv"
	"strings"
)

// ScopeType distinguishes direct and group conversations.
type ScopeType string

const (
	ScopeDirect ScopeType = "direct"
	ScopeGroup  ScopeType = "group"
)

// Scope is the addressing unit of a conversation: either a canonicalized
// pair of user ids or a class id. Exactly one form is set.
type Scope struct {
	Type ScopeType

	// Direct participants, UserA < UserB.
	UserA, UserB int64

	// Group class id.
	ClassID int64
}

// DirectScope canonicalizes a (sender, target) pair so that both peers
// converge on the same conversation regardless of argument order.
func DirectScope(a, b int64) Scope {
	if a > b {
		a, b = b, a
	}
	return Scope{Type: ScopeDirect, UserA: a, UserB: b}
}

// GroupScope addresses the conversation backed by a class roster.
func GroupScope(classID int64) Scope {
	return Scope{Type: ScopeGroup, ClassID: classID}
}

// Key returns the canonical string form: "dm:{min}:{max}" or "class:{id}".
func (s Scope) Key() string {
	switch s.Type {
	case ScopeDirect:
		return fmt.Sprintf("dm:%d:%d", s.UserA, s.UserB)
	case ScopeGroup:
		return fmt.Sprintf("class:%d", s.ClassID)
	}
	return ""
}

// Includes reports whether the user is one end of a direct scope.
// Always false for group scopes; membership there is a roster question.
func (s Scope) Includes(userID int64) bool {
	return s.Type == ScopeDirect && (s.UserA == userID || s.UserB == userID)
}

// IsZero reports whether the scope is unset.
func (s Scope) IsZero() bool {
	return s.Type == ""
}

// ParseScopeKey parses the canonical string form back into a Scope.
func ParseScopeKey(key string) (Scope, error) {
	switch {
	case strings.HasPrefix(key, "dm:"):
		parts := strings.Split(key, ":")
		if len(parts) != 3 {
			return Scope{}, fmt.Errorf("malformed direct scope %q", key)
		}
		a, errA := strconv.ParseInt(parts[1], 10, 64)
		b, errB := strconv.ParseInt(parts[2], 10, 64)
		if errA != nil || errB != nil {
			return Scope{}, fmt.Errorf("malformed direct scope %q", key)
		}
		return DirectScope(a, b), nil
	case strings.HasPrefix(key, "class:"):
		id, err := strconv.ParseInt(strings.TrimPrefix(key, "class:"), 10, 64)
		if err != nil {
			return Scope{}, fmt.Errorf("malformed group scope %q", key)
		}
		return GroupScope(id), nil
	}
	return Scope{}, fmt.Errorf("unknown scope %q", key)
}
