package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Role partitions users for roster resolution.
type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// User represents a user in the system.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// Class represents a class whose roster backs a group conversation.
type Class struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Course binds a teacher to a class. A teacher "owns" the students of
// every class backing one of their courses.
type Course struct {
	ID        int64
	Name      string
	ClassID   int64
	TeacherID int64
}

// MediaKind is the closed set of attachment kinds, decided once at upload
// time and carried immutably on the message.
type MediaKind string

const (
	MediaImage    MediaKind = "IMAGE"
	MediaVideo    MediaKind = "VIDEO"
	MediaPDF      MediaKind = "PDF"
	MediaDocument MediaKind = "DOCUMENT"
)

// ValidMediaKind reports whether k is one of the closed media kinds.
func ValidMediaKind(k MediaKind) bool {
	switch k {
	case MediaImage, MediaVideo, MediaPDF, MediaDocument:
		return true
	}
	return false
}

// Attachment is an opaque reference to an uploaded blob.
type Attachment struct {
	URL  string
	Kind MediaKind
}

// Message represents a persisted chat message. ID and CreatedAt are
// assigned by the store at append time, never by the client. Messages are
// immutable once appended; no update or delete exists.
type Message struct {
	ID         int64
	ScopeKey   string
	SenderID   int64
	SenderName string
	Body       string
	Attachment *Attachment
	CreatedAt  time.Time
}

// UserStore handles user lookups.
type UserStore interface {
	// GetUserByID retrieves a user by ID.
	GetUserByID(ctx context.Context, id int64) (*User, error)

	// GetUserByUsername retrieves a user by username.
	GetUserByUsername(ctx context.Context, username string) (*User, error)
}

// Directory answers roster questions for contact resolution and scope
// authorization. It is the only view this module takes of the wider
// school platform's class/course data.
type Directory interface {
	// GetClassByID retrieves a class by ID.
	GetClassByID(ctx context.Context, id int64) (*Class, error)

	// ListStudentsForTeacher returns the deduplicated union of students
	// across every class backing a course the teacher owns.
	ListStudentsForTeacher(ctx context.Context, teacherID int64) ([]*User, error)

	// ListTeachersForStudent returns the deduplicated union of teachers
	// across every course backing a class the student is enrolled in.
	ListTeachersForStudent(ctx context.Context, studentID int64) ([]*User, error)

	// ListClassesForUser returns classes the user belongs to: enrolled
	// classes for students, classes backing owned courses for teachers.
	ListClassesForUser(ctx context.Context, userID int64) ([]*Class, error)

	// IsClassMember reports whether the user is enrolled in the class or
	// teaches a course backing it.
	IsClassMember(ctx context.Context, userID, classID int64) (bool, error)

	// ListClassMemberIDs returns ids of everyone in the class roster,
	// students and teachers alike.
	ListClassMemberIDs(ctx context.Context, classID int64) ([]int64, error)
}

// MessageStore handles message persistence.
type MessageStore interface {
	// AppendMessage persists a message, assigning id and timestamp, and
	// publishes the inserted row to the change feed. The returned message
	// carries the authoritative id and timestamp.
	AppendMessage(ctx context.Context, msg *Message) (*Message, error)

	// ListMessages returns messages for a scope ordered by
	// (created_at, id). If sinceID > 0 only messages with a larger id are
	// returned. Limit caps the result; 0 means no cap.
	ListMessages(ctx context.Context, scopeKey string, sinceID int64, limit int) ([]*Message, error)

	// ListRecentMessages returns the newest limit messages for a scope,
	// still in ascending (created_at, id) order. 0 means no cap.
	ListRecentMessages(ctx context.Context, scopeKey string, limit int) ([]*Message, error)
}

// Store aggregates all storage interfaces.
type Store interface {
	UserStore
	Directory
	MessageStore

	// Feed exposes the store's insertion stream.
	Feed() *Feed

	// Close closes the underlying database connection.
	Close() error
}
