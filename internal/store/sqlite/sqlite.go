package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/edulink/classchat/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db   *sql.DB
	feed *store.Feed
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file.
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := ensureSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db, feed: store.NewFeed()}, nil
}

// NewWithSetup creates a new SQLite store and runs a setup function after
// the schema is applied. Useful for tests to seed rosters.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	s, err := New(dbPath)
	if err != nil {
		return nil, err
	}
	if setup != nil {
		if err := setup(s.db); err != nil {
			s.db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}
	return s, nil
}

func ensureSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		display_name  TEXT NOT NULL DEFAULT '',
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL CHECK (role IN ('teacher', 'student')),
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS classes (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL,
		created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS courses (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		name       TEXT NOT NULL,
		class_id   INTEGER NOT NULL REFERENCES classes(id),
		teacher_id INTEGER NOT NULL REFERENCES users(id)
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		user_id  INTEGER NOT NULL REFERENCES users(id),
		class_id INTEGER NOT NULL REFERENCES classes(id),
		PRIMARY KEY (user_id, class_id)
	);

	CREATE TABLE IF NOT EXISTS messages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		scope_key       TEXT NOT NULL,
		sender_id       INTEGER NOT NULL REFERENCES users(id),
		sender_name     TEXT NOT NULL,
		body            TEXT NOT NULL,
		attachment_url  TEXT,
		attachment_kind TEXT,
		created_at      DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_messages_scope
		ON messages (scope_key, created_at, id);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Feed exposes the store's insertion stream.
func (s *SQLiteStore) Feed() *store.Feed {
	return s.feed
}

// ==== UserStore implementation ====

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, display_name, password_hash, role, created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, display_name, password_hash, role, created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.DisplayName,
		&user.PasswordHash,
		&user.Role,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// ==== Directory implementation ====

// GetClassByID retrieves a class by ID.
func (s *SQLiteStore) GetClassByID(ctx context.Context, id int64) (*store.Class, error) {
	query := `SELECT id, name, created_at FROM classes WHERE id = ?`

	var class store.Class
	err := s.db.QueryRowContext(ctx, query, id).Scan(&class.ID, &class.Name, &class.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query class: %w", err)
	}
	return &class, nil
}

// ListStudentsForTeacher returns the deduplicated union of students across
// every class backing a course the teacher owns.
func (s *SQLiteStore) ListStudentsForTeacher(ctx context.Context, teacherID int64) ([]*store.User, error) {
	query := `
		SELECT DISTINCT u.id, u.username, u.display_name, u.password_hash, u.role, u.created_at
		FROM users u
		JOIN enrollments e ON e.user_id = u.id
		JOIN courses c ON c.class_id = e.class_id
		WHERE c.teacher_id = ? AND u.role = 'student'
		ORDER BY u.username
	`
	return s.queryUsers(ctx, query, teacherID)
}

// ListTeachersForStudent returns the deduplicated union of teachers across
// every course backing a class the student is enrolled in.
func (s *SQLiteStore) ListTeachersForStudent(ctx context.Context, studentID int64) ([]*store.User, error) {
	query := `
		SELECT DISTINCT u.id, u.username, u.display_name, u.password_hash, u.role, u.created_at
		FROM users u
		JOIN courses c ON c.teacher_id = u.id
		JOIN enrollments e ON e.class_id = c.class_id
		WHERE e.user_id = ?
		ORDER BY u.username
	`
	return s.queryUsers(ctx, query, studentID)
}

func (s *SQLiteStore) queryUsers(ctx context.Context, query string, args ...any) ([]*store.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []*store.User{}
	for rows.Next() {
		var user store.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.DisplayName,
			&user.PasswordHash,
			&user.Role,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, &user)
	}
	return users, rows.Err()
}

// ListClassesForUser returns classes the user belongs to: enrolled classes
// for students, classes backing owned courses for teachers.
func (s *SQLiteStore) ListClassesForUser(ctx context.Context, userID int64) ([]*store.Class, error) {
	query := `
		SELECT DISTINCT cl.id, cl.name, cl.created_at
		FROM classes cl
		WHERE cl.id IN (SELECT class_id FROM enrollments WHERE user_id = ?)
		   OR cl.id IN (SELECT class_id FROM courses WHERE teacher_id = ?)
		ORDER BY cl.id
	`
	rows, err := s.db.QueryContext(ctx, query, userID, userID)
	if err != nil {
		return nil, fmt.Errorf("query classes: %w", err)
	}
	defer rows.Close()

	classes := []*store.Class{}
	for rows.Next() {
		var class store.Class
		if err := rows.Scan(&class.ID, &class.Name, &class.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan class: %w", err)
		}
		classes = append(classes, &class)
	}
	return classes, rows.Err()
}

// IsClassMember reports whether the user is enrolled in the class or
// teaches a course backing it.
func (s *SQLiteStore) IsClassMember(ctx context.Context, userID, classID int64) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM enrollments WHERE user_id = ? AND class_id = ?
			UNION
			SELECT 1 FROM courses WHERE teacher_id = ? AND class_id = ?
		)
	`
	var member bool
	err := s.db.QueryRowContext(ctx, query, userID, classID, userID, classID).Scan(&member)
	if err != nil {
		return false, fmt.Errorf("query membership: %w", err)
	}
	return member, nil
}

// ListClassMemberIDs returns ids of everyone in the class roster, students
// and teachers alike.
func (s *SQLiteStore) ListClassMemberIDs(ctx context.Context, classID int64) ([]int64, error) {
	query := `
		SELECT user_id FROM enrollments WHERE class_id = ?
		UNION
		SELECT teacher_id FROM courses WHERE class_id = ?
	`
	rows, err := s.db.QueryContext(ctx, query, classID, classID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	ids := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ==== MessageStore implementation ====

// AppendMessage persists a message, assigning id and timestamp, publishes
// the inserted row to the change feed, and returns the stored message.
func (s *SQLiteStore) AppendMessage(ctx context.Context, msg *store.Message) (*store.Message, error) {
	query := `
		INSERT INTO messages (scope_key, sender_id, sender_name, body, attachment_url, attachment_kind, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var attURL, attKind *string
	if msg.Attachment != nil {
		attURL = &msg.Attachment.URL
		kind := string(msg.Attachment.Kind)
		attKind = &kind
	}

	createdAt := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		msg.ScopeKey, msg.SenderID, msg.SenderName, msg.Body, attURL, attKind, createdAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	stored := &store.Message{
		ID:         id,
		ScopeKey:   msg.ScopeKey,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Body:       msg.Body,
		CreatedAt:  createdAt,
	}
	if msg.Attachment != nil {
		att := *msg.Attachment
		stored.Attachment = &att
	}

	s.feed.Publish(store.FeedEvent{Message: stored})

	return stored, nil
}

// ListMessages returns messages for a scope ordered by (created_at, id).
func (s *SQLiteStore) ListMessages(ctx context.Context, scopeKey string, sinceID int64, limit int) ([]*store.Message, error) {
	query := `
		SELECT id, scope_key, sender_id, sender_name, body, attachment_url, attachment_kind, created_at
		FROM messages
		WHERE scope_key = ? AND id > ?
		ORDER BY created_at, id
	`
	args := []any{scopeKey, sinceID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	return s.queryMessages(ctx, query, args...)
}

// ListRecentMessages returns the newest limit messages for a scope, still
// in ascending (created_at, id) order. Used to seed a client's view on
// join with the tail of the conversation rather than its start.
func (s *SQLiteStore) ListRecentMessages(ctx context.Context, scopeKey string, limit int) ([]*store.Message, error) {
	if limit <= 0 {
		return s.ListMessages(ctx, scopeKey, 0, 0)
	}

	query := `
		SELECT id, scope_key, sender_id, sender_name, body, attachment_url, attachment_kind, created_at
		FROM messages
		WHERE scope_key = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`
	messages, err := s.queryMessages(ctx, query, scopeKey, limit)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

func (s *SQLiteStore) queryMessages(ctx context.Context, query string, args ...any) ([]*store.Message, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	messages := []*store.Message{}
	for rows.Next() {
		var msg store.Message
		var attURL, attKind *string
		if err := rows.Scan(
			&msg.ID,
			&msg.ScopeKey,
			&msg.SenderID,
			&msg.SenderName,
			&msg.Body,
			&attURL,
			&attKind,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if attURL != nil && attKind != nil {
			msg.Attachment = &store.Attachment{URL: *attURL, Kind: store.MediaKind(*attKind)}
		}
		messages = append(messages, &msg)
	}
	return messages, rows.Err()
}

// ==== Seeding helpers (admin and test use) ====

// CreateUser inserts a user row.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, displayName, passwordHash string, role store.Role) (*store.User, error) {
	query := `
		INSERT INTO users (username, display_name, password_hash, role)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, displayName, passwordHash, role)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetUserByID(ctx, id)
}

// CreateClass inserts a class row.
func (s *SQLiteStore) CreateClass(ctx context.Context, name string) (*store.Class, error) {
	result, err := s.db.ExecContext(ctx, `INSERT INTO classes (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert class: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return s.GetClassByID(ctx, id)
}

// CreateCourse inserts a course binding a teacher to a class.
func (s *SQLiteStore) CreateCourse(ctx context.Context, name string, classID, teacherID int64) (*store.Course, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO courses (name, class_id, teacher_id) VALUES (?, ?, ?)`,
		name, classID, teacherID)
	if err != nil {
		return nil, fmt.Errorf("insert course: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}
	return &store.Course{ID: id, Name: name, ClassID: classID, TeacherID: teacherID}, nil
}

// Enroll adds a student to a class roster.
func (s *SQLiteStore) Enroll(ctx context.Context, userID, classID int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO enrollments (user_id, class_id) VALUES (?, ?)`,
		userID, classID)
	if err != nil {
		return fmt.Errorf("insert enrollment: %w", err)
	}
	return nil
}
