package chat

import "errors"

// Error codes for domain errors.
const (
	ErrCodeUnauthorizedScope = "unauthorized_scope"
	ErrCodeAlreadyJoined     = "already_joined"
	ErrCodeNotJoined         = "not_joined"
	ErrCodeBadRequest        = "bad_request"
	ErrCodeUploadFailed      = "upload_failed"
)

var (
	// ErrUnauthorizedScope covers both unknown and forbidden scopes so
	// callers cannot enumerate scopes they may not join.
	ErrUnauthorizedScope = errors.New("scope not accessible")
	ErrAlreadyJoined     = errors.New("already joined")
	ErrNotJoined         = errors.New("not joined")
	ErrBadRequest        = errors.New("bad request")
)

// CoreError wraps a code and human-readable message.
type CoreError struct {
	Code    string
	Message string
}

func (e *CoreError) Error() string {
	return e.Message
}

func coreError(code, msg string) *CoreError {
	return &CoreError{Code: code, Message: msg}
}
