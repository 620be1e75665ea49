package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/edulink/classchat/internal/store"
)

// ErrUnknownMediaKind is returned when the declared kind is outside the
// closed set.
var ErrUnknownMediaKind = errors.New("unknown media kind")

// Store uploads a binary payload to opaque blob storage and returns a
// (url, kind) pair. Stateless; it knows nothing about messages. The
// caller composes the returned reference into a subsequent append. If
// storage fails the send must be aborted entirely: no message may
// reference a blob that was never written.
type Store interface {
	Store(ctx context.Context, payload io.Reader, kind store.MediaKind) (url string, stored store.MediaKind, err error)
}

// FSStore is a filesystem-backed blob store serving files under a base
// URL path.
type FSStore struct {
	dir     string
	baseURL string
}

// NewFSStore creates the blob directory if needed.
func NewFSStore(dir, baseURL string) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	return &FSStore{dir: dir, baseURL: baseURL}, nil
}

// Dir returns the directory blobs are written to.
func (s *FSStore) Dir() string {
	return s.dir
}

// Store writes the payload under a fresh name and returns its URL. The
// file is written to a temp name and renamed, so a URL is only ever
// handed out for a fully written blob.
func (s *FSStore) Store(ctx context.Context, payload io.Reader, kind store.MediaKind) (string, store.MediaKind, error) {
	if !store.ValidMediaKind(kind) {
		return "", "", fmt.Errorf("%w: %q", ErrUnknownMediaKind, kind)
	}
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	name := uuid.NewString() + extFor(kind)
	tmp := filepath.Join(s.dir, name+".part")
	final := filepath.Join(s.dir, name)

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", "", fmt.Errorf("create blob: %w", err)
	}

	if _, err := io.Copy(f, payload); err != nil {
		f.Close()
		os.Remove(tmp)
		return "", "", fmt.Errorf("write blob: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return "", "", fmt.Errorf("close blob: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return "", "", fmt.Errorf("publish blob: %w", err)
	}

	return s.baseURL + "/" + name, kind, nil
}

func extFor(kind store.MediaKind) string {
	switch kind {
	case store.MediaImage:
		return ".img"
	case store.MediaVideo:
		return ".vid"
	case store.MediaPDF:
		return ".pdf"
	case store.MediaDocument:
		return ".doc"
	}
	return ".bin"
}
