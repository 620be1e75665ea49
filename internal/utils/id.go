package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EchoIDPrefix marks client-generated temporary ids so they can never
// collide with store-assigned message ids.
const EchoIDPrefix = "tmp:"

// NewEchoID returns a temporary id for an optimistic echo.
func NewEchoID() string {
	const size = 12

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err == nil {
		return EchoIDPrefix + hex.EncodeToString(buf)
	}

	// Fallback to timestamp if crypto/rand is unavailable.
	return EchoIDPrefix + strconv.FormatInt(time.Now().UnixNano(), 10)
}

// IsEchoID reports whether id was generated by NewEchoID.
func IsEchoID(id string) bool {
	return strings.HasPrefix(id, EchoIDPrefix)
}

// NewSessionID returns a unique id for a connected session.
func NewSessionID() string {
	return uuid.NewString()
}
