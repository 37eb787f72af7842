package domain

import (
	"crypto/rand"
	"encoding/base64"
	"time"
)

// sessionIDBytes is the entropy of a session identifier. 18 bytes encode to
// exactly 24 base64 characters with no padding.
const sessionIDBytes = 18

// SessionIDLength is the length of an encoded session identifier.
const SessionIDLength = 24

// Session is a persisted login session. The identity snapshot is taken at
// login time and is not refreshed while the session lives.
type Session struct {
	ID          string
	Username    string
	DisplayName string
	Roles       []string
	CreatedAt   time.Time
}

// NewSession creates a session for an authenticated identity with a fresh
// random identifier.
func NewSession(identity *Identity) (*Session, error) {
	id, err := NewSessionID()
	if err != nil {
		return nil, err
	}
	return &Session{
		ID:          id,
		Username:    identity.Username,
		DisplayName: identity.DisplayName,
		Roles:       identity.Roles,
	}, nil
}

// NewSessionID generates a random session identifier from a cryptographically
// secure source.
func NewSessionID() (string, error) {
	buf := make([]byte, sessionIDBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Identity returns the identity snapshot stored in the session.
func (s *Session) Identity() *Identity {
	return &Identity{
		Username:    s.Username,
		DisplayName: s.DisplayName,
		Roles:       s.Roles,
	}
}

// ExpiresAt returns the instant the session stops being valid.
func (s *Session) ExpiresAt(duration time.Duration) time.Time {
	return s.CreatedAt.Add(duration)
}
