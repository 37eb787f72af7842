package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionID(t *testing.T) {
	id, err := NewSessionID()
	require.NoError(t, err)
	assert.Len(t, id, SessionIDLength)
	assert.NotContains(t, id, "=")

	other, err := NewSessionID()
	require.NoError(t, err)
	assert.NotEqual(t, id, other)
}

func TestNewSession(t *testing.T) {
	identity := &Identity{
		Username:    "jose",
		DisplayName: "José Silva",
		Roles:       []string{"ROLE_PORTAL_UPLOAD"},
	}

	session, err := NewSession(identity)
	require.NoError(t, err)
	assert.Len(t, session.ID, SessionIDLength)
	assert.Equal(t, "jose", session.Username)
	assert.Equal(t, "José Silva", session.DisplayName)
	assert.Equal(t, []string{"ROLE_PORTAL_UPLOAD"}, session.Roles)
}

func TestSessionIdentity(t *testing.T) {
	session := &Session{
		ID:          "abc",
		Username:    "jose",
		DisplayName: "José Silva",
		Roles:       []string{"ROLE_PORTAL_UPLOAD"},
		CreatedAt:   time.Now(),
	}

	identity := session.Identity()
	assert.Equal(t, "jose", identity.Username)
	assert.Equal(t, "José Silva", identity.DisplayName)
	assert.Equal(t, []string{"ROLE_PORTAL_UPLOAD"}, identity.Roles)
}

func TestSessionExpiresAt(t *testing.T) {
	createdAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	session := &Session{CreatedAt: createdAt}
	assert.Equal(t, createdAt.Add(30*24*time.Hour), session.ExpiresAt(30*24*time.Hour))
}
