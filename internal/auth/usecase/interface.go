// Package usecase defines business logic interfaces for session management.
package usecase

import (
	"context"
	"time"

	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
)

// SessionRepository defines persistence operations for login sessions.
// Implementations must support transaction-aware operations via context
// propagation (database.GetQuerier).
type SessionRepository interface {
	// Create stores a new session. Returns ErrSessionIDCollision if the
	// generated identifier already exists.
	Create(ctx context.Context, session *authDomain.Session) error

	// GetValid retrieves a session younger than maxAge. Returns
	// ErrSessionNotFound for missing and expired sessions.
	GetValid(ctx context.Context, id string, maxAge time.Duration) (*authDomain.Session, error)

	// Delete removes a session. Deleting a missing session is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteExpired removes all sessions older than maxAge and returns the
	// number of deleted rows.
	DeleteExpired(ctx context.Context, maxAge time.Duration) (int64, error)

	// CountExpired counts sessions older than maxAge without removing them.
	CountExpired(ctx context.Context, maxAge time.Duration) (int64, error)
}

// SessionUseCase defines business logic operations for login sessions.
type SessionUseCase interface {
	// Login creates a persisted session for an authenticated identity and
	// returns it. The session identifier goes into the response cookie.
	Login(ctx context.Context, identity *authDomain.Identity) (*authDomain.Session, error)

	// Logout removes the session with the given identifier. Idempotent.
	Logout(ctx context.Context, sessionID string) error

	// CleanupExpired removes expired sessions. With dryRun set it only
	// reports how many rows would be removed.
	CleanupExpired(ctx context.Context, dryRun bool) (int64, error)

	// RunMaintenance periodically removes expired sessions until the
	// context is cancelled. Intended to run in its own goroutine.
	RunMaintenance(ctx context.Context, interval time.Duration)
}
