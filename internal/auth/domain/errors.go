package domain

import (
	"github.com/allisson/mediaportal/internal/errors"
)

// Authentication and session errors.
var (
	// ErrSessionNotFound indicates no valid session exists for the given
	// identifier. Expired sessions are reported the same way as missing
	// ones.
	ErrSessionNotFound = errors.Wrap(errors.ErrNotFound, "session not found")

	// ErrSessionIDCollision indicates an insert hit an existing session
	// identifier. With 144 bits of entropy this means broken randomness or
	// a corrupted store, so it surfaces as a server failure and is never
	// retried.
	ErrSessionIDCollision = errors.New("session id collision")

	// ErrLoginNotSupported indicates the login endpoint was called while
	// the server runs in a mode without session management.
	ErrLoginNotSupported = errors.Wrap(errors.ErrInvalidInput, "login is not supported in this auth mode")
)
