package domain

import (
	"github.com/allisson/mediaportal/internal/errors"
)

// Catalog errors.
var (
	// ErrEventNotFound indicates an event with the specified ID was not
	// found. Also used when the event exists but the caller may not see
	// it, so the response does not reveal the event's existence.
	ErrEventNotFound = errors.Wrap(errors.ErrNotFound, "event not found")
)
