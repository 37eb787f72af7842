// Package usecase defines business logic interfaces for the media catalog.
package usecase

import (
	"context"

	"github.com/google/uuid"

	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
	eventDomain "github.com/allisson/mediaportal/internal/event/domain"
)

// EventRepository defines persistence operations for events. Implementations
// must support transaction-aware operations via context propagation
// (database.GetQuerier).
type EventRepository interface {
	// Get retrieves an event by ID. Returns ErrEventNotFound if not found.
	Get(ctx context.Context, eventID uuid.UUID) (*eventDomain.Event, error)

	// ListBySeries retrieves all events of a series, newest first.
	ListBySeries(ctx context.Context, seriesID uuid.UUID) ([]*eventDomain.Event, error)

	// ListWritable retrieves events whose write roles overlap the given
	// roles, newest first.
	ListWritable(ctx context.Context, roles []string) ([]*eventDomain.Event, error)

	// ListAll retrieves every event, newest first.
	ListAll(ctx context.Context) ([]*eventDomain.Event, error)

	// Create inserts a new event.
	Create(ctx context.Context, event *eventDomain.Event) error
}

// EventUseCase defines the read operations of the catalog with access control
// applied.
type EventUseCase interface {
	// Get retrieves a single event visible to the caller. Events the
	// caller may not see are reported as ErrEventNotFound so their
	// existence is not leaked.
	Get(ctx context.Context, eventID uuid.UUID, identity *authDomain.Identity) (*eventDomain.Event, error)

	// ListBySeries retrieves the events of a series, restricted to those
	// the caller may see.
	ListBySeries(ctx context.Context, seriesID uuid.UUID, identity *authDomain.Identity) ([]*eventDomain.Event, error)

	// ListWritable retrieves the events the caller may edit. The proof
	// parameter can only be obtained through a capability check, so the
	// operation is unreachable for callers without the upload role.
	ListWritable(ctx context.Context, identity *authDomain.Identity, proof authDomain.CapabilityProof) ([]*eventDomain.Event, error)
}
