package usecase

import (
	"context"

	"github.com/google/uuid"

	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
	eventDomain "github.com/allisson/mediaportal/internal/event/domain"
)

// eventUseCase implements EventUseCase on top of an EventRepository.
type eventUseCase struct {
	eventRepo EventRepository
}

// NewEventUseCase creates a new event use case.
func NewEventUseCase(eventRepo EventRepository) EventUseCase {
	return &eventUseCase{eventRepo: eventRepo}
}

// Get retrieves a single event if the caller may see it. An event hidden
// from the caller is indistinguishable from a missing one.
func (e *eventUseCase) Get(
	ctx context.Context,
	eventID uuid.UUID,
	identity *authDomain.Identity,
) (*eventDomain.Event, error) {
	event, err := e.eventRepo.Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !event.ReadableBy(identity) {
		return nil, eventDomain.ErrEventNotFound
	}
	return event, nil
}

// ListBySeries retrieves the series' events the caller may see.
func (e *eventUseCase) ListBySeries(
	ctx context.Context,
	seriesID uuid.UUID,
	identity *authDomain.Identity,
) ([]*eventDomain.Event, error) {
	events, err := e.eventRepo.ListBySeries(ctx, seriesID)
	if err != nil {
		return nil, err
	}

	visible := make([]*eventDomain.Event, 0, len(events))
	for _, event := range events {
		if event.ReadableBy(identity) {
			visible = append(visible, event)
		}
	}
	return visible, nil
}

// ListWritable retrieves the events the caller may edit. Admins get the full
// catalog; everyone else is matched against write roles in the database.
func (e *eventUseCase) ListWritable(
	ctx context.Context,
	identity *authDomain.Identity,
	_ authDomain.CapabilityProof,
) ([]*eventDomain.Event, error) {
	if identity.IsAdmin() {
		return e.eventRepo.ListAll(ctx)
	}
	return e.eventRepo.ListWritable(ctx, identity.EffectiveRoles())
}
