// Package domain contains the media catalog entities.
package domain

import (
	"slices"
	"time"

	"github.com/google/uuid"

	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
)

// Track is a single media file belonging to an event.
type Track struct {
	URI        string  `json:"uri"`
	Flavor     string  `json:"flavor"`
	MimeType   *string `json:"mimetype,omitempty"`
	Resolution []int   `json:"resolution,omitempty"`
}

// Event is a single media item (a recorded video) in the catalog. Access is
// controlled by role lists: a caller may see an event when one of their roles
// appears in ReadRoles and edit it when one appears in WriteRoles.
type Event struct {
	ID          uuid.UUID
	SeriesID    *uuid.UUID
	Title       string
	Description *string
	DurationMs  *int64
	Creator     *string
	Thumbnail   *string
	Tracks      []Track
	ReadRoles   []string
	WriteRoles  []string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ReadableBy reports whether a caller with the given identity may see the
// event. Write access implies read access.
func (e *Event) ReadableBy(identity *authDomain.Identity) bool {
	if identity.IsAdmin() {
		return true
	}
	roles := identity.EffectiveRoles()
	return overlaps(e.ReadRoles, roles) || overlaps(e.WriteRoles, roles)
}

// WritableBy reports whether a caller with the given identity may edit the
// event.
func (e *Event) WritableBy(identity *authDomain.Identity) bool {
	if identity.IsAdmin() {
		return true
	}
	return overlaps(e.WriteRoles, identity.EffectiveRoles())
}

func overlaps(a, b []string) bool {
	for _, role := range a {
		if slices.Contains(b, role) {
			return true
		}
	}
	return false
}

// Series groups related events.
type Series struct {
	ID          uuid.UUID
	Title       string
	Description *string
	CreatedAt   time.Time
}
