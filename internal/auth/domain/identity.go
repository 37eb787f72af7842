// Package domain contains the identity model and authorization rules.
package domain

import (
	"slices"
	"time"

	"github.com/allisson/mediaportal/internal/errors"
)

// Authentication modes.
const (
	// ModeDisabled treats every request as anonymous without touching the
	// database.
	ModeDisabled = "disabled"

	// ModeHeaderTrust reads the caller identity from reverse-proxy headers.
	// The proxy is fully trusted; malformed headers degrade to anonymous.
	ModeHeaderTrust = "header-trust"

	// ModeStatefulSession resolves the caller from a session cookie backed
	// by the user_sessions table.
	ModeStatefulSession = "stateful-session"
)

// Well-known roles. Admin short-circuits every capability check and
// anonymous is implicitly held by every caller, authenticated or not.
const (
	RoleAdmin     = "ROLE_ADMIN"
	RoleUser      = "ROLE_USER"
	RoleAnonymous = "ROLE_ANONYMOUS"
)

// Config holds the identity resolution and authorization settings.
type Config struct {
	Mode              string
	UsernameHeader    string
	DisplayNameHeader string
	RolesHeader       string
	ModeratorRole     string
	UploadRole        string
	RecorderRole      string
	EditorRole        string
	SessionDuration   time.Duration
	CookieName        string
	CookieSecure      bool
}

// Validate checks that the configured mode is one of the supported values.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeDisabled, ModeHeaderTrust, ModeStatefulSession:
		return nil
	default:
		return errors.Wrap(errors.ErrInvalidInput, "unknown auth mode: "+c.Mode)
	}
}

// SessionsEnabled reports whether the login and logout endpoints are served.
func (c Config) SessionsEnabled() bool {
	return c.Mode == ModeStatefulSession
}

// Identity is the resolved caller of a request. A nil *Identity is a valid
// value and means the caller is anonymous.
type Identity struct {
	Username    string
	DisplayName string
	Roles       []string
}

// EffectiveRoles returns the caller's roles for authorization checks. Every
// caller holds RoleAnonymous and every authenticated caller additionally
// holds RoleUser, regardless of what the session or proxy reported.
func (i *Identity) EffectiveRoles() []string {
	if i == nil {
		return []string{RoleAnonymous}
	}
	roles := slices.Clone(i.Roles)
	if !slices.Contains(roles, RoleAnonymous) {
		roles = append(roles, RoleAnonymous)
	}
	if !slices.Contains(roles, RoleUser) {
		roles = append(roles, RoleUser)
	}
	return roles
}

// HasRole reports whether the caller holds the given role. Admins hold every
// role implicitly.
func (i *Identity) HasRole(role string) bool {
	if i == nil {
		return role == RoleAnonymous
	}
	if slices.Contains(i.Roles, RoleAdmin) {
		return true
	}
	return slices.Contains(i.EffectiveRoles(), role)
}

// IsAdmin reports whether the caller holds the admin role.
func (i *Identity) IsAdmin() bool {
	return i != nil && slices.Contains(i.Roles, RoleAdmin)
}

// CanUseModeratorTools reports whether the caller may use moderation features.
func (i *Identity) CanUseModeratorTools(cfg Config) bool {
	return i.HasRole(cfg.ModeratorRole)
}

// CanUpload reports whether the caller may upload media. Moderators may
// upload without holding the upload role themselves.
func (i *Identity) CanUpload(cfg Config) bool {
	return i.CanUseModeratorTools(cfg) || i.HasRole(cfg.UploadRole)
}

// CanUseRecorder reports whether the caller may start recorder captures.
// Moderators are always allowed.
func (i *Identity) CanUseRecorder(cfg Config) bool {
	return i.CanUseModeratorTools(cfg) || i.HasRole(cfg.RecorderRole)
}

// CanUseEditor reports whether the caller may open the media editor.
// Moderators are always allowed.
func (i *Identity) CanUseEditor(cfg Config) bool {
	return i.CanUseModeratorTools(cfg) || i.HasRole(cfg.EditorRole)
}

// LogUsername returns the username for log output, or "anonymous" when the
// caller is not authenticated.
func (i *Identity) LogUsername() string {
	if i == nil {
		return "anonymous"
	}
	return i.Username
}

// CapabilityProof is evidence that an authorization check succeeded. Values
// can only be produced by the Require* methods in this package, so an
// operation that demands a proof in its signature cannot be reached without
// passing the corresponding check.
type CapabilityProof interface {
	capabilityProof()
}

type grantedProof struct{}

func (grantedProof) capabilityProof() {}

// RequireModeratorTools returns a proof that the caller may moderate, or
// ErrForbidden.
func (i *Identity) RequireModeratorTools(cfg Config) (CapabilityProof, error) {
	if !i.CanUseModeratorTools(cfg) {
		return nil, errors.Wrap(errors.ErrForbidden, "moderator tools require the moderator role")
	}
	return grantedProof{}, nil
}

// RequireUpload returns a proof that the caller may upload, or ErrForbidden.
func (i *Identity) RequireUpload(cfg Config) (CapabilityProof, error) {
	if !i.CanUpload(cfg) {
		return nil, errors.Wrap(errors.ErrForbidden, "uploading requires the upload role")
	}
	return grantedProof{}, nil
}

// RequireRecorder returns a proof that the caller may use the recorder, or
// ErrForbidden.
func (i *Identity) RequireRecorder(cfg Config) (CapabilityProof, error) {
	if !i.CanUseRecorder(cfg) {
		return nil, errors.Wrap(errors.ErrForbidden, "the recorder requires the recorder role")
	}
	return grantedProof{}, nil
}

// RequireEditor returns a proof that the caller may use the editor, or
// ErrForbidden.
func (i *Identity) RequireEditor(cfg Config) (CapabilityProof, error) {
	if !i.CanUseEditor(cfg) {
		return nil, errors.Wrap(errors.ErrForbidden, "the editor requires the editor role")
	}
	return grantedProof{}, nil
}
