// Package auth resolves the caller identity of incoming requests.
package auth

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/allisson/mediaportal/internal/auth/domain"
	apperrors "github.com/allisson/mediaportal/internal/errors"
)

// SessionLookup is the slice of the session repository the resolver needs.
type SessionLookup interface {
	GetValid(ctx context.Context, id string, maxAge time.Duration) (*domain.Session, error)
}

// Resolver turns request headers into an identity according to the configured
// auth mode. A nil identity result means the caller is anonymous; resolution
// errors are reserved for infrastructure failures (a failing session lookup),
// never for malformed credentials.
type Resolver struct {
	cfg      domain.Config
	sessions SessionLookup
	logger   *slog.Logger
}

// NewResolver creates a resolver for the given mode. The session lookup may
// be nil unless the mode is stateful-session.
func NewResolver(cfg domain.Config, sessions SessionLookup, logger *slog.Logger) *Resolver {
	return &Resolver{cfg: cfg, sessions: sessions, logger: logger}
}

// Resolve determines the caller of a request. In stateful-session mode the
// lookup runs on the querier bound to ctx, so inside a request scope it uses
// the request's dedicated connection.
func (r *Resolver) Resolve(ctx context.Context, headers http.Header) (*domain.Identity, error) {
	switch r.cfg.Mode {
	case domain.ModeDisabled:
		return nil, nil
	case domain.ModeHeaderTrust:
		return r.identityFromHeaders(headers), nil
	case domain.ModeStatefulSession:
		return r.identityFromSession(ctx, headers)
	default:
		return nil, apperrors.Wrap(apperrors.ErrInvalidInput, "unknown auth mode: "+r.cfg.Mode)
	}
}

// IdentityFromTrustedHeaders decodes the proxy-provided identity headers.
// Used directly by the login handler, which accepts proxy headers even in
// stateful-session mode.
func (r *Resolver) IdentityFromTrustedHeaders(headers http.Header) *domain.Identity {
	return r.identityFromHeaders(headers)
}

func (r *Resolver) identityFromHeaders(headers http.Header) *domain.Identity {
	username, ok := r.decodeHeader(headers, r.cfg.UsernameHeader)
	if !ok || username == "" {
		return nil
	}

	displayName, ok := r.decodeHeader(headers, r.cfg.DisplayNameHeader)
	if !ok {
		return nil
	}
	if displayName == "" {
		displayName = username
	}

	identity := &domain.Identity{
		Username:    username,
		DisplayName: displayName,
	}

	if raw := headers.Get(r.cfg.RolesHeader); raw != "" {
		decoded, ok := decodeBase64URL(raw)
		if !ok {
			// The caller stays authenticated; only the role list is
			// dropped when it cannot be read.
			r.logger.Warn("ignoring malformed roles header",
				slog.String("header", r.cfg.RolesHeader),
			)
		} else {
			identity.Roles = splitRoles(decoded)
		}
	}

	return identity
}

// decodeHeader reads and base64url-decodes a single identity header. Returns
// ok=false when the value is present but unreadable; a missing header is
// simply empty.
func (r *Resolver) decodeHeader(headers http.Header, name string) (string, bool) {
	raw := headers.Get(name)
	if raw == "" {
		return "", true
	}

	decoded, ok := decodeBase64URL(raw)
	if !ok {
		r.logger.Warn("ignoring malformed auth header, treating request as anonymous",
			slog.String("header", name),
		)
		return "", false
	}

	return decoded, true
}

// splitRoles splits the decoded roles header on commas. The whole header
// value is one base64url blob containing the comma-separated list; entries
// are trimmed and empty ones dropped.
func splitRoles(decoded string) []string {
	parts := strings.Split(decoded, ",")
	roles := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		roles = append(roles, part)
	}
	return roles
}

func (r *Resolver) identityFromSession(ctx context.Context, headers http.Header) (*domain.Identity, error) {
	sessionID, ok := sessionIDFromCookie(headers, r.cfg.CookieName)
	if !ok {
		return nil, nil
	}
	if len(sessionID) != domain.SessionIDLength {
		// Not a session id we could have issued; skip the lookup.
		r.logger.Debug("ignoring session cookie with unexpected length")
		return nil, nil
	}

	session, err := r.sessions.GetValid(ctx, sessionID, r.cfg.SessionDuration)
	if err != nil {
		if apperrors.Is(err, domain.ErrSessionNotFound) {
			return nil, nil
		}
		return nil, apperrors.Wrap(err, "failed to resolve session")
	}

	return session.Identity(), nil
}

// sessionIDFromCookie extracts the session cookie value from raw headers.
func sessionIDFromCookie(headers http.Header, name string) (string, bool) {
	req := http.Request{Header: headers}
	cookie, err := req.Cookie(name)
	if err != nil || cookie.Value == "" {
		return "", false
	}
	return cookie.Value, true
}

// decodeBase64URL decodes a base64url value with or without padding and
// rejects results that are not valid UTF-8.
func decodeBase64URL(value string) (string, bool) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(value, "="))
	if err != nil {
		return "", false
	}
	if !utf8.Valid(decoded) {
		return "", false
	}
	return string(decoded), true
}
