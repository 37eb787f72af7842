// Package http provides the login and logout endpoints and related middleware.
package http

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/mediaportal/internal/auth"
	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
	"github.com/allisson/mediaportal/internal/auth/usecase"
	apperrors "github.com/allisson/mediaportal/internal/errors"
	"github.com/allisson/mediaportal/internal/httputil"
	"github.com/allisson/mediaportal/internal/metrics"
)

// SessionHandler serves the session endpoints used in stateful-session mode.
// The login endpoint is called by the auth proxy after it has authenticated
// the user, with the identity passed in the same trusted headers used by
// header-trust mode.
type SessionHandler struct {
	cfg            authDomain.Config
	resolver       *auth.Resolver
	sessionUseCase usecase.SessionUseCase
	metrics        metrics.RequestMetrics
	logger         *slog.Logger
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(
	cfg authDomain.Config,
	resolver *auth.Resolver,
	sessionUseCase usecase.SessionUseCase,
	requestMetrics metrics.RequestMetrics,
	logger *slog.Logger,
) *SessionHandler {
	return &SessionHandler{
		cfg:            cfg,
		resolver:       resolver,
		sessionUseCase: sessionUseCase,
		metrics:        requestMetrics,
		logger:         logger,
	}
}

// Login creates a session from the trusted identity headers and sets the
// session cookie.
//
// POST /~session
func (h *SessionHandler) Login(c *gin.Context) {
	identity := h.resolver.IdentityFromTrustedHeaders(c.Request.Header)
	if identity == nil {
		httputil.HandleErrorGin(
			c,
			apperrors.Wrap(apperrors.ErrUnauthorized, "login requires identity headers"),
			h.logger,
		)
		return
	}

	session, err := h.sessionUseCase.Login(c.Request.Context(), identity)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	h.metrics.RecordSessionEvent(c.Request.Context(), "login")
	h.setSessionCookie(c, session.ID, int(h.cfg.SessionDuration.Seconds()))
	c.Status(http.StatusNoContent)
}

// Logout deletes the caller's session and clears the cookie. Requests without
// a session cookie still succeed so stale cookies can always be cleared.
//
// DELETE /~session
func (h *SessionHandler) Logout(c *gin.Context) {
	sessionID, err := c.Cookie(h.cfg.CookieName)
	if err == nil && sessionID != "" {
		if err := h.sessionUseCase.Logout(c.Request.Context(), sessionID); err != nil {
			httputil.HandleErrorGin(c, err, h.logger)
			return
		}
		h.metrics.RecordSessionEvent(c.Request.Context(), "logout")
	}

	h.setSessionCookie(c, "", -1)
	c.Status(http.StatusNoContent)
}

func (h *SessionHandler) setSessionCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(h.cfg.CookieName, value, maxAge, "/", "", h.cfg.CookieSecure, true)
}
