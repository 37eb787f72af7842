package usecase

import (
	"context"
	"log/slog"
	"time"

	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
	apperrors "github.com/allisson/mediaportal/internal/errors"
)

// sessionUseCase implements SessionUseCase on top of a SessionRepository.
type sessionUseCase struct {
	cfg         authDomain.Config
	sessionRepo SessionRepository
	logger      *slog.Logger
}

// NewSessionUseCase creates a new session use case.
func NewSessionUseCase(cfg authDomain.Config, sessionRepo SessionRepository, logger *slog.Logger) SessionUseCase {
	return &sessionUseCase{
		cfg:         cfg,
		sessionRepo: sessionRepo,
		logger:      logger,
	}
}

// Login creates a session for an authenticated identity. The random session
// identifier carries 144 bits of entropy, so an insert collision points at a
// broken random source and is surfaced as-is rather than retried.
func (s *sessionUseCase) Login(ctx context.Context, identity *authDomain.Identity) (*authDomain.Session, error) {
	if identity == nil {
		return nil, apperrors.Wrap(apperrors.ErrUnauthorized, "login requires an authenticated identity")
	}

	session, err := authDomain.NewSession(identity)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to generate session")
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, err
	}

	s.logger.Info("session created",
		slog.String("username", identity.Username),
	)

	return session, nil
}

// Logout removes the session. Unknown session identifiers are ignored so a
// stale cookie can always be cleared.
func (s *sessionUseCase) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	return s.sessionRepo.Delete(ctx, sessionID)
}

// CleanupExpired removes sessions older than the configured duration. Expiry
// is enforced on every lookup as well, so this only reclaims storage.
func (s *sessionUseCase) CleanupExpired(ctx context.Context, dryRun bool) (int64, error) {
	if dryRun {
		return s.sessionRepo.CountExpired(ctx, s.cfg.SessionDuration)
	}
	return s.sessionRepo.DeleteExpired(ctx, s.cfg.SessionDuration)
}

// RunMaintenance sweeps expired sessions on a fixed interval until ctx is
// cancelled. Sweep failures are logged and the loop keeps going; a transient
// database outage must not kill session cleanup for the process lifetime.
func (s *sessionUseCase) RunMaintenance(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := s.CleanupExpired(ctx, false)
			if err != nil {
				s.logger.Error("failed to remove expired sessions",
					slog.String("error", err.Error()),
				)
				continue
			}
			if deleted > 0 {
				s.logger.Info("removed expired sessions",
					slog.Int64("deleted", deleted),
				)
			}
		}
	}
}
