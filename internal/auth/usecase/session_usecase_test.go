package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
	apperrors "github.com/allisson/mediaportal/internal/errors"
)

// fakeSessionRepository is an in-memory SessionRepository for use case tests.
type fakeSessionRepository struct {
	mu        sync.Mutex
	sessions  map[string]*authDomain.Session
	createErr error
	deleteErr error
	expired   int64
	sweeps    int
}

func newFakeSessionRepository() *fakeSessionRepository {
	return &fakeSessionRepository{sessions: make(map[string]*authDomain.Session)}
}

func (f *fakeSessionRepository) Create(_ context.Context, session *authDomain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	if _, exists := f.sessions[session.ID]; exists {
		return authDomain.ErrSessionIDCollision
	}
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionRepository) GetValid(_ context.Context, id string, _ time.Duration) (*authDomain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	session, ok := f.sessions[id]
	if !ok {
		return nil, authDomain.ErrSessionNotFound
	}
	return session, nil
}

func (f *fakeSessionRepository) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	delete(f.sessions, id)
	return nil
}

func (f *fakeSessionRepository) DeleteExpired(_ context.Context, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sweeps++
	deleted := f.expired
	f.expired = 0
	return deleted, nil
}

func (f *fakeSessionRepository) CountExpired(_ context.Context, _ time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.expired, nil
}

func (f *fakeSessionRepository) sweepCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sweeps
}

func newSessionUseCase(repo SessionRepository) SessionUseCase {
	cfg := authDomain.Config{
		Mode:            authDomain.ModeStatefulSession,
		SessionDuration: 30 * 24 * time.Hour,
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewSessionUseCase(cfg, repo, logger)
}

func TestSessionUseCaseLogin(t *testing.T) {
	t.Run("creates a session with a fresh identifier", func(t *testing.T) {
		repo := newFakeSessionRepository()
		uc := newSessionUseCase(repo)

		identity := &authDomain.Identity{
			Username:    "jose",
			DisplayName: "José Silva",
			Roles:       []string{"ROLE_PORTAL_UPLOAD"},
		}

		session, err := uc.Login(context.Background(), identity)
		require.NoError(t, err)
		assert.Len(t, session.ID, authDomain.SessionIDLength)
		assert.Equal(t, "jose", session.Username)

		stored, err := repo.GetValid(context.Background(), session.ID, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, session.ID, stored.ID)
	})

	t.Run("rejects anonymous callers", func(t *testing.T) {
		uc := newSessionUseCase(newFakeSessionRepository())

		_, err := uc.Login(context.Background(), nil)
		assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
	})

	t.Run("collision is not retried", func(t *testing.T) {
		repo := newFakeSessionRepository()
		repo.createErr = authDomain.ErrSessionIDCollision
		uc := newSessionUseCase(repo)

		_, err := uc.Login(context.Background(), &authDomain.Identity{Username: "jose"})
		assert.ErrorIs(t, err, authDomain.ErrSessionIDCollision)
	})
}

func TestSessionUseCaseLogout(t *testing.T) {
	repo := newFakeSessionRepository()
	uc := newSessionUseCase(repo)

	session, err := uc.Login(context.Background(), &authDomain.Identity{Username: "jose"})
	require.NoError(t, err)

	require.NoError(t, uc.Logout(context.Background(), session.ID))
	_, err = repo.GetValid(context.Background(), session.ID, time.Hour)
	assert.ErrorIs(t, err, authDomain.ErrSessionNotFound)

	// Logout must be idempotent and tolerate empty identifiers.
	assert.NoError(t, uc.Logout(context.Background(), session.ID))
	assert.NoError(t, uc.Logout(context.Background(), ""))
}

func TestSessionUseCaseCleanupExpired(t *testing.T) {
	repo := newFakeSessionRepository()
	repo.expired = 3
	uc := newSessionUseCase(repo)

	t.Run("dry run only counts", func(t *testing.T) {
		count, err := uc.CleanupExpired(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
		assert.Zero(t, repo.sweepCount())
	})

	t.Run("real run deletes", func(t *testing.T) {
		deleted, err := uc.CleanupExpired(context.Background(), false)
		require.NoError(t, err)
		assert.Equal(t, int64(3), deleted)
		assert.Equal(t, 1, repo.sweepCount())
	})
}

func TestSessionUseCaseRunMaintenance(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := newFakeSessionRepository()
	repo.expired = 2
	uc := newSessionUseCase(repo)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		uc.RunMaintenance(ctx, 10*time.Millisecond)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return repo.sweepCount() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("maintenance loop did not stop after context cancellation")
	}
}
