package database

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/mediaportal/internal/errors"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingHandler captures log records for assertions.
type recordingHandler struct {
	mu      sync.Mutex
	records []slog.Record
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }

func (h *recordingHandler) messages() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.records))
	for _, r := range h.records {
		out = append(out, r.Message)
	}
	return out
}

func newMockDB(t *testing.T, maxOpen int) (*sqlmock.Sqlmock, *Pool) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	db.SetMaxOpenConns(maxOpen)
	t.Cleanup(func() { _ = db.Close() })

	pool := NewPool(db, 100*time.Millisecond, 5*time.Millisecond, discardLogger())
	return &mock, pool
}

func TestPoolAcquireAndRelease(t *testing.T) {
	_, pool := newMockDB(t, 1)
	ctx := context.Background()

	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Close())

	// The released connection must be acquirable again.
	conn, err = pool.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, conn.Close())
}

func TestPoolAcquireTimeout(t *testing.T) {
	_, pool := newMockDB(t, 1)
	ctx := context.Background()

	held, err := pool.Acquire(ctx)
	require.NoError(t, err)
	defer func() { _ = held.Close() }()

	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrPoolTimeout)
}

func TestPoolAcquireBlocksUntilRelease(t *testing.T) {
	_, pool := newMockDB(t, 1)
	pool.acquireTimeout = time.Second
	ctx := context.Background()

	held, err := pool.Acquire(ctx)
	require.NoError(t, err)

	releaseDelay := 50 * time.Millisecond
	go func() {
		time.Sleep(releaseDelay)
		_ = held.Close()
	}()

	start := time.Now()
	conn, err := pool.Acquire(ctx)
	waited := time.Since(start)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	// The second acquisition must have observed a measurable wait for the
	// first holder to release.
	assert.GreaterOrEqual(t, waited, releaseDelay/2)
}

func TestPoolAcquireCancelledContext(t *testing.T) {
	_, pool := newMockDB(t, 1)

	held, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer func() { _ = held.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = pool.Acquire(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrPoolTimeout)
}

func TestPoolAcquireSlowWarning(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	handler := &recordingHandler{}
	// A zero threshold makes any successful acquisition "slow".
	pool := NewPool(db, time.Second, 0, slog.New(handler))

	conn, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	assert.Contains(t, handler.messages(), "acquiring database connection from pool was slow")
}
