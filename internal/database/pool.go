package database

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	apperrors "github.com/allisson/mediaportal/internal/errors"
)

// Pool checks out dedicated connections from the shared *sql.DB pool.
//
// The pool size (Config.MaxOpenConnections) bounds request parallelism: once
// every connection is checked out, Acquire blocks until one is returned or
// the acquisition timeout fires. The pool never retries on connectivity
// failures; retry policy belongs to the caller.
type Pool struct {
	db             *sql.DB
	acquireTimeout time.Duration
	warnThreshold  time.Duration
	logger         *slog.Logger
}

// NewPool creates a connection pool gateway around an established database.
func NewPool(db *sql.DB, acquireTimeout, warnThreshold time.Duration, logger *slog.Logger) *Pool {
	return &Pool{
		db:             db,
		acquireTimeout: acquireTimeout,
		warnThreshold:  warnThreshold,
		logger:         logger,
	}
}

// DB returns the underlying shared database handle.
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Acquire checks out a single connection for exclusive use by one request.
// The caller must close the returned connection to hand it back to the pool.
//
// Exceeding the acquisition timeout yields apperrors.ErrPoolTimeout. Slow but
// successful acquisition (above the warn threshold) logs a warning, since it
// is an early signal of pool starvation rather than a failure.
func (p *Pool) Acquire(ctx context.Context) (*sql.Conn, error) {
	acquireCtx, cancel := context.WithTimeout(ctx, p.acquireTimeout)
	defer cancel()

	start := time.Now()
	conn, err := p.db.Conn(acquireCtx)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, apperrors.Wrap(apperrors.ErrPoolTimeout, "failed to acquire connection")
		}
		return nil, apperrors.Wrap(err, "failed to acquire connection")
	}

	if elapsed > p.warnThreshold {
		p.logger.Warn("acquiring database connection from pool was slow",
			slog.Duration("elapsed", elapsed),
			slog.Duration("threshold", p.warnThreshold),
		)
	}

	return conn, nil
}
