package api

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/allisson/mediaportal/internal/auth"
	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
	"github.com/allisson/mediaportal/internal/database"
	apperrors "github.com/allisson/mediaportal/internal/errors"
)

// Executor is the business logic boundary. An executor runs entirely inside
// one request scope: one dedicated connection, one transaction, the caller's
// identity already resolved. It must not hold on to apiCtx.Tx beyond the
// call unless it pairs Retain with Release.
type Executor interface {
	Execute(ctx context.Context, apiCtx *Context) (any, error)
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, apiCtx *Context) (any, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, apiCtx *Context) (any, error) {
	return f(ctx, apiCtx)
}

// Scope runs executors inside a transactional request scope. For each
// request it checks out a dedicated connection, resolves the caller identity
// on it, opens a transaction, runs the executor, then commits on success or
// rolls back on failure.
//
// After the executor returns, the scope verifies it holds the only reference
// to the transaction handle. A retained reference means some goroutine may
// still write to a transaction that is about to finish; the scope treats
// that as memory corruption in the making, logs the request details and
// aborts the whole process rather than risking silent data loss.
type Scope struct {
	pool     *database.Pool
	resolver *auth.Resolver
	authCfg  authDomain.Config
	logger   *slog.Logger

	// abort terminates the process. Overridden in tests.
	abort func()
}

// NewScope creates a request scope runner.
func NewScope(pool *database.Pool, resolver *auth.Resolver, authCfg authDomain.Config, logger *slog.Logger) *Scope {
	s := &Scope{
		pool:     pool,
		resolver: resolver,
		authCfg:  authCfg,
		logger:   logger,
	}
	s.abort = func() {
		os.Exit(2)
	}
	return s
}

// Run executes one request inside its scope. The returned value is whatever
// the executor produced; it is only returned when the transaction committed.
func (s *Scope) Run(ctx context.Context, headers http.Header, executor Executor) (any, error) {
	start := time.Now()

	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	// The identity lookup runs on the request's own connection, before the
	// transaction starts.
	connCtx := database.WithQuerier(ctx, conn)
	identity, err := s.resolver.Resolve(connCtx, headers)
	if err != nil {
		return nil, err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to begin transaction")
	}

	handle := newTxHandle(tx)
	finished := false
	defer func() {
		// Rolls back when the executor panicked. The recovery middleware
		// upstream turns the panic into a 500 after this runs.
		if !finished {
			_ = tx.Rollback()
		}
	}()

	apiCtx := &Context{
		Identity:   identity,
		AuthConfig: s.authCfg,
		Tx:         handle,
	}

	out, execErr := executor.Execute(database.WithQuerier(ctx, handle), apiCtx)

	if _, ok := handle.tryUnwrap(); !ok {
		// A reference to the transaction escaped the executor. Whatever
		// holds it could keep issuing statements while we commit or roll
		// back underneath it. No safe continuation exists; crash before
		// anything is corrupted.
		s.logger.Error("transaction handle retained beyond its request scope, aborting process",
			slog.String("username", identity.LogUsername()),
			slog.Int64("statements", handle.Statements()),
		)
		s.abort()
		// Only reachable with a stubbed abort; the deferred rollback
		// cleans up the orphaned transaction.
		return nil, apperrors.ErrUnavailable
	}
	finished = true

	if execErr != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			s.logger.Error("failed to roll back transaction",
				slog.String("error", rbErr.Error()),
			)
		}
		return nil, execErr
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrUnavailable, "failed to commit transaction: "+err.Error())
	}

	s.logger.Debug("request scope finished",
		slog.String("username", identity.LogUsername()),
		slog.Int64("statements", handle.Statements()),
		slog.Duration("elapsed", time.Since(start)),
	)

	return out, nil
}
