// Package api implements the transactional request scope and the query
// executor running inside it.
package api

import (
	"context"
	"database/sql"
	"sync/atomic"

	apperrors "github.com/allisson/mediaportal/internal/errors"
)

// TxHandle wraps the request transaction in a reference-counted handle. The
// scope holds the only expected reference; executors that stash the handle
// must Retain it, which the scope detects after the executor returns. This
// makes it impossible to commit a transaction something still points at.
//
// TxHandle implements database.Querier so it can be bound to the request
// context and picked up by repositories.
type TxHandle struct {
	tx     *sql.Tx
	refs   atomic.Int32
	stmts  atomic.Int64
	closed atomic.Bool
}

// newTxHandle wraps an open transaction. The initial reference belongs to the
// scope that created it.
func newTxHandle(tx *sql.Tx) *TxHandle {
	h := &TxHandle{tx: tx}
	h.refs.Store(1)
	return h
}

// Retain adds a reference to the handle. Anything that keeps the handle
// beyond a single call must pair Retain with Release.
func (h *TxHandle) Retain() {
	h.refs.Add(1)
}

// Release drops a reference previously taken with Retain.
func (h *TxHandle) Release() {
	h.refs.Add(-1)
}

// Statements returns how many statements ran through the handle.
func (h *TxHandle) Statements() int64 {
	return h.stmts.Load()
}

// tryUnwrap claims exclusive ownership of the transaction. Succeeds only
// when the scope's reference is the last one left; afterwards the handle
// rejects further statements.
func (h *TxHandle) tryUnwrap() (*sql.Tx, bool) {
	if !h.refs.CompareAndSwap(1, 0) {
		return nil, false
	}
	h.closed.Store(true)
	return h.tx, true
}

// errTxFinished is returned for statements arriving after the scope has
// reclaimed the transaction.
var errTxFinished = apperrors.New("transaction already finished")

// ExecContext runs a statement on the request transaction.
func (h *TxHandle) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if h.closed.Load() {
		return nil, errTxFinished
	}
	h.stmts.Add(1)
	return h.tx.ExecContext(ctx, query, args...)
}

// QueryContext runs a query on the request transaction.
func (h *TxHandle) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	if h.closed.Load() {
		return nil, errTxFinished
	}
	h.stmts.Add(1)
	return h.tx.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query on the request transaction. A
// sql.Row cannot carry a custom error, so after the scope has reclaimed the
// transaction the query runs with an already-cancelled context and Scan
// reports the cancellation instead of touching the database.
func (h *TxHandle) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	if h.closed.Load() {
		cancelled, cancel := context.WithCancel(context.Background())
		cancel()
		return h.tx.QueryRowContext(cancelled, query, args...)
	}
	h.stmts.Add(1)
	return h.tx.QueryRowContext(ctx, query, args...)
}
