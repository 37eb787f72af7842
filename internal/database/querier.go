// Package database provides database connection management and utilities.
package database

import (
	"context"
	"database/sql"
)

// querierKey is a context key type for storing the request's query executor.
type querierKey struct{}

// Querier represents a database query executor. It is satisfied by *sql.DB,
// *sql.Conn, *sql.Tx and any wrapper around them.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithQuerier binds a query executor to the context. Repositories resolve
// their executor through GetQuerier, so binding a checked-out connection or
// an open transaction here routes all their statements through it.
func WithQuerier(ctx context.Context, q Querier) context.Context {
	return context.WithValue(ctx, querierKey{}, q)
}

// GetQuerier retrieves the bound query executor from context, or returns the
// shared DB pool when none is bound.
func GetQuerier(ctx context.Context, db *sql.DB) Querier {
	if q, ok := ctx.Value(querierKey{}).(Querier); ok {
		return q
	}
	return db
}

// TxManager manages database transactions for operations that run outside a
// request scope (login, CLI commands).
type TxManager interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// sqlTxManager implements TxManager for SQL databases.
type sqlTxManager struct {
	db *sql.DB
}

// NewTxManager creates a new TxManager for the given database.
func NewTxManager(db *sql.DB) TxManager {
	return &sqlTxManager{db: db}
}

// WithTx executes the function within a database transaction. The transaction
// is bound to the context so repositories pick it up through GetQuerier.
func (m *sqlTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	ctx = WithQuerier(ctx, tx)

	if err := fn(ctx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return rbErr
		}
		return err
	}

	return tx.Commit()
}
