package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"

	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
	"github.com/allisson/mediaportal/internal/database"
	apperrors "github.com/allisson/mediaportal/internal/errors"
)

// PostgreSQLSessionRepository implements Session persistence for PostgreSQL.
// Statements run on the querier bound to the context (a request's dedicated
// connection or transaction) via database.GetQuerier().
type PostgreSQLSessionRepository struct {
	db *sql.DB
}

// NewPostgreSQLSessionRepository creates a new PostgreSQL Session repository.
func NewPostgreSQLSessionRepository(db *sql.DB) *PostgreSQLSessionRepository {
	return &PostgreSQLSessionRepository{db: db}
}

// Create inserts a new session. A primary key collision is reported as
// ErrSessionIDCollision and is never retried.
func (p *PostgreSQLSessionRepository) Create(ctx context.Context, session *authDomain.Session) error {
	querier := database.GetQuerier(ctx, p.db)

	query := `INSERT INTO user_sessions (id, username, display_name, roles, created_at)
			  VALUES ($1, $2, $3, $4, now())`

	_, err := querier.ExecContext(
		ctx,
		query,
		session.ID,
		session.Username,
		session.DisplayName,
		joinRoles(session.Roles),
	)
	if err != nil {
		if isPostgreSQLUniqueViolation(err) {
			return authDomain.ErrSessionIDCollision
		}
		return apperrors.Wrap(err, "failed to create session")
	}

	return nil
}

// GetValid retrieves a session by ID if it is younger than maxAge. Expired
// sessions stay in the table until the cleanup job removes them, so the
// expiry predicate is part of the query. Returns ErrSessionNotFound for
// missing and expired sessions alike.
func (p *PostgreSQLSessionRepository) GetValid(ctx context.Context, id string, maxAge time.Duration) (*authDomain.Session, error) {
	querier := database.GetQuerier(ctx, p.db)

	query := `SELECT id, username, display_name, roles, created_at
			  FROM user_sessions
			  WHERE id = $1 AND created_at > $2`

	cutoff := time.Now().Add(-maxAge)

	var session authDomain.Session
	var roles string

	err := querier.QueryRowContext(ctx, query, id, cutoff).Scan(
		&session.ID,
		&session.Username,
		&session.DisplayName,
		&roles,
		&session.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authDomain.ErrSessionNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get session")
	}

	session.Roles = splitRoles(roles)
	return &session, nil
}

// Delete removes a session by ID. Deleting a session that does not exist is
// not an error; logout must be idempotent.
func (p *PostgreSQLSessionRepository) Delete(ctx context.Context, id string) error {
	querier := database.GetQuerier(ctx, p.db)

	query := `DELETE FROM user_sessions WHERE id = $1`

	if _, err := querier.ExecContext(ctx, query, id); err != nil {
		return apperrors.Wrap(err, "failed to delete session")
	}

	return nil
}

// DeleteExpired removes all sessions older than maxAge and returns the number
// of deleted rows.
func (p *PostgreSQLSessionRepository) DeleteExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	querier := database.GetQuerier(ctx, p.db)

	query := `DELETE FROM user_sessions WHERE created_at <= $1`

	cutoff := time.Now().Add(-maxAge)

	result, err := querier.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to delete expired sessions")
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, apperrors.Wrap(err, "failed to count deleted sessions")
	}

	return deleted, nil
}

// CountExpired returns how many sessions are older than maxAge without
// removing them. Used by the dry-run mode of the cleanup command.
func (p *PostgreSQLSessionRepository) CountExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	querier := database.GetQuerier(ctx, p.db)

	query := `SELECT count(*) FROM user_sessions WHERE created_at <= $1`

	cutoff := time.Now().Add(-maxAge)

	var count int64
	if err := querier.QueryRowContext(ctx, query, cutoff).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count expired sessions")
	}

	return count, nil
}

// isPostgreSQLUniqueViolation checks if the error is a PostgreSQL unique
// constraint violation (SQLSTATE 23505).
func isPostgreSQLUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "duplicate key value")
}
