package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"

	authDomain "github.com/allisson/mediaportal/internal/auth/domain"
	"github.com/allisson/mediaportal/internal/database"
	apperrors "github.com/allisson/mediaportal/internal/errors"
)

// MySQLSessionRepository implements Session persistence for MySQL. Uses ?
// placeholders and DATETIME(6) timestamps; otherwise mirrors the PostgreSQL
// repository.
type MySQLSessionRepository struct {
	db *sql.DB
}

// NewMySQLSessionRepository creates a new MySQL Session repository.
func NewMySQLSessionRepository(db *sql.DB) *MySQLSessionRepository {
	return &MySQLSessionRepository{db: db}
}

// Create inserts a new session. A primary key collision is reported as
// ErrSessionIDCollision and is never retried.
func (m *MySQLSessionRepository) Create(ctx context.Context, session *authDomain.Session) error {
	querier := database.GetQuerier(ctx, m.db)

	query := `INSERT INTO user_sessions (id, username, display_name, roles, created_at)
			  VALUES (?, ?, ?, ?, NOW(6))`

	_, err := querier.ExecContext(
		ctx,
		query,
		session.ID,
		session.Username,
		session.DisplayName,
		joinRoles(session.Roles),
	)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if errors.As(err, &mysqlErr) && mysqlErr.Number == 1062 {
			return authDomain.ErrSessionIDCollision
		}
		return apperrors.Wrap(err, "failed to create session")
	}

	return nil
}

// GetValid retrieves a session by ID if it is younger than maxAge. Returns
// ErrSessionNotFound for missing and expired sessions alike.
func (m *MySQLSessionRepository) GetValid(ctx context.Context, id string, maxAge time.Duration) (*authDomain.Session, error) {
	querier := database.GetQuerier(ctx, m.db)

	query := `SELECT id, username, display_name, roles, created_at
			  FROM user_sessions
			  WHERE id = ? AND created_at > ?`

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
func (m *MySQLSessionRepository) Delete(ctx context.Context, id string) error {
	querier := database.GetQuerier(ctx, m.db)

	query := `DELETE FROM user_sessions WHERE id = ?`

	if _, err := querier.ExecContext(ctx, query, id); err != nil {
		return apperrors.Wrap(err, "failed to delete session")
	}

	return nil
}

// DeleteExpired removes all sessions older than maxAge and returns the number
// of deleted rows.
func (m *MySQLSessionRepository) DeleteExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	querier := database.GetQuerier(ctx, m.db)

	query := `DELETE FROM user_sessions WHERE created_at <= ?`

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
// removing them.
func (m *MySQLSessionRepository) CountExpired(ctx context.Context, maxAge time.Duration) (int64, error) {
	querier := database.GetQuerier(ctx, m.db)

	query := `SELECT count(*) FROM user_sessions WHERE created_at <= ?`

	cutoff := time.Now().Add(-maxAge)

	var count int64
	if err := querier.QueryRowContext(ctx, query, cutoff).Scan(&count); err != nil {
		return 0, apperrors.Wrap(err, "failed to count expired sessions")
	}

	return count, nil
}
