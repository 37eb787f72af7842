// Package repository contains the SQL persistence for the media catalog.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/allisson/mediaportal/internal/database"
	apperrors "github.com/allisson/mediaportal/internal/errors"
	eventDomain "github.com/allisson/mediaportal/internal/event/domain"
)

// PostgreSQLEventRepository implements Event persistence for PostgreSQL.
// Role lists use native TEXT[] columns with the && overlap operator (served
// by a GIN index) and tracks are stored as JSONB.
type PostgreSQLEventRepository struct {
	db *sql.DB
}

// NewPostgreSQLEventRepository creates a new PostgreSQL Event repository.
func NewPostgreSQLEventRepository(db *sql.DB) *PostgreSQLEventRepository {
	return &PostgreSQLEventRepository{db: db}
}

const postgresEventColumns = `id, series_id, title, description, duration_ms, creator,
			  thumbnail, tracks, read_roles, write_roles, created_at, updated_at`

// Get retrieves an event by ID. Returns ErrEventNotFound if the event does
// not exist; visibility checks happen in the use case.
func (p *PostgreSQLEventRepository) Get(ctx context.Context, eventID uuid.UUID) (*eventDomain.Event, error) {
	querier := database.GetQuerier(ctx, p.db)

	query := `SELECT ` + postgresEventColumns + ` FROM events WHERE id = $1`

	event, err := scanPostgresEvent(querier.QueryRowContext(ctx, query, eventID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eventDomain.ErrEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get event")
	}

	return event, nil
}

// ListBySeries retrieves all events belonging to a series, newest first.
func (p *PostgreSQLEventRepository) ListBySeries(ctx context.Context, seriesID uuid.UUID) ([]*eventDomain.Event, error) {
	querier := database.GetQuerier(ctx, p.db)

	query := `SELECT ` + postgresEventColumns + `
			  FROM events WHERE series_id = $1 ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, seriesID)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list events by series")
	}
	defer func() { _ = rows.Close() }()

	return collectPostgresEvents(rows)
}

// ListWritable retrieves all events whose write roles overlap the given
// roles, newest first. Admin bypass happens in the use case, not here.
func (p *PostgreSQLEventRepository) ListWritable(ctx context.Context, roles []string) ([]*eventDomain.Event, error) {
	querier := database.GetQuerier(ctx, p.db)

	query := `SELECT ` + postgresEventColumns + `
			  FROM events WHERE write_roles && $1 ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, pq.Array(roles))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list writable events")
	}
	defer func() { _ = rows.Close() }()

	return collectPostgresEvents(rows)
}

// ListAll retrieves every event, newest first. Used by the admin listing.
func (p *PostgreSQLEventRepository) ListAll(ctx context.Context) ([]*eventDomain.Event, error) {
	querier := database.GetQuerier(ctx, p.db)

	query := `SELECT ` + postgresEventColumns + ` FROM events ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list events")
	}
	defer func() { _ = rows.Close() }()

	return collectPostgresEvents(rows)
}

// Create inserts a new event.
func (p *PostgreSQLEventRepository) Create(ctx context.Context, event *eventDomain.Event) error {
	querier := database.GetQuerier(ctx, p.db)

	tracks, err := json.Marshal(event.Tracks)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tracks")
	}

	query := `INSERT INTO events (id, series_id, title, description, duration_ms, creator,
			  thumbnail, tracks, read_roles, write_roles, created_at, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())`

	_, err = querier.ExecContext(
		ctx,
		query,
		event.ID,
		event.SeriesID,
		event.Title,
		event.Description,
		event.DurationMs,
		event.Creator,
		event.Thumbnail,
		tracks,
		pq.Array(event.ReadRoles),
		pq.Array(event.WriteRoles),
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create event")
	}

	return nil
}

// rowScanner abstracts *sql.Row and *sql.Rows for shared scanning.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPostgresEvent(row rowScanner) (*eventDomain.Event, error) {
	var event eventDomain.Event
	var tracks []byte
	var readRoles, writeRoles pq.StringArray

	err := row.Scan(
		&event.ID,
		&event.SeriesID,
		&event.Title,
		&event.Description,
		&event.DurationMs,
		&event.Creator,
		&event.Thumbnail,
		&tracks,
		&readRoles,
		&writeRoles,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(tracks, &event.Tracks); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal tracks")
	}
	event.ReadRoles = readRoles
	event.WriteRoles = writeRoles

	return &event, nil
}

func collectPostgresEvents(rows *sql.Rows) ([]*eventDomain.Event, error) {
	var events []*eventDomain.Event
	for rows.Next() {
		event, err := scanPostgresEvent(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, "failed to scan event")
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, "failed to iterate events")
	}
	return events, nil
}
