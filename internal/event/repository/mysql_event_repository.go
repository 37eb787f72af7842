package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/allisson/mediaportal/internal/database"
	apperrors "github.com/allisson/mediaportal/internal/errors"
	eventDomain "github.com/allisson/mediaportal/internal/event/domain"
)

// MySQLEventRepository implements Event persistence for MySQL. UUIDs are
// stored as BINARY(16), role lists as JSON arrays matched with
// JSON_OVERLAPS, and tracks as a JSON column.
type MySQLEventRepository struct {
	db *sql.DB
}

// NewMySQLEventRepository creates a new MySQL Event repository.
func NewMySQLEventRepository(db *sql.DB) *MySQLEventRepository {
	return &MySQLEventRepository{db: db}
}

const mysqlEventColumns = `id, series_id, title, description, duration_ms, creator,
			  thumbnail, tracks, read_roles, write_roles, created_at, updated_at`

// Get retrieves an event by ID. Returns ErrEventNotFound if the event does
// not exist; visibility checks happen in the use case.
func (m *MySQLEventRepository) Get(ctx context.Context, eventID uuid.UUID) (*eventDomain.Event, error) {
	querier := database.GetQuerier(ctx, m.db)

	idValue, err := eventID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal UUID")
	}

	query := `SELECT ` + mysqlEventColumns + ` FROM events WHERE id = ?`

	event, err := scanMySQLEvent(querier.QueryRowContext(ctx, query, idValue))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, eventDomain.ErrEventNotFound
		}
		return nil, apperrors.Wrap(err, "failed to get event")
	}

	return event, nil
}

// ListBySeries retrieves all events belonging to a series, newest first.
func (m *MySQLEventRepository) ListBySeries(ctx context.Context, seriesID uuid.UUID) ([]*eventDomain.Event, error) {
	querier := database.GetQuerier(ctx, m.db)

	idValue, err := seriesID.MarshalBinary()
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal UUID")
	}

	query := `SELECT ` + mysqlEventColumns + `
			  FROM events WHERE series_id = ? ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, idValue)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list events by series")
	}
	defer func() { _ = rows.Close() }()

	return collectMySQLEvents(rows)
}

// ListWritable retrieves all events whose write roles overlap the given
// roles, newest first. Admin bypass happens in the use case, not here.
func (m *MySQLEventRepository) ListWritable(ctx context.Context, roles []string) ([]*eventDomain.Event, error) {
	querier := database.GetQuerier(ctx, m.db)

	rolesJSON, err := json.Marshal(roles)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to marshal roles")
	}

	query := `SELECT ` + mysqlEventColumns + `
			  FROM events WHERE JSON_OVERLAPS(write_roles, CAST(? AS JSON)) ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query, string(rolesJSON))
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list writable events")
	}
	defer func() { _ = rows.Close() }()

	return collectMySQLEvents(rows)
}

// ListAll retrieves every event, newest first. Used by the admin listing.
func (m *MySQLEventRepository) ListAll(ctx context.Context) ([]*eventDomain.Event, error) {
	querier := database.GetQuerier(ctx, m.db)

	query := `SELECT ` + mysqlEventColumns + ` FROM events ORDER BY created_at DESC`

	rows, err := querier.QueryContext(ctx, query)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to list events")
	}
	defer func() { _ = rows.Close() }()

	return collectMySQLEvents(rows)
}

// Create inserts a new event.
func (m *MySQLEventRepository) Create(ctx context.Context, event *eventDomain.Event) error {
	querier := database.GetQuerier(ctx, m.db)

	idValue, err := event.ID.MarshalBinary()
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal UUID")
	}

	var seriesIDValue any
	if event.SeriesID != nil {
		seriesIDValue, err = event.SeriesID.MarshalBinary()
		if err != nil {
			return apperrors.Wrap(err, "failed to marshal series UUID")
		}
	}

	tracks, err := json.Marshal(event.Tracks)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal tracks")
	}
	readRoles, err := json.Marshal(event.ReadRoles)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal read roles")
	}
	writeRoles, err := json.Marshal(event.WriteRoles)
	if err != nil {
		return apperrors.Wrap(err, "failed to marshal write roles")
	}

	query := `INSERT INTO events (id, series_id, title, description, duration_ms, creator,
			  thumbnail, tracks, read_roles, write_roles, created_at, updated_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(6), NOW(6))`

	_, err = querier.ExecContext(
		ctx,
		query,
		idValue,
		seriesIDValue,
		event.Title,
		event.Description,
		event.DurationMs,
		event.Creator,
		event.Thumbnail,
		tracks,
		readRoles,
		writeRoles,
	)
	if err != nil {
		return apperrors.Wrap(err, "failed to create event")
	}

	return nil
}

func scanMySQLEvent(row rowScanner) (*eventDomain.Event, error) {
	var event eventDomain.Event
	var idBytes []byte
	var seriesIDBytes []byte
	var tracks, readRoles, writeRoles []byte

	err := row.Scan(
		&idBytes,
		&seriesIDBytes,
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

	if err := event.ID.UnmarshalBinary(idBytes); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal UUID")
	}
	if seriesIDBytes != nil {
		var seriesID uuid.UUID
		if err := seriesID.UnmarshalBinary(seriesIDBytes); err != nil {
			return nil, apperrors.Wrap(err, "failed to unmarshal series UUID")
		}
		event.SeriesID = &seriesID
	}

	if err := json.Unmarshal(tracks, &event.Tracks); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal tracks")
	}
	if err := json.Unmarshal(readRoles, &event.ReadRoles); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal read roles")
	}
	if err := json.Unmarshal(writeRoles, &event.WriteRoles); err != nil {
		return nil, apperrors.Wrap(err, "failed to unmarshal write roles")
	}

	return &event, nil
}

func collectMySQLEvents(rows *sql.Rows) ([]*eventDomain.Event, error) {
	var events []*eventDomain.Event
	for rows.Next() {
		event, err := scanMySQLEvent(rows)
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
