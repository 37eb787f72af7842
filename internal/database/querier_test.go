package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/allisson/mediaportal/internal/errors"
)

func TestGetQuerier(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	t.Run("returns database when nothing is bound", func(t *testing.T) {
		q := GetQuerier(context.Background(), db)
		assert.Equal(t, Querier(db), q)
	})

	t.Run("returns bound querier", func(t *testing.T) {
		otherDB, _, err := sqlmock.New()
		require.NoError(t, err)
		defer func() { _ = otherDB.Close() }()

		ctx := WithQuerier(context.Background(), otherDB)
		q := GetQuerier(ctx, db)
		assert.Equal(t, Querier(otherDB), q)
	})
}

func TestTxManagerCommit(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE events SET title = $1").
		WithArgs("new title").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	manager := NewTxManager(db)
	err = manager.WithTx(context.Background(), func(ctx context.Context) error {
		q := GetQuerier(ctx, db)
		_, err := q.ExecContext(ctx, "UPDATE events SET title = $1", "new title")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTxManagerRollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer func() { _ = db.Close() }()

	mock.ExpectBegin()
	mock.ExpectRollback()

	manager := NewTxManager(db)
	err = manager.WithTx(context.Background(), func(ctx context.Context) error {
		return apperrors.ErrInvalidInput
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.NoError(t, mock.ExpectationsWereMet())
}
