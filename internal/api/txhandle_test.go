package api

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestTxHandle(t *testing.T) (*TxHandle, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectBegin()
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	return newTxHandle(tx), mock
}

func TestTxHandleUnwrapWithSingleReference(t *testing.T) {
	handle, mock := newTestTxHandle(t)
	mock.ExpectRollback()

	tx, ok := handle.tryUnwrap()
	require.True(t, ok)
	require.NoError(t, tx.Rollback())

	// A second unwrap must fail; ownership was already claimed.
	_, ok = handle.tryUnwrap()
	assert.False(t, ok)
}

func TestTxHandleUnwrapFailsWhileRetained(t *testing.T) {
	handle, _ := newTestTxHandle(t)

	handle.Retain()
	_, ok := handle.tryUnwrap()
	assert.False(t, ok)

	handle.Release()
	_, ok = handle.tryUnwrap()
	assert.True(t, ok)
}

func TestTxHandleCountsStatements(t *testing.T) {
	handle, mock := newTestTxHandle(t)

	mock.ExpectExec("UPDATE events SET title = $1").
		WithArgs("t").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT count(*) FROM events").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ctx := context.Background()
	_, err := handle.ExecContext(ctx, "UPDATE events SET title = $1", "t")
	require.NoError(t, err)

	rows, err := handle.QueryContext(ctx, "SELECT count(*) FROM events")
	require.NoError(t, err)
	_ = rows.Close()

	assert.Equal(t, int64(2), handle.Statements())
}

func TestTxHandleRejectsStatementsAfterUnwrap(t *testing.T) {
	handle, _ := newTestTxHandle(t)

	_, ok := handle.tryUnwrap()
	require.True(t, ok)

	_, err := handle.ExecContext(context.Background(), "UPDATE events SET title = $1", "t")
	assert.ErrorIs(t, err, errTxFinished)

	_, err = handle.QueryContext(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, errTxFinished)

	row := handle.QueryRowContext(context.Background(), "SELECT 1")
	var n int
	assert.ErrorIs(t, row.Scan(&n), context.Canceled)

	assert.Zero(t, handle.Statements(), "rejected statements must not be counted")
}
