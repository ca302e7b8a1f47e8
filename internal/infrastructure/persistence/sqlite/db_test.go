package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return NewDB(sqlDB, zap.NewNop()), mock
}

func TestWithTransaction_Commit(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bpm_task").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		assert.True(t, InTransaction(ctx))
		_, err := ExecutorFrom(ctx, db.DB).ExecContext(ctx, "UPDATE bpm_task SET status = 1 WHERE task_id = ?", 1)
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	errFn := errors.New("history insert failed")

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE bpm_task").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		if _, err := ExecutorFrom(ctx, db.DB).ExecContext(ctx, "UPDATE bpm_task SET status = 1"); err != nil {
			return err
		}
		return errFn
	})

	assert.ErrorIs(t, err, errFn)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_RollbackOnPanic(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = db.WithTransaction(context.Background(), func(ctx context.Context) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_BeginFails(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin().WillReturnError(errors.New("database is locked"))

	called := false
	err := db.WithTransaction(context.Background(), func(ctx context.Context) error {
		called = true
		return nil
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to begin transaction")
	assert.False(t, called)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_CommitFails(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	err := db.WithTransaction(context.Background(), func(ctx context.Context) error { return nil })

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to commit transaction")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTransaction_NestedJoinsOuter(t *testing.T) {
	db, mock := newMockDB(t)

	// A single BEGIN/COMMIT pair proves the inner call reused the outer transaction
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bpm_history").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err := db.WithTransaction(context.Background(), func(outer context.Context) error {
		return db.WithTransaction(outer, func(inner context.Context) error {
			_, err := ExecutorFrom(inner, db.DB).ExecContext(inner, "INSERT INTO bpm_history (app_id) VALUES (?)", 1)
			return err
		})
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutorFrom_OutsideTransaction(t *testing.T) {
	db, _ := newMockDB(t)
	assert.False(t, InTransaction(context.Background()))
	assert.Equal(t, Executor(db.DB), ExecutorFrom(context.Background(), db.DB))
}
