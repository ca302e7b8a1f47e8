package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/approval-workflow/internal/application/port"
)

// slowTxThreshold is how long a write transaction may hold the database lock before it is logged
const slowTxThreshold = 500 * time.Millisecond

type txKey struct{}

// Executor is the query surface shared by *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// DB is the SQLite TransactionManager. Repositories find the open
// transaction on the context through ExecutorFrom.
type DB struct {
	*sql.DB
	logger *zap.Logger
}

func NewDB(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{DB: sqlDB, logger: logger}
}

// WithTransaction runs fn in one transaction. The DSN opens write
// transactions with BEGIN IMMEDIATE, so concurrent callers queue on the
// busy timeout instead of failing mid-transaction. A call made with a
// context that already carries a transaction joins it.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if InTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	started := time.Now()

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
		if held := time.Since(started); held > slowTxThreshold {
			db.logger.Info("Slow transaction", zap.Duration("held", held), zap.Bool("committed", err == nil))
		}
	}()

	if err = fn(context.WithValue(ctx, txKey{}, tx)); err != nil {
		db.rollback(tx)
		return err
	}

	if err = tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (db *DB) rollback(tx *sql.Tx) {
	if err := tx.Rollback(); err != nil && err != sql.ErrTxDone {
		db.logger.Error("Failed to rollback transaction", zap.Error(err))
	}
}

// ExecutorFrom returns the transaction carried by ctx, or fallback outside one
func ExecutorFrom(ctx context.Context, fallback *sql.DB) Executor {
	if tx, ok := ctx.Value(txKey{}).(*sql.Tx); ok {
		return tx
	}
	return fallback
}

// InTransaction reports whether ctx carries a transaction
func InTransaction(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(*sql.Tx)
	return ok
}

var _ port.TransactionManager = (*DB)(nil)
