package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/fpfinfo/sosfu/internal/application/port"
	"go.uber.org/zap"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const txKey contextKey = "tx"

// txState is the in-flight transaction carried by the context, plus the
// side effects registered to run once it commits.
type txState struct {
	tx    *sql.Tx
	hooks []func()
}

// DB wraps sql.DB and implements TransactionManager
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB creates a new database wrapper
func NewDB(sqlDB *sql.DB, logger *zap.Logger) *DB {
	return &DB{
		DB:     sqlDB,
		logger: logger,
	}
}

// WithTransaction implements port.TransactionManager. A context that
// already carries a transaction joins it, so the report-store +
// status-transition unit nests cleanly.
func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if state := extractState(ctx); state != nil {
		return fn(ctx)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	state := &txState{tx: tx}
	txCtx := context.WithValue(ctx, txKey, state)

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			db.logger.Error("Transaction panicked, rolled back", zap.Any("panic", p))
			panic(p)
		}
	}()

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, hook := range state.hooks {
		hook()
	}
	return nil
}

// AfterCommit implements port.TransactionManager. Hooks registered inside
// a nested scope run only after the outermost transaction commits; a
// rollback drops them. Without an in-flight transaction fn runs at once.
func (db *DB) AfterCommit(ctx context.Context, fn func()) {
	if state := extractState(ctx); state != nil {
		state.hooks = append(state.hooks, fn)
		return
	}
	fn()
}

// extractState retrieves the transaction state from context if present
func extractState(ctx context.Context) *txState {
	if state, ok := ctx.Value(txKey).(*txState); ok {
		return state
	}
	return nil
}

// Executor covers both *sql.DB and *sql.Tx
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// ExecutorFor returns the transaction carried by the context, or the bare
// database handle when none is in flight. Repositories route every query
// through this so writes inside WithTransaction stay atomic.
func ExecutorFor(ctx context.Context, db *sql.DB) Executor {
	if state := extractState(ctx); state != nil {
		return state.tx
	}
	return db
}

// Verify interface compliance
var _ port.TransactionManager = (*DB)(nil)
