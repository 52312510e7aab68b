package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// TxManager runs repository work inside one transaction. Room creation
// is the only caller: the room row and its owner membership must land
// together or not at all.
type TxManager struct {
	db *sql.DB
}

// NewTxManager creates a transaction manager over the connection pool.
func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// WithTx begins a transaction, runs fn, and commits. Any error from fn
// rolls the transaction back and is returned unchanged so sentinel
// checks still work.
func (tm *TxManager) WithTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
