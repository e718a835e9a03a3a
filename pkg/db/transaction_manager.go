// pkg/db/transaction_manager.go
package db

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/jmoiron/sqlx"
)

// TxController is the part of a ledger transaction services drive
// directly. *sqlx.Tx satisfies it.
type TxController interface {
	Commit() error
	Rollback() error
}

// DBTxBeginner opens ledger transactions. *sqlx.DB satisfies it.
type DBTxBeginner interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Services receive these instead of calling BeginTx/CommitTx/RollbackTx so
// tests can swap in an in-memory ledger.
type (
	BeginTxFunc    func(ctx context.Context, dbConn DBTxBeginner) (TxController, error)
	CommitTxFunc   func(tx TxController) error
	RollbackTxFunc func(tx TxController)
)

var (
	_ TxController = (*sqlx.Tx)(nil)
	_ DBTxBeginner = (*sqlx.DB)(nil)
)

// ledgerTxOptions pins READ COMMITTED: a blocked conditional update
// re-evaluates its WHERE clause against the committed row, which is what
// the rule execution stamp and the balance debit rely on.
var ledgerTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// BeginTx opens a READ COMMITTED transaction.
func BeginTx(ctx context.Context, dbConn DBTxBeginner) (TxController, error) {
	tx, err := dbConn.BeginTxx(ctx, ledgerTxOptions)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// CommitTx commits tx.
func CommitTx(tx TxController) error {
	return tx.Commit()
}

// RollbackTx rolls tx back and is meant to be deferred right after BeginTx;
// after a commit it is a no-op. Failures are logged, not returned.
func RollbackTx(tx TxController) {
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		slog.Default().Error("Error rolling back transaction", "error", err)
	}
}
