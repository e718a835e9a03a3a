// internal/repository/postgres/transaction_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/repository"
	"zrlda-finance/internal/util"
)

const transactionColumns = `id, from_wallet_id, to_wallet_id, amount, currency, type, status, transaction_time,
	description, external_ref, allocation_rule_id, created_at`

// TransactionRepository implements repository.TransactionRepository for PostgreSQL.
type TransactionRepository struct{}

// NewTransactionRepository creates a new TransactionRepository.
func NewTransactionRepository() repository.TransactionRepository {
	return &TransactionRepository{}
}

// CreateTransaction appends an entry. external_ref carries a unique index,
// so a redelivered partner deposit fails here even if the idempotency
// guard let it through.
func (r *TransactionRepository) CreateTransaction(ctx context.Context, q repository.DBExecutor, t *domain.Transaction) error {
	err := q.QueryRowContext(ctx,
		`INSERT INTO transactions (from_wallet_id, to_wallet_id, amount, currency, type, status, transaction_time,
			description, external_ref, allocation_rule_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		t.FromWalletID, t.ToWalletID, t.Amount, t.Currency, t.Type, t.Status, t.TransactionTime,
		t.Description, t.ExternalRef, t.AllocationRuleID, t.CreatedAt,
	).Scan(&t.ID)
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%s transaction with external reference: %w", t.Type, util.ErrDuplicateEntry)
	case err != nil:
		return fmt.Errorf("insert %s transaction: %w", t.Type, err)
	}
	return nil
}

// GetTransactionByExternalRef looks up the entry a partner reference was
// recorded under.
func (r *TransactionRepository) GetTransactionByExternalRef(ctx context.Context, q repository.DBExecutor, externalRef string) (*domain.Transaction, error) {
	var t domain.Transaction
	err := q.GetContext(ctx, &t, `SELECT `+transactionColumns+` FROM transactions WHERE external_ref = $1`, externalRef)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, util.ErrNotFound
	case err != nil:
		return nil, fmt.Errorf("get transaction by external reference: %w", err)
	}
	return &t, nil
}

// historyRow is a ledger entry plus the size of the whole result set.
type historyRow struct {
	domain.Transaction
	TotalCount int64 `db:"total_count"`
}

// GetTransactionsByWalletID reads the page and the total in one query. A
// page past the end has no row to carry the total, so it is counted apart.
func (r *TransactionRepository) GetTransactionsByWalletID(ctx context.Context, q repository.DBExecutor, walletID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	var rows []historyRow
	err := q.SelectContext(ctx, &rows,
		`SELECT `+transactionColumns+`, COUNT(*) OVER () AS total_count
		FROM transactions
		WHERE from_wallet_id = $1 OR to_wallet_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`,
		walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions of wallet %d: %w", walletID, err)
	}

	transactions := make([]domain.Transaction, 0, len(rows))
	for _, row := range rows {
		transactions = append(transactions, row.Transaction)
	}
	if len(rows) > 0 {
		return transactions, rows[0].TotalCount, nil
	}
	if offset == 0 {
		return transactions, 0, nil
	}

	var total int64
	err = q.GetContext(ctx, &total, `SELECT COUNT(*) FROM transactions WHERE from_wallet_id = $1 OR to_wallet_id = $1`, walletID)
	if err != nil {
		return nil, 0, fmt.Errorf("count transactions of wallet %d: %w", walletID, err)
	}
	return transactions, total, nil
}
