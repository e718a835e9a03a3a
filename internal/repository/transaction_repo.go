// internal/repository/transaction_repo.go
package repository

import (
	"context"

	"zrlda-finance/internal/domain"
)

// TransactionRepository appends to and pages through the ledger. Entries
// are never updated or deleted.
type TransactionRepository interface {
	// CreateTransaction appends an entry and sets its ID. A partner reference
	// already on the ledger yields util.ErrDuplicateEntry.
	CreateTransaction(ctx context.Context, q DBExecutor, transaction *domain.Transaction) error
	// GetTransactionByExternalRef returns the entry carrying a partner
	// reference, or util.ErrNotFound.
	GetTransactionByExternalRef(ctx context.Context, q DBExecutor, externalRef string) (*domain.Transaction, error)
	// GetTransactionsByWalletID pages through entries where the wallet is the
	// source or the destination, newest first, with the total count.
	GetTransactionsByWalletID(ctx context.Context, q DBExecutor, walletID int64, limit, offset int) ([]domain.Transaction, int64, error)
}
