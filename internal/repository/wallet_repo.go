// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"zrlda-finance/internal/domain"

	"github.com/shopspring/decimal"
)

// WalletRepository defines the interface for wallet data operations.
type WalletRepository interface {
	// CreateWallet adds a new wallet to the database.
	CreateWallet(ctx context.Context, q DBExecutor, wallet *domain.Wallet) error
	// GetWalletByID retrieves a wallet by its ID.
	GetWalletByID(ctx context.Context, q DBExecutor, id int64) (*domain.Wallet, error)
	// GetWalletByIDForUpdate retrieves a wallet and locks its row until q's
	// transaction ends.
	GetWalletByIDForUpdate(ctx context.Context, q DBExecutor, id int64) (*domain.Wallet, error)
	// GetMainWalletByUserID retrieves the user's main wallet.
	GetMainWalletByUserID(ctx context.Context, q DBExecutor, userID int64) (*domain.Wallet, error)
	// GetWalletByAccountNumber retrieves the wallet bound to a partner virtual account.
	GetWalletByAccountNumber(ctx context.Context, q DBExecutor, accountNumber string) (*domain.Wallet, error)
	// GetWalletsByUserID lists all wallets of a user, main wallet first.
	GetWalletsByUserID(ctx context.Context, q DBExecutor, userID int64) ([]domain.Wallet, error)
	// UpdateWalletBalance atomically adds amount (which may be negative) to the balance.
	UpdateWalletBalance(ctx context.Context, q DBExecutor, walletID int64, amount decimal.Decimal) error
	// DebitWalletBalance atomically subtracts amount only if the balance covers it.
	// It returns util.ErrInsufficientFunds when it does not.
	DebitWalletBalance(ctx context.Context, q DBExecutor, walletID int64, amount decimal.Decimal) error
}
