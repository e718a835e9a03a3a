// internal/repository/postgres/wallet_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/repository"
	"zrlda-finance/internal/util"

	"github.com/shopspring/decimal"
)

const walletColumns = `id, user_id, name, kind, currency, balance, account_number, archived, created_at, updated_at`

// WalletRepository implements repository.WalletRepository for PostgreSQL.
type WalletRepository struct{}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository() repository.WalletRepository {
	return &WalletRepository{}
}

// CreateWallet inserts a new wallet into the database using the provided DBExecutor.
func (r *WalletRepository) CreateWallet(ctx context.Context, q repository.DBExecutor, wallet *domain.Wallet) error {
	query := `INSERT INTO wallets (user_id, name, kind, currency, balance, account_number, archived, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		wallet.UserID,
		wallet.Name,
		wallet.Kind,
		wallet.Currency,
		wallet.Balance,
		wallet.AccountNumber,
		wallet.Archived,
		wallet.CreatedAt,
		wallet.UpdatedAt,
	).Scan(&wallet.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("wallet for user %d: %w", wallet.UserID, util.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to create wallet: %w", err)
	}
	return nil
}

// GetWalletByID retrieves a wallet by its ID using the provided DBExecutor.
func (r *WalletRepository) GetWalletByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	return r.getOne(ctx, q, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id)
}

// GetWalletByIDForUpdate retrieves a wallet with a row lock. q must be a
// transaction for the lock to outlive the query.
func (r *WalletRepository) GetWalletByIDForUpdate(ctx context.Context, q repository.DBExecutor, id int64) (*domain.Wallet, error) {
	return r.getOne(ctx, q, `SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, id)
}

// GetMainWalletByUserID retrieves the main wallet of a user.
func (r *WalletRepository) GetMainWalletByUserID(ctx context.Context, q repository.DBExecutor, userID int64) (*domain.Wallet, error) {
	return r.getOne(ctx, q, `SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 AND kind = 'main'`, userID)
}

// GetWalletByAccountNumber retrieves the wallet bound to a partner account number.
func (r *WalletRepository) GetWalletByAccountNumber(ctx context.Context, q repository.DBExecutor, accountNumber string) (*domain.Wallet, error) {
	return r.getOne(ctx, q, `SELECT `+walletColumns+` FROM wallets WHERE account_number = $1`, accountNumber)
}

func (r *WalletRepository) getOne(ctx context.Context, q repository.DBExecutor, query string, arg interface{}) (*domain.Wallet, error) {
	var wallet domain.Wallet
	err := q.GetContext(ctx, &wallet, query, arg)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet (%v): %w", arg, err)
	}
	return &wallet, nil
}

// GetWalletsByUserID lists a user's wallets, main wallet first.
func (r *WalletRepository) GetWalletsByUserID(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.Wallet, error) {
	wallets := []domain.Wallet{}
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 ORDER BY kind = 'main' DESC, id`
	if err := q.SelectContext(ctx, &wallets, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list wallets for user %d: %w", userID, err)
	}
	return wallets, nil
}

// UpdateWalletBalance adds amount to the balance of a specific wallet using the provided DBExecutor.
func (r *WalletRepository) UpdateWalletBalance(ctx context.Context, q repository.DBExecutor, walletID int64, amount decimal.Decimal) error {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = $2 WHERE id = $3`
	result, err := q.ExecContext(ctx, query, amount, time.Now().UTC(), walletID)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance for ID %d: %w", walletID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating wallet balance for ID %d: %w", walletID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("wallet %d: %w", walletID, util.ErrWalletNotFound)
	}
	return nil
}

// DebitWalletBalance subtracts amount only when the balance covers it.
func (r *WalletRepository) DebitWalletBalance(ctx context.Context, q repository.DBExecutor, walletID int64, amount decimal.Decimal) error {
	query := `UPDATE wallets SET balance = balance - $1, updated_at = $2 WHERE id = $3 AND balance >= $1`
	result, err := q.ExecContext(ctx, query, amount, time.Now().UTC(), walletID)
	if err != nil {
		return fmt.Errorf("failed to debit wallet %d: %w", walletID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after debiting wallet %d: %w", walletID, err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("wallet %d: %w", walletID, util.ErrInsufficientFunds)
	}
	return nil
}
