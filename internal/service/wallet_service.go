// internal/service/wallet_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/repository"
	"zrlda-finance/internal/util"
	"zrlda-finance/pkg/db"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// WalletService defines the interface for wallet-related business logic.
type WalletService interface {
	Deposit(ctx context.Context, walletID int64, amount decimal.Decimal, currency string) (*domain.Wallet, *domain.Transaction, error)
	Withdraw(ctx context.Context, walletID int64, amount decimal.Decimal, currency string) (*domain.Wallet, *domain.Transaction, error)
	Transfer(ctx context.Context, fromWalletID, toWalletID int64, amount decimal.Decimal, currency string) (*domain.Wallet, *domain.Wallet, *domain.Transaction, error)
	GetBalance(ctx context.Context, walletID int64) (*domain.Wallet, error)
	GetTransactionHistory(ctx context.Context, walletID int64, limit, offset int) ([]domain.Transaction, int64, error)
	CreateUserAndWallet(ctx context.Context, username, currency string) (*domain.User, *domain.Wallet, error)
	CreateSubWallet(ctx context.Context, userID int64, name string) (*domain.Wallet, error)
	ListWallets(ctx context.Context, userID int64) ([]domain.Wallet, error)
	// GetOwnedWallet returns the wallet if it belongs to userID, util.ErrForbidden otherwise.
	GetOwnedWallet(ctx context.Context, userID, walletID int64) (*domain.Wallet, error)
}

// walletService implements the WalletService interface.
type walletService struct {
	dbBeginner      db.DBTxBeginner       // For starting transactions (e.g., *sqlx.DB)
	dbExecutor      repository.DBExecutor // For non-transactional reads (e.g., *sqlx.DB)
	userRepo        repository.UserRepository
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	beginTx         db.BeginTxFunc    // Injected dependency for beginning transactions
	commitTx        db.CommitTxFunc   // Injected dependency for committing transactions
	rollbackTx      db.RollbackTxFunc // Injected dependency for rolling back transactions
}

// NewWalletService creates a new instance of WalletService.
func NewWalletService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	userRepo repository.UserRepository,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
) WalletService {
	return &walletService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		userRepo:        userRepo,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
	}
}

// Deposit adds money to a user's wallet.
func (s *walletService) Deposit(ctx context.Context, walletID int64, amount decimal.Decimal, currency string) (*domain.Wallet, *domain.Transaction, error) {
	return s.move(ctx, domain.TransactionTypeDeposit, walletID, amount, currency)
}

// Withdraw takes money out of a wallet; the balance must cover the amount.
func (s *walletService) Withdraw(ctx context.Context, walletID int64, amount decimal.Decimal, currency string) (*domain.Wallet, *domain.Transaction, error) {
	return s.move(ctx, domain.TransactionTypeWithdrawal, walletID, amount, currency)
}

// move credits (DEPOSIT) or debits (WITHDRAWAL) one wallet and records the
// ledger entry in the same transaction.
func (s *walletService) move(ctx context.Context, kind domain.TransactionType, walletID int64, amount decimal.Decimal, currency string) (*domain.Wallet, *domain.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) || !domain.FitsAmountScale(amount) {
		return nil, nil, util.ErrInvalidInput
	}

	var (
		updated     *domain.Wallet
		transaction *domain.Transaction
	)
	err := s.inTx(ctx, strings.ToLower(string(kind)), func(q repository.DBExecutor) error {
		wallet, err := s.walletRepo.GetWalletByID(ctx, q, walletID)
		if err != nil {
			return fmt.Errorf("get wallet %d: %w", walletID, err)
		}
		if wallet.Currency != currency {
			return util.ErrCurrencyMismatch
		}

		switch kind {
		case domain.TransactionTypeDeposit:
			if err := s.walletRepo.UpdateWalletBalance(ctx, q, walletID, amount); err != nil {
				return fmt.Errorf("credit wallet %d: %w", walletID, err)
			}
			transaction = domain.NewTransaction(nil, &walletID, amount, currency, kind, nil)
		case domain.TransactionTypeWithdrawal:
			if wallet.Balance.LessThan(amount) {
				return util.ErrInsufficientFunds
			}
			// The debit is conditional, so a concurrent withdrawal cannot overdraw.
			if err := s.walletRepo.DebitWalletBalance(ctx, q, walletID, amount); err != nil {
				return fmt.Errorf("debit wallet %d: %w", walletID, err)
			}
			transaction = domain.NewTransaction(&walletID, nil, amount, currency, kind, nil)
		default:
			return fmt.Errorf("unsupported movement %s", kind)
		}

		if err := s.transactionRepo.CreateTransaction(ctx, q, transaction); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}
		updated, err = s.walletRepo.GetWalletByID(ctx, q, walletID)
		if err != nil {
			return fmt.Errorf("re-read wallet %d: %w", walletID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return updated, transaction, nil
}

// Transfer moves money between two wallets of the same currency, possibly of different users.
func (s *walletService) Transfer(ctx context.Context, fromWalletID, toWalletID int64, amount decimal.Decimal, currency string) (*domain.Wallet, *domain.Wallet, *domain.Transaction, error) {
	if amount.LessThanOrEqual(decimal.Zero) || !domain.FitsAmountScale(amount) {
		return nil, nil, nil, util.ErrInvalidInput
	}
	if fromWalletID == toWalletID {
		return nil, nil, nil, util.ErrSameWalletTransfer
	}

	var (
		from, to    *domain.Wallet
		transaction *domain.Transaction
	)
	err := s.inTx(ctx, "transfer", func(q repository.DBExecutor) error {
		source, err := s.walletRepo.GetWalletByID(ctx, q, fromWalletID)
		if err != nil {
			return fmt.Errorf("get source wallet %d: %w", fromWalletID, err)
		}
		if source.Currency != currency {
			return fmt.Errorf("source: %w", util.ErrCurrencyMismatch)
		}
		dest, err := s.walletRepo.GetWalletByID(ctx, q, toWalletID)
		if err != nil {
			return fmt.Errorf("get destination wallet %d: %w", toWalletID, err)
		}
		if dest.Currency != currency {
			return fmt.Errorf("destination: %w", util.ErrCurrencyMismatch)
		}
		if dest.Archived {
			return fmt.Errorf("destination wallet %d is archived: %w", toWalletID, util.ErrInvalidInput)
		}
		if source.Balance.LessThan(amount) {
			return util.ErrInsufficientFunds
		}

		if err := s.walletRepo.DebitWalletBalance(ctx, q, fromWalletID, amount); err != nil {
			return fmt.Errorf("debit wallet %d: %w", fromWalletID, err)
		}
		if err := s.walletRepo.UpdateWalletBalance(ctx, q, toWalletID, amount); err != nil {
			return fmt.Errorf("credit wallet %d: %w", toWalletID, err)
		}
		transaction = domain.NewTransaction(&fromWalletID, &toWalletID, amount, currency, domain.TransactionTypeTransfer, nil)
		if err := s.transactionRepo.CreateTransaction(ctx, q, transaction); err != nil {
			return fmt.Errorf("record transaction: %w", err)
		}

		if from, err = s.walletRepo.GetWalletByID(ctx, q, fromWalletID); err != nil {
			return fmt.Errorf("re-read wallet %d: %w", fromWalletID, err)
		}
		if to, err = s.walletRepo.GetWalletByID(ctx, q, toWalletID); err != nil {
			return fmt.Errorf("re-read wallet %d: %w", toWalletID, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return from, to, transaction, nil
}

// GetBalance reads the wallet outside any transaction.
func (s *walletService) GetBalance(ctx context.Context, walletID int64) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetWalletByID(ctx, s.dbExecutor, walletID)
	if err != nil {
		return nil, fmt.Errorf("get balance of wallet %d: %w", walletID, err)
	}
	return wallet, nil
}

// GetTransactionHistory pages through a wallet's ledger entries, newest first.
func (s *walletService) GetTransactionHistory(ctx context.Context, walletID int64, limit, offset int) ([]domain.Transaction, int64, error) {
	if _, err := s.walletRepo.GetWalletByID(ctx, s.dbExecutor, walletID); err != nil {
		if util.IsError(err, util.ErrNotFound) {
			return nil, 0, util.ErrWalletNotFound
		}
		return nil, 0, fmt.Errorf("transaction history: get wallet %d: %w", walletID, err)
	}

	transactions, total, err := s.transactionRepo.GetTransactionsByWalletID(ctx, s.dbExecutor, walletID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("transaction history: %w", err)
	}
	return transactions, total, nil
}

// CreateUserAndWallet provisions a user with a main wallet and a partner account number.
func (s *walletService) CreateUserAndWallet(ctx context.Context, username, currency string) (*domain.User, *domain.Wallet, error) {
	username, err := domain.NormalizeUsername(username)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", util.ErrInvalidInput, err)
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if len(currency) != 3 {
		return nil, nil, util.ErrInvalidInput
	}

	var (
		user   *domain.User
		wallet *domain.Wallet
	)
	err = s.inTx(ctx, "create user and wallet", func(q repository.DBExecutor) error {
		_, err := s.userRepo.GetUserByUsername(ctx, q, username)
		if err == nil {
			return fmt.Errorf("username %q is taken: %w", username, util.ErrDuplicateEntry)
		}
		if !errors.Is(err, util.ErrNotFound) {
			return fmt.Errorf("check existing user: %w", err)
		}

		user = domain.NewUser(username)
		if err := s.userRepo.CreateUser(ctx, q, user); err != nil {
			return err
		}

		wallet = domain.NewWallet(user.ID, currency)
		accountNumber := newAccountNumber()
		wallet.AccountNumber = &accountNumber
		if err := s.walletRepo.CreateWallet(ctx, q, wallet); err != nil {
			return fmt.Errorf("create main wallet: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return user, wallet, nil
}

// CreateSubWallet opens a budget/goal wallet in the currency of the user's main wallet.
func (s *walletService) CreateSubWallet(ctx context.Context, userID int64, name string) (*domain.Wallet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, util.ErrInvalidInput
	}

	mainWallet, err := s.walletRepo.GetMainWalletByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, util.ErrWalletNotFound
		}
		return nil, fmt.Errorf("create sub-wallet: failed to get main wallet of user %d: %w", userID, err)
	}

	wallet := domain.NewSubWallet(userID, name, mainWallet.Currency)
	if err := s.walletRepo.CreateWallet(ctx, s.dbExecutor, wallet); err != nil {
		return nil, fmt.Errorf("create sub-wallet: %w", err)
	}
	return wallet, nil
}

func (s *walletService) ListWallets(ctx context.Context, userID int64) ([]domain.Wallet, error) {
	wallets, err := s.walletRepo.GetWalletsByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return wallets, nil
}

func (s *walletService) GetOwnedWallet(ctx context.Context, userID, walletID int64) (*domain.Wallet, error) {
	wallet, err := s.walletRepo.GetWalletByID(ctx, s.dbExecutor, walletID)
	if err != nil {
		return nil, fmt.Errorf("get wallet %d: %w", walletID, err)
	}
	if wallet.UserID != userID {
		return nil, util.ErrForbidden
	}
	return wallet, nil
}

// newAccountNumber derives a 12 character virtual account reference.
func newAccountNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

// inTx runs fn inside one ledger transaction, committing only when fn
// returns nil. Errors are prefixed with op.
func (s *walletService) inTx(ctx context.Context, op string, fn func(q repository.DBExecutor) error) error {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return fmt.Errorf("%s: begin transaction: %w", op, err)
	}
	defer s.rollbackTx(txController)

	q, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("%s: transaction controller does not implement DBExecutor", op)
	}
	if err := fn(q); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.commitTx(txController); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}
