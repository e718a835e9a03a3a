// internal/service/deposit_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"zrlda-finance/internal/cache"
	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/repository"
	"zrlda-finance/internal/util"
	"zrlda-finance/pkg/db"

	"github.com/shopspring/decimal"
)

// DepositStatus tells the partner-facing handler what happened to an event.
type DepositStatus string

const (
	DepositCredited  DepositStatus = "credited"
	DepositDuplicate DepositStatus = "duplicate"
)

// DepositResult describes a processed inbound deposit.
type DepositResult struct {
	Status          DepositStatus    `json:"status"`
	WalletID        int64            `json:"wallet_id,omitempty"`
	TransactionID   int64            `json:"transaction_id,omitempty"`
	NewBalance      decimal.Decimal  `json:"new_balance"`
	Allocation      *ExecutionReport `json:"allocation,omitempty"`
	AllocationError string           `json:"allocation_error,omitempty"`
}

// DepositService credits partner deposits and triggers allocation runs.
type DepositService interface {
	HandleInbound(ctx context.Context, event *domain.InboundDeposit) (*DepositResult, error)
}

type depositService struct {
	dbBeginner      db.DBTxBeginner
	dbExecutor      repository.DBExecutor
	walletRepo      repository.WalletRepository
	transactionRepo repository.TransactionRepository
	allocations     AllocationService
	guard           cache.EventGuard
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
	logger          *slog.Logger
}

// NewDepositService creates a new instance of DepositService.
func NewDepositService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	walletRepo repository.WalletRepository,
	transactionRepo repository.TransactionRepository,
	allocations AllocationService,
	guard cache.EventGuard,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
) DepositService {
	if guard == nil {
		guard = cache.NoopEventGuard{}
	}
	return &depositService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		walletRepo:      walletRepo,
		transactionRepo: transactionRepo,
		allocations:     allocations,
		guard:           guard,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
		logger:          logger,
	}
}

// HandleInbound credits the destination main wallet once per partner
// transaction id, then runs the owner's allocations. A failed allocation run
// is reported in the result but never undoes or fails the deposit.
func (s *depositService) HandleInbound(ctx context.Context, event *domain.InboundDeposit) (*DepositResult, error) {
	if err := validateInboundDeposit(event); err != nil {
		return nil, err
	}
	log := s.logger.With("external_ref", event.TransactionID, "account_number", event.AccountNumber)

	claimed, err := s.guard.Claim(ctx, event.TransactionID)
	if err != nil {
		// The unique external_ref column still rejects duplicates.
		log.Warn("Idempotency guard unavailable, relying on database", "error", err)
		claimed = true
	}
	if !claimed {
		recorded, err := s.recorded(ctx, event.TransactionID)
		if err != nil {
			log.Warn("Failed to look up claimed deposit, relying on database", "error", err)
		}
		if recorded {
			log.Info("Duplicate deposit event ignored")
			return &DepositResult{Status: DepositDuplicate, NewBalance: decimal.Zero}, nil
		}
		// An earlier attempt claimed the id but never committed.
		log.Warn("Stale idempotency claim, crediting deposit")
	}

	wallet, transaction, err := s.credit(ctx, event)
	if err != nil {
		if errors.Is(err, util.ErrDuplicateEntry) {
			log.Info("Duplicate deposit event ignored")
			return &DepositResult{Status: DepositDuplicate, NewBalance: decimal.Zero}, nil
		}
		if relErr := s.guard.Release(context.WithoutCancel(ctx), event.TransactionID); relErr != nil {
			log.Warn("Failed to release idempotency claim", "error", relErr)
		}
		return nil, err
	}
	log.Info("Deposit credited", "wallet_id", wallet.ID, "user_id", wallet.UserID, "amount", event.Amount.String())

	result := &DepositResult{
		Status:        DepositCredited,
		WalletID:      wallet.ID,
		TransactionID: transaction.ID,
		NewBalance:    wallet.Balance,
	}

	// The deposit is committed; the run must not be cut short by the partner hanging up.
	report, err := s.allocations.RunAllocations(context.WithoutCancel(ctx), wallet.UserID, wallet.ID)
	if err != nil {
		log.Error("Allocation run after deposit failed", "wallet_id", wallet.ID, "error", err)
		result.AllocationError = err.Error()
		return result, nil
	}
	result.Allocation = report
	return result, nil
}

// recorded reports whether a deposit with this partner reference is on the ledger.
func (s *depositService) recorded(ctx context.Context, externalRef string) (bool, error) {
	transaction, err := s.transactionRepo.GetTransactionByExternalRef(ctx, s.dbExecutor, externalRef)
	switch {
	case errors.Is(err, util.ErrNotFound):
		return false, nil
	case err != nil:
		return false, err
	}
	return transaction.Type == domain.TransactionTypeDeposit, nil
}

func (s *depositService) credit(ctx context.Context, event *domain.InboundDeposit) (*domain.Wallet, *domain.Transaction, error) {
	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return nil, nil, fmt.Errorf("inbound deposit: failed to begin transaction: %w", err)
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return nil, nil, fmt.Errorf("inbound deposit: transaction controller does not implement DBExecutor")
	}

	wallet, err := s.walletRepo.GetWalletByAccountNumber(ctx, txExecutor, event.AccountNumber)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return nil, nil, fmt.Errorf("inbound deposit: account %s: %w", event.AccountNumber, util.ErrWalletNotFound)
		}
		return nil, nil, fmt.Errorf("inbound deposit: failed to resolve account %s: %w", event.AccountNumber, err)
	}
	if !strings.EqualFold(wallet.Currency, event.Currency) {
		return nil, nil, fmt.Errorf("inbound deposit: %w", util.ErrCurrencyMismatch)
	}

	if err := s.walletRepo.UpdateWalletBalance(ctx, txExecutor, wallet.ID, event.Amount); err != nil {
		return nil, nil, fmt.Errorf("inbound deposit: failed to update wallet balance: %w", err)
	}

	transaction := domain.NewInboundDepositTransaction(event, wallet.ID, wallet.Currency)
	if err := s.transactionRepo.CreateTransaction(ctx, txExecutor, transaction); err != nil {
		return nil, nil, fmt.Errorf("inbound deposit: failed to record transaction: %w", err)
	}

	updated, err := s.walletRepo.GetWalletByID(ctx, txExecutor, wallet.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("inbound deposit: failed to re-fetch wallet %d: %w", wallet.ID, err)
	}

	if err := s.commitTx(txController); err != nil {
		return nil, nil, fmt.Errorf("inbound deposit: failed to commit transaction: %w", err)
	}
	return updated, transaction, nil
}

func validateInboundDeposit(event *domain.InboundDeposit) error {
	switch {
	case event == nil:
		return fmt.Errorf("%w: empty event", util.ErrInvalidInput)
	case strings.TrimSpace(event.TransactionID) == "":
		return fmt.Errorf("%w: transaction_id is required", util.ErrInvalidInput)
	case strings.TrimSpace(event.AccountNumber) == "":
		return fmt.Errorf("%w: account_number is required", util.ErrInvalidInput)
	case !event.Amount.IsPositive():
		return fmt.Errorf("%w: amount must be positive", util.ErrInvalidInput)
	case !domain.FitsAmountScale(event.Amount):
		return fmt.Errorf("%w: amount has more than %d decimal places", util.ErrInvalidInput, domain.AmountScale)
	case strings.TrimSpace(event.Currency) == "":
		return fmt.Errorf("%w: currency is required", util.ErrInvalidInput)
	}
	return nil
}
