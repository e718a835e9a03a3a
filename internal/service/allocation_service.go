// internal/service/allocation_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/repository"
	"zrlda-finance/internal/schedule"
	"zrlda-finance/internal/util"
	"zrlda-finance/pkg/db"

	"github.com/shopspring/decimal"
)

// AllocationService runs a user's recurring allocation rules.
type AllocationService interface {
	// RunAllocations executes every active, due rule of userID against the
	// main wallet mainWalletID. Per-rule failures are itemized in the report;
	// only failing to read the source wallet or the rule set is returned as an error.
	RunAllocations(ctx context.Context, userID, mainWalletID int64) (*ExecutionReport, error)
}

// AllocationOptions tunes the executor.
type AllocationOptions struct {
	Precision   int32            // Decimal places amounts are rounded to (banker's rounding)
	RuleTimeout time.Duration    // Deadline for one rule's store operations; 0 means none
	Clock       func() time.Time // Defaults to time.Now
}

type allocationService struct {
	dbBeginner      db.DBTxBeginner
	dbExecutor      repository.DBExecutor
	walletRepo      repository.WalletRepository
	ruleRepo        repository.AllocationRuleRepository
	transactionRepo repository.TransactionRepository
	beginTx         db.BeginTxFunc
	commitTx        db.CommitTxFunc
	rollbackTx      db.RollbackTxFunc
	logger          *slog.Logger
	opts            AllocationOptions
}

// NewAllocationService creates a new instance of AllocationService.
func NewAllocationService(
	dbBeginner db.DBTxBeginner,
	dbExecutor repository.DBExecutor,
	walletRepo repository.WalletRepository,
	ruleRepo repository.AllocationRuleRepository,
	transactionRepo repository.TransactionRepository,
	beginTx db.BeginTxFunc,
	commitTx db.CommitTxFunc,
	rollbackTx db.RollbackTxFunc,
	logger *slog.Logger,
	opts AllocationOptions,
) AllocationService {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &allocationService{
		dbBeginner:      dbBeginner,
		dbExecutor:      dbExecutor,
		walletRepo:      walletRepo,
		ruleRepo:        ruleRepo,
		transactionRepo: transactionRepo,
		beginTx:         beginTx,
		commitTx:        commitTx,
		rollbackTx:      rollbackTx,
		logger:          logger,
		opts:            opts,
	}
}

func (s *allocationService) RunAllocations(ctx context.Context, userID, mainWalletID int64) (*ExecutionReport, error) {
	// One instant for every due check and stamp in the run, truncated to the
	// store's timestamp precision so stamps compare equal when read back.
	now := s.opts.Clock().UTC().Truncate(time.Microsecond)
	report := newExecutionReport(userID, mainWalletID, now)
	log := s.logger.With("run_id", report.RunID.String(), "user_id", userID, "source_wallet_id", mainWalletID)

	source, err := s.walletRepo.GetWalletByID(ctx, s.dbExecutor, mainWalletID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			log.Info("Source wallet not provisioned, skipping allocation run")
			return report, nil
		}
		return nil, fmt.Errorf("run allocations: failed to load source wallet %d: %w", mainWalletID, err)
	}
	if source.UserID != userID {
		return nil, fmt.Errorf("run allocations: wallet %d does not belong to user %d: %w", mainWalletID, userID, util.ErrForbidden)
	}

	rules, err := s.ruleRepo.GetActiveRulesByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("run allocations: failed to load rules for user %d: %w", userID, err)
	}

	for _, rule := range rules {
		item, due := s.evaluateRule(log, source, &rule, now)
		if !due {
			continue
		}
		if item == nil {
			item = s.executeRule(ctx, log, source, rule, now)
		}
		report.Items = append(report.Items, *item)
	}

	if report.Failed() {
		log.Warn("Allocation run completed with failures", "report", report)
	} else {
		log.Info("Allocation run completed", "report", report)
	}
	return report, nil
}

// evaluateRule filters a rule before any store access. It returns due=false
// for rules to skip silently, and a non-nil item for rules that are rejected
// without executing.
func (s *allocationService) evaluateRule(log *slog.Logger, source *domain.Wallet, rule *domain.AllocationRule, now time.Time) (*ReportItem, bool) {
	if !rule.Frequency.Valid() {
		log.Warn("Allocation rule has an unknown frequency", "rule_id", rule.ID, "frequency", string(rule.Frequency))
		return rejected(rule, fmt.Errorf("%w: unknown frequency %q", util.ErrInvalidRule, rule.Frequency)), true
	}
	if !schedule.IsRuleDue(rule, now) {
		return nil, false
	}
	if err := ValidateRuleAmount(rule); err != nil {
		log.Warn("Allocation rule has an invalid amount", "rule_id", rule.ID, "error", err)
		return rejected(rule, err), true
	}
	if rule.TargetWalletID == source.ID {
		log.Warn("Allocation rule targets its own source wallet", "rule_id", rule.ID)
		return rejected(rule, fmt.Errorf("%w: target is the source wallet", util.ErrInvalidRule)), true
	}
	return nil, true
}

func rejected(rule *domain.AllocationRule, err error) *ReportItem {
	return &ReportItem{
		RuleID:         rule.ID,
		TargetWalletID: rule.TargetWalletID,
		Amount:         decimal.Zero,
		Outcome:        OutcomeInvalidRule,
		Error:          err.Error(),
	}
}

// executeRule applies one due rule in its own transaction: stamp, debit,
// credit, record. Anything short of a commit rolls the stamp back so the
// rule stays due.
func (s *allocationService) executeRule(ctx context.Context, log *slog.Logger, source *domain.Wallet, rule domain.AllocationRule, now time.Time) *ReportItem {
	item := &ReportItem{RuleID: rule.ID, TargetWalletID: rule.TargetWalletID, Amount: decimal.Zero}
	log = log.With("rule_id", rule.ID, "target_wallet_id", rule.TargetWalletID)

	finish := func(outcome AllocationOutcome, err error) *ReportItem {
		item.Outcome = outcome
		if err != nil {
			item.Error = err.Error()
		}
		switch outcome {
		case OutcomeSuccess:
			log.Info("Allocation executed", "amount", item.Amount.String())
		case OutcomeStoreError:
			log.Error("Allocation failed", "outcome", outcome, "error", err)
		case OutcomeInvalidRule, OutcomeTargetNotFound:
			log.Warn("Allocation skipped", "outcome", outcome, "error", err)
		default:
			log.Info("Allocation skipped", "outcome", outcome)
		}
		return item
	}

	if s.opts.RuleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.RuleTimeout)
		defer cancel()
	}

	txController, err := s.beginTx(ctx, s.dbBeginner)
	if err != nil {
		return finish(OutcomeStoreError, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer s.rollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return finish(OutcomeStoreError, fmt.Errorf("transaction controller does not implement DBExecutor"))
	}

	target, err := s.walletRepo.GetWalletByID(ctx, txExecutor, rule.TargetWalletID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return finish(OutcomeTargetNotFound, util.ErrTargetNotFound)
		}
		return finish(OutcomeStoreError, fmt.Errorf("failed to load target wallet: %w", err))
	}
	if target.Archived {
		return finish(OutcomeTargetNotFound, fmt.Errorf("%w: wallet is archived", util.ErrTargetNotFound))
	}
	if target.UserID != source.UserID {
		return finish(OutcomeInvalidRule, fmt.Errorf("%w: target wallet belongs to another user", util.ErrInvalidRule))
	}
	if target.Currency != source.Currency {
		return finish(OutcomeInvalidRule, fmt.Errorf("%w: %w", util.ErrInvalidRule, util.ErrCurrencyMismatch))
	}

	stamped, err := s.ruleRepo.StampExecuted(ctx, txExecutor, rule.ID, now, rule.LastExecutedAt)
	if err != nil {
		return finish(OutcomeStoreError, err)
	}
	if !stamped {
		return finish(OutcomeConcurrentExecutionLost, nil)
	}

	// Balance as of this rule, after any earlier debit of this or a concurrent
	// run. The row lock holds off other runs until this one commits.
	current, err := s.walletRepo.GetWalletByIDForUpdate(ctx, txExecutor, source.ID)
	if err != nil {
		return finish(OutcomeStoreError, fmt.Errorf("failed to re-read source wallet: %w", err))
	}

	amount, err := ResolveAmount(&rule, current.Balance)
	if err != nil {
		return finish(OutcomeInvalidRule, err)
	}
	amount = amount.RoundBank(s.opts.Precision)
	if !amount.IsPositive() {
		return finish(OutcomeNothingToAllocate, nil)
	}
	item.Amount = amount
	if current.Balance.LessThan(amount) {
		return finish(OutcomeInsufficientFunds, util.ErrInsufficientFunds)
	}

	if err := s.walletRepo.DebitWalletBalance(ctx, txExecutor, source.ID, amount); err != nil {
		if errors.Is(err, util.ErrInsufficientFunds) {
			return finish(OutcomeInsufficientFunds, err)
		}
		return finish(OutcomeStoreError, err)
	}
	if err := s.walletRepo.UpdateWalletBalance(ctx, txExecutor, target.ID, amount); err != nil {
		return finish(OutcomeStoreError, err)
	}

	transaction := domain.NewAllocationTransaction(&rule, source.ID, target.ID, amount, source.Currency)
	if err := s.transactionRepo.CreateTransaction(ctx, txExecutor, transaction); err != nil {
		return finish(OutcomeStoreError, err)
	}

	if err := s.commitTx(txController); err != nil {
		return finish(OutcomeStoreError, fmt.Errorf("failed to commit transaction: %w", err))
	}
	return finish(OutcomeSuccess, nil)
}
