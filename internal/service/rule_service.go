// internal/service/rule_service.go
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/repository"
	"zrlda-finance/internal/util"

	"github.com/shopspring/decimal"
)

// RuleInput carries the user-editable fields of an allocation rule.
type RuleInput struct {
	Name           string
	TargetWalletID int64
	AmountType     domain.AmountType
	Amount         decimal.Decimal
	Frequency      domain.Frequency
}

// RuleService manages allocation rule configuration.
type RuleService interface {
	CreateRule(ctx context.Context, userID int64, in RuleInput) (*domain.AllocationRule, error)
	UpdateRule(ctx context.Context, userID, ruleID int64, in RuleInput) (*domain.AllocationRule, error)
	SetRuleActive(ctx context.Context, userID, ruleID int64, active bool) (*domain.AllocationRule, error)
	ListRules(ctx context.Context, userID int64) ([]domain.AllocationRule, error)
}

type ruleService struct {
	dbExecutor repository.DBExecutor
	walletRepo repository.WalletRepository
	ruleRepo   repository.AllocationRuleRepository
}

// NewRuleService creates a new instance of RuleService.
func NewRuleService(dbExecutor repository.DBExecutor, walletRepo repository.WalletRepository, ruleRepo repository.AllocationRuleRepository) RuleService {
	return &ruleService{
		dbExecutor: dbExecutor,
		walletRepo: walletRepo,
		ruleRepo:   ruleRepo,
	}
}

func (s *ruleService) CreateRule(ctx context.Context, userID int64, in RuleInput) (*domain.AllocationRule, error) {
	rule := domain.NewAllocationRule(userID, in.TargetWalletID, strings.TrimSpace(in.Name), in.AmountType, in.Amount, in.Frequency)
	if err := s.validate(ctx, rule); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	if err := s.ruleRepo.CreateRule(ctx, s.dbExecutor, rule); err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	return rule, nil
}

func (s *ruleService) UpdateRule(ctx context.Context, userID, ruleID int64, in RuleInput) (*domain.AllocationRule, error) {
	rule, err := s.ownedRule(ctx, userID, ruleID)
	if err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}
	rule.Name = strings.TrimSpace(in.Name)
	rule.TargetWalletID = in.TargetWalletID
	rule.AmountType = in.AmountType
	rule.Amount = in.Amount
	rule.Frequency = in.Frequency
	rule.UpdatedAt = time.Now().UTC()
	if err := s.validate(ctx, rule); err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}
	if err := s.ruleRepo.UpdateRule(ctx, s.dbExecutor, rule); err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}
	return rule, nil
}

// SetRuleActive activates or deactivates a rule. Rules are never deleted.
func (s *ruleService) SetRuleActive(ctx context.Context, userID, ruleID int64, active bool) (*domain.AllocationRule, error) {
	rule, err := s.ownedRule(ctx, userID, ruleID)
	if err != nil {
		return nil, fmt.Errorf("set rule active: %w", err)
	}
	if rule.IsActive == active {
		return rule, nil
	}
	rule.IsActive = active
	rule.UpdatedAt = time.Now().UTC()
	if err := s.ruleRepo.UpdateRule(ctx, s.dbExecutor, rule); err != nil {
		return nil, fmt.Errorf("set rule active: %w", err)
	}
	return rule, nil
}

func (s *ruleService) ListRules(ctx context.Context, userID int64) ([]domain.AllocationRule, error) {
	rules, err := s.ruleRepo.GetRulesByUserID(ctx, s.dbExecutor, userID)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

func (s *ruleService) ownedRule(ctx context.Context, userID, ruleID int64) (*domain.AllocationRule, error) {
	rule, err := s.ruleRepo.GetRuleByID(ctx, s.dbExecutor, ruleID)
	if err != nil {
		return nil, err
	}
	if rule.UserID != userID {
		return nil, util.ErrForbidden
	}
	return rule, nil
}

// validate rejects a rule that the executor could never run: bad amount,
// unknown frequency, or a target that is not one of the owner's open
// sub-wallets in the main wallet's currency.
func (s *ruleService) validate(ctx context.Context, rule *domain.AllocationRule) error {
	if rule.Name == "" {
		return fmt.Errorf("%w: name is required", util.ErrInvalidRule)
	}
	if !rule.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", util.ErrInvalidRule, rule.Frequency)
	}
	if err := ValidateRuleAmount(rule); err != nil {
		return err
	}

	target, err := s.walletRepo.GetWalletByID(ctx, s.dbExecutor, rule.TargetWalletID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return util.ErrTargetNotFound
		}
		return err
	}
	if target.UserID != rule.UserID {
		return util.ErrForbidden
	}
	if target.Kind != domain.WalletKindSub {
		return fmt.Errorf("%w: target must be a sub-wallet", util.ErrInvalidRule)
	}
	if target.Archived {
		return fmt.Errorf("%w: target wallet is archived", util.ErrInvalidRule)
	}

	mainWallet, err := s.walletRepo.GetMainWalletByUserID(ctx, s.dbExecutor, rule.UserID)
	if err != nil {
		if errors.Is(err, util.ErrNotFound) {
			return util.ErrWalletNotFound
		}
		return err
	}
	if mainWallet.Currency != target.Currency {
		return fmt.Errorf("%w: %w", util.ErrInvalidRule, util.ErrCurrencyMismatch)
	}
	return nil
}
