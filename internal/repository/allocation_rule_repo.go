// internal/repository/allocation_rule_repo.go
package repository

import (
	"context"
	"time"

	"zrlda-finance/internal/domain"
)

// AllocationRuleRepository defines the interface for allocation rule data operations.
type AllocationRuleRepository interface {
	CreateRule(ctx context.Context, q DBExecutor, rule *domain.AllocationRule) error
	GetRuleByID(ctx context.Context, q DBExecutor, id int64) (*domain.AllocationRule, error)
	GetRulesByUserID(ctx context.Context, q DBExecutor, userID int64) ([]domain.AllocationRule, error)
	// GetActiveRulesByUserID returns the user's active rules ordered by id.
	GetActiveRulesByUserID(ctx context.Context, q DBExecutor, userID int64) ([]domain.AllocationRule, error)
	// UpdateRule persists user-editable fields. It never touches last_executed_at.
	UpdateRule(ctx context.Context, q DBExecutor, rule *domain.AllocationRule) error
	// StampExecuted sets last_executed_at to at only if the stored value still
	// equals expectedPrior (nil meaning never executed) and at is not earlier
	// than it. It reports whether the write happened.
	StampExecuted(ctx context.Context, q DBExecutor, ruleID int64, at time.Time, expectedPrior *time.Time) (bool, error)
	// ListActiveRuleOwners returns every user with active rules and their main wallet.
	ListActiveRuleOwners(ctx context.Context, q DBExecutor) ([]domain.RuleOwner, error)
}
