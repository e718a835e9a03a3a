// internal/repository/postgres/allocation_rule_pg.go
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
)

const ruleColumns = `id, user_id, name, target_wallet_id, amount_type, amount, frequency, is_active, last_executed_at, created_at, updated_at`

// AllocationRuleRepository implements repository.AllocationRuleRepository for PostgreSQL.
type AllocationRuleRepository struct{}

// NewAllocationRuleRepository creates a new AllocationRuleRepository.
func NewAllocationRuleRepository() repository.AllocationRuleRepository {
	return &AllocationRuleRepository{}
}

func (r *AllocationRuleRepository) CreateRule(ctx context.Context, q repository.DBExecutor, rule *domain.AllocationRule) error {
	query := `INSERT INTO allocation_rules (user_id, name, target_wallet_id, amount_type, amount, frequency, is_active,
                  last_executed_at, created_at, updated_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`
	err := q.QueryRowContext(ctx, query,
		rule.UserID,
		rule.Name,
		rule.TargetWalletID,
		rule.AmountType,
		rule.Amount,
		rule.Frequency,
		rule.IsActive,
		rule.LastExecutedAt,
		rule.CreatedAt,
		rule.UpdatedAt,
	).Scan(&rule.ID)
	if err != nil {
		return fmt.Errorf("failed to create allocation rule: %w", err)
	}
	return nil
}

func (r *AllocationRuleRepository) GetRuleByID(ctx context.Context, q repository.DBExecutor, id int64) (*domain.AllocationRule, error) {
	var rule domain.AllocationRule
	err := q.GetContext(ctx, &rule, `SELECT `+ruleColumns+` FROM allocation_rules WHERE id = $1`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get allocation rule %d: %w", id, err)
	}
	return &rule, nil
}

func (r *AllocationRuleRepository) GetRulesByUserID(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.AllocationRule, error) {
	rules := []domain.AllocationRule{}
	query := `SELECT ` + ruleColumns + ` FROM allocation_rules WHERE user_id = $1 ORDER BY id`
	if err := q.SelectContext(ctx, &rules, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list allocation rules for user %d: %w", userID, err)
	}
	return rules, nil
}

func (r *AllocationRuleRepository) GetActiveRulesByUserID(ctx context.Context, q repository.DBExecutor, userID int64) ([]domain.AllocationRule, error) {
	rules := []domain.AllocationRule{}
	query := `SELECT ` + ruleColumns + ` FROM allocation_rules WHERE user_id = $1 AND is_active ORDER BY id`
	if err := q.SelectContext(ctx, &rules, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list active allocation rules for user %d: %w", userID, err)
	}
	return rules, nil
}

func (r *AllocationRuleRepository) UpdateRule(ctx context.Context, q repository.DBExecutor, rule *domain.AllocationRule) error {
	query := `UPDATE allocation_rules
              SET name = $1, target_wallet_id = $2, amount_type = $3, amount = $4, frequency = $5, is_active = $6, updated_at = $7
              WHERE id = $8`
	result, err := q.ExecContext(ctx, query,
		rule.Name,
		rule.TargetWalletID,
		rule.AmountType,
		rule.Amount,
		rule.Frequency,
		rule.IsActive,
		rule.UpdatedAt,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update allocation rule %d: %w", rule.ID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected after updating allocation rule %d: %w", rule.ID, err)
	}
	if rowsAffected == 0 {
		return util.ErrNotFound
	}
	return nil
}

// StampExecuted is a compare-and-swap on last_executed_at. Inside a
// transaction a concurrent loser blocks on the row lock, re-checks the
// predicate against the committed value and updates nothing.
func (r *AllocationRuleRepository) StampExecuted(ctx context.Context, q repository.DBExecutor, ruleID int64, at time.Time, expectedPrior *time.Time) (bool, error) {
	query := `UPDATE allocation_rules
              SET last_executed_at = $1, updated_at = $1
              WHERE id = $2
                AND is_active
                AND last_executed_at IS NOT DISTINCT FROM $3::timestamptz
                AND (last_executed_at IS NULL OR last_executed_at <= $1)`
	result, err := q.ExecContext(ctx, query, at, ruleID, expectedPrior)
	if err != nil {
		return false, fmt.Errorf("failed to stamp allocation rule %d: %w", ruleID, err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected after stamping allocation rule %d: %w", ruleID, err)
	}
	return rowsAffected == 1, nil
}

func (r *AllocationRuleRepository) ListActiveRuleOwners(ctx context.Context, q repository.DBExecutor) ([]domain.RuleOwner, error) {
	owners := []domain.RuleOwner{}
	query := `
		SELECT DISTINCT r.user_id, w.id AS main_wallet_id
		FROM allocation_rules r
		JOIN wallets w ON w.user_id = r.user_id AND w.kind = 'main'
		WHERE r.is_active
		ORDER BY r.user_id`
	if err := q.SelectContext(ctx, &owners, query); err != nil {
		return nil, fmt.Errorf("failed to list allocation rule owners: %w", err)
	}
	return owners, nil
}
