// internal/service/amount.go
package service

import (
	"fmt"

	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/util"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// ValidateRuleAmount checks a rule's amount configuration: a fixed amount must
// be positive and a percentage must lie in [0, 100]. Either must fit the
// ledger's scale.
func ValidateRuleAmount(rule *domain.AllocationRule) error {
	if !domain.FitsAmountScale(rule.Amount) {
		return fmt.Errorf("%w: amount %s has more than %d decimal places", util.ErrInvalidRule, rule.Amount, domain.AmountScale)
	}
	switch rule.AmountType {
	case domain.AmountTypeFixed:
		if !rule.Amount.IsPositive() {
			return fmt.Errorf("%w: fixed amount must be greater than zero, got %s", util.ErrInvalidRule, rule.Amount)
		}
	case domain.AmountTypePercentage:
		if rule.Amount.IsNegative() || rule.Amount.GreaterThan(hundred) {
			return fmt.Errorf("%w: percentage must be between 0 and 100, got %s", util.ErrInvalidRule, rule.Amount)
		}
	default:
		return fmt.Errorf("%w: unknown amount type %q", util.ErrInvalidRule, rule.AmountType)
	}
	return nil
}

// ResolveAmount computes how much a rule moves out of a source wallet holding
// sourceBalance. The result is not rounded.
func ResolveAmount(rule *domain.AllocationRule, sourceBalance decimal.Decimal) (decimal.Decimal, error) {
	if err := ValidateRuleAmount(rule); err != nil {
		return decimal.Zero, err
	}
	if rule.AmountType == domain.AmountTypePercentage {
		return sourceBalance.Mul(rule.Amount).Div(hundred), nil
	}
	return rule.Amount, nil
}
