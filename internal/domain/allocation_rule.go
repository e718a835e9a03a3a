// internal/domain/allocation_rule.go
package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is how often an allocation rule may execute: at most once per
// calendar period of this size.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// Valid reports whether f is one of the known frequencies.
func (f Frequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
		return true
	}
	return false
}

// ParseFrequency parses a case-insensitive frequency name.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("unknown frequency %q", s)
	}
	return f, nil
}

// AmountType selects how a rule's Amount is interpreted.
type AmountType string

const (
	AmountTypeFixed      AmountType = "fixed"      // Amount is a currency amount
	AmountTypePercentage AmountType = "percentage" // Amount is a percentage [0, 100] of the source balance
)

// Valid reports whether t is a known amount type.
func (t AmountType) Valid() bool {
	return t == AmountTypeFixed || t == AmountTypePercentage
}

// AllocationRule is a recurring instruction to move funds from the owner's
// main wallet into TargetWalletID.
type AllocationRule struct {
	ID             int64           `db:"id" json:"id"`
	UserID         int64           `db:"user_id" json:"user_id"`
	Name           string          `db:"name" json:"name"`
	TargetWalletID int64           `db:"target_wallet_id" json:"target_wallet_id"`
	AmountType     AmountType      `db:"amount_type" json:"amount_type"`
	Amount         decimal.Decimal `db:"amount" json:"amount"`
	Frequency      Frequency       `db:"frequency" json:"frequency"`
	IsActive       bool            `db:"is_active" json:"is_active"`
	LastExecutedAt *time.Time      `db:"last_executed_at" json:"last_executed_at"` // nil means never executed
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at" json:"updated_at"`
}

// NewAllocationRule creates an active rule that has never executed.
func NewAllocationRule(userID, targetWalletID int64, name string, amountType AmountType, amount decimal.Decimal, freq Frequency) *AllocationRule {
	now := time.Now().UTC()
	return &AllocationRule{
		UserID:         userID,
		Name:           name,
		TargetWalletID: targetWalletID,
		AmountType:     amountType,
		Amount:         amount,
		Frequency:      freq,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// RuleOwner identifies a user with at least one active rule and the main
// wallet their rules draw from.
type RuleOwner struct {
	UserID       int64 `db:"user_id"`
	MainWalletID int64 `db:"main_wallet_id"`
}
