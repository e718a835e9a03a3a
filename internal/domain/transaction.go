// internal/domain/transaction.go
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType classifies a ledger entry.
type TransactionType string

const (
	TransactionTypeDeposit    TransactionType = "DEPOSIT"    // External money in: to_wallet only
	TransactionTypeWithdrawal TransactionType = "WITHDRAWAL" // Money out: from_wallet only
	TransactionTypeTransfer   TransactionType = "TRANSFER"   // User-initiated move between wallets
	TransactionTypeAllocation TransactionType = "ALLOCATION" // Rule-driven move from a main wallet to a sub-wallet
)

// TransactionStatus is the settlement state of a ledger entry. Entries are
// written in the same transaction as the balance change, so they are
// COMPLETED when visible.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

// Transaction is one immutable ledger entry.
type Transaction struct {
	ID               int64             `db:"id" json:"id"`
	FromWalletID     *int64            `db:"from_wallet_id" json:"from_wallet_id"` // nil for deposits
	ToWalletID       *int64            `db:"to_wallet_id" json:"to_wallet_id"`     // nil for withdrawals
	Amount           decimal.Decimal   `db:"amount" json:"amount"`                 // Always positive; direction comes from the wallet ids
	Currency         string            `db:"currency" json:"currency"`
	Type             TransactionType   `db:"type" json:"type"`
	Status           TransactionStatus `db:"status" json:"status"`
	TransactionTime  time.Time         `db:"transaction_time" json:"transaction_time"` // Partner time for inbound deposits
	Description      *string           `db:"description" json:"description"`
	ExternalRef      *string           `db:"external_ref" json:"external_ref"`             // Partner transaction id, unique when set
	AllocationRuleID *int64            `db:"allocation_rule_id" json:"allocation_rule_id"` // Rule that produced an ALLOCATION
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
}

// NewTransaction creates a completed entry timestamped now.
func NewTransaction(
	fromWalletID *int64,
	toWalletID *int64,
	amount decimal.Decimal,
	currency string,
	txType TransactionType,
	description *string,
) *Transaction {
	now := time.Now().UTC()
	return &Transaction{
		FromWalletID:    fromWalletID,
		ToWalletID:      toWalletID,
		Amount:          amount,
		Currency:        currency,
		Type:            txType,
		Status:          TransactionStatusCompleted,
		TransactionTime: now,
		Description:     description,
		CreatedAt:       now,
	}
}

// NewInboundDepositTransaction records a partner deposit into walletID.
// The partner's transaction id becomes the entry's external reference and
// its timestamp, when present, the transaction time.
func NewInboundDepositTransaction(event *InboundDeposit, walletID int64, currency string) *Transaction {
	var description *string
	if event.Narration != "" {
		narration := event.Narration
		description = &narration
	}
	t := NewTransaction(nil, &walletID, event.Amount, currency, TransactionTypeDeposit, description)
	ref := event.TransactionID
	t.ExternalRef = &ref
	if !event.Timestamp.IsZero() {
		t.TransactionTime = event.Timestamp.UTC()
	}
	return t
}

// NewAllocationTransaction records amount moved from source to target by rule.
func NewAllocationTransaction(rule *AllocationRule, sourceWalletID, targetWalletID int64, amount decimal.Decimal, currency string) *Transaction {
	description := fmt.Sprintf("Auto-allocation: %s", rule.Name)
	t := NewTransaction(&sourceWalletID, &targetWalletID, amount, currency, TransactionTypeAllocation, &description)
	ruleID := rule.ID
	t.AllocationRuleID = &ruleID
	return t
}

// SignedAmount is the entry's effect on walletID's balance: negative when
// the wallet is the source, positive when it is the destination, zero
// when the entry does not touch it.
func (t *Transaction) SignedAmount(walletID int64) decimal.Decimal {
	switch {
	case t.FromWalletID != nil && *t.FromWalletID == walletID:
		return t.Amount.Neg()
	case t.ToWalletID != nil && *t.ToWalletID == walletID:
		return t.Amount
	default:
		return decimal.Zero
	}
}
