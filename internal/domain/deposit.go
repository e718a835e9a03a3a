// internal/domain/deposit.go
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// InboundDeposit is a credit notification delivered by the banking partner.
type InboundDeposit struct {
	TransactionID string          `json:"transaction_id"` // Partner-side id, used for idempotency
	AccountNumber string          `json:"account_number"` // Destination virtual account (main wallet)
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Narration     string          `json:"narration"`
	Timestamp     time.Time       `json:"timestamp"`
}
