// internal/domain/wallet.go
package domain

import (
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// WalletKind distinguishes a user's primary wallet from budget/goal sub-wallets.
type WalletKind string

const (
	WalletKindMain WalletKind = "main"
	WalletKindSub  WalletKind = "sub"
)

// AmountScale is the number of decimal places balances and ledger amounts
// are stored with.
const AmountScale = 4

// FitsAmountScale reports whether amount can be stored without rounding.
func FitsAmountScale(amount decimal.Decimal) bool {
	return amount.Equal(amount.Truncate(AmountScale))
}

// Valid reports whether k is a known wallet kind.
func (k WalletKind) Valid() bool {
	return k == WalletKindMain || k == WalletKindSub
}

// Wallet represents a user's wallet.
type Wallet struct {
	ID            int64           `db:"id" json:"id"`                         // Primary key, BIGSERIAL in DB
	UserID        int64           `db:"user_id" json:"user_id"`               // Foreign key to User
	Name          string          `db:"name" json:"name"`                     // Display name, e.g. "Rent", "Holiday"
	Kind          WalletKind      `db:"kind" json:"kind"`                     // main or sub
	Currency      string          `db:"currency" json:"currency"`             // e.g., "USD", "NGN"
	Balance       decimal.Decimal `db:"balance" json:"balance"`               // Current balance, NUMERIC(20, 4) in DB
	AccountNumber *string         `db:"account_number" json:"account_number"` // Partner virtual account, main wallets only
	Archived      bool            `db:"archived" json:"archived"`             // Archived wallets receive no allocations
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`         // Timestamp of creation
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`         // Timestamp of last update
}

// NewWallet creates a new main Wallet instance.
func NewWallet(userID int64, currency string) *Wallet {
	now := time.Now().UTC()
	return &Wallet{
		UserID:    userID,
		Name:      "Main",
		Kind:      WalletKindMain,
		Currency:  currency,
		Balance:   decimal.Zero, // Initialize balance to 0
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewSubWallet creates a new sub-wallet (budget or goal) for userID.
func NewSubWallet(userID int64, name, currency string) *Wallet {
	w := NewWallet(userID, currency)
	w.Name = name
	w.Kind = WalletKindSub
	return w
}

// IsMain reports whether the wallet is the user's primary wallet.
func (w *Wallet) IsMain() bool {
	return w.Kind == WalletKindMain
}
