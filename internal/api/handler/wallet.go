// internal/api/handler/wallet.go
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"

	"zrlda-finance/internal/api/middleware"
	"zrlda-finance/internal/api/types"
	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/service"
	"zrlda-finance/internal/util"
)

// TokenIssuer signs an API token for a newly created user.
type TokenIssuer func(userID int64) (string, error)

// WalletHandler handles HTTP requests related to wallet operations.
type WalletHandler struct {
	responder
	service    service.WalletService
	issueToken TokenIssuer
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(svc service.WalletService, issueToken TokenIssuer, logger *slog.Logger) *WalletHandler {
	return &WalletHandler{
		responder:  responder{logger: logger},
		service:    svc,
		issueToken: issueToken,
	}
}

// CreateUserRequest represents the request body for user sign-up.
type CreateUserRequest struct {
	Username string `json:"username"`
	Currency string `json:"currency"`
}

// CreateUser provisions a user with a main wallet and returns an API token.
// POST /users
func (h *WalletHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	user, wallet, err := h.service.CreateUserAndWallet(r.Context(), req.Username, req.Currency)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	token, err := h.issueToken(user.ID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusCreated, map[string]interface{}{
		"user":   user,
		"wallet": wallet,
		"token":  token,
	})
}

// ListWallets returns the caller's main wallet and sub-wallets.
// GET /wallets
func (h *WalletHandler) ListWallets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	wallets, err := h.service.ListWallets(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if wallets == nil {
		wallets = []domain.Wallet{}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": wallets})
}

// CreateSubWalletRequest represents the request body for a new sub-wallet.
type CreateSubWalletRequest struct {
	Name string `json:"name"`
}

// CreateSubWallet opens a sub-wallet for the caller.
// POST /wallets
func (h *WalletHandler) CreateSubWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	var req CreateSubWalletRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	wallet, err := h.service.CreateSubWallet(r.Context(), userID, req.Name)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, wallet)
}

// AmountRequest represents the request body for deposit and withdraw.
type AmountRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

func (req AmountRequest) validate() error {
	if !req.Amount.IsPositive() || req.Currency == "" {
		return util.ErrInvalidInput
	}
	return nil
}

// ownedWalletID resolves the {walletID} path parameter and checks that the
// caller owns the wallet.
func (h *WalletHandler) ownedWalletID(r *http.Request) (int64, error) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		return 0, util.ErrUnauthorized
	}
	walletID, err := idParam(r, "walletID")
	if err != nil {
		return 0, err
	}
	if _, err := h.service.GetOwnedWallet(r.Context(), userID, walletID); err != nil {
		return 0, err
	}
	return walletID, nil
}

// moveFunc is WalletService.Deposit or WalletService.Withdraw.
type moveFunc func(ctx context.Context, walletID int64, amount decimal.Decimal, currency string) (*domain.Wallet, *domain.Transaction, error)

// Deposit credits one of the caller's wallets.
// POST /wallets/{walletID}/deposit
func (h *WalletHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.service.Deposit, "Deposit successful")
}

// Withdraw debits one of the caller's wallets; 402 when it cannot cover the amount.
// POST /wallets/{walletID}/withdraw
func (h *WalletHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	h.move(w, r, h.service.Withdraw, "Withdrawal successful")
}

func (h *WalletHandler) move(w http.ResponseWriter, r *http.Request, fn moveFunc, message string) {
	walletID, err := h.ownedWalletID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req AmountRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	if err := req.validate(); err != nil {
		h.respondWithError(w, err)
		return
	}

	wallet, transaction, err := fn(r.Context(), walletID, req.Amount, req.Currency)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"message":        message,
		"wallet_id":      wallet.ID,
		"new_balance":    wallet.Balance,
		"transaction_id": transaction.ID,
	})
}

// TransferRequest represents the request body for transfer.
type TransferRequest struct {
	FromWalletID int64           `json:"from_wallet_id"`
	ToWalletID   int64           `json:"to_wallet_id"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
}

// Transfer handles the transfer money request. The caller must own the
// source wallet.
// POST /transfers
func (h *WalletHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	var req TransferRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}

	if req.FromWalletID <= 0 || req.ToWalletID <= 0 || !req.Amount.IsPositive() || req.Currency == "" {
		h.respondWithError(w, util.ErrInvalidInput)
		return
	}
	if _, err := h.service.GetOwnedWallet(r.Context(), userID, req.FromWalletID); err != nil {
		h.respondWithError(w, err)
		return
	}

	fromWallet, toWallet, transaction, err := h.service.Transfer(r.Context(), req.FromWalletID, req.ToWalletID, req.Amount, req.Currency)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	payload := map[string]interface{}{
		"message":                 "Transfer successful",
		"transaction_id":          transaction.ID,
		"from_wallet_new_balance": fromWallet.Balance,
	}
	// Only reveal the destination balance to its owner.
	if toWallet.UserID == userID {
		payload["to_wallet_new_balance"] = toWallet.Balance
	}
	h.respondWithJSON(w, http.StatusOK, payload)
}

// GetWalletBalance returns one of the caller's wallets with its balance.
// GET /wallets/{walletID}/balance
func (h *WalletHandler) GetWalletBalance(w http.ResponseWriter, r *http.Request) {
	walletID, err := h.ownedWalletID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	wallet, err := h.service.GetBalance(r.Context(), walletID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"wallet_id": wallet.ID,
		"name":      wallet.Name,
		"kind":      wallet.Kind,
		"balance":   wallet.Balance,
		"currency":  wallet.Currency,
	})
}

// GetTransactionHistory pages through a wallet's ledger, newest first.
// limit defaults to 10 and is capped at 100.
// GET /wallets/{walletID}/transactions
func (h *WalletHandler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	walletID, err := h.ownedWalletID(r)
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if err != nil || offset < 0 {
		offset = 0
	}

	transactions, totalCount, err := h.service.GetTransactionHistory(r.Context(), walletID, limit, offset)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, types.NewPage(transactions, limit, offset, totalCount))
}
