// internal/api/handler/allocation.go
package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"zrlda-finance/internal/api/middleware"
	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/service"
	"zrlda-finance/internal/util"
)

// AllocationHandler serves allocation rule configuration and on-demand runs.
type AllocationHandler struct {
	responder
	rules       service.RuleService
	wallets     service.WalletService
	allocations service.AllocationService
}

// NewAllocationHandler creates a new AllocationHandler.
func NewAllocationHandler(rules service.RuleService, wallets service.WalletService, allocations service.AllocationService, logger *slog.Logger) *AllocationHandler {
	return &AllocationHandler{
		responder:   responder{logger: logger},
		rules:       rules,
		wallets:     wallets,
		allocations: allocations,
	}
}

// RuleRequest represents the request body for creating or replacing a rule.
type RuleRequest struct {
	Name           string          `json:"name"`
	TargetWalletID int64           `json:"target_wallet_id"`
	AmountType     string          `json:"amount_type"`
	Amount         decimal.Decimal `json:"amount"`
	Frequency      string          `json:"frequency"`
}

func (req RuleRequest) input() (service.RuleInput, error) {
	freq, err := domain.ParseFrequency(req.Frequency)
	if err != nil {
		return service.RuleInput{}, fmt.Errorf("%w: %v", util.ErrInvalidRule, err)
	}
	amountType := domain.AmountType(req.AmountType)
	if !amountType.Valid() {
		return service.RuleInput{}, fmt.Errorf("%w: unknown amount type %q", util.ErrInvalidRule, req.AmountType)
	}
	if req.TargetWalletID <= 0 {
		return service.RuleInput{}, fmt.Errorf("%w: target_wallet_id is required", util.ErrInvalidRule)
	}
	return service.RuleInput{
		Name:           req.Name,
		TargetWalletID: req.TargetWalletID,
		AmountType:     amountType,
		Amount:         req.Amount,
		Frequency:      freq,
	}, nil
}

// ListRules returns the caller's rules, active and inactive.
// GET /allocation-rules
func (h *AllocationHandler) ListRules(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	rules, err := h.rules.ListRules(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	if rules == nil {
		rules = []domain.AllocationRule{}
	}
	h.respondWithJSON(w, http.StatusOK, map[string]interface{}{"data": rules})
}

// CreateRule adds an active rule.
// POST /allocation-rules
func (h *AllocationHandler) CreateRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	var req RuleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	rule, err := h.rules.CreateRule(r.Context(), userID, in)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, rule)
}

// UpdateRule replaces a rule's editable fields.
// PUT /allocation-rules/{ruleID}
func (h *AllocationHandler) UpdateRule(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}
	ruleID, err := idParam(r, "ruleID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	var req RuleRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondWithError(w, err)
		return
	}
	in, err := req.input()
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	rule, err := h.rules.UpdateRule(r.Context(), userID, ruleID, in)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, rule)
}

// ActivateRule resumes a rule.
// POST /allocation-rules/{ruleID}/activate
func (h *AllocationHandler) ActivateRule(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

// DeactivateRule pauses a rule.
// POST /allocation-rules/{ruleID}/deactivate
func (h *AllocationHandler) DeactivateRule(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *AllocationHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}
	ruleID, err := idParam(r, "ruleID")
	if err != nil {
		h.respondWithError(w, err)
		return
	}

	rule, err := h.rules.SetRuleActive(r.Context(), userID, ruleID, active)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, rule)
}

// RunAllocations executes the caller's due rules now and returns the report.
// POST /allocations/run
func (h *AllocationHandler) RunAllocations(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		h.respondWithError(w, util.ErrUnauthorized)
		return
	}

	wallets, err := h.wallets.ListWallets(r.Context(), userID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	var mainWallet *domain.Wallet
	for i := range wallets {
		if wallets[i].IsMain() {
			mainWallet = &wallets[i]
			break
		}
	}
	if mainWallet == nil {
		h.respondWithError(w, util.ErrWalletNotFound)
		return
	}

	report, err := h.allocations.RunAllocations(r.Context(), userID, mainWallet.ID)
	if err != nil {
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, report)
}
