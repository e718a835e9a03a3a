// internal/api/handler/webhook.go
package handler

import (
	"log/slog"
	"net/http"

	"zrlda-finance/internal/domain"
	"zrlda-finance/internal/service"
)

// WebhookHandler receives banking partner callbacks. Requests reach it only
// after the shared-secret middleware has authenticated them.
type WebhookHandler struct {
	responder
	deposits service.DepositService
}

// NewWebhookHandler creates a new WebhookHandler.
func NewWebhookHandler(deposits service.DepositService, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		responder: responder{logger: logger.With("component", "webhook")},
		deposits:  deposits,
	}
}

// ReceiveDeposit credits an inbound deposit and triggers allocations.
// Redelivered events answer 200 with status "duplicate" so the partner stops retrying.
// POST /webhooks/deposits
func (h *WebhookHandler) ReceiveDeposit(w http.ResponseWriter, r *http.Request) {
	var event domain.InboundDeposit
	if err := decodeJSON(r, &event); err != nil {
		h.respondWithError(w, err)
		return
	}

	result, err := h.deposits.HandleInbound(r.Context(), &event)
	if err != nil {
		h.logger.Warn("Inbound deposit rejected", "external_ref", event.TransactionID, "error", err)
		h.respondWithError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, result)
}
