// internal/api/router.go
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"zrlda-finance/internal/api/handler"
	authmw "zrlda-finance/internal/api/middleware"
)

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Wallet     *handler.WalletHandler
	Allocation *handler.AllocationHandler
	Webhook    *handler.WebhookHandler
}

// NewRouter sets up and returns a new HTTP router. jwtSecret authenticates
// user routes; webhookSecret authenticates the banking partner.
func NewRouter(h Handlers, jwtSecret, webhookSecret string) http.Handler {
	r := chi.NewRouter()

	// Global middlewares
	r.Use(middleware.RequestID)                         // Add a request ID to the context
	r.Use(middleware.RealIP)                            // Use the real IP address
	r.Use(middleware.Logger)                            // Log HTTP requests
	r.Use(middleware.Recoverer)                         // Recover from panics and return 500
	r.Use(middleware.RequestSize(handler.MaxBodyBytes)) // Cap request bodies

	// Partner callbacks authenticate with the shared secret, not a user token.
	// They are bounded by the server's WriteTimeout instead of DefaultTimeout:
	// the allocation run after a credit outlives the request context.
	r.With(authmw.RequireSharedSecret(webhookSecret)).Post("/webhooks/deposits", h.Webhook.ReceiveDeposit)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(handler.DefaultTimeout))

		// Health check endpoint
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("OK"))
		})

		r.Post("/users", h.Wallet.CreateUser)

		r.Group(func(r chi.Router) {
			r.Use(authmw.RequireUser(jwtSecret))

			// Wallet API routes
			r.Route("/wallets", func(r chi.Router) {
				r.Get("/", h.Wallet.ListWallets)
				r.Post("/", h.Wallet.CreateSubWallet)
				r.Post("/{walletID}/deposit", h.Wallet.Deposit)
				r.Post("/{walletID}/withdraw", h.Wallet.Withdraw)
				r.Get("/{walletID}/balance", h.Wallet.GetWalletBalance)
				r.Get("/{walletID}/transactions", h.Wallet.GetTransactionHistory)
			})

			// Transfer is a separate top-level endpoint as it involves two wallets
			r.Post("/transfers", h.Wallet.Transfer)

			r.Route("/allocation-rules", func(r chi.Router) {
				r.Get("/", h.Allocation.ListRules)
				r.Post("/", h.Allocation.CreateRule)
				r.Put("/{ruleID}", h.Allocation.UpdateRule)
				r.Post("/{ruleID}/activate", h.Allocation.ActivateRule)
				r.Post("/{ruleID}/deactivate", h.Allocation.DeactivateRule)
			})

			r.Post("/allocations/run", h.Allocation.RunAllocations)
		})
	})

	return r
}
