/**
 * @description
 * This file sets up the HTTP router for the billing service using the
 * go-chi/chi router. It defines the API routes, applies middleware for
 * logging, recovery, CORS and the internal API key, and maps routes to
 * their handler functions.
 */
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new Chi router and registers the billing routes.
func NewRouter(h *Handler, internalAPIKey string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Internal-API-Key"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Billing service is healthy"))
	})

	// The gateway authenticates its callbacks with its own signature scheme
	// upstream; the endpoint stays outside the internal-key group so the
	// gateway can reach it.
	r.Post("/gateway/webhook", h.handleGatewayWebhook)

	r.Group(func(r chi.Router) {
		r.Use(InternalKeyMiddleware(internalAPIKey))

		r.Post("/charges", h.handleCreateCharge)
		r.Get("/charges", h.handleListCharges)
		r.Post("/charges/{chargeID}/reconcile", h.handleReconcileCharge)
		r.Post("/charges/{chargeID}/cancel", h.handleCancelCharge)

		r.Post("/sweeps/reconcile", h.handleReconcileSweep)
		r.Post("/sweeps/notifications", h.handleNotificationSweep)

		r.Post("/whatsapp/connect", h.handleConnect)
		r.Get("/whatsapp/status", h.handleChannelStatus)
		r.Delete("/whatsapp", h.handleDisconnect)

		r.Get("/clients/{clientID}/messages", h.handleListMessages)
	})

	return r
}
