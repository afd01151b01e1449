/**
 * @description
 * HTTP handler functions for the billing service. Handlers parse requests,
 * call the service layer, and translate the service's typed error kinds into
 * HTTP status codes. Batch endpoints return the aggregate sweep summaries;
 * raw internal errors never reach the caller.
 */
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/zapfatura/billing-service/internal/app"
	"github.com/zapfatura/billing-service/internal/domain"
	"github.com/zapfatura/billing-service/internal/store"
)

// Handler holds the application services the handlers interact with.
type Handler struct {
	service   *app.Service
	connector *app.Connector
}

// NewHandler creates a new Handler.
func NewHandler(service *app.Service, connector *app.Connector) *Handler {
	return &Handler{service: service, connector: connector}
}

// handleCreateCharge generates (or reuses) a charge for a client.
func (h *Handler) handleCreateCharge(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ClientID    uuid.UUID `json:"client_id"`
		Amount      int64     `json:"amount"`
		Description string    `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	charge, err := h.service.CreateCharge(r.Context(), req.ClientID, req.Amount, req.Description)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, charge)
}

// handleListCharges returns a client's charge history.
func (h *Handler) handleListCharges(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(r.URL.Query().Get("client_id"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "client_id query parameter is required")
		return
	}

	charges, err := h.service.ListCharges(r.Context(), clientID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, charges)
}

// handleReconcileCharge polls the gateway for one charge.
func (h *Handler) handleReconcileCharge(w http.ResponseWriter, r *http.Request) {
	chargeID, err := uuid.Parse(chi.URLParam(r, "chargeID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid charge id")
		return
	}

	charge, err := h.service.ReconcileCharge(r.Context(), chargeID)
	if err != nil && !errors.Is(err, app.ErrAlreadyTerminal) {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, charge)
}

// handleCancelCharge is the manual operator terminal-state action. It runs
// through the same compare-and-swap as every other writer.
func (h *Handler) handleCancelCharge(w http.ResponseWriter, r *http.Request) {
	chargeID, err := uuid.Parse(chi.URLParam(r, "chargeID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid charge id")
		return
	}

	err = h.service.ApplyTransition(r.Context(), chargeID, domain.ChargeStatusCancelled, nil)
	if err != nil && !errors.Is(err, app.ErrAlreadyTerminal) {
		respondServiceError(w, err)
		return
	}

	charge, err := h.service.GetCharge(r.Context(), chargeID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, charge)
}

// handleGatewayWebhook receives pushed settlement updates from the gateway.
func (h *Handler) handleGatewayWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TxID   string     `json:"txid"`
		Status string     `json:"status"`
		PaidAt *time.Time `json:"paid_at,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.TxID == "" {
		respondWithError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	err := h.service.HandleGatewayWebhook(r.Context(), req.TxID, req.Status, req.PaidAt)
	if err != nil && !errors.Is(err, app.ErrAlreadyTerminal) {
		// A charge we never issued: acknowledge so the gateway stops
		// retrying, but log nothing sensitive back.
		if errors.Is(err, store.ErrChargeNotFound) {
			respondWithJSON(w, http.StatusOK, map[string]string{"result": "ignored"})
			return
		}
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"result": "applied"})
}

// handleReconcileSweep triggers the reconciliation sweep.
func (h *Handler) handleReconcileSweep(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.ReconcileSweep(r.Context())
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// handleNotificationSweep triggers the notification sweep, optionally scoped
// to one account.
func (h *Handler) handleNotificationSweep(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()

	if rawAccountID := r.URL.Query().Get("account_id"); rawAccountID != "" {
		accountID, err := uuid.Parse(rawAccountID)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "invalid account id")
			return
		}
		summary, err := h.service.RunNotificationSweepForAccount(r.Context(), accountID, now)
		if err != nil {
			respondServiceError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, summary)
		return
	}

	summary, err := h.service.RunNotificationSweep(r.Context(), now)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, summary)
}

// handleConnect runs the connector's escalation ladder for an account.
func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.connector.Connect(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, result)
}

// handleChannelStatus returns the live channel state.
func (h *Handler) handleChannelStatus(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	state, err := h.connector.Status(r.Context(), accountID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	resp := map[string]any{"state": string(state)}
	if session, err := h.connector.CachedSession(r.Context(), accountID); err == nil {
		resp["instance_name"] = session.InstanceName
		resp["last_state_checked_at"] = session.LastStateCheckedAt
	}
	respondWithJSON(w, http.StatusOK, resp)
}

// handleDisconnect tears down the account's channel.
func (h *Handler) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	accountID, err := accountIDFromRequest(r)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.connector.Disconnect(r.Context(), accountID); err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]string{"state": string(domain.SessionStateAbsent)})
}

// handleListMessages returns a client's delivery history.
func (h *Handler) handleListMessages(w http.ResponseWriter, r *http.Request) {
	clientID, err := uuid.Parse(chi.URLParam(r, "clientID"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	limit := 0
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		limit, _ = strconv.Atoi(rawLimit)
	}

	entries, err := h.service.ListMessages(r.Context(), clientID, limit)
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, entries)
}

func accountIDFromRequest(r *http.Request) (uuid.UUID, error) {
	raw := r.URL.Query().Get("account_id")
	if raw == "" {
		return uuid.Nil, errors.New("account_id query parameter is required")
	}
	accountID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid account id")
	}
	return accountID, nil
}

// respondServiceError maps service error kinds onto HTTP statuses.
func respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrChargeNotFound),
		errors.Is(err, store.ErrClientNotFound),
		errors.Is(err, store.ErrAccountNotFound),
		errors.Is(err, store.ErrSessionNotFound):
		respondWithError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrSweepAlreadyRunning):
		respondWithError(w, http.StatusConflict, err.Error())
	case errors.Is(err, app.ErrInstanceNotConnected):
		respondWithError(w, http.StatusPreconditionFailed, err.Error())
	case errors.Is(err, app.ErrGatewayUnavailable),
		errors.Is(err, app.ErrProviderUnavailable),
		errors.Is(err, app.ErrInstanceUnrecoverable):
		respondWithError(w, http.StatusBadGateway, err.Error())
	default:
		respondWithError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

// respondWithJSON is a helper function to write JSON responses.
func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
