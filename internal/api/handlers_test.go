package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/zapfatura/billing-service/internal/app"
	"github.com/zapfatura/billing-service/internal/store"
)

func TestRespondServiceError_StatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", fmt.Errorf("%w: amount must be positive", app.ErrValidation), http.StatusBadRequest},
		{"charge not found", store.ErrChargeNotFound, http.StatusNotFound},
		{"client not found", store.ErrClientNotFound, http.StatusNotFound},
		{"account not found", store.ErrAccountNotFound, http.StatusNotFound},
		{"sweep already running", app.ErrSweepAlreadyRunning, http.StatusConflict},
		{"channel not connected", fmt.Errorf("%w: channel state is connecting", app.ErrInstanceNotConnected), http.StatusPreconditionFailed},
		{"gateway unavailable", fmt.Errorf("%w: timeout", app.ErrGatewayUnavailable), http.StatusBadGateway},
		{"provider unavailable", fmt.Errorf("%w: timeout", app.ErrProviderUnavailable), http.StatusBadGateway},
		{"instance unrecoverable", fmt.Errorf("%w: QR fetch failed", app.ErrInstanceUnrecoverable), http.StatusBadGateway},
		{"unexpected error", errors.New("pq: connection reset"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			respondServiceError(rec, tt.err)
			if rec.Code != tt.want {
				t.Fatalf("expected status %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestRespondServiceError_HidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	respondServiceError(rec, errors.New("pq: duplicate key value violates unique constraint"))
	if body := rec.Body.String(); body != "{\"error\":\"internal error\"}\n" {
		t.Fatalf("expected internal detail to be hidden, got %q", body)
	}
}
