package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestInternalKeyMiddleware(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		configured string
		provided   string
		wantStatus int
	}{
		{"matching key passes", "secret", "secret", http.StatusOK},
		{"wrong key rejected", "secret", "other", http.StatusUnauthorized},
		{"missing key rejected", "secret", "", http.StatusUnauthorized},
		{"empty configured key disables the check", "", "", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := InternalKeyMiddleware(tt.configured)(next)

			req := httptest.NewRequest("GET", "/charges", nil)
			if tt.provided != "" {
				req.Header.Set("X-Internal-API-Key", tt.provided)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
		})
	}
}
