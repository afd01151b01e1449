/**
 * @description
 * This package provides a client for the PIX payment gateway's REST API. It
 * encapsulates authenticated HTTP requests for creating charges and fetching
 * their settlement status, with typed request/response payloads and a typed
 * error response.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package gatewayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Client is a client for the payment gateway API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new gateway API client with a bounded request timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateChargeRequest is the payload for creating an immediate PIX charge.
type CreateChargeRequest struct {
	Amount        int64  `json:"amount"`
	Description   string `json:"description"`
	ExpirySeconds int    `json:"expiry_seconds"`
}

// ChargeResponse is the gateway's representation of a charge.
type ChargeResponse struct {
	Data struct {
		TxID          string     `json:"txid"`
		Status        string     `json:"status"`
		QRImage       string     `json:"qr_image"`
		CopyPasteCode string     `json:"copy_paste_code"`
		ExpiresAt     time.Time  `json:"expires_at"`
		PaidAt        *time.Time `json:"paid_at,omitempty"`
	} `json:"data"`
}

// ErrorResponse represents an error returned by the gateway API.
type ErrorResponse struct {
	Errors []struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Status string `json:"status"`
	} `json:"errors"`
}

func (e *ErrorResponse) Error() string {
	if len(e.Errors) > 0 {
		return fmt.Sprintf("gateway api error: %s - %s", e.Errors[0].Title, e.Errors[0].Detail)
	}
	return "unknown gateway api error"
}

// CreateCharge asks the gateway to issue a new PIX charge and returns its
// reference, QR payload, copy-paste code and expiry.
func (c *Client) CreateCharge(ctx context.Context, amount int64, description string, expiry time.Duration) (*ChargeResponse, error) {
	payload := CreateChargeRequest{
		Amount:        amount,
		Description:   description,
		ExpirySeconds: int(expiry.Seconds()),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal charge request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/v2/cob", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.APIKey)

	return c.doCharge(req, "create_charge")
}

// GetCharge fetches the current settlement status of a charge by its txid.
func (c *Client) GetCharge(ctx context.Context, txid string) (*ChargeResponse, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.BaseURL+"/v2/cob/"+txid, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-api-key", c.APIKey)

	return c.doCharge(req, "get_charge")
}

func (c *Client) doCharge(req *http.Request, op string) (*ChargeResponse, error) {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp ErrorResponse
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=gateway_client op=%s status=%d msg=\"non-2xx response (unparsable error body)\"", op, resp.StatusCode)
			return nil, fmt.Errorf("failed to decode error response (status %d)", resp.StatusCode)
		}
		log.Printf("level=warn component=gateway_client op=%s status=%d title=%q detail=%q", op, resp.StatusCode, firstErrorTitle(errResp), firstErrorDetail(errResp))
		return nil, &errResp
	}

	var chargeResp ChargeResponse
	if err := json.Unmarshal(bodyBytes, &chargeResp); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", op, err)
	}
	return &chargeResp, nil
}

func firstErrorTitle(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Title
}

func firstErrorDetail(resp ErrorResponse) string {
	if len(resp.Errors) == 0 {
		return ""
	}
	return resp.Errors[0].Detail
}
