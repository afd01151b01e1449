/**
 * @description
 * This package provides a client for the WhatsApp messaging provider's REST
 * API. It covers the full instance lifecycle (create, force-recreate, delete),
 * QR pairing, live status checks, message sending and webhook registration.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http, time: Standard Go libraries.
 */
package waclient

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

// Client is a client for the messaging provider API.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a new provider API client with a bounded request timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// InstanceStatusResponse is the provider's live connection state for an
// instance. State is the provider vocabulary: "open", "connecting", "close".
type InstanceStatusResponse struct {
	Instance struct {
		Name  string `json:"instanceName"`
		State string `json:"state"`
	} `json:"instance"`
}

// QRCodeResponse carries the base64-encoded pairing image.
type QRCodeResponse struct {
	Base64 string `json:"base64"`
	Code   string `json:"code,omitempty"`
}

// SendMessageResponse is returned after a send attempt.
type SendMessageResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	Status string `json:"status"`
}

// ErrorResponse represents an error from the provider API.
type ErrorResponse struct {
	StatusCode int    `json:"status"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	return fmt.Sprintf("provider api error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether the provider said the instance does not exist.
func (e *ErrorResponse) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// CreateInstance registers a new instance with the provider.
func (c *Client) CreateInstance(ctx context.Context, name string) error {
	payload := map[string]any{
		"instanceName": name,
		"qrcode":       true,
	}
	return c.do(ctx, "POST", "/instance/create", payload, nil, "create_instance")
}

// ForceRecreateInstance tears down and recreates a broken instance.
func (c *Client) ForceRecreateInstance(ctx context.Context, name string) error {
	payload := map[string]any{
		"instanceName": name,
		"qrcode":       true,
		"force":        true,
	}
	return c.do(ctx, "POST", "/instance/create", payload, nil, "force_recreate_instance")
}

// DeleteInstance removes the instance from the provider.
func (c *Client) DeleteInstance(ctx context.Context, name string) error {
	return c.do(ctx, "DELETE", "/instance/delete/"+name, nil, nil, "delete_instance")
}

// GetStatus fetches the instance's live connection state. This is always a
// remote call; callers must not substitute a cached value.
func (c *Client) GetStatus(ctx context.Context, name string) (*InstanceStatusResponse, error) {
	var resp InstanceStatusResponse
	if err := c.do(ctx, "GET", "/instance/connectionState/"+name, nil, &resp, "get_status"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetQRCode fetches a fresh QR pairing payload for the instance.
func (c *Client) GetQRCode(ctx context.Context, name string) (*QRCodeResponse, error) {
	var resp QRCodeResponse
	if err := c.do(ctx, "GET", "/instance/connect/"+name, nil, &resp, "get_qr_code"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendMessage delivers a text message through the instance and returns the
// provider message id.
func (c *Client) SendMessage(ctx context.Context, name, phone, text string) (*SendMessageResponse, error) {
	payload := map[string]any{
		"number": phone,
		"text":   text,
	}
	var resp SendMessageResponse
	if err := c.do(ctx, "POST", "/message/sendText/"+name, payload, &resp, "send_message"); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SetWebhook registers the callback URL for instance events.
func (c *Client) SetWebhook(ctx context.Context, name, url string) error {
	payload := map[string]any{
		"url":     url,
		"enabled": url != "",
	}
	return c.do(ctx, "POST", "/webhook/set/"+name, payload, nil, "set_webhook")
}

// do executes a provider request and decodes the response into out when
// provided.
func (c *Client) do(ctx context.Context, method, path string, payload any, out any, op string) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal %s request: %w", op, err)
		}
		body = bytes.NewBuffer(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", op, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("apikey", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute %s request: %w", op, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errResp := ErrorResponse{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			errResp.Message = string(bodyBytes)
		}
		if errResp.StatusCode == 0 {
			errResp.StatusCode = resp.StatusCode
		}
		log.Printf("level=warn component=wa_client op=%s status=%d msg=%q", op, resp.StatusCode, errResp.Message)
		return &errResp
	}

	if out != nil {
		if err := json.Unmarshal(bodyBytes, out); err != nil {
			return fmt.Errorf("failed to decode %s response: %w", op, err)
		}
	}
	return nil
}
