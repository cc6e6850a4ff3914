// Package whatsapp is a client for an HTTP WhatsApp message gateway
// (Meta Cloud API relays such as Fonnte or Wablas expose the same shape).
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-retryablehttp"
	"github.com/phbiling/isp-billing/internal/logger"
	"go.uber.org/zap"
)

const sendEndpoint = "/api/v1/messages"

// Config holds gateway configuration
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// RetryMax is the number of retries after the first attempt
	RetryMax int
}

// Client is the WhatsApp gateway API client
type Client struct {
	config     Config
	httpClient *retryablehttp.Client
}

// SendRequest is the gateway request body
type SendRequest struct {
	To      string `json:"to"`
	Type    string `json:"type"`
	Message string `json:"message"`
}

// SendResponse is the gateway reply for an accepted message
type SendResponse struct {
	Status    bool   `json:"status"`
	MessageID string `json:"message_id"`
	Detail    string `json:"detail"`
}

// NewClient creates a new gateway client. 5xx and transport errors are retried
// with exponential backoff; 4xx answers are returned immediately.
func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.RetryMax == 0 {
		cfg.RetryMax = 3
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	rc := retryablehttp.NewClient()
	rc.RetryMax = cfg.RetryMax
	rc.RetryWaitMin = 500 * time.Millisecond
	rc.RetryWaitMax = 5 * time.Second
	rc.HTTPClient.Timeout = cfg.Timeout
	rc.Logger = nil

	return &Client{config: cfg, httpClient: rc}
}

// NormalizePhone converts local numbers (08xx) to the international form (628xx)
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "0") {
		return "62" + digits[1:]
	}
	return digits
}

// SendText delivers a plain text message
func (c *Client) SendText(ctx context.Context, phone, message string) (*SendResponse, error) {
	to := NormalizePhone(phone)
	if to == "" {
		return nil, errors.New("recipient phone number is empty")
	}

	body, err := json.Marshal(SendRequest{To: to, Type: "text", Message: message})
	if err != nil {
		return nil, errors.Wrap(err, "failed to marshal request")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+sendEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	log := logger.FromContext(ctx).With(zap.String("to", to))
	log.Debug("sending whatsapp message")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "failed to execute request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response")
	}

	if resp.StatusCode >= http.StatusBadRequest {
		log.Warn("whatsapp gateway rejected message", zap.Int("status", resp.StatusCode))
		return nil, errors.Newf("whatsapp gateway error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var out SendResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, errors.Wrap(err, "failed to parse response")
	}
	if !out.Status {
		return nil, errors.Newf("whatsapp gateway refused message: %s", out.Detail)
	}
	return &out, nil
}
