// Package openrouter is a minimal chat-completions client for the OpenRouter API
package openrouter

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
)

const defaultBaseURL = "https://openrouter.ai/api/v1"

// Message is one chat turn
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client calls the chat completions endpoint
type Client struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *retryablehttp.Client
}

// NewClient creates a new OpenRouter client
func NewClient(apiKey, model string) *Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 2
	rc.HTTPClient.Timeout = 60 * time.Second
	rc.Logger = nil

	return &Client{
		apiKey:     apiKey,
		model:      model,
		baseURL:    defaultBaseURL,
		httpClient: rc,
	}
}

// WithBaseURL points the client at another endpoint, used by tests
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// Enabled reports whether an API key is configured
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Complete sends the conversation and returns the first choice's text
func (c *Client) Complete(ctx context.Context, temperature float64, messages ...Message) (string, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"model":       c.model,
		"messages":    messages,
		"temperature": temperature,
	})
	if err != nil {
		return "", errors.Wrap(err, "failed to marshal request")
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", errors.Wrap(err, "failed to create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Title", "PH Biling")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "failed to send request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.Wrap(err, "failed to read response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", errors.Newf("openrouter api error (status %d): %s", resp.StatusCode, string(body))
	}

	var apiResponse struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Error *struct {
			Message string `json:"message"`
			Code    int    `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &apiResponse); err != nil {
		return "", errors.Wrap(err, "failed to parse response")
	}
	if apiResponse.Error != nil {
		return "", errors.Newf("openrouter error: %s (code: %d)", apiResponse.Error.Message, apiResponse.Error.Code)
	}
	if len(apiResponse.Choices) == 0 {
		return "", errors.New("no response from AI model")
	}
	return strings.TrimSpace(apiResponse.Choices[0].Message.Content), nil
}
