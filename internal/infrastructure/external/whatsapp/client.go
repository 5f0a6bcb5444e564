// Package whatsapp implements outbound parent notifications through the
// WhatsApp Cloud API. Delivery is strictly best-effort: a failure here
// never affects quiz-set creation.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kidsbank/quizhub/internal/domain/shared"
	"github.com/kidsbank/quizhub/pkg/circuitbreaker"
	"github.com/kidsbank/quizhub/pkg/retry"
)

// ClientConfig contains configuration for the WhatsApp client.
type ClientConfig struct {
	// Token is the Cloud API bearer token.
	Token string

	// PhoneNumberID is the sending business phone number ID.
	PhoneNumberID string

	// BaseURL is the Graph API base URL.
	BaseURL string

	// APIVersion is the Graph API version segment.
	APIVersion string

	// Timeout is the HTTP request timeout.
	Timeout time.Duration

	// Logger for structured logging.
	Logger *slog.Logger
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig(token, phoneNumberID string) ClientConfig {
	return ClientConfig{
		Token:         token,
		PhoneNumberID: phoneNumberID,
		BaseURL:       "https://graph.facebook.com",
		APIVersion:    "v21.0",
		Timeout:       15 * time.Second,
	}
}

// Client is the WhatsApp Cloud API client. A circuit breaker guards the
// endpoint so a daily batch doesn't hammer a failing API once per child.
type Client struct {
	config     ClientConfig
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
	retrier    *retry.Retrier
	logger     *slog.Logger
}

// NewClient creates a new WhatsApp client.
func NewClient(config ClientConfig) *Client {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.BaseURL == "" {
		config.BaseURL = "https://graph.facebook.com"
	}
	if config.APIVersion == "" {
		config.APIVersion = "v21.0"
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	logger := config.Logger.With("component", "whatsapp")

	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		breaker: circuitbreaker.WhatsAppBreaker(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
		}),
		retrier: retry.WhatsAppRetrier(),
		logger:  logger,
	}
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("whatsapp api error %d (%s): %s", e.Code, e.Type, e.Message)
}

// Send delivers a text message to the given phone number. Transient HTTP
// failures are retried; an open breaker fails immediately. All failures
// wrap shared.ErrNotification.
func (c *Client) Send(ctx context.Context, phone, body string) error {
	if strings.TrimSpace(phone) == "" {
		return shared.WrapError("notification", "Send", shared.ErrEmptyValue, "recipient phone is empty", nil)
	}
	if strings.TrimSpace(body) == "" {
		return shared.WrapError("notification", "Send", shared.ErrEmptyValue, "message body is empty", nil)
	}

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.retrier.Do(ctx, func(ctx context.Context) error {
			return c.sendOnce(ctx, phone, body)
		})
	})
	if err != nil {
		return shared.WrapError("notification", "Send", shared.ErrNotification, "whatsapp delivery failed", err)
	}

	c.logger.Debug("message delivered", "to", maskPhone(phone))
	return nil
}

func (c *Client) sendOnce(ctx context.Context, phone, body string) error {
	payload, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               phone,
		Type:             "text",
		Text:             sendText{Body: body},
	})
	if err != nil {
		return retry.Permanent(fmt.Errorf("encode request: %w", err))
	}

	url := fmt.Sprintf("%s/%s/%s/messages", c.config.BaseURL, c.config.APIVersion, c.config.PhoneNumberID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return retry.Permanent(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return retry.Retryable(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return retry.Retryable(fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, respBody))
	}
	if resp.StatusCode != http.StatusOK {
		var parsed sendResponse
		if jsonErr := json.Unmarshal(respBody, &parsed); jsonErr == nil && parsed.Error != nil {
			return retry.Permanent(parsed.Error)
		}
		return retry.Permanent(fmt.Errorf("whatsapp api status %d: %s", resp.StatusCode, respBody))
	}

	return nil
}

// maskPhone hides all but the last four digits in logs.
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
