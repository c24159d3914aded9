// Package notify delivers automation notifications to an external webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// Sender delivers a notification message to a set of recipients.
type Sender interface {
	Send(ctx context.Context, message string, recipients []string) error
}

// payload is the JSON document posted to the webhook.
type payload struct {
	Message    string   `json:"message"`
	Recipients []string `json:"recipients"`
}

// WebhookSender posts notifications to a configured HTTP endpoint.
type WebhookSender struct {
	url    string
	client *http.Client
}

// NewWebhookSender creates a WebhookSender. The timeout bounds the whole
// request including connection setup.
func NewWebhookSender(url string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the notification. Any non-2xx response is a delivery failure.
func (s *WebhookSender) Send(ctx context.Context, message string, recipients []string) error {
	body, err := json.Marshal(payload{Message: message, Recipients: recipients})
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notification request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("post notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post notification: unexpected status %d", resp.StatusCode)
	}

	return nil
}

// LogSender logs notifications instead of delivering them. Used when no
// webhook is configured.
type LogSender struct{}

// Send logs the notification and reports success.
func (LogSender) Send(_ context.Context, message string, recipients []string) error {
	slog.Info("notification (no webhook configured)",
		"message", message,
		"recipients", recipients,
	)
	return nil
}
