package alerter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"log/slog"
)

// Client клиент для отправки операционных алертов в webhook (Slack-совместимый)
type Client struct {
	cfg        *Config
	httpClient *http.Client
	log        *slog.Logger
}

// NewClient создаёт новый клиент для отправки алертов
func NewClient(cfg *Config, log *slog.Logger) *Client {
	if cfg == nil {
		return nil
	}

	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

type alertPayload struct {
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

// SendAlert отправляет алерт в настроенный webhook
func (c *Client) SendAlert(ctx context.Context, message string) error {
	if c == nil || c.cfg.WebhookURL == "" {
		return fmt.Errorf("alerter client is not initialized")
	}

	payload := alertPayload{
		Text:    message,
		Channel: c.cfg.Channel,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.WebhookURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create alert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("failed to send alert", "error", err)
		return fmt.Errorf("failed to send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("alert webhook returned status %d: %s", resp.StatusCode, string(body))
	}

	c.log.Debug("alert sent successfully", "channel", c.cfg.Channel)

	return nil
}
