package synthesizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/ports/service"
)

const (
	endpointActions      = "actions/synthesize"
	endpointAffirmations = "affirmations/generate"
)

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Client клиент генеративного текстового сервиса.
// Недетерминирован и может таймаутить; ретраи — ответственность вызывающей стороны.
type Client struct {
	cfg        *Config
	HTTPClient *http.Client
	Log        *slog.Logger
}

// NewClient создаёт новый клиент текстового сервиса
func NewClient(cfg *Config, log *slog.Logger) *Client {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &Client{
		cfg: cfg,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		Log: log,
	}
}

func (c *Client) buildURL(endpoint string) string {
	baseURL := strings.TrimSuffix(c.cfg.BaseURL, "/")
	return baseURL + "/" + path.Join(c.cfg.ApiVersion, endpoint)
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)
	}
}

// post выполняет POST-запрос и возвращает тело успешного ответа
func (c *Client) post(ctx context.Context, endpoint string, payload interface{}) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := c.buildURL(endpoint)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	c.setHeaders(httpReq)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.Log.Debug("synthesizer API returned non-200 status",
			"endpoint", endpoint,
			"status_code", resp.StatusCode,
			"body_preview", truncateString(string(body), 200),
		)
		return nil, fmt.Errorf("synthesizer API error [status=%d]: %s", resp.StatusCode, truncateString(string(body), 500))
	}

	return body, nil
}

// SynthesizeAction генерирует текст действия под конкретный транзит
func (c *Client) SynthesizeAction(ctx context.Context, req service.SynthesisRequest) (*service.SynthesisResult, error) {
	payload := ActionRequest{
		Goal:           req.Goal,
		Context:        req.Context,
		Approach:       req.Approach,
		Date:           req.Date.Format("2006-01-02"),
		TransitSummary: req.TransitSummary,
	}

	body, err := c.post(ctx, endpointActions, payload)
	if err != nil {
		return nil, err
	}

	var actionResp ActionResponse
	if err := json.Unmarshal(body, &actionResp); err != nil {
		return nil, fmt.Errorf("synthesizer action unmarshal failed: %w", err)
	}

	if actionResp.ActionText == "" {
		return nil, fmt.Errorf("synthesizer returned empty action text")
	}

	return &service.SynthesisResult{
		ActionText:    actionResp.ActionText,
		StrategyText:  actionResp.StrategyText,
		ResourceLinks: actionResp.ResourceLinks,
	}, nil
}

// GenerateAffirmations генерирует пул аффирмаций под цель пользователя
func (c *Client) GenerateAffirmations(ctx context.Context, goal string, count int) ([]string, error) {
	payload := AffirmationsRequest{
		Goal:  goal,
		Count: count,
	}

	body, err := c.post(ctx, endpointAffirmations, payload)
	if err != nil {
		return nil, err
	}

	var affResp AffirmationsResponse
	if err := json.Unmarshal(body, &affResp); err != nil {
		return nil, fmt.Errorf("synthesizer affirmations unmarshal failed: %w", err)
	}

	if len(affResp.Affirmations) == 0 {
		return nil, fmt.Errorf("synthesizer returned empty affirmation pool")
	}

	return affResp.Affirmations, nil
}
