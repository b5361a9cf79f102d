package ephemeris

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/admin/astro-apps/timeline-api/internal/domain"
)

const (
	endpointPositions = "data/positions"
)

// truncateString обрезает строку до указанной длины
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// Client клиент оракула эфемерид: отдаёт эклиптические долготы планет
// на заданный момент времени
type Client struct {
	cfg        *Config
	HTTPClient *http.Client
	Log        *slog.Logger
}

// NewClient создаёт новый клиент оракула эфемерид
func NewClient(cfg *Config, log *slog.Logger) *Client {
	transport := &http.Transport{}

	if cfg.ShouldSkipSSL() {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	return &Client{
		cfg: cfg,
		HTTPClient: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		Log: log,
	}
}

// buildURL собирает полный URL из BaseURL, ApiVersion и endpoint
func (c *Client) buildURL(endpoint string) string {
	baseURL := strings.TrimSuffix(c.cfg.BaseURL, "/")
	return baseURL + "/" + path.Join(c.cfg.ApiVersion, endpoint)
}

// setHeaders устанавливает стандартные заголовки для запросов к API
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.ApiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.ApiKey)
	}
}

// GetLongitudes запрашивает долготы планет на момент времени
func (c *Client) GetLongitudes(ctx context.Context, planets []domain.Planet, instant time.Time) (map[domain.Planet]float64, error) {
	req := PositionsRequest{
		Datetime: instant.UTC().Format(time.RFC3339),
		Planets:  make([]string, 0, len(planets)),
	}
	for _, p := range planets {
		req.Planets = append(req.Planets, string(p))
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal positions request: %w", err)
	}

	url := c.buildURL(endpointPositions)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create positions request: %w", err)
	}

	c.setHeaders(httpReq)

	resp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to execute positions request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read positions response: %w", err)
	}

	rawJSON := string(body)

	if resp.StatusCode != http.StatusOK {
		c.Log.Debug("ephemeris API returned non-200 status",
			"status_code", resp.StatusCode,
			"body_preview", truncateString(rawJSON, 200),
		)
		return nil, fmt.Errorf("ephemeris API error [status=%d]: %s", resp.StatusCode, truncateString(rawJSON, 500))
	}

	var posResp PositionsResponse
	if err := json.Unmarshal(body, &posResp); err != nil {
		c.Log.Debug("failed to unmarshal ephemeris response",
			"error", err,
			"status_code", resp.StatusCode,
			"body_preview", truncateString(rawJSON, 200),
		)
		return nil, fmt.Errorf("ephemeris API unmarshal failed [status=%d]: %w", resp.StatusCode, err)
	}

	result := make(map[domain.Planet]float64, len(posResp.Positions))
	for _, pos := range posResp.Positions {
		planet := domain.Planet(pos.Planet)
		if !planet.IsValid() {
			c.Log.Debug("ephemeris API returned unknown planet", "planet", pos.Planet)
			continue
		}
		result[planet] = domain.NormalizeLongitude(pos.Longitude)
	}

	for _, p := range planets {
		if _, ok := result[p]; !ok {
			return nil, fmt.Errorf("ephemeris API response is missing planet %s", p)
		}
	}

	return result, nil
}

// GetLongitude запрашивает долготу одной планеты на момент времени
func (c *Client) GetLongitude(ctx context.Context, planet domain.Planet, instant time.Time) (float64, error) {
	positions, err := c.GetLongitudes(ctx, []domain.Planet{planet}, instant)
	if err != nil {
		return 0, err
	}
	return positions[planet], nil
}
