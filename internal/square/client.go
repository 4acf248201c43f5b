// Package square is a small client for the subset of the Square REST API the
// billing flows use: customers, cards, catalog plans, subscriptions, payments
// and orders.
package square

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
)

const defaultTimeout = 15 * time.Second

type Config struct {
	BaseURL     string
	AccessToken string
	Version     string
	LocationID  string
	Timeout     time.Duration
}

type Client struct {
	baseURL    string
	token      string
	version    string
	locationID string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.AccessToken,
		version:    cfg.Version,
		locationID: cfg.LocationID,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With("component", "square_client"),
	}
}

func (c *Client) LocationID() string {
	return c.locationID
}

type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// post sends payload to path and decodes a 2xx body into out. Non-2xx
// responses come back as *APIError.
func (c *Client) post(ctx context.Context, op, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("square %s: encode request: %w", op, err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("square %s: build request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Square-Version", c.version)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("square %s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("square %s: read response: %w", op, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := decodeAPIError(resp.StatusCode, raw)
		c.logger.Warn("square request failed",
			"op", op,
			"status", resp.StatusCode,
			"code", apiErr.Code(),
			"detail", apiErr.Detail(),
		)
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("square %s: decode response: %w", op, err)
	}
	return nil
}
