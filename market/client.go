// Package market provides a minimal client for a Binance-compatible
// market-data REST API. Only the 24-hour rolling window statistics endpoint
// is wrapped; numeric fields are delivered as strings and parsing is left to
// the caller.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the public Binance REST endpoint.
const DefaultBaseURL = "https://api.binance.com"

// Client fetches market statistics over HTTP. No authentication is required
// for the public statistics endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURL overrides the API base URL. Useful for tests and mirrors.
func WithBaseURL(u string) ClientOption {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a market-data client for the public API.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: slog.Default(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Stats24h holds the 24-hour rolling window statistics for one symbol.
// All numeric fields arrive as decimal strings; fields the upstream API
// returns beyond these are ignored.
type Stats24h struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChange        string `json:"priceChange"`
	PriceChangePercent string `json:"priceChangePercent"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	Volume             string `json:"volume"`
}

// APIError represents a non-success response from the market-data API.
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market api error %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Stats24h fetches the 24-hour statistics for the given symbol.
func (c *Client) Stats24h(ctx context.Context, symbol string) (Stats24h, error) {
	query := url.Values{"symbol": {symbol}}
	fullURL := c.baseURL + "/api/v3/ticker/24hr?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return Stats24h{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Stats24h{}, fmt.Errorf("fetch 24hr stats: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Stats24h{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Debug("Market API returned non-success status",
			"symbol", symbol,
			"status", resp.StatusCode,
		)
		return Stats24h{}, &APIError{StatusCode: resp.StatusCode, Body: body}
	}

	var stats Stats24h
	if err := json.Unmarshal(body, &stats); err != nil {
		return Stats24h{}, fmt.Errorf("decode 24hr stats: %w", err)
	}

	return stats, nil
}
