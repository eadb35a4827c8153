// Package feed fetches market snapshots from the external price feed.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"log/slog"

	"github.com/m3rciful/pricebot/core/logger"
)

const (
	defaultTimeout = 10 * time.Second
	apiKeyHeader   = "x-api-key"
)

// Entry is one market row from the snapshot. Price is nil when the feed has
// no quote for the symbol; such entries are skipped by the ingestion job.
type Entry struct {
	Symbol        string
	BaseAsset     string
	EnglishName   string
	LocalizedName string
	Price         *decimal.Decimal
	Change24h     string
	Volume24h     string
}

// Client issues a single GET per tick against the market-snapshot endpoint.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Config carries feed endpoint settings.
type Config struct {
	BaseURL        string `yaml:"base_url" envconfig:"FEED_BASE_URL"`
	APIKey         string `yaml:"api_key" envconfig:"FEED_API_KEY"`
	TimeoutSeconds int    `yaml:"timeout_seconds" envconfig:"FEED_TIMEOUT_SECONDS"`
}

// NewClient builds a feed client with a bounded request timeout.
func NewClient(cfg Config) *Client {
	timeout := defaultTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type marketsResponse struct {
	Result struct {
		Markets []marketRow `json:"markets"`
	} `json:"result"`
}

type marketRow struct {
	Symbol      string           `json:"symbol"`
	BaseAsset   string           `json:"base_asset"`
	EnBaseAsset string           `json:"en_base_asset"`
	FaBaseAsset string           `json:"fa_base_asset"`
	Price       *decimal.Decimal `json:"price"`
	Change24h   json.RawMessage  `json:"change_24h"`
	Volume24h   json.RawMessage  `json:"volume_24h"`
}

// Snapshot fetches the full market list. Any transport failure or non-2xx
// status is returned as an error and aborts the caller's tick; nothing is
// retried here.
func (c *Client) Snapshot(ctx context.Context) ([]Entry, error) {
	url := c.baseURL + "/markets"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: build request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set(apiKeyHeader, c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: fetch markets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("feed: unexpected status %s", resp.Status)
	}

	var payload marketsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("feed: decode markets: %w", err)
	}

	entries := make([]Entry, 0, len(payload.Result.Markets))
	for _, row := range payload.Result.Markets {
		e := Entry{
			Symbol:        row.BaseAsset,
			BaseAsset:     row.BaseAsset,
			EnglishName:   row.EnBaseAsset,
			LocalizedName: row.FaBaseAsset,
			Change24h:     rawString(row.Change24h),
			Volume24h:     rawString(row.Volume24h),
		}
		if e.Symbol == "" {
			e.Symbol = row.Symbol
		}
		e.Price = row.Price
		entries = append(entries, e)
	}

	logger.FEED.Debug("snapshot fetched",
		slog.String("event", "feed.snapshot"),
		slog.Int("count", len(entries)),
		slog.Duration("duration", logger.RoundMS(time.Since(start))),
	)
	return entries, nil
}

// rawString renders a JSON scalar as its plain-text form. The feed is loose
// about whether change/volume arrive as numbers or strings.
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
