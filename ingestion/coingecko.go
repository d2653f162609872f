// Package ingestion fetches price and sentiment data from the external APIs
// and lands the raw payloads in the landing zone. Clients validate the
// minimal schema before landing so obviously broken responses never reach
// the warehouse.
package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// PriceClient fetches market snapshots from the CoinGecko API.
type PriceClient struct {
	baseURL    string
	numCoins   int
	vsCurrency string
	maxRetries int
	httpClient *http.Client
	logger     *zap.Logger
}

// PriceClientOptions configures a PriceClient.
type PriceClientOptions struct {
	BaseURL    string
	NumCoins   int
	VsCurrency string
	Timeout    time.Duration
	MaxRetries int
}

// NewPriceClient creates a CoinGecko client.
func NewPriceClient(opts PriceClientOptions, logger *zap.Logger) *PriceClient {
	if opts.NumCoins == 0 {
		opts.NumCoins = 50
	}
	if opts.VsCurrency == "" {
		opts.VsCurrency = "usd"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	return &PriceClient{
		baseURL:    opts.BaseURL,
		numCoins:   opts.NumCoins,
		vsCurrency: opts.VsCurrency,
		maxRetries: opts.MaxRetries,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger,
	}
}

// FetchMarkets fetches the top coins by market cap. It returns the decoded
// records for validation plus the raw JSON array exactly as the API sent it,
// which is what gets landed.
func (c *PriceClient) FetchMarkets(ctx context.Context) ([]RawPriceRecord, json.RawMessage, error) {
	params := url.Values{}
	params.Set("vs_currency", c.vsCurrency)
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(c.numCoins))
	params.Set("page", "1")
	params.Set("sparkline", "false")
	params.Set("price_change_percentage", "24h")

	endpoint := c.baseURL + "/coins/markets?" + params.Encode()

	c.logger.Info("fetching coins from CoinGecko",
		zap.Int("num_coins", c.numCoins),
		zap.String("vs_currency", c.vsCurrency))

	body, err := fetchWithRetry(ctx, c.httpClient, endpoint, c.maxRetries, c.logger)
	if err != nil {
		return nil, nil, err
	}

	var records []RawPriceRecord
	if err := json.Unmarshal(body, &records); err != nil {
		return nil, nil, fmt.Errorf("failed to parse CoinGecko response: %w", err)
	}

	if err := validatePrices(records); err != nil {
		return nil, nil, err
	}

	c.logger.Info("successfully fetched coins", zap.Int("count", len(records)))
	return records, body, nil
}

// validatePrices performs the minimal schema check: a non-empty list whose
// first record carries the fields everything downstream keys on.
func validatePrices(records []RawPriceRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("price response is empty")
	}
	first := records[0]
	if first.ID == "" || first.Symbol == "" || first.Name == "" {
		return fmt.Errorf("price response missing required identity fields")
	}
	if first.CurrentPrice == nil || first.MarketCap == nil {
		return fmt.Errorf("price response missing required market fields")
	}
	return nil
}

// fetchWithRetry issues a GET with bounded retries and exponential backoff.
// Retries apply to transport errors and 5xx/429 responses only.
func fetchWithRetry(ctx context.Context, client *http.Client, endpoint string, maxRetries int, logger *zap.Logger) ([]byte, error) {
	var lastErr error
	backoff := time.Second

	for attempt := 1; attempt <= maxRetries; attempt++ {
		body, retryable, err := fetchOnce(ctx, client, endpoint)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if !retryable || attempt == maxRetries {
			break
		}

		logger.Warn("fetch failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err))

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", maxRetries, lastErr)
}

func fetchOnce(ctx context.Context, client *http.Client, endpoint string) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, true, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		return nil, retryable, fmt.Errorf("unexpected status %s", resp.Status)
	}

	body, err = io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response body: %w", err)
	}
	return body, false, nil
}
