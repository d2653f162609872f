package ingestion

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"
)

// SentimentClient fetches Fear & Greed Index readings from alternative.me.
type SentimentClient struct {
	baseURL    string
	maxRetries int
	httpClient *http.Client
	logger     *zap.Logger
}

// SentimentClientOptions configures a SentimentClient.
type SentimentClientOptions struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
}

// NewSentimentClient creates a Fear & Greed Index client.
func NewSentimentClient(opts SentimentClientOptions, logger *zap.Logger) *SentimentClient {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 3
	}
	return &SentimentClient{
		baseURL:    opts.BaseURL,
		maxRetries: opts.MaxRetries,
		httpClient: &http.Client{Timeout: opts.Timeout},
		logger:     logger,
	}
}

// fngResponse is the wire shape of the /fng/ endpoint.
type fngResponse struct {
	Name string               `json:"name"`
	Data []RawSentimentRecord `json:"data"`
}

// FetchIndex fetches sentiment readings. limit <= 1 fetches the current
// value only. The returned raw JSON is the data array, not the full
// response wrapper, matching what the staging loader expects per record.
func (c *SentimentClient) FetchIndex(ctx context.Context, limit int) ([]RawSentimentRecord, json.RawMessage, error) {
	endpoint := c.baseURL + "/fng/"
	if limit > 1 {
		endpoint += "?limit=" + strconv.Itoa(limit)
	}

	c.logger.Info("fetching Fear & Greed Index", zap.Int("limit", limit))

	body, err := fetchWithRetry(ctx, c.httpClient, endpoint, c.maxRetries, c.logger)
	if err != nil {
		return nil, nil, err
	}

	var resp fngResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, nil, fmt.Errorf("failed to parse sentiment response: %w", err)
	}

	if err := validateSentiment(resp.Data); err != nil {
		return nil, nil, err
	}

	raw, err := json.Marshal(resp.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to re-encode sentiment records: %w", err)
	}

	c.logger.Info("successfully fetched sentiment records", zap.Int("count", len(resp.Data)))
	return resp.Data, raw, nil
}

func validateSentiment(records []RawSentimentRecord) error {
	if len(records) == 0 {
		return fmt.Errorf("no data in sentiment response")
	}
	first := records[0]
	if first.Value == "" || first.ValueClassification == "" || first.Timestamp == "" {
		return fmt.Errorf("sentiment response missing required fields")
	}
	if _, err := strconv.Atoi(first.Value); err != nil {
		return fmt.Errorf("sentiment value is not numeric: %q", first.Value)
	}
	return nil
}
