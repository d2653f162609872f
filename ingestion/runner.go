package ingestion

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/landing"
)

// Runner executes the ingestion jobs in sequence and lands their payloads.
type Runner struct {
	prices    *PriceClient
	sentiment *SentimentClient
	store     landing.Store
	logger    *zap.Logger
}

// RunResult reports the outcome of one full ingestion pass.
type RunResult struct {
	RunID          string
	PricesLanded   bool
	PricesPath     string
	SentimentOK    bool
	SentimentPath  string
	Duration       time.Duration
}

// Success reports whether every job landed its payload.
func (r RunResult) Success() bool {
	return r.PricesLanded && r.SentimentOK
}

// NewRunner creates an ingestion runner.
func NewRunner(prices *PriceClient, sentiment *SentimentClient, store landing.Store, logger *zap.Logger) *Runner {
	return &Runner{prices: prices, sentiment: sentiment, store: store, logger: logger}
}

// RunAll runs price then sentiment ingestion. One job failing does not stop
// the other; the result records per-job outcomes so the caller can exit
// non-zero when anything failed.
func (r *Runner) RunAll(ctx context.Context) RunResult {
	start := time.Now()
	result := RunResult{RunID: uuid.NewString()}

	r.logger.Info("starting full ingestion pass", zap.String("run_id", result.RunID))

	if path, err := r.ingestPrices(ctx, result.RunID); err != nil {
		r.logger.Error("price ingestion failed", zap.Error(err))
	} else {
		result.PricesLanded = true
		result.PricesPath = path
	}

	if path, err := r.ingestSentiment(ctx, result.RunID); err != nil {
		r.logger.Error("sentiment ingestion failed", zap.Error(err))
	} else {
		result.SentimentOK = true
		result.SentimentPath = path
	}

	result.Duration = time.Since(start)
	r.logger.Info("ingestion pass complete",
		zap.Bool("prices", result.PricesLanded),
		zap.Bool("sentiment", result.SentimentOK),
		zap.Duration("duration", result.Duration))

	return result
}

func (r *Runner) ingestPrices(ctx context.Context, runID string) (string, error) {
	records, raw, err := r.prices.FetchMarkets(ctx)
	if err != nil {
		return "", err
	}

	path, err := r.store.Write(ctx, landing.Envelope{
		RunID:          runID,
		FetchTimestamp: time.Now().UTC(),
		Source:         SourcePrices,
		NumRecords:     len(records),
		Data:           raw,
	})
	if err != nil {
		return "", err
	}

	r.logger.Info("landed price payload",
		zap.String("path", path),
		zap.Int("records", len(records)))
	return path, nil
}

func (r *Runner) ingestSentiment(ctx context.Context, runID string) (string, error) {
	records, raw, err := r.sentiment.FetchIndex(ctx, 1)
	if err != nil {
		return "", err
	}

	path, err := r.store.Write(ctx, landing.Envelope{
		RunID:          runID,
		FetchTimestamp: time.Now().UTC(),
		Source:         SourceSentiment,
		NumRecords:     len(records),
		Data:           raw,
	})
	if err != nil {
		return "", err
	}

	r.logger.Info("landed sentiment payload",
		zap.String("path", path),
		zap.Int("records", len(records)))
	return path, nil
}
