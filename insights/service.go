// Package insights serves read-side analytics over the dimensional model:
// top coins by market cap, price trends, and the latest market sentiment.
package insights

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Service runs the insight queries against the warehouse.
type Service struct {
	db          *sql.DB
	martsSchema string
	logger      *zap.Logger
}

// NewService creates an insights service.
func NewService(db *sql.DB, martsSchema string, logger *zap.Logger) *Service {
	return &Service{db: db, martsSchema: martsSchema, logger: logger}
}

// CoinSummary is one coin's latest market snapshot.
type CoinSummary struct {
	Name                     string   `json:"name"`
	Symbol                   string   `json:"symbol"`
	CurrentPrice             *float64 `json:"current_price"`
	MarketCap                *float64 `json:"market_cap"`
	PriceChangePercentage24h *float64 `json:"price_change_percentage_24h"`
}

// TrendPoint is one coin's price at one observed instant.
type TrendPoint struct {
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
	Price     *float64  `json:"price"`
}

// SentimentReading is one Fear & Greed Index observation.
type SentimentReading struct {
	Timestamp      time.Time `json:"timestamp"`
	Value          int       `json:"value"`
	Classification string    `json:"classification"`
}

// MarketOverview aggregates the latest snapshot across all coins.
type MarketOverview struct {
	SnapshotTime      time.Time         `json:"snapshot_time"`
	CoinCount         int               `json:"coin_count"`
	TotalMarketCap    float64           `json:"total_market_cap"`
	AvgChange24h      float64           `json:"avg_change_24h"`
	LatestSentiment   *SentimentReading `json:"latest_sentiment,omitempty"`
}

// TopCoinsByMarketCap returns the highest-capitalized coins at their latest
// observed snapshot.
func (s *Service) TopCoinsByMarketCap(ctx context.Context, limit int) ([]CoinSummary, error) {
	query := fmt.Sprintf(`
		WITH latest_prices AS (
			SELECT
				p.coin_key,
				p.current_price,
				p.market_cap,
				p.price_change_percentage_24h,
				ROW_NUMBER() OVER (PARTITION BY p.coin_key ORDER BY t.timestamp DESC) AS rn
			FROM %s.fact_price_snapshots p
			JOIN %s.dim_timestamp t ON p.timestamp_key = t.timestamp_key
		)
		SELECT c.name, c.symbol, p.current_price, p.market_cap, p.price_change_percentage_24h
		FROM latest_prices p
		JOIN %s.dim_coin c ON p.coin_key = c.coin_key AND c.is_current
		WHERE p.rn = 1
		ORDER BY p.market_cap DESC
		LIMIT ?
	`, s.martsSchema, s.martsSchema, s.martsSchema)

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top coins: %w", err)
	}
	defer rows.Close()

	var coins []CoinSummary
	for rows.Next() {
		var c CoinSummary
		if err := rows.Scan(&c.Name, &c.Symbol, &c.CurrentPrice, &c.MarketCap, &c.PriceChangePercentage24h); err != nil {
			return nil, fmt.Errorf("failed to scan coin summary: %w", err)
		}
		coins = append(coins, c)
	}
	return coins, rows.Err()
}

// PriceTrends returns the full price series for the top coins by market cap
// at the latest snapshot.
func (s *Service) PriceTrends(ctx context.Context, topN int) ([]TrendPoint, error) {
	query := fmt.Sprintf(`
		WITH latest_snapshot AS (
			SELECT MAX(timestamp_key) AS max_key FROM %s.fact_price_snapshots
		),
		top_coins AS (
			SELECT p.coin_key
			FROM %s.fact_price_snapshots p
			CROSS JOIN latest_snapshot l
			WHERE p.timestamp_key = l.max_key
			ORDER BY p.market_cap DESC
			LIMIT ?
		)
		SELECT c.name, t.timestamp, p.current_price
		FROM %s.fact_price_snapshots p
		JOIN %s.dim_coin c ON p.coin_key = c.coin_key AND c.is_current
		JOIN %s.dim_timestamp t ON p.timestamp_key = t.timestamp_key
		WHERE p.coin_key IN (SELECT coin_key FROM top_coins)
		ORDER BY t.timestamp, c.name
	`, s.martsSchema, s.martsSchema, s.martsSchema, s.martsSchema, s.martsSchema)

	rows, err := s.db.QueryContext(ctx, query, topN)
	if err != nil {
		return nil, fmt.Errorf("failed to query price trends: %w", err)
	}
	defer rows.Close()

	var points []TrendPoint
	for rows.Next() {
		var p TrendPoint
		if err := rows.Scan(&p.Name, &p.Timestamp, &p.Price); err != nil {
			return nil, fmt.Errorf("failed to scan trend point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// LatestSentiment returns the most recent Fear & Greed reading, or nil when
// no sentiment has been processed yet.
func (s *Service) LatestSentiment(ctx context.Context) (*SentimentReading, error) {
	query := fmt.Sprintf(`
		SELECT t.timestamp, f.sentiment_value, f.sentiment_classification
		FROM %s.fact_sentiment f
		JOIN %s.dim_timestamp t ON f.timestamp_key = t.timestamp_key
		ORDER BY t.timestamp DESC
		LIMIT 1
	`, s.martsSchema, s.martsSchema)

	var r SentimentReading
	err := s.db.QueryRowContext(ctx, query).Scan(&r.Timestamp, &r.Value, &r.Classification)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest sentiment: %w", err)
	}
	return &r, nil
}

// Overview aggregates the latest snapshot across all coins plus the latest
// sentiment reading.
func (s *Service) Overview(ctx context.Context) (*MarketOverview, error) {
	query := fmt.Sprintf(`
		WITH latest_snapshot AS (
			SELECT MAX(timestamp_key) AS max_key FROM %s.fact_price_snapshots
		)
		SELECT
			t.timestamp,
			COUNT(*),
			COALESCE(SUM(p.market_cap), 0),
			COALESCE(AVG(p.price_change_percentage_24h), 0)
		FROM %s.fact_price_snapshots p
		CROSS JOIN latest_snapshot l
		JOIN %s.dim_timestamp t ON p.timestamp_key = t.timestamp_key
		WHERE p.timestamp_key = l.max_key
		GROUP BY t.timestamp
	`, s.martsSchema, s.martsSchema, s.martsSchema)

	var o MarketOverview
	err := s.db.QueryRowContext(ctx, query).Scan(&o.SnapshotTime, &o.CoinCount, &o.TotalMarketCap, &o.AvgChange24h)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query market overview: %w", err)
	}

	sentiment, err := s.LatestSentiment(ctx)
	if err != nil {
		return nil, err
	}
	o.LatestSentiment = sentiment
	return &o, nil
}
