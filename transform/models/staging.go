package models

import (
	"context"
	"database/sql"
	"fmt"
)

// StagingModels builds the cleaned staging tables. Both are full refresh,
// recomputed from the raw staging tables every run. No deduplication happens
// here: duplicate fetches pass through and are resolved by the fact builders.
type StagingModels struct {
	db            *sql.DB
	stagingSchema string
}

// NewStagingModels creates the staging model builder.
func NewStagingModels(db *sql.DB, stagingSchema string) *StagingModels {
	return &StagingModels{db: db, stagingSchema: stagingSchema}
}

// BuildPrices rebuilds stg_prices: rows with a usable price and identity,
// timestamps already coerced by the loader.
func (m *StagingModels) BuildPrices(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE OR REPLACE TABLE %s.stg_prices AS
		SELECT
			fetch_timestamp,
			source,
			coin_id,
			symbol,
			name,
			current_price,
			market_cap,
			market_cap_rank,
			total_volume,
			high_24h,
			low_24h,
			price_change_24h,
			price_change_percentage_24h,
			market_cap_change_24h,
			circulating_supply,
			total_supply,
			max_supply,
			last_updated,
			loaded_at
		FROM %s.stg_prices_raw
		WHERE current_price IS NOT NULL
		  AND coin_id IS NOT NULL
		  AND fetch_timestamp IS NOT NULL
	`, m.stagingSchema, m.stagingSchema)

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to build stg_prices: %w", err)
	}
	return nil
}

// BuildSentiment rebuilds stg_sentiment: rows with a usable value.
func (m *StagingModels) BuildSentiment(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE OR REPLACE TABLE %s.stg_sentiment AS
		SELECT
			fetch_timestamp,
			source,
			value,
			value_classification,
			timestamp,
			loaded_at
		FROM %s.stg_sentiment_raw
		WHERE value IS NOT NULL
		  AND fetch_timestamp IS NOT NULL
	`, m.stagingSchema, m.stagingSchema)

	if _, err := m.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to build stg_sentiment: %w", err)
	}
	return nil
}
