package warehouse

import (
	"context"
	"fmt"
)

// InitSchema creates every pipeline table that is not rebuilt from scratch
// each run. Tables the transform layer recreates with CREATE OR REPLACE
// (stg_prices, stg_sentiment, dim_timestamp) are intentionally absent.
func (c *Client) InitSchema(ctx context.Context) error {
	statements := []struct {
		name string
		ddl  string
	}{
		{"stg_prices_raw", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				fetch_timestamp TIMESTAMP,
				source VARCHAR,
				coin_id VARCHAR,
				symbol VARCHAR,
				name VARCHAR,
				current_price DOUBLE,
				market_cap DOUBLE,
				market_cap_rank INTEGER,
				total_volume DOUBLE,
				high_24h DOUBLE,
				low_24h DOUBLE,
				price_change_24h DOUBLE,
				price_change_percentage_24h DOUBLE,
				market_cap_change_24h DOUBLE,
				circulating_supply DOUBLE,
				total_supply DOUBLE,
				max_supply DOUBLE,
				last_updated TIMESTAMP,
				loaded_at TIMESTAMP NOT NULL
			)`, c.StagingRef("stg_prices_raw"))},

		{"stg_sentiment_raw", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				fetch_timestamp TIMESTAMP,
				source VARCHAR,
				value INTEGER,
				value_classification VARCHAR,
				timestamp TIMESTAMP,
				time_until_update BIGINT,
				loaded_at TIMESTAMP NOT NULL
			)`, c.StagingRef("stg_sentiment_raw"))},

		{"load_audit", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				object_path VARCHAR PRIMARY KEY,
				source VARCHAR NOT NULL,
				run_id VARCHAR,
				records_loaded INTEGER NOT NULL,
				loaded_at TIMESTAMP NOT NULL
			)`, c.StagingRef("load_audit"))},

		{"dim_coin", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				coin_key VARCHAR NOT NULL,
				coin_id VARCHAR NOT NULL,
				symbol VARCHAR,
				name VARCHAR,
				effective_date TIMESTAMP NOT NULL,
				expiry_date TIMESTAMP NOT NULL,
				is_current BOOLEAN NOT NULL
			)`, c.MartsRef("dim_coin"))},

		{"fact_price_snapshots", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				snapshot_id VARCHAR NOT NULL,
				coin_key VARCHAR NOT NULL,
				timestamp_key VARCHAR NOT NULL,
				current_price DOUBLE,
				market_cap DOUBLE,
				market_cap_rank INTEGER,
				total_volume DOUBLE,
				high_24h DOUBLE,
				low_24h DOUBLE,
				price_change_24h DOUBLE,
				price_change_percentage_24h DOUBLE,
				market_cap_change_24h DOUBLE,
				circulating_supply DOUBLE,
				total_supply DOUBLE,
				max_supply DOUBLE,
				data_source VARCHAR
			)`, c.MartsRef("fact_price_snapshots"))},

		{"fact_sentiment", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				sentiment_id VARCHAR NOT NULL,
				timestamp_key VARCHAR NOT NULL,
				sentiment_value INTEGER,
				sentiment_classification VARCHAR,
				data_source VARCHAR
			)`, c.MartsRef("fact_sentiment"))},

		{"transform_cursor", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				task_name VARCHAR PRIMARY KEY,
				position TIMESTAMP NOT NULL,
				key_version INTEGER NOT NULL,
				updated_at TIMESTAMP NOT NULL
			)`, c.MartsRef("transform_cursor"))},

		{"quality_check_results", fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id VARCHAR NOT NULL,
				check_name VARCHAR NOT NULL,
				check_type VARCHAR NOT NULL,
				table_name VARCHAR NOT NULL,
				subject VARCHAR,
				passed BOOLEAN NOT NULL,
				failing_rows BIGINT NOT NULL,
				details VARCHAR,
				created_at TIMESTAMP NOT NULL
			)`, c.MartsRef("quality_check_results"))},
	}

	for _, stmt := range statements {
		if _, err := c.DB.ExecContext(ctx, stmt.ddl); err != nil {
			return fmt.Errorf("failed to create table %s: %w", stmt.name, err)
		}
	}

	c.logger.Info("warehouse schema ready")
	return nil
}
