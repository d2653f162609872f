package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/keys"
)

// OpenExpiry is the expiry sentinel stamped on current dimension rows.
var OpenExpiry = time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)

// DimensionBuilder builds dim_timestamp (full refresh) and dim_coin
// (SCD Type 2: versions are inserted when tracked attributes change and the
// superseded row is closed out; nothing is ever deleted).
type DimensionBuilder struct {
	db            *sql.DB
	stagingSchema string
	martsSchema   string

	// now is swappable in tests so version stamps are deterministic.
	now func() time.Time
}

// NewDimensionBuilder creates the dimension builder.
func NewDimensionBuilder(db *sql.DB, stagingSchema, martsSchema string) *DimensionBuilder {
	return &DimensionBuilder{
		db:            db,
		stagingSchema: stagingSchema,
		martsSchema:   martsSchema,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// BuildTimestampDim fully recomputes dim_timestamp from the duplicate-
// eliminated union of fetch timestamps across both cleaned staging sources.
// Every derived field is a pure function of the timestamp, so rebuilding is
// idempotent and the rendered timestamp_key never changes for an instant.
func (b *DimensionBuilder) BuildTimestampDim(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE OR REPLACE TABLE %s.dim_timestamp AS
		WITH observed AS (
			SELECT fetch_timestamp AS ts FROM %s.stg_prices
			UNION
			SELECT fetch_timestamp AS ts FROM %s.stg_sentiment
		)
		SELECT
			%s AS timestamp_key,
			ts AS timestamp,
			CAST(ts AS DATE) AS date,
			hour(ts) AS hour,
			dayofweek(ts) AS day_of_week,
			dayname(ts) AS day_name,
			weekofyear(ts) AS week_of_year,
			month(ts) AS month,
			monthname(ts) AS month_name,
			quarter(ts) AS quarter,
			year(ts) AS year,
			dayofweek(ts) IN (0, 6) AS is_weekend
		FROM observed
	`, b.martsSchema, b.stagingSchema, b.stagingSchema, keys.TimestampKeySQL("ts"))

	if _, err := b.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to build dim_timestamp: %w", err)
	}
	return nil
}

// BuildCoinDim maintains dim_coin as a Type-2 slowly changing dimension.
// coin_key is a pure function of coin_id, so every version of a coin shares
// one key and fact rows stay valid across attribute changes. A run with no
// attribute changes writes nothing.
func (b *DimensionBuilder) BuildCoinDim(ctx context.Context) error {
	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin dim_coin transaction: %w", err)
	}
	defer tx.Rollback()

	now := b.now()

	// Latest observed attributes per coin. The newest fetch wins; loaded_at
	// breaks ties between duplicate fetches of the same instant.
	latestSQL := fmt.Sprintf(`
		CREATE OR REPLACE TEMP TABLE coin_latest AS
		SELECT coin_id, symbol, name
		FROM (
			SELECT coin_id, symbol, name,
				ROW_NUMBER() OVER (
					PARTITION BY coin_id
					ORDER BY fetch_timestamp DESC, loaded_at DESC
				) AS rn
			FROM %s.stg_prices
		)
		WHERE rn = 1
	`, b.stagingSchema)
	if _, err := tx.ExecContext(ctx, latestSQL); err != nil {
		return fmt.Errorf("failed to compute latest coin attributes: %w", err)
	}

	// Close out the current version of every coin whose tracked attributes
	// changed.
	closeSQL := fmt.Sprintf(`
		UPDATE %s.dim_coin AS d
		SET expiry_date = ?, is_current = FALSE
		FROM coin_latest AS l
		WHERE d.coin_id = l.coin_id
		  AND d.is_current
		  AND (d.symbol IS DISTINCT FROM l.symbol OR d.name IS DISTINCT FROM l.name)
	`, b.martsSchema)
	if _, err := tx.ExecContext(ctx, closeSQL, now); err != nil {
		return fmt.Errorf("failed to close superseded coin versions: %w", err)
	}

	// Insert a fresh current version for every coin without one: brand-new
	// coins and coins just closed out above.
	insertSQL := fmt.Sprintf(`
		INSERT INTO %s.dim_coin (coin_key, coin_id, symbol, name, effective_date, expiry_date, is_current)
		SELECT %s, l.coin_id, l.symbol, l.name, ?, ?, TRUE
		FROM coin_latest AS l
		WHERE NOT EXISTS (
			SELECT 1 FROM %s.dim_coin AS d
			WHERE d.coin_id = l.coin_id AND d.is_current
		)
	`, b.martsSchema, keys.CoinKeySQL("l.coin_id"), b.martsSchema)
	if _, err := tx.ExecContext(ctx, insertSQL, now, OpenExpiry); err != nil {
		return fmt.Errorf("failed to insert new coin versions: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS coin_latest"); err != nil {
		return fmt.Errorf("failed to drop coin_latest: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit dim_coin: %w", err)
	}
	return nil
}
