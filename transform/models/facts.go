package models

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/keys"
)

// Task names used as cursor identities.
const (
	TaskFactPriceSnapshots = "fact_price_snapshots"
	TaskFactSentiment      = "fact_sentiment"
)

// FactBuilder appends new rows to the fact tables. Both facts are
// incremental: only staging rows with fetch_timestamp strictly greater than
// the task's cursor are considered, and the cursor advances in the same
// transaction as the append.
type FactBuilder struct {
	db            *sql.DB
	stagingSchema string
	martsSchema   string
	cursors       *CursorStore
}

// FactResult reports one incremental append.
type FactResult struct {
	Task         string
	RowsAppended int64
	NewPosition  time.Time
	Advanced     bool
}

// NewFactBuilder creates the fact builder.
func NewFactBuilder(db *sql.DB, stagingSchema, martsSchema string, cursors *CursorStore) *FactBuilder {
	return &FactBuilder{
		db:            db,
		stagingSchema: stagingSchema,
		martsSchema:   martsSchema,
		cursors:       cursors,
	}
}

// BuildPriceSnapshots appends one row per (coin_id, fetch_timestamp) pair
// newer than the cursor. Duplicate staged fetches of the same pair collapse
// to the most recently loaded row.
func (b *FactBuilder) BuildPriceSnapshots(ctx context.Context) (FactResult, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO %s.fact_price_snapshots
		SELECT
			%s AS snapshot_id,
			%s AS coin_key,
			%s AS timestamp_key,
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
			source AS data_source
		FROM %s.stg_prices
		WHERE fetch_timestamp > ?
		QUALIFY ROW_NUMBER() OVER (
			PARTITION BY coin_id, fetch_timestamp
			ORDER BY loaded_at DESC
		) = 1
	`,
		b.martsSchema,
		keys.SnapshotKeySQL("coin_id", "fetch_timestamp"),
		keys.CoinKeySQL("coin_id"),
		keys.TimestampKeySQL("fetch_timestamp"),
		b.stagingSchema)

	return b.buildIncremental(ctx, TaskFactPriceSnapshots, b.stagingSchema+".stg_prices", insertSQL)
}

// BuildSentiment appends one row per sentiment reading newer than the cursor,
// keyed by the source-reported timestamp.
func (b *FactBuilder) BuildSentiment(ctx context.Context) (FactResult, error) {
	insertSQL := fmt.Sprintf(`
		INSERT INTO %s.fact_sentiment
		SELECT
			%s AS sentiment_id,
			%s AS timestamp_key,
			value AS sentiment_value,
			value_classification AS sentiment_classification,
			source AS data_source
		FROM %s.stg_sentiment
		WHERE fetch_timestamp > ?
		QUALIFY ROW_NUMBER() OVER (
			PARTITION BY source, timestamp
			ORDER BY loaded_at DESC
		) = 1
	`,
		b.martsSchema,
		keys.SentimentKeySQL("source", "timestamp"),
		keys.TimestampKeySQL("fetch_timestamp"),
		b.stagingSchema)

	return b.buildIncremental(ctx, TaskFactSentiment, b.stagingSchema+".stg_sentiment", insertSQL)
}

// buildIncremental runs one cursor-guarded append. The insert statement must
// carry exactly one parameter: the exclusive lower bound on fetch_timestamp.
func (b *FactBuilder) buildIncremental(ctx context.Context, task, sourceTable, insertSQL string) (FactResult, error) {
	result := FactResult{Task: task}

	cursor, ok, err := b.cursors.Load(ctx, task)
	if err != nil {
		return result, err
	}
	if !ok {
		// First run: process the full staging history. The bound below
		// everything observable keeps the statement shape identical.
		cursor = time.Time{}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return result, fmt.Errorf("failed to begin %s transaction: %w", task, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, insertSQL, cursor.UTC())
	if err != nil {
		return result, fmt.Errorf("failed to append %s: %w", task, err)
	}
	if n, err := res.RowsAffected(); err == nil {
		result.RowsAppended = n
	}

	// New position: the newest fetch_timestamp the append covered. When no
	// rows qualified the cursor stays put.
	maxSQL := fmt.Sprintf(
		"SELECT MAX(fetch_timestamp) FROM %s WHERE fetch_timestamp > ?", sourceTable)
	var newPos sql.NullTime
	if err := tx.QueryRowContext(ctx, maxSQL, cursor.UTC()).Scan(&newPos); err != nil {
		return result, fmt.Errorf("failed to compute new cursor position for %s: %w", task, err)
	}

	if newPos.Valid {
		if err := b.cursors.SaveTx(ctx, tx, task, newPos.Time); err != nil {
			return result, err
		}
		result.NewPosition = newPos.Time.UTC()
		result.Advanced = true
	}

	if err := tx.Commit(); err != nil {
		return result, fmt.Errorf("failed to commit %s: %w", task, err)
	}
	return result, nil
}
