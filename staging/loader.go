// Package staging loads landed JSON envelopes into the warehouse's raw
// staging tables. Every landing object is loaded at most once: the load is
// recorded in a load audit table inside the same transaction as the rows, so
// re-running the loader after a crash or a duplicate invocation is safe.
package staging

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/ingestion"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/landing"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/warehouse"
)

// Loader moves landing objects into the staging tables.
type Loader struct {
	store  landing.Store
	wh     *warehouse.Client
	logger *zap.Logger
}

// Summary reports one loader pass.
type Summary struct {
	PriceObjects     int
	PriceRecords     int
	SentimentObjects int
	SentimentRecords int
	SkippedObjects   int
}

// NewLoader creates a staging loader.
func NewLoader(store landing.Store, wh *warehouse.Client, logger *zap.Logger) *Loader {
	return &Loader{store: store, wh: wh, logger: logger}
}

// LoadAll loads all unprocessed price and sentiment objects.
func (l *Loader) LoadAll(ctx context.Context) (Summary, error) {
	var summary Summary

	l.logger.Info("starting landing to staging load")

	if err := l.loadSource(ctx, ingestion.SourcePrices, &summary); err != nil {
		return summary, fmt.Errorf("failed to load price objects: %w", err)
	}
	if err := l.loadSource(ctx, ingestion.SourceSentiment, &summary); err != nil {
		return summary, fmt.Errorf("failed to load sentiment objects: %w", err)
	}

	l.logger.Info("staging load complete",
		zap.Int("price_objects", summary.PriceObjects),
		zap.Int("price_records", summary.PriceRecords),
		zap.Int("sentiment_objects", summary.SentimentObjects),
		zap.Int("sentiment_records", summary.SentimentRecords),
		zap.Int("skipped_objects", summary.SkippedObjects))

	return summary, nil
}

func (l *Loader) loadSource(ctx context.Context, source string, summary *Summary) error {
	objects, err := l.store.List(ctx, source)
	if err != nil {
		return err
	}

	for _, obj := range objects {
		loaded, err := l.alreadyLoaded(ctx, obj.Path)
		if err != nil {
			return err
		}
		if loaded {
			summary.SkippedObjects++
			continue
		}

		env, err := l.store.Read(ctx, obj.Path)
		if err != nil {
			// A malformed object is skipped, not fatal: later objects
			// must still load. It stays unaudited so a fixed copy of
			// the pipeline can pick it up again.
			l.logger.Error("skipping unreadable landing object",
				zap.String("path", obj.Path), zap.Error(err))
			continue
		}

		n, err := l.loadEnvelope(ctx, obj.Path, env)
		if err != nil {
			l.logger.Error("failed to load landing object",
				zap.String("path", obj.Path), zap.Error(err))
			continue
		}

		switch source {
		case ingestion.SourcePrices:
			summary.PriceObjects++
			summary.PriceRecords += n
		case ingestion.SourceSentiment:
			summary.SentimentObjects++
			summary.SentimentRecords += n
		}

		l.logger.Info("loaded landing object",
			zap.String("path", obj.Path),
			zap.Int("records", n))
	}

	return nil
}

func (l *Loader) alreadyLoaded(ctx context.Context, path string) (bool, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE object_path = ?", l.wh.StagingRef("load_audit"))
	var count int
	if err := l.wh.DB.QueryRowContext(ctx, query, path).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check load audit: %w", err)
	}
	return count > 0, nil
}

func (l *Loader) loadEnvelope(ctx context.Context, path string, env *landing.Envelope) (int, error) {
	tx, err := l.wh.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var n int
	switch env.Source {
	case ingestion.SourcePrices:
		n, err = l.insertPriceRows(ctx, tx, env)
	case ingestion.SourceSentiment:
		n, err = l.insertSentimentRows(ctx, tx, env)
	default:
		return 0, fmt.Errorf("unknown source %q in object %s", env.Source, path)
	}
	if err != nil {
		return 0, err
	}

	auditSQL := fmt.Sprintf(
		"INSERT INTO %s (object_path, source, run_id, records_loaded, loaded_at) VALUES (?, ?, ?, ?, ?)",
		l.wh.StagingRef("load_audit"))
	if _, err := tx.ExecContext(ctx, auditSQL, path, env.Source, env.RunID, n, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to record load audit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit load: %w", err)
	}
	return n, nil
}

func (l *Loader) insertPriceRows(ctx context.Context, tx *sql.Tx, env *landing.Envelope) (int, error) {
	var records []ingestion.RawPriceRecord
	if err := json.Unmarshal(env.Data, &records); err != nil {
		return 0, fmt.Errorf("failed to parse price payload: %w", err)
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (
			fetch_timestamp, source, coin_id, symbol, name,
			current_price, market_cap, market_cap_rank, total_volume,
			high_24h, low_24h, price_change_24h, price_change_percentage_24h,
			market_cap_change_24h, circulating_supply, total_supply, max_supply,
			last_updated, loaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.wh.StagingRef("stg_prices_raw"))

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare price insert: %w", err)
	}
	defer stmt.Close()

	loadedAt := time.Now().UTC()
	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			env.FetchTimestamp.UTC(), env.Source, rec.ID, rec.Symbol, rec.Name,
			rec.CurrentPrice, rec.MarketCap, rec.MarketCapRank, rec.TotalVolume,
			rec.High24h, rec.Low24h, rec.PriceChange24h, rec.PriceChangePercentage24h,
			rec.MarketCapChange24h, rec.CirculatingSupply, rec.TotalSupply, rec.MaxSupply,
			parseLastUpdated(rec.LastUpdated), loadedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert price row for %s: %w", rec.ID, err)
		}
	}
	return len(records), nil
}

func (l *Loader) insertSentimentRows(ctx context.Context, tx *sql.Tx, env *landing.Envelope) (int, error) {
	var records []ingestion.RawSentimentRecord
	if err := json.Unmarshal(env.Data, &records); err != nil {
		return 0, fmt.Errorf("failed to parse sentiment payload: %w", err)
	}

	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (
			fetch_timestamp, source, value, value_classification,
			timestamp, time_until_update, loaded_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.wh.StagingRef("stg_sentiment_raw"))

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare sentiment insert: %w", err)
	}
	defer stmt.Close()

	loadedAt := time.Now().UTC()
	for _, rec := range records {
		value, err := parseNullableInt(rec.Value)
		if err != nil {
			return 0, fmt.Errorf("sentiment value %q is not numeric: %w", rec.Value, err)
		}

		ts, err := parseUnixTimestamp(rec.Timestamp)
		if err != nil {
			return 0, fmt.Errorf("sentiment timestamp %q is invalid: %w", rec.Timestamp, err)
		}

		// time_until_update is informational and sometimes absent.
		untilUpdate, _ := parseNullableInt(rec.TimeUntilUpdate)

		_, err = stmt.ExecContext(ctx,
			env.FetchTimestamp.UTC(), env.Source, value, rec.ValueClassification,
			ts, untilUpdate, loadedAt)
		if err != nil {
			return 0, fmt.Errorf("failed to insert sentiment row: %w", err)
		}
	}
	return len(records), nil
}

// parseLastUpdated parses CoinGecko's RFC3339 last_updated field, returning
// nil when it is absent or malformed so the row still stages.
func parseLastUpdated(s string) *time.Time {
	if s == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}

func parseNullableInt(s string) (*int64, error) {
	if s == "" {
		return nil, nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func parseUnixTimestamp(s string) (time.Time, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, err
	}
	return time.Unix(n, 0).UTC(), nil
}
