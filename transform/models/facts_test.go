package models

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/keys"
)

func newFactFixture(t *testing.T) (*FactBuilder, *StagingModels, *sql.DB) {
	t.Helper()
	wh := newTestWarehouse(t)
	cursors := NewCursorStore(wh.DB, wh.MartsRef("transform_cursor"))
	facts := NewFactBuilder(wh.DB, wh.StagingSchema(), wh.MartsSchema(), cursors)
	staging := NewStagingModels(wh.DB, wh.StagingSchema())
	return facts, staging, wh.DB
}

func TestPriceSnapshotsFirstRunProcessesEverything(t *testing.T) {
	facts, staging, db := newFactFixture(t)
	ctx := context.Background()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	seedPrice(t, db, "bitcoin", "btc", "Bitcoin", f64(42000), 8e11, t0, t0)
	seedPrice(t, db, "bitcoin", "btc", "Bitcoin", f64(42150), 8e11, t1, t1)
	if err := staging.BuildPrices(ctx); err != nil {
		t.Fatalf("BuildPrices: %v", err)
	}

	res, err := facts.BuildPriceSnapshots(ctx)
	if err != nil {
		t.Fatalf("BuildPriceSnapshots: %v", err)
	}
	if res.RowsAppended != 2 {
		t.Errorf("rows appended: got %d, want 2", res.RowsAppended)
	}
	if !res.Advanced {
		t.Error("expected cursor to advance on first run")
	}
	if !res.NewPosition.Equal(t1) {
		t.Errorf("cursor position: got %v, want %v", res.NewPosition, t1)
	}

	var id string
	err = db.QueryRow(
		"SELECT snapshot_id FROM marts.fact_price_snapshots WHERE timestamp_key = ?",
		keys.TimestampKey(t1)).Scan(&id)
	if err != nil {
		t.Fatalf("failed to read fact row: %v", err)
	}
	if want := keys.SnapshotKey("bitcoin", t1); id != want {
		t.Errorf("snapshot_id: got %s, want %s", id, want)
	}
}

func TestPriceSnapshotsAppendOnlyNewRows(t *testing.T) {
	facts, staging, db := newFactFixture(t)
	ctx := context.Background()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t1 := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)
	seedPrice(t, db, "bitcoin", "btc", "Bitcoin", f64(42000), 8e11, t0, t0)
	seedPrice(t, db, "bitcoin", "btc", "Bitcoin", f64(42150), 8e11, t1, t1)
	if err := staging.BuildPrices(ctx); err != nil {
		t.Fatalf("BuildPrices: %v", err)
	}
	if _, err := facts.BuildPriceSnapshots(ctx); err != nil {
		t.Fatalf("first BuildPriceSnapshots: %v", err)
	}

	// A later ingestion lands one new snapshot; the full-refresh staging
	// rebuild re-exposes the old rows too.
	t2 := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
	seedPrice(t, db, "bitcoin", "btc", "Bitcoin", f64(42300), 8e11, t2, t2)
	if err := staging.BuildPrices(ctx); err != nil {
		t.Fatalf("rebuild BuildPrices: %v", err)
	}

	res, err := facts.BuildPriceSnapshots(ctx)
	if err != nil {
		t.Fatalf("second BuildPriceSnapshots: %v", err)
	}
	if res.RowsAppended != 1 {
		t.Errorf("rows appended: got %d, want 1", res.RowsAppended)
	}
	if !res.NewPosition.Equal(t2) {
		t.Errorf("cursor position: got %v, want %v", res.NewPosition, t2)
	}
	if n := countRows(t, db, "marts.fact_price_snapshots"); n != 3 {
		t.Errorf("fact rows: got %d, want 3", n)
	}
}

func TestPriceSnapshotsRerunWithoutNewDataIsNoOp(t *testing.T) {
	facts, staging, db := newFactFixture(t)
	ctx := context.Background()

	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedPrice(t, db, "bitcoin", "btc", "Bitcoin", f64(42000), 8e11, t0, t0)
	if err := staging.BuildPrices(ctx); err != nil {
		t.Fatalf("BuildPrices: %v", err)
	}

	first, err := facts.BuildPriceSnapshots(ctx)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.RowsAppended != 1 {
		t.Fatalf("first run appended %d rows, want 1", first.RowsAppended)
	}
	second, err := facts.BuildPriceSnapshots(ctx)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if second.RowsAppended != 0 {
		t.Errorf("second run appended %d rows, want 0", second.RowsAppended)
	}
	if second.Advanced {
		t.Error("cursor must not advance with no new rows")
	}
	if n := countRows(t, db, "marts.fact_price_snapshots"); n != 1 {
		t.Errorf("fact rows: got %d, want 1", n)
	}
}

func TestPriceSnapshotsCollapseDuplicateStagedFetches(t *testing.T) {
	facts, staging, db := newFactFixture(t)
	ctx := context.Background()

	// The same (coin, fetch time) observation staged twice, e.g. a retried
	// load with a corrected payload. The later loaded_at wins.
	fetch := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seedPrice(t, db, "bitcoin", "btc", "Bitcoin", f64(42000), 8e11, fetch, fetch)
	seedPrice(t, db, "bitcoin", "btc", "Bitcoin", f64(42999), 8e11, fetch, fetch.Add(10*time.Minute))
	if err := staging.BuildPrices(ctx); err != nil {
		t.Fatalf("BuildPrices: %v", err)
	}

	res, err := facts.BuildPriceSnapshots(ctx)
	if err != nil {
		t.Fatalf("BuildPriceSnapshots: %v", err)
	}
	if res.RowsAppended != 1 {
		t.Errorf("rows appended: got %d, want 1", res.RowsAppended)
	}

	var price float64
	if err := db.QueryRow("SELECT current_price FROM marts.fact_price_snapshots").Scan(&price); err != nil {
		t.Fatalf("failed to read fact row: %v", err)
	}
	if price != 42999 {
		t.Errorf("expected the most recently loaded price, got %v", price)
	}
}

func TestSentimentFactIncremental(t *testing.T) {
	facts, staging, db := newFactFixture(t)
	ctx := context.Background()

	sourceTS := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	fetch := time.Date(2024, 1, 1, 0, 5, 0, 0, time.UTC)
	seedSentiment(t, db, 25, "Extreme Fear", sourceTS, fetch, fetch)
	if err := staging.BuildSentiment(ctx); err != nil {
		t.Fatalf("BuildSentiment: %v", err)
	}

	res, err := facts.BuildSentiment(ctx)
	if err != nil {
		t.Fatalf("BuildSentiment facts: %v", err)
	}
	if res.RowsAppended != 1 || !res.NewPosition.Equal(fetch) {
		t.Fatalf("first run: appended=%d position=%v", res.RowsAppended, res.NewPosition)
	}

	var (
		id             string
		value          int
		classification string
	)
	err = db.QueryRow(
		"SELECT sentiment_id, sentiment_value, sentiment_classification FROM marts.fact_sentiment").
		Scan(&id, &value, &classification)
	if err != nil {
		t.Fatalf("failed to read sentiment fact: %v", err)
	}
	if want := keys.SentimentKey("feargreed_index", sourceTS); id != want {
		t.Errorf("sentiment_id: got %s, want %s", id, want)
	}
	if value != 25 || classification != "Extreme Fear" {
		t.Errorf("sentiment fact: value=%d classification=%s", value, classification)
	}

	// Next day's reading appends without touching the existing row.
	sourceTS2 := sourceTS.Add(24 * time.Hour)
	fetch2 := fetch.Add(24 * time.Hour)
	seedSentiment(t, db, 60, "Greed", sourceTS2, fetch2, fetch2)
	if err := staging.BuildSentiment(ctx); err != nil {
		t.Fatalf("rebuild BuildSentiment: %v", err)
	}

	res, err = facts.BuildSentiment(ctx)
	if err != nil {
		t.Fatalf("second BuildSentiment facts: %v", err)
	}
	if res.RowsAppended != 1 {
		t.Errorf("second run appended %d rows, want 1", res.RowsAppended)
	}
	if n := countRows(t, db, "marts.fact_sentiment"); n != 2 {
		t.Errorf("sentiment facts: got %d, want 2", n)
	}
}
