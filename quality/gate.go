package quality

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// ErrGateFailed marks a run whose data was written but failed the assertion
// battery. Remediation is operational; the gate never rolls anything back.
var ErrGateFailed = errors.New("quality gate failed")

// Report is the outcome of one gate run.
type Report struct {
	RunID   string
	Results []Result
}

// Healthy reports whether every check passed. The gate is binary per check:
// there is no partial-success state.
func (r Report) Healthy() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Failures returns the failing results only.
func (r Report) Failures() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Passed {
			failed = append(failed, res)
		}
	}
	return failed
}

// Gate runs a fixed battery of checks and persists every result.
type Gate struct {
	db           *sql.DB
	checks       []Check
	resultsTable string
	logger       *zap.Logger
}

// NewGate creates a quality gate over the given checks. resultsTable is the
// fully qualified audit table for persisted results; empty disables
// persistence (used by tests that only care about evaluation).
func NewGate(db *sql.DB, checks []Check, resultsTable string, logger *zap.Logger) *Gate {
	return &Gate{db: db, checks: checks, resultsTable: resultsTable, logger: logger}
}

// Run executes every check, persists the itemized results, and returns
// ErrGateFailed (wrapped) when any assertion failed.
func (g *Gate) Run(ctx context.Context, runID string) (Report, error) {
	report := Report{RunID: runID}

	for _, check := range g.checks {
		result := check.Run(ctx, g.db)
		report.Results = append(report.Results, result)

		if result.Passed {
			g.logger.Debug("quality check passed",
				zap.String("check", result.CheckName),
				zap.String("table", result.Table))
		} else {
			g.logger.Error("quality check failed",
				zap.String("check", result.CheckName),
				zap.String("type", result.CheckType),
				zap.String("table", result.Table),
				zap.String("subject", result.Subject),
				zap.Int64("failing_rows", result.FailingRows),
				zap.String("details", result.Details))
		}
	}

	if g.resultsTable != "" {
		if err := g.persist(ctx, report); err != nil {
			return report, err
		}
	}

	if !report.Healthy() {
		return report, fmt.Errorf("%w: %d of %d checks failed",
			ErrGateFailed, len(report.Failures()), len(report.Results))
	}
	return report, nil
}

func (g *Gate) persist(ctx context.Context, report Report) error {
	insertSQL := fmt.Sprintf(`
		INSERT INTO %s (run_id, check_name, check_type, table_name, subject, passed, failing_rows, details, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, g.resultsTable)

	for _, res := range report.Results {
		createdAt := res.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		_, err := g.db.ExecContext(ctx, insertSQL,
			report.RunID, res.CheckName, res.CheckType, res.Table, res.Subject,
			res.Passed, res.FailingRows, res.Details, createdAt)
		if err != nil {
			return fmt.Errorf("failed to persist quality result %s: %w", res.CheckName, err)
		}
	}
	return nil
}

// DefaultChecks returns the fixed battery run after every transform pass.
func DefaultChecks(stagingSchema, martsSchema string) []Check {
	dimCoin := martsSchema + ".dim_coin"
	dimTimestamp := martsSchema + ".dim_timestamp"
	factPrices := martsSchema + ".fact_price_snapshots"
	factSentiment := martsSchema + ".fact_sentiment"

	return []Check{
		// Completeness.
		NotNullCheck{Table: dimCoin, Column: "coin_key"},
		NotNullCheck{Table: dimCoin, Column: "coin_id"},
		NotNullCheck{Table: dimTimestamp, Column: "timestamp_key"},
		NotNullCheck{Table: dimTimestamp, Column: "timestamp"},
		NotNullCheck{Table: factPrices, Column: "snapshot_id"},
		NotNullCheck{Table: factPrices, Column: "coin_key"},
		NotNullCheck{Table: factPrices, Column: "timestamp_key"},
		NotNullCheck{Table: factPrices, Column: "current_price"},
		NotNullCheck{Table: factSentiment, Column: "sentiment_id"},
		NotNullCheck{Table: factSentiment, Column: "timestamp_key"},
		NotNullCheck{Table: factSentiment, Column: "sentiment_value"},

		// Uniqueness of primary surrogate keys. dim_coin versions share
		// coin_key, so its grain is (coin_key, effective_date).
		UniqueKeyCheck{Table: dimCoin, Columns: []string{"coin_key", "effective_date"}},
		UniqueKeyCheck{Table: dimTimestamp, Columns: []string{"timestamp_key"}},
		UniqueKeyCheck{Table: factPrices, Columns: []string{"snapshot_id"}},
		UniqueKeyCheck{Table: factSentiment, Columns: []string{"sentiment_id"}},

		// Referential integrity.
		ReferentialIntegrityCheck{FactTable: factPrices, ForeignKey: "coin_key", DimTable: dimCoin, DimKey: "coin_key"},
		ReferentialIntegrityCheck{FactTable: factPrices, ForeignKey: "timestamp_key", DimTable: dimTimestamp, DimKey: "timestamp_key"},
		ReferentialIntegrityCheck{FactTable: factSentiment, ForeignKey: "timestamp_key", DimTable: dimTimestamp, DimKey: "timestamp_key"},

		// Type-2 consistency.
		SingleCurrentVersionCheck{Table: dimCoin, KeyColumn: "coin_key"},
	}
}
