// Package quality runs the post-transform assertion battery: not-null,
// uniqueness, and referential integrity. Checks only read model tables;
// a failing check marks the run unhealthy but never mutates data.
package quality

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// Check is one data quality assertion against the warehouse.
type Check interface {
	// Name returns the unique identifier for this check.
	Name() string

	// Type returns the category of check (completeness, uniqueness,
	// referential_integrity, consistency).
	Type() string

	// Run executes the check and returns a result.
	Run(ctx context.Context, db *sql.DB) Result
}

// Result holds the outcome of a quality check.
type Result struct {
	CheckName   string
	CheckType   string
	Table       string
	Subject     string // column or relationship the check covers
	Passed      bool
	FailingRows int64
	Details     string
	CreatedAt   time.Time
}

// NotNullCheck asserts that a required column carries no NULLs.
type NotNullCheck struct {
	Table  string
	Column string
}

func (c NotNullCheck) Name() string {
	return fmt.Sprintf("not_null_%s_%s", shortTable(c.Table), c.Column)
}

func (c NotNullCheck) Type() string { return "completeness" }

func (c NotNullCheck) Run(ctx context.Context, db *sql.DB) Result {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s IS NULL", c.Table, c.Column)
	return evaluate(ctx, db, c, c.Table, c.Column, query,
		fmt.Sprintf("%s.%s has %%d NULL rows", c.Table, c.Column))
}

// UniqueKeyCheck asserts that a key (possibly composite) has no duplicates.
type UniqueKeyCheck struct {
	Table   string
	Columns []string
}

func (c UniqueKeyCheck) Name() string {
	return fmt.Sprintf("unique_%s_%s", shortTable(c.Table), strings.Join(c.Columns, "_"))
}

func (c UniqueKeyCheck) Type() string { return "uniqueness" }

func (c UniqueKeyCheck) Run(ctx context.Context, db *sql.DB) Result {
	cols := strings.Join(c.Columns, ", ")
	query := fmt.Sprintf(`
		SELECT COALESCE(SUM(n - 1), 0) FROM (
			SELECT COUNT(*) AS n FROM %s GROUP BY %s HAVING COUNT(*) > 1
		)`, c.Table, cols)
	return evaluate(ctx, db, c, c.Table, cols, query,
		fmt.Sprintf("%s has %%d duplicate rows on (%s)", c.Table, cols))
}

// ReferentialIntegrityCheck asserts that every foreign key value in a fact
// table exists in the corresponding dimension.
type ReferentialIntegrityCheck struct {
	FactTable  string
	ForeignKey string
	DimTable   string
	DimKey     string
}

func (c ReferentialIntegrityCheck) Name() string {
	return fmt.Sprintf("ref_%s_%s", shortTable(c.FactTable), c.ForeignKey)
}

func (c ReferentialIntegrityCheck) Type() string { return "referential_integrity" }

func (c ReferentialIntegrityCheck) Run(ctx context.Context, db *sql.DB) Result {
	// NOT EXISTS rather than a join: dimension versions may legitimately
	// repeat the key, and a join would multiply fact rows.
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM %s AS f
		WHERE NOT EXISTS (
			SELECT 1 FROM %s AS d WHERE d.%s = f.%s
		)`, c.FactTable, c.DimTable, c.DimKey, c.ForeignKey)
	subject := fmt.Sprintf("%s -> %s.%s", c.ForeignKey, c.DimTable, c.DimKey)
	return evaluate(ctx, db, c, c.FactTable, subject, query,
		fmt.Sprintf("%s has %%d rows whose %s is missing from %s", c.FactTable, c.ForeignKey, c.DimTable))
}

// SingleCurrentVersionCheck asserts that a Type-2 dimension carries exactly
// one current row per key.
type SingleCurrentVersionCheck struct {
	Table     string
	KeyColumn string
}

func (c SingleCurrentVersionCheck) Name() string {
	return fmt.Sprintf("single_current_%s", shortTable(c.Table))
}

func (c SingleCurrentVersionCheck) Type() string { return "consistency" }

func (c SingleCurrentVersionCheck) Run(ctx context.Context, db *sql.DB) Result {
	query := fmt.Sprintf(`
		SELECT COUNT(*) FROM (
			SELECT %s FROM %s
			GROUP BY %s
			HAVING COUNT(*) FILTER (WHERE is_current) <> 1
		)`, c.KeyColumn, c.Table, c.KeyColumn)
	return evaluate(ctx, db, c, c.Table, c.KeyColumn, query,
		fmt.Sprintf("%s has %%d keys without exactly one current version", c.Table))
}

// evaluate runs a failing-row count query and folds it into a Result. A check
// that cannot execute fails with the error in Details.
func evaluate(ctx context.Context, db *sql.DB, c Check, table, subject, query, failFormat string) Result {
	result := Result{
		CheckName: c.Name(),
		CheckType: c.Type(),
		Table:     table,
		Subject:   subject,
		CreatedAt: time.Now().UTC(),
	}

	var failing int64
	if err := db.QueryRowContext(ctx, query).Scan(&failing); err != nil {
		result.Passed = false
		result.Details = fmt.Sprintf("check query failed: %v", err)
		return result
	}

	result.FailingRows = failing
	if failing > 0 {
		result.Passed = false
		result.Details = fmt.Sprintf(failFormat, failing)
	} else {
		result.Passed = true
		result.Details = "ok"
	}
	return result
}

func shortTable(qualified string) string {
	if i := strings.LastIndex(qualified, "."); i >= 0 {
		return qualified[i+1:]
	}
	return qualified
}
