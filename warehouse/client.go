// Package warehouse manages the DuckDB warehouse: connection lifecycle,
// schema creation, and table references shared by the loader, the transform
// layer, and the quality gate.
package warehouse

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/duckdb/duckdb-go/v2"
	"go.uber.org/zap"
)

// Options configures a warehouse client.
type Options struct {
	// Path is the DuckDB database file. Empty opens an in-memory database.
	Path string
	// StagingSchema holds raw landed rows, cleaned staging models, and the
	// load audit.
	StagingSchema string
	// MartsSchema holds the dimensional model, the transform cursor, and
	// quality results.
	MartsSchema string
}

// Client wraps the DuckDB connection.
type Client struct {
	DB     *sql.DB
	opts   Options
	logger *zap.Logger
}

// Open opens the warehouse and creates both schemas if needed.
func Open(opts Options, logger *zap.Logger) (*Client, error) {
	if opts.StagingSchema == "" {
		opts.StagingSchema = "staging"
	}
	if opts.MartsSchema == "" {
		opts.MartsSchema = "marts"
	}

	db, err := sql.Open("duckdb", opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB: %w", err)
	}

	c := &Client{DB: db, opts: opts, logger: logger}

	ctx := context.Background()
	for _, schema := range []string{opts.StagingSchema, opts.MartsSchema} {
		if _, err := db.ExecContext(ctx, fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema)); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema %s: %w", schema, err)
		}
	}

	logger.Info("warehouse opened",
		zap.String("path", opts.Path),
		zap.String("staging_schema", opts.StagingSchema),
		zap.String("marts_schema", opts.MartsSchema))

	return c, nil
}

// StagingRef returns the fully qualified name of a staging-schema table.
func (c *Client) StagingRef(table string) string {
	return c.opts.StagingSchema + "." + table
}

// MartsRef returns the fully qualified name of a marts-schema table.
func (c *Client) MartsRef(table string) string {
	return c.opts.MartsSchema + "." + table
}

// StagingSchema returns the staging schema name.
func (c *Client) StagingSchema() string { return c.opts.StagingSchema }

// MartsSchema returns the marts schema name.
func (c *Client) MartsSchema() string { return c.opts.MartsSchema }

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
