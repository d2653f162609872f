package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	path := writeConfig(t, `
warehouse:
  path: /tmp/crypto.duckdb
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Ingestion.NumCoins != 50 {
		t.Errorf("NumCoins default = %d, want 50", cfg.Ingestion.NumCoins)
	}
	if cfg.Ingestion.VsCurrency != "usd" {
		t.Errorf("VsCurrency default = %q, want usd", cfg.Ingestion.VsCurrency)
	}
	if cfg.Warehouse.StagingSchema != "staging" || cfg.Warehouse.MartsSchema != "marts" {
		t.Errorf("schema defaults = %q/%q", cfg.Warehouse.StagingSchema, cfg.Warehouse.MartsSchema)
	}
	if cfg.TransformInterval() != 60*time.Minute {
		t.Errorf("TransformInterval = %v, want 60m", cfg.TransformInterval())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate failed on defaulted config: %v", err)
	}
}

func TestValidateRejectsMissingWarehousePath(t *testing.T) {
	path := writeConfig(t, `
service:
  name: test
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject empty warehouse.path")
	}
}

func TestValidateRejectsCollidingSchemas(t *testing.T) {
	path := writeConfig(t, `
warehouse:
  path: /tmp/crypto.duckdb
  staging_schema: analytics
  marts_schema: analytics
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate should reject identical staging and marts schemas")
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("CRYPTO_PIPELINE_WAREHOUSE_PATH", "/var/lib/crypto/wh.duckdb")
	t.Setenv("CRYPTO_PIPELINE_LANDING_DIR", "/var/lib/crypto/landing")

	path := writeConfig(t, `
warehouse:
  path: /tmp/crypto.duckdb
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Warehouse.Path != "/var/lib/crypto/wh.duckdb" {
		t.Errorf("warehouse path override not applied: %q", cfg.Warehouse.Path)
	}
	if cfg.Landing.RootDir != "/var/lib/crypto/landing" {
		t.Errorf("landing dir override not applied: %q", cfg.Landing.RootDir)
	}
}
