// Package config loads pipeline configuration from a YAML file with
// environment overrides for deployment-specific values.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the crypto pipeline services.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Ingestion IngestionConfig `yaml:"ingestion"`
	Landing   LandingConfig   `yaml:"landing"`
	Warehouse WarehouseConfig `yaml:"warehouse"`
	QueryAPI  QueryAPIConfig  `yaml:"query_api"`
}

// ServiceConfig contains service-level settings for the transform service.
type ServiceConfig struct {
	Name                     string `yaml:"name"`
	HealthPort               string `yaml:"health_port"`
	TransformIntervalMinutes int    `yaml:"transform_interval_minutes"`
}

// IngestionConfig contains the external API settings.
type IngestionConfig struct {
	PricesURL      string `yaml:"prices_url"`
	SentimentURL   string `yaml:"sentiment_url"`
	NumCoins       int    `yaml:"num_coins"`
	VsCurrency     string `yaml:"vs_currency"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
}

// LandingConfig contains the raw landing store settings.
type LandingConfig struct {
	// RootDir is the base directory of the append-only landing zone.
	// Objects land under <root>/raw/<source>/YYYY/MM/DD/HH/.
	RootDir string `yaml:"root_dir"`
}

// WarehouseConfig contains the DuckDB warehouse settings.
type WarehouseConfig struct {
	// Path is the DuckDB database file. Empty means in-memory, which is
	// only useful for tests.
	Path          string `yaml:"path"`
	StagingSchema string `yaml:"staging_schema"`
	MartsSchema   string `yaml:"marts_schema"`
}

// QueryAPIConfig contains the insights API settings.
type QueryAPIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoadConfig loads configuration from a YAML file. A .env file in the working
// directory is applied first so secrets and per-host paths stay out of the
// committed config.
func LoadConfig(path string) (*Config, error) {
	// Missing .env is fine; it only exists in local setups.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	config.applyEnvOverrides()

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "crypto-pipeline"
	}
	if c.Service.HealthPort == "" {
		c.Service.HealthPort = "8093"
	}
	if c.Service.TransformIntervalMinutes == 0 {
		c.Service.TransformIntervalMinutes = 60
	}
	if c.Ingestion.PricesURL == "" {
		c.Ingestion.PricesURL = "https://api.coingecko.com/api/v3"
	}
	if c.Ingestion.SentimentURL == "" {
		c.Ingestion.SentimentURL = "https://api.alternative.me"
	}
	if c.Ingestion.NumCoins == 0 {
		c.Ingestion.NumCoins = 50
	}
	if c.Ingestion.VsCurrency == "" {
		c.Ingestion.VsCurrency = "usd"
	}
	if c.Ingestion.TimeoutSeconds == 0 {
		c.Ingestion.TimeoutSeconds = 30
	}
	if c.Ingestion.MaxRetries == 0 {
		c.Ingestion.MaxRetries = 3
	}
	if c.Landing.RootDir == "" {
		c.Landing.RootDir = "data"
	}
	if c.Warehouse.StagingSchema == "" {
		c.Warehouse.StagingSchema = "staging"
	}
	if c.Warehouse.MartsSchema == "" {
		c.Warehouse.MartsSchema = "marts"
	}
	if c.QueryAPI.ListenAddr == "" {
		c.QueryAPI.ListenAddr = ":8094"
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("CRYPTO_PIPELINE_WAREHOUSE_PATH"); v != "" {
		c.Warehouse.Path = v
	}
	if v := os.Getenv("CRYPTO_PIPELINE_LANDING_DIR"); v != "" {
		c.Landing.RootDir = v
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Warehouse.Path == "" {
		return fmt.Errorf("warehouse.path is required")
	}
	if c.Warehouse.StagingSchema == c.Warehouse.MartsSchema {
		return fmt.Errorf("warehouse.staging_schema and warehouse.marts_schema must differ")
	}
	if c.Ingestion.NumCoins < 1 || c.Ingestion.NumCoins > 250 {
		return fmt.Errorf("ingestion.num_coins must be between 1 and 250")
	}
	if c.Service.TransformIntervalMinutes < 1 {
		return fmt.Errorf("service.transform_interval_minutes must be at least 1")
	}
	return nil
}

// TransformInterval returns the transformation interval as a Duration.
func (c *Config) TransformInterval() time.Duration {
	return time.Duration(c.Service.TransformIntervalMinutes) * time.Minute
}

// HTTPTimeout returns the ingestion HTTP timeout as a Duration.
func (c *IngestionConfig) HTTPTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
