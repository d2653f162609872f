package main

import (
	"context"
	"flag"
	"log"

	"go.uber.org/zap"

	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/config"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/landing"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/staging"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/warehouse"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		panic("failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}

	wh, err := warehouse.Open(warehouse.Options{
		Path:          cfg.Warehouse.Path,
		StagingSchema: cfg.Warehouse.StagingSchema,
		MartsSchema:   cfg.Warehouse.MartsSchema,
	}, logger)
	if err != nil {
		log.Fatalf("Failed to open warehouse: %v", err)
	}
	defer wh.Close()

	ctx := context.Background()
	if err := wh.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize warehouse schema: %v", err)
	}

	store := landing.NewFSStore(cfg.Landing.RootDir)
	loader := staging.NewLoader(store, wh, logger)

	summary, err := loader.LoadAll(ctx)
	if err != nil {
		log.Fatalf("Staging load failed: %v", err)
	}

	logger.Info("load summary",
		zap.Int("price_records", summary.PriceRecords),
		zap.Int("sentiment_records", summary.SentimentRecords),
		zap.Int("skipped_objects", summary.SkippedObjects))
}
