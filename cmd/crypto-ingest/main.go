package main

import (
	"context"
	"flag"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/config"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/ingestion"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/landing"
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

	store := landing.NewFSStore(cfg.Landing.RootDir)

	prices := ingestion.NewPriceClient(ingestion.PriceClientOptions{
		BaseURL:    cfg.Ingestion.PricesURL,
		NumCoins:   cfg.Ingestion.NumCoins,
		VsCurrency: cfg.Ingestion.VsCurrency,
		Timeout:    cfg.Ingestion.HTTPTimeout(),
		MaxRetries: cfg.Ingestion.MaxRetries,
	}, logger)

	sentiment := ingestion.NewSentimentClient(ingestion.SentimentClientOptions{
		BaseURL:    cfg.Ingestion.SentimentURL,
		Timeout:    cfg.Ingestion.HTTPTimeout(),
		MaxRetries: cfg.Ingestion.MaxRetries,
	}, logger)

	runner := ingestion.NewRunner(prices, sentiment, store, logger)
	result := runner.RunAll(context.Background())

	if !result.Success() {
		logger.Error("some ingestion jobs failed",
			zap.Bool("prices", result.PricesLanded),
			zap.Bool("sentiment", result.SentimentOK))
		os.Exit(1)
	}
	logger.Info("all ingestion jobs completed successfully")
}
