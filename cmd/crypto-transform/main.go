package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/config"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/metrics"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/transform"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/warehouse"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single transformation cycle and exit")
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

	m := metrics.New()
	transformer := transform.NewTransformer(wh, cfg.TransformInterval(), m, logger)

	if *once {
		if err := transformer.RunCycle(ctx); err != nil {
			logger.Error("transformation run failed", zap.Error(err))
			os.Exit(1)
		}
		return
	}

	healthServer := NewHealthServer(transformer, m, cfg.Service.HealthPort, logger)
	go func() {
		if err := healthServer.Start(); err != nil {
			logger.Error("health server error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		errChan <- transformer.Start(ctx)
	}()

	select {
	case <-sigChan:
		logger.Info("received shutdown signal")
		transformer.Stop()
		logger.Info("graceful shutdown complete")
	case err := <-errChan:
		if err != nil {
			log.Fatalf("Transformer error: %v", err)
		}
	}
}
