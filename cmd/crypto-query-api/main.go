package main

import (
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/config"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/insights"
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

	service := insights.NewService(wh.DB, wh.MartsSchema(), logger)

	server := &http.Server{
		Addr:         cfg.QueryAPI.ListenAddr,
		Handler:      service.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	logger.Info("insights API listening", zap.String("addr", cfg.QueryAPI.ListenAddr))
	if err := server.ListenAndServe(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
