package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/metrics"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/transform"
)

// HealthServer serves the health, readiness, and metrics endpoints for the
// transform service.
type HealthServer struct {
	transformer *transform.Transformer
	metrics     *metrics.Metrics
	port        string
	startTime   time.Time
	logger      *zap.Logger
}

// NewHealthServer creates a health server.
func NewHealthServer(t *transform.Transformer, m *metrics.Metrics, port string, logger *zap.Logger) *HealthServer {
	return &HealthServer{
		transformer: t,
		metrics:     m,
		port:        port,
		startTime:   time.Now(),
		logger:      logger,
	}
}

// Start starts the health and metrics HTTP server.
func (h *HealthServer) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/ready", h.handleReady)
	mux.HandleFunc("/live", h.handleLive)
	mux.Handle("/metrics", h.metrics.Handler())

	addr := ":" + h.port
	h.logger.Info("health server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, mux)
}

func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	stats := h.transformer.GetStats()

	health := map[string]any{
		"status":         "healthy",
		"service":        "crypto-transform",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
		"stats": map[string]any{
			"runs_total":            stats.RunsTotal,
			"run_errors":            stats.RunErrors,
			"quality_failures":      stats.QualityFailures,
			"last_run_id":           stats.LastRunID,
			"last_run_time":         stats.LastRunTime,
			"last_run_duration_sec": stats.LastRunDuration.Seconds(),
			"last_rows_appended":    stats.LastRowsAppended,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(health)
}

func (h *HealthServer) handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ready")
}

func (h *HealthServer) handleLive(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "live")
}
