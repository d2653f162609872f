// Package transform orchestrates the warehouse transformations as an
// explicit task graph: cleaned staging models, dimension builders,
// incremental fact builders, then the quality gate, in dependency order.
package transform

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/metrics"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/quality"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/transform/models"
	"github.com/shaneMcCabe2/crypto-market-monitoring-pipeline/warehouse"
)

// Task names.
const (
	TaskStgPrices    = "stg_prices"
	TaskStgSentiment = "stg_sentiment"
	TaskDimTimestamp = "dim_timestamp"
	TaskDimCoin      = "dim_coin"
	TaskQualityGate  = "quality_gate"
)

// Stats holds transformation statistics surfaced by the health endpoint.
type Stats struct {
	RunsTotal        int64
	RunErrors        int64
	QualityFailures  int64
	LastRunID        string
	LastRunTime      time.Time
	LastRunDuration  time.Duration
	LastRowsAppended int64
}

// Transformer executes transformation cycles against the warehouse.
type Transformer struct {
	wh       *warehouse.Client
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *zap.Logger
	stopChan chan struct{}
	stopOnce sync.Once

	staging *models.StagingModels
	dims    *models.DimensionBuilder
	facts   *models.FactBuilder
	gate    *quality.Gate

	mu    sync.RWMutex
	stats Stats
}

// NewTransformer wires the task implementations against an opened warehouse.
func NewTransformer(wh *warehouse.Client, interval time.Duration, m *metrics.Metrics, logger *zap.Logger) *Transformer {
	cursors := models.NewCursorStore(wh.DB, wh.MartsRef("transform_cursor"))

	return &Transformer{
		wh:       wh,
		interval: interval,
		metrics:  m,
		logger:   logger,
		stopChan: make(chan struct{}),
		staging:  models.NewStagingModels(wh.DB, wh.StagingSchema()),
		dims:     models.NewDimensionBuilder(wh.DB, wh.StagingSchema(), wh.MartsSchema()),
		facts:    models.NewFactBuilder(wh.DB, wh.StagingSchema(), wh.MartsSchema(), cursors),
		gate: quality.NewGate(wh.DB,
			quality.DefaultChecks(wh.StagingSchema(), wh.MartsSchema()),
			wh.MartsRef("quality_check_results"), logger),
	}
}

// graph builds the cycle's task graph. Built fresh per cycle so each fact
// task can capture its own result for stats.
func (t *Transformer) graph(appended *int64) (*Graph, error) {
	g := NewGraph()

	tasks := []Task{
		{
			Name:            TaskStgPrices,
			Materialization: FullRefresh,
			Run:             t.staging.BuildPrices,
		},
		{
			Name:            TaskStgSentiment,
			Materialization: FullRefresh,
			Run:             t.staging.BuildSentiment,
		},
		{
			Name:            TaskDimTimestamp,
			DependsOn:       []string{TaskStgPrices, TaskStgSentiment},
			Materialization: FullRefresh,
			Run:             t.dims.BuildTimestampDim,
		},
		{
			Name:            TaskDimCoin,
			DependsOn:       []string{TaskStgPrices},
			Materialization: FullRefresh,
			Run:             t.dims.BuildCoinDim,
		},
		{
			Name:            models.TaskFactPriceSnapshots,
			DependsOn:       []string{TaskDimTimestamp, TaskDimCoin},
			Materialization: Incremental,
			Run: func(ctx context.Context) error {
				res, err := t.facts.BuildPriceSnapshots(ctx)
				if err != nil {
					return err
				}
				t.recordFact(res, appended)
				return nil
			},
		},
		{
			Name:            models.TaskFactSentiment,
			DependsOn:       []string{TaskDimTimestamp},
			Materialization: Incremental,
			Run: func(ctx context.Context) error {
				res, err := t.facts.BuildSentiment(ctx)
				if err != nil {
					return err
				}
				t.recordFact(res, appended)
				return nil
			},
		},
	}

	for _, task := range tasks {
		run := task.Run
		name, mat := task.Name, task.Materialization
		task.Run = func(ctx context.Context) error {
			t.logger.Info("running task",
				zap.String("task", name),
				zap.String("materialization", string(mat)))
			if err := run(ctx); err != nil {
				return err
			}
			t.metrics.TasksRun.WithLabelValues(name, string(mat)).Inc()
			return nil
		}
		if err := g.Add(task); err != nil {
			return nil, err
		}
	}

	return g, nil
}

func (t *Transformer) recordFact(res models.FactResult, appended *int64) {
	*appended += res.RowsAppended
	t.metrics.RowsAppended.WithLabelValues(res.Task).Add(float64(res.RowsAppended))
	if res.Advanced {
		t.metrics.CursorPosition.WithLabelValues(res.Task).Set(float64(res.NewPosition.Unix()))
	}
	t.logger.Info("fact append complete",
		zap.String("task", res.Task),
		zap.Int64("rows", res.RowsAppended),
		zap.Bool("cursor_advanced", res.Advanced),
		zap.Time("cursor_position", res.NewPosition))
}

// RunCycle executes one full transformation pass: task graph, then quality
// gate. A quality failure marks the run failed but never rolls data back;
// a task failure aborts the cycle at that task.
func (t *Transformer) RunCycle(ctx context.Context) error {
	start := time.Now()
	runID := uuid.NewString()
	var appended int64

	t.logger.Info("starting transformation cycle", zap.String("run_id", runID))

	g, err := t.graph(&appended)
	if err != nil {
		t.failRun(err, "error")
		return err
	}

	if err := g.Execute(ctx); err != nil {
		t.failRun(err, "error")
		return err
	}

	report, err := t.gate.Run(ctx, runID)
	for _, failure := range report.Failures() {
		t.metrics.QualityFailures.WithLabelValues(failure.CheckName).Inc()
	}
	if err != nil {
		if errors.Is(err, quality.ErrGateFailed) {
			t.mu.Lock()
			t.stats.QualityFailures++
			t.mu.Unlock()
			t.metrics.RunsTotal.WithLabelValues("quality_failed").Inc()
			return fmt.Errorf("run %s failed quality gate: %w", runID, err)
		}
		t.failRun(err, "error")
		return err
	}

	duration := time.Since(start)
	t.mu.Lock()
	t.stats.RunsTotal++
	t.stats.LastRunID = runID
	t.stats.LastRunTime = time.Now().UTC()
	t.stats.LastRunDuration = duration
	t.stats.LastRowsAppended = appended
	t.mu.Unlock()

	t.metrics.RunsTotal.WithLabelValues("success").Inc()
	t.metrics.ObserveCycle(duration)

	t.logger.Info("transformation cycle complete",
		zap.String("run_id", runID),
		zap.Int64("fact_rows_appended", appended),
		zap.Duration("duration", duration))

	return nil
}

func (t *Transformer) failRun(err error, status string) {
	t.mu.Lock()
	t.stats.RunErrors++
	t.mu.Unlock()
	t.metrics.RunsTotal.WithLabelValues(status).Inc()
}

// Start runs an immediate cycle, then polls on the configured interval until
// Stop is called. Cycle errors are logged, not fatal: the next tick retries
// from the persisted cursor.
func (t *Transformer) Start(ctx context.Context) error {
	t.logger.Info("starting transform service", zap.Duration("interval", t.interval))

	if err := t.RunCycle(ctx); err != nil {
		t.logger.Error("initial transformation cycle failed", zap.Error(err))
	}

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := t.RunCycle(ctx); err != nil {
				t.logger.Error("transformation cycle failed", zap.Error(err))
			}
		case <-t.stopChan:
			t.logger.Info("stopping transform service")
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stop signals the service loop to exit.
func (t *Transformer) Stop() {
	t.stopOnce.Do(func() { close(t.stopChan) })
}

// GetStats returns a copy of the current statistics.
func (t *Transformer) GetStats() Stats {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.stats
}
