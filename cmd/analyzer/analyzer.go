// Package main implements the core analysis loop orchestration.
//
// This file contains the Analyzer type which orchestrates the analysis pipeline:
//
//	collect → normalize → groupCycles → assess → detectAnomalies → forecast → storeSnapshot
//
// The Analyzer runs continuously via Run(), executing Tick() at regular intervals.
// Each tick performs one complete analysis pass, replacing the stored snapshot
// that clients consume via HTTP API.
//
// The loop is instrumented with Prometheus metrics tracking the duration of
// each pipeline stage (collect, normalize, analyze) and any errors encountered
// during execution.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cellwatch/cellwatch/cmd/analyzer/metrics"
	"github.com/cellwatch/cellwatch/pkg/anomaly"
	"github.com/cellwatch/cellwatch/pkg/forecast"
	"github.com/cellwatch/cellwatch/pkg/health"
	"github.com/cellwatch/cellwatch/pkg/ingest"
	"github.com/cellwatch/cellwatch/pkg/normalize"
	"github.com/cellwatch/cellwatch/pkg/storage"
)

// Analyzer orchestrates the analysis loop: collect → normalize → assess → store.
type Analyzer struct {
	battery    string
	adapter    ingest.Adapter
	normalizer *normalize.Normalizer
	detector   *anomaly.Detector
	store      storage.Store
	horizon    int
	eolPercent float64
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// New creates a new Analyzer.
func New(
	battery string,
	adapter ingest.Adapter,
	normalizer *normalize.Normalizer,
	detector *anomaly.Detector,
	store storage.Store,
	horizon int,
	eolPercent float64,
	logger *slog.Logger,
	metrics *metrics.Metrics,
) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}

	return &Analyzer{
		battery:    battery,
		adapter:    adapter,
		normalizer: normalizer,
		detector:   detector,
		store:      store,
		horizon:    horizon,
		eolPercent: eolPercent,
		logger:     logger,
		metrics:    metrics,
	}
}

// Run executes the analysis loop at regular intervals.
// Blocks until context is canceled.
func (a *Analyzer) Run(ctx context.Context, interval time.Duration) error {
	a.logger.Info("starting analysis loop", "interval", interval, "battery", a.battery)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := a.Tick(ctx); err != nil {
		a.logger.Error("initial analysis tick failed", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("analysis loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := a.Tick(ctx); err != nil {
				a.logger.Error("analysis tick failed", "error", err)
			}
		}
	}
}

// Tick performs one analysis pass.
// Exported for testing purposes.
func (a *Analyzer) Tick(ctx context.Context) error {
	start := time.Now()
	a.logger.Debug("starting analysis tick")

	rs, collectDuration, err := a.collect(ctx)
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordError("source", "collect_failed")
		}
		return fmt.Errorf("collect: %w", err)
	}

	cycles, binding, normalizeDuration, err := a.buildCycles(rs)
	if err != nil {
		if a.metrics != nil {
			a.metrics.RecordError("normalize", "resolve_failed")
		}
		return fmt.Errorf("normalize: %w", err)
	}

	snapshot, analyzeDuration := a.analyze(cycles, binding.SkippedRows)

	if err := a.store.Put(ctx, snapshot); err != nil {
		if a.metrics != nil {
			a.metrics.RecordError("store", "put_failed")
		}
		return fmt.Errorf("store: %w", err)
	}

	// Update metrics
	if a.metrics != nil {
		a.metrics.SetSnapshotAge(0) // Just generated
		a.metrics.SetSoH(snapshot.Assessment.SoH)
		a.metrics.SetRUL(snapshot.Assessment.RUL)
		a.metrics.SetAnomalies(len(snapshot.Anomalies))
		a.metrics.SetSkippedRows(snapshot.SkippedRows)
	}

	totalDuration := time.Since(start)
	a.logger.Info("analysis tick complete",
		"battery", a.battery,
		"cycles", len(cycles),
		"soh", snapshot.Assessment.SoH,
		"rul", snapshot.Assessment.RUL,
		"grade", snapshot.Assessment.Grade,
		"status", snapshot.Assessment.Status,
		"anomalies", len(snapshot.Anomalies),
		"skipped_rows", snapshot.SkippedRows,
		"collect_ms", collectDuration.Milliseconds(),
		"normalize_ms", normalizeDuration.Milliseconds(),
		"analyze_ms", analyzeDuration.Milliseconds(),
		"total_ms", totalDuration.Milliseconds(),
	)

	return nil
}

// collect retrieves raw records from the adapter.
func (a *Analyzer) collect(ctx context.Context) (*normalize.RecordSet, time.Duration, error) {
	start := time.Now()

	rs, err := a.adapter.Collect(ctx)
	if err != nil {
		return nil, 0, err
	}

	duration := time.Since(start)

	// Record metrics
	if a.metrics != nil {
		a.metrics.RecordCollect(duration.Seconds())
	}

	a.logger.Info("collected records",
		"source", a.adapter.Name(),
		"rows", len(rs.Rows),
		"columns", len(rs.Columns),
		"duration_ms", duration.Milliseconds(),
	)

	return rs, duration, nil
}

// buildCycles resolves fields, normalizes rows, and groups them into cycles.
func (a *Analyzer) buildCycles(rs *normalize.RecordSet) ([]normalize.Cycle, normalize.Binding, time.Duration, error) {
	start := time.Now()

	samples, binding, err := a.normalizer.Normalize(rs)
	if err != nil {
		return nil, normalize.Binding{}, 0, err
	}

	cycles := normalize.GroupCycles(samples, binding)

	duration := time.Since(start)

	if a.metrics != nil {
		a.metrics.RecordNormalize(duration.Seconds())
	}

	a.logger.Debug("built cycles",
		"samples", len(samples),
		"cycles", len(cycles),
		"skipped_rows", binding.SkippedRows,
		"duration_ms", duration.Milliseconds(),
	)

	return cycles, binding, duration, nil
}

// analyze derives the SoH curve, assessment, anomalies, and forecast.
func (a *Analyzer) analyze(cycles []normalize.Cycle, skippedRows int) (storage.Snapshot, time.Duration) {
	start := time.Now()

	curve := health.Curve(cycles)
	assessment := health.AssessAt(curve, len(cycles), a.eolPercent)
	events := a.detector.Detect(cycles)
	result := forecast.NewEngine().Run(curve, a.horizon)

	duration := time.Since(start)

	if a.metrics != nil {
		a.metrics.RecordAnalyze(duration.Seconds())
	}

	a.logger.Debug("analysis computed",
		"curve_points", len(curve),
		"model", result.Model,
		"accuracy", result.Accuracy,
		"duration_ms", duration.Milliseconds(),
	)

	return storage.Snapshot{
		Battery:     a.battery,
		GeneratedAt: time.Now(),
		SkippedRows: skippedRows,
		Curve:       curve,
		Assessment:  assessment,
		Anomalies:   events,
		Forecast:    result,
	}, duration
}

// GetStore returns the underlying store for HTTP handlers.
func (a *Analyzer) GetStore() storage.Store {
	return a.store
}

// GetBattery returns the battery identifier.
func (a *Analyzer) GetBattery() string {
	return a.battery
}
