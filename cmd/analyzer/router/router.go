// Package router configures HTTP routes for the analyzer's HTTP API.
//
// The analyzer exposes an HTTP server on port 8082 (configurable) that provides
// analysis snapshot retrieval, health checks, and Prometheus metrics. This
// package sets up the routes for that HTTP server.
//
// Routes configured:
//   - GET /analysis/current?battery=<id> - Retrieve latest analysis snapshot
//   - GET /healthz - Health check endpoint (returns 200 OK)
//   - GET /metrics - Prometheus metrics endpoint
//
// The /analysis/current endpoint returns snapshots in JSON format, including
// the SoH curve, health assessment, anomaly events, the forecast, and metadata
// (generated timestamp, skipped-row audit). Snapshots older than the stale
// threshold include an X-Cellwatch-Stale header.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cellwatch/cellwatch/pkg/httpx"
	"github.com/cellwatch/cellwatch/pkg/storage"
)

var batteryNameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9_-]{0,251}[a-zA-Z0-9])?$`)

// SetupRoutes configures HTTP endpoints for the analyzer.
func SetupRoutes(store storage.Store, staleAfter time.Duration, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.Handle("/healthz", httpx.HealthHandler())

	// Analysis snapshot endpoint
	mux.HandleFunc("/analysis/current", handleGetSnapshot(store, staleAfter, logger))

	// Prometheus metrics endpoint
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// handleGetSnapshot returns a handler for GET /analysis/current?battery=<id>.
func handleGetSnapshot(store storage.Store, staleAfter time.Duration, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		battery := r.URL.Query().Get("battery")
		if battery == "" {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "battery parameter required")
			return
		}

		if !batteryNameRegex.MatchString(battery) {
			httpx.WriteErrorMessage(w, http.StatusBadRequest, "invalid battery identifier format")
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		snapshot, found, err := store.GetLatest(ctx, battery)
		if err != nil {
			logger.Error("failed to get snapshot", "battery", battery, "error", err)
			httpx.WriteErrorMessage(w, http.StatusInternalServerError, "internal server error")
			return
		}

		if !found {
			httpx.WriteErrorMessage(w, http.StatusNotFound, fmt.Sprintf("snapshot not found for battery %q", battery))
			return
		}

		if time.Since(snapshot.GeneratedAt) > staleAfter {
			w.Header().Set("X-Cellwatch-Stale", "true")
		}

		if err := httpx.WriteJSON(w, http.StatusOK, snapshot); err != nil {
			logger.Error("failed to write JSON response", "error", err)
		}
	}
}
