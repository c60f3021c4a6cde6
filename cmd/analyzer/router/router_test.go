package router

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cellwatch/cellwatch/pkg/health"
	"github.com/cellwatch/cellwatch/pkg/storage"
)

func TestSetupRoutes(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	mux := SetupRoutes(store, 2*time.Minute, logger)

	if mux == nil {
		t.Fatal("SetupRoutes() returned nil")
	}
}

func TestHealthEndpoint(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := SetupRoutes(store, 2*time.Minute, logger)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	if body != "OK" {
		t.Errorf("body = %q, want %q", body, "OK")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := SetupRoutes(store, 2*time.Minute, logger)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}

	// Metrics endpoint should return prometheus text format
	contentType := w.Header().Get("Content-Type")
	if contentType == "" {
		t.Error("Content-Type header should be set for metrics endpoint")
	}
}

func TestGetSnapshot_MissingBattery(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := SetupRoutes(store, 2*time.Minute, logger)

	req := httptest.NewRequest(http.MethodGet, "/analysis/current", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetSnapshot_InvalidBatteryName(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := SetupRoutes(store, 2*time.Minute, logger)

	req := httptest.NewRequest(http.MethodGet, "/analysis/current?battery=-bad-name-", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestGetSnapshot_NotFound(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mux := SetupRoutes(store, 2*time.Minute, logger)

	req := httptest.NewRequest(http.MethodGet, "/analysis/current?battery=nonexistent", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestGetSnapshot_Success(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Store a snapshot
	snapshot := storage.Snapshot{
		Battery:     "pack-001",
		GeneratedAt: time.Now(),
		SkippedRows: 2,
		Curve:       []health.Point{{Cycle: 1, SoH: 100}, {Cycle: 2, SoH: 99.5}},
		Assessment:  health.Assessment{SoH: 99.5, RUL: 400, Grade: health.GradeA, Status: health.StatusHealthy},
	}
	err := store.Put(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("failed to put snapshot: %v", err)
	}

	mux := SetupRoutes(store, 2*time.Minute, logger)

	req := httptest.NewRequest(http.MethodGet, "/analysis/current?battery=pack-001", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}

	// Check Content-Type
	contentType := w.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q, want %q", contentType, "application/json")
	}

	// Check that X-Cellwatch-Stale is not set (snapshot is fresh)
	staleHeader := w.Header().Get("X-Cellwatch-Stale")
	if staleHeader == "true" {
		t.Error("snapshot should not be marked as stale")
	}
}

func TestGetSnapshot_Stale(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	// Store an old snapshot
	snapshot := storage.Snapshot{
		Battery:     "pack-001",
		GeneratedAt: time.Now().Add(-5 * time.Minute), // 5 minutes ago
		Curve:       []health.Point{{Cycle: 1, SoH: 100}},
		Assessment:  health.Assessment{SoH: 100, RUL: 500, Grade: health.GradeA, Status: health.StatusHealthy},
	}
	err := store.Put(context.Background(), snapshot)
	if err != nil {
		t.Fatalf("failed to put snapshot: %v", err)
	}

	mux := SetupRoutes(store, 2*time.Minute, logger) // Stale after 2 minutes

	req := httptest.NewRequest(http.MethodGet, "/analysis/current?battery=pack-001", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status code = %d, want %d", w.Code, http.StatusOK)
	}

	// Check that X-Cellwatch-Stale header is set
	staleHeader := w.Header().Get("X-Cellwatch-Stale")
	if staleHeader != "true" {
		t.Error("snapshot should be marked as stale")
	}
}

func TestGetSnapshot_JSONResponse(t *testing.T) {
	store := storage.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	now := time.Now()
	snapshot := storage.Snapshot{
		Battery:     "pack-001",
		GeneratedAt: now,
		SkippedRows: 1,
		Curve:       []health.Point{{Cycle: 1, SoH: 100}, {Cycle: 2, SoH: 99.5}},
		Assessment:  health.Assessment{SoH: 99.5, RUL: 400, Grade: health.GradeA, Status: health.StatusHealthy},
	}
	if err := store.Put(context.Background(), snapshot); err != nil {
		t.Fatalf("failed to put snapshot: %v", err)
	}

	mux := SetupRoutes(store, 2*time.Minute, logger)

	req := httptest.NewRequest(http.MethodGet, "/analysis/current?battery=pack-001", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	// Parse JSON and verify fields
	body := w.Body.String()
	if body == "" {
		t.Fatal("response body is empty")
	}

	// Check for expected JSON fields
	expectedFields := []string{
		"\"battery\"",
		"\"generatedAt\"",
		"\"skippedRows\"",
		"\"curve\"",
		"\"assessment\"",
		"\"anomalies\"",
		"\"forecast\"",
	}

	for _, field := range expectedFields {
		if !contains(body, field) {
			t.Errorf("response missing field %s", field)
		}
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (s == substr || len(s) > len(substr) && findSubstring(s, substr))
}

func findSubstring(s, substr string) bool {
	for i := 0; i <= len(s)-len(substr); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}
