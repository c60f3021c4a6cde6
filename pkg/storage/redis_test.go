//go:build integration

package storage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/cellwatch/cellwatch/pkg/forecast"
	"github.com/cellwatch/cellwatch/pkg/health"
)

// setupRedisContainer starts a Redis container for testing
func setupRedisContainer(t *testing.T) (*redis.RedisContainer, string) {
	t.Helper()

	ctx := context.Background()

	redisContainer, err := redis.Run(ctx,
		"redis:7-alpine",
		redis.WithSnapshotting(10, 1),
		redis.WithLogLevel(redis.LogLevelVerbose),
	)
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}

	// Get the connection string and strip redis:// prefix
	endpoint, err := redisContainer.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}

	// Strip "redis://" prefix if present
	addr := endpoint
	if len(endpoint) > 8 && endpoint[:8] == "redis://" {
		addr = endpoint[8:]
	}

	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(redisContainer); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	return redisContainer, addr
}

func TestRedisStore_NewRedisStore_Success(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	defer store.Close()

	// Verify Ping succeeds
	ctx := context.Background()
	if err := store.Ping(ctx); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}

func TestRedisStore_NewRedisStore_InvalidAddr(t *testing.T) {
	_, err := NewRedisStore("invalid:99999", "", 0, 1*time.Minute)
	if err == nil {
		t.Fatal("expected error for invalid address, got nil")
	}
}

func TestRedisStore_NewRedisStore_EmptyAddr(t *testing.T) {
	_, err := NewRedisStore("", "", 0, 1*time.Minute)
	if err == nil {
		t.Fatal("expected error for empty address, got nil")
	}
	if err.Error() != "redis address cannot be empty" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestRedisStore_NewRedisStore_InvalidDB(t *testing.T) {
	_, err := NewRedisStore("localhost:6379", "", -1, 1*time.Minute)
	if err == nil {
		t.Fatal("expected error for negative db number, got nil")
	}
	if err.Error() != "redis database number must be >= 0" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestRedisStore_Put_Success(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	snapshot := Snapshot{
		Battery:     "pack-001",
		GeneratedAt: time.Now(),
		Curve: []health.Point{
			{Cycle: 1, SoH: 100}, {Cycle: 2, SoH: 99.2},
		},
		Assessment: health.Assessment{SoH: 99.2, RUL: 480, Grade: health.GradeA},
	}

	if err := store.Put(context.Background(), snapshot); err != nil {
		t.Errorf("Put failed: %v", err)
	}

	// Verify key exists in Redis
	ctx := context.Background()
	exists, err := store.client.Exists(ctx, "cellwatch:analysis:pack-001").Result()
	if err != nil {
		t.Fatalf("failed to check key existence: %v", err)
	}
	if exists != 1 {
		t.Error("expected key to exist in Redis")
	}
}

func TestRedisStore_Put_EmptyBattery(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	snapshot := Snapshot{
		Battery: "",
	}

	err = store.Put(context.Background(), snapshot)
	if err == nil {
		t.Fatal("expected error for empty battery, got nil")
	}
	if err.Error() != "battery identifier required" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestRedisStore_Put_InvalidBatteryName(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	snapshot := Snapshot{
		Battery: "invalid/battery",
	}

	err = store.Put(context.Background(), snapshot)
	if err == nil {
		t.Fatal("expected error for invalid battery identifier, got nil")
	}
}

func TestRedisStore_GetLatest_Success(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	// Put a snapshot
	originalSnapshot := Snapshot{
		Battery:     "pack-001",
		GeneratedAt: time.Now().Truncate(time.Second), // Truncate for comparison
		SkippedRows: 3,
		Curve: []health.Point{
			{Cycle: 1, SoH: 100}, {Cycle: 2, SoH: 99.2}, {Cycle: 3, SoH: 98.5},
		},
		Assessment: health.Assessment{SoH: 98.5, RUL: 460, Grade: health.GradeA, Derived: true},
	}

	if err := store.Put(context.Background(), originalSnapshot); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Get it back
	snapshot, found, err := store.GetLatest(context.Background(), "pack-001")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if !found {
		t.Fatal("expected snapshot to be found")
	}

	// Verify snapshot matches
	if snapshot.Battery != originalSnapshot.Battery {
		t.Errorf("battery mismatch: got %s, want %s", snapshot.Battery, originalSnapshot.Battery)
	}
	if snapshot.SkippedRows != originalSnapshot.SkippedRows {
		t.Errorf("skipped rows mismatch: got %d, want %d", snapshot.SkippedRows, originalSnapshot.SkippedRows)
	}
	if len(snapshot.Curve) != len(originalSnapshot.Curve) {
		t.Errorf("curve length mismatch: got %d, want %d", len(snapshot.Curve), len(originalSnapshot.Curve))
	}
	if snapshot.Assessment != originalSnapshot.Assessment {
		t.Errorf("assessment mismatch: got %+v, want %+v", snapshot.Assessment, originalSnapshot.Assessment)
	}
}

func TestRedisStore_GetLatest_NotFound(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	snapshot, found, err := store.GetLatest(context.Background(), "nonexistent")
	if err != nil {
		t.Errorf("expected no error, got %v", err)
	}
	if found {
		t.Error("expected snapshot not to be found")
	}
	if snapshot.Battery != "" {
		t.Error("expected zero-value snapshot")
	}
}

func TestRedisStore_GetLatest_EmptyBattery(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	_, found, err := store.GetLatest(context.Background(), "")
	if err == nil {
		t.Fatal("expected error for empty battery, got nil")
	}
	if found {
		t.Error("expected found=false")
	}
	if err.Error() != "battery identifier required" {
		t.Errorf("unexpected error message: %v", err)
	}
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	_, addr := setupRedisContainer(t)

	// Create store with very short TTL
	store, err := NewRedisStore(addr, "", 0, 2*time.Second)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	snapshot := Snapshot{
		Battery:     "pack-001",
		GeneratedAt: time.Now(),
	}

	if err := store.Put(context.Background(), snapshot); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// Verify it exists immediately
	_, found, err := store.GetLatest(context.Background(), "pack-001")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if !found {
		t.Fatal("expected snapshot to be found immediately after Put")
	}

	// Wait for expiration
	time.Sleep(3 * time.Second)

	// Verify it's expired
	_, found, err = store.GetLatest(context.Background(), "pack-001")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if found {
		t.Error("expected snapshot to be expired")
	}
}

func TestRedisStore_Concurrency_MultiplePuts(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	// Launch 10 goroutines, each putting 10 snapshots
	var wg sync.WaitGroup
	numGoroutines := 10
	numPutsPerGoroutine := 10

	for i := range numGoroutines {
		wg.Add(1)
		go func(goroutineID int) {
			defer wg.Done()

			for j := range numPutsPerGoroutine {
				snapshot := Snapshot{
					Battery:     fmt.Sprintf("pack-%d-%d", goroutineID, j),
					GeneratedAt: time.Now(),
					Assessment:  health.Assessment{SoH: float64(j), RUL: j},
				}

				if err := store.Put(context.Background(), snapshot); err != nil {
					t.Errorf("Put failed in goroutine %d: %v", goroutineID, err)
				}
			}
		}(i)
	}

	wg.Wait()

	// Verify all snapshots were stored
	for i := range numGoroutines {
		for j := range numPutsPerGoroutine {
			battery := fmt.Sprintf("pack-%d-%d", i, j)
			_, found, err := store.GetLatest(context.Background(), battery)
			if err != nil {
				t.Errorf("GetLatest failed for %s: %v", battery, err)
			}
			if !found {
				t.Errorf("snapshot not found for %s", battery)
			}
		}
	}
}

func TestRedisStore_Serialization_RoundTrip(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	defer store.Close()

	// Create snapshot with all fields populated
	original := Snapshot{
		Battery:     "complex-pack",
		GeneratedAt: time.Now().Truncate(time.Second),
		SkippedRows: 7,
		Curve: []health.Point{
			{Cycle: 1, SoH: 100}, {Cycle: 2, SoH: 99.1}, {Cycle: 3, SoH: 98.4},
		},
		Assessment: health.Assessment{
			SoH:             98.4,
			RUL:             430,
			Grade:           health.GradeA,
			Status:          health.StatusHealthy,
			DegradationRate: 0.08,
			Derived:         true,
		},
		Forecast: forecast.Result{
			Model:    forecast.KindLinear,
			Accuracy: 0.97,
			Predictions: []forecast.Prediction{
				{Cycle: 4, SoH: 97.6, Confidence: 0.96, Risk: forecast.RiskLow},
			},
			Derived: true,
		},
	}

	if err := store.Put(context.Background(), original); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	retrieved, found, err := store.GetLatest(context.Background(), "complex-pack")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if !found {
		t.Fatal("expected snapshot to be found")
	}

	// Verify exact equality
	if retrieved.Battery != original.Battery {
		t.Errorf("battery mismatch: got %s, want %s", retrieved.Battery, original.Battery)
	}
	if retrieved.SkippedRows != original.SkippedRows {
		t.Errorf("skipped rows mismatch: got %d, want %d", retrieved.SkippedRows, original.SkippedRows)
	}
	if retrieved.Assessment != original.Assessment {
		t.Errorf("assessment mismatch: got %+v, want %+v", retrieved.Assessment, original.Assessment)
	}

	// Verify curve
	if len(retrieved.Curve) != len(original.Curve) {
		t.Fatalf("curve length mismatch: got %d, want %d", len(retrieved.Curve), len(original.Curve))
	}
	for i := range original.Curve {
		if retrieved.Curve[i] != original.Curve[i] {
			t.Errorf("curve[%d] mismatch: got %+v, want %+v", i, retrieved.Curve[i], original.Curve[i])
		}
	}

	// Verify forecast
	if retrieved.Forecast.Model != original.Forecast.Model {
		t.Errorf("forecast model mismatch: got %s, want %s", retrieved.Forecast.Model, original.Forecast.Model)
	}
	if len(retrieved.Forecast.Predictions) != len(original.Forecast.Predictions) {
		t.Fatalf("predictions length mismatch: got %d, want %d",
			len(retrieved.Forecast.Predictions), len(original.Forecast.Predictions))
	}
	for i := range original.Forecast.Predictions {
		if retrieved.Forecast.Predictions[i] != original.Forecast.Predictions[i] {
			t.Errorf("predictions[%d] mismatch: got %+v, want %+v",
				i, retrieved.Forecast.Predictions[i], original.Forecast.Predictions[i])
		}
	}
}

func TestRedisStore_Close_Idempotent(t *testing.T) {
	_, addr := setupRedisContainer(t)

	store, err := NewRedisStore(addr, "", 0, 1*time.Minute)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	// Call Close multiple times
	if err := store.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("third Close failed: %v", err)
	}
}
