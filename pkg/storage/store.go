package storage

import (
	"context"
	"time"

	"github.com/cellwatch/cellwatch/pkg/anomaly"
	"github.com/cellwatch/cellwatch/pkg/forecast"
	"github.com/cellwatch/cellwatch/pkg/health"
)

// Snapshot is the complete output of one analysis run for one battery.
// A new run replaces the previous snapshot wholesale; partial updates do
// not exist.
type Snapshot struct {
	Battery     string    `json:"battery"`
	GeneratedAt time.Time `json:"generatedAt"`

	// SkippedRows counts raw records rejected during normalization.
	SkippedRows int `json:"skippedRows"`

	Curve      []health.Point    `json:"curve"`
	Assessment health.Assessment `json:"assessment"`
	Anomalies  []anomaly.Event   `json:"anomalies"`
	Forecast   forecast.Result   `json:"forecast"`
}

type Store interface {
	Put(ctx context.Context, snapshot Snapshot) error
	GetLatest(ctx context.Context, battery string) (Snapshot, bool, error)
}
