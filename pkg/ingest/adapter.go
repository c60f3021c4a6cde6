// Package ingest provides data source connectors that retrieve raw battery
// test records from external systems and shape them into a common RecordSet
// for normalization.
//
// Each connector implements the Adapter interface. Available adapters:
//   - HTTPAdapter   — generic connector for any REST API with JSON responses
//   - CSVAdapter    — reads cycler export files from disk
//   - StaticAdapter — serves an in-memory dataset, mainly for tests
//
// Adapters are intentionally lightweight. They pull raw records, shape them
// into [normalize.RecordSet] objects, and leave field resolution, phase
// inference, and all analytics to the upper layers.
package ingest

import (
	"context"

	"github.com/cellwatch/cellwatch/pkg/normalize"
)

// Adapter is the interface all data source connectors implement.
//
// Collect fetches the full dataset for one battery and returns it as a
// RecordSet. It is synchronous and must respect context cancellation and
// deadlines. Transient errors are returned, never panicked.
type Adapter interface {
	Collect(ctx context.Context) (*normalize.RecordSet, error)

	// Name returns a short, unique identifier for the adapter.
	// Example: "http", "csv", "static".
	Name() string
}

// StaticAdapter serves a fixed RecordSet. Collect returns a shallow copy of
// the row slice so callers cannot reorder the source.
type StaticAdapter struct {
	Records normalize.RecordSet
}

func (s *StaticAdapter) Name() string { return "static" }

func (s *StaticAdapter) Collect(ctx context.Context) (*normalize.RecordSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := normalize.RecordSet{
		Columns: append([]string(nil), s.Records.Columns...),
		Rows:    append([]normalize.Row(nil), s.Records.Rows...),
	}
	return &out, nil
}
