// Package store persists raw counts, derived indices, and incident tallies.
package store

import (
	"context"
	"time"

	"github.com/urbanhealthlab/icemapper/internal/ice"
	"github.com/urbanhealthlab/icemapper/internal/incident"
)

// RunStatus is the lifecycle state of a recorded pipeline run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run records one invocation of a pipeline stage.
type Run struct {
	ID         string         `json:"id"`
	Kind       string         `json:"kind"` // fetch, incidents, compute, export, run
	Status     RunStatus      `json:"status"`
	Summary    map[string]any `json:"summary,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// Store defines the persistence interface for the index pipeline.
// Raw counts and indices are keyed by (geo_id, vintage); writes are
// idempotent upserts so a recompute replaces rather than duplicates.
type Store interface {
	// Raw ACS counts
	UpsertRawCounts(ctx context.Context, vintage int, recs []ice.TractRawCounts) (int64, error)
	ListRawCounts(ctx context.Context, vintage int) ([]ice.TractRawCounts, error)

	// Derived indices
	UpsertIndices(ctx context.Context, vintage int, recs []ice.TractIndices) (int64, error)
	ListIndices(ctx context.Context, vintage int) ([]ice.TractIndices, error)

	// Incident tallies
	UpsertIncidentCounts(ctx context.Context, counts []incident.TractCounts) (int64, error)
	ListIncidentCounts(ctx context.Context) ([]incident.TractCounts, error)

	// Run accounting
	CreateRun(ctx context.Context, kind string) (*Run, error)
	FinishRun(ctx context.Context, runID string, summary map[string]any, runErr error) error

	// Lifecycle
	Counts(ctx context.Context) (map[string]int64, error)
	Migrate(ctx context.Context) error
	Close() error
}

// countTables lists the tables reported by Counts, in display order.
var countTables = []string{"tract_raw_counts", "tract_indices", "incident_counts", "runs"}
