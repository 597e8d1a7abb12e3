// Package store persists analysis runs: the operation, its parameters, the
// result collection, and the diagnostics it produced.
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/areal-labs/overlay-cli/internal/feature"
)

// RunStatus is the lifecycle state of a run.
type RunStatus string

// Run statuses.
const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one recorded analysis invocation.
type Run struct {
	ID           string               `json:"id"`
	Op           string               `json:"op"`
	Params       json.RawMessage      `json:"params,omitempty"`
	Status       RunStatus            `json:"status"`
	FeatureCount int                  `json:"feature_count"`
	Diagnostics  []feature.Diagnostic `json:"diagnostics,omitempty"`
	Result       json.RawMessage      `json:"result,omitempty"`
	Error        string               `json:"error,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// Store records runs. Implementations must be safe for concurrent use.
type Store interface {
	Migrate(ctx context.Context) error
	// CreateRun records a new running run with the given op and params.
	CreateRun(ctx context.Context, op string, params any) (*Run, error)
	// FinishRun marks a run completed with its result payload and
	// diagnostics.
	FinishRun(ctx context.Context, id string, featureCount int, result []byte, diags []feature.Diagnostic) error
	// FailRun marks a run failed with a reason.
	FailRun(ctx context.Context, id string, reason string) error
	GetRun(ctx context.Context, id string) (*Run, error)
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]Run, error)
	Close() error
}
