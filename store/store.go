// Package store implements persistence for the §6 suspended-execution
// checkpoint layout: one Store interface, with an in-memory backend (tests,
// default) and SQLite/MySQL backends adapted from the teacher's
// graph/store, which persists a generic workflow Store[S] the same way.
// Constellation's checkpoint shape is fixed (not generic over S) because
// §6 names its fields explicitly: execution_id, pipeline_name, status,
// suspended_at, resume_condition, completed_data, inputs, created_at,
// updated_at.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/constellation-run/constellation/dag"
	"github.com/constellation-run/constellation/semtype"
)

// ErrNotFound is returned when a requested execution_id has no checkpoint.
var ErrNotFound = errors.New("store: checkpoint not found")

// Status mirrors the suspended execution's lifecycle at checkpoint time.
type Status string

const (
	StatusSuspended Status = "suspended"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Checkpoint is the §6 "Persisted state layout": enough to reconstitute an
// ExecutionState and resume the scheduler from suspended_at.
type Checkpoint struct {
	ExecutionID     string
	PipelineName    string
	Status          Status
	SuspendedAt     dag.ModuleNodeId
	ResumeCondition string
	CompletedData   map[dag.DataNodeId]semtype.Value
	Inputs          map[string]semtype.Value
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Store persists and restores execution checkpoints. Implementations must
// be safe for concurrent use.
type Store interface {
	// Save inserts or replaces the checkpoint for cp.ExecutionID, setting
	// UpdatedAt to now and CreatedAt to now on first insert only.
	Save(ctx context.Context, cp Checkpoint) error

	// Load returns the checkpoint for executionID, or ErrNotFound.
	Load(ctx context.Context, executionID string) (Checkpoint, error)

	// Delete removes the checkpoint for executionID. Idempotent.
	Delete(ctx context.Context, executionID string) error

	// List returns every checkpoint for pipelineName, most recently updated
	// first. An empty pipelineName matches every pipeline.
	List(ctx context.Context, pipelineName string) ([]Checkpoint, error)

	// Close releases any resources the backend holds open.
	Close() error
}
