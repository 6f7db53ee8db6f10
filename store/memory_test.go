package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/constellation-run/constellation/dag"
	"github.com/constellation-run/constellation/semtype"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore_InterfaceContract(t *testing.T) {
	var _ Store = (*MemoryStore)(nil)
}

func TestMemoryStore_SaveLoadRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	cp := Checkpoint{
		ExecutionID:     "exec-1",
		PipelineName:    "pipe",
		Status:          StatusSuspended,
		SuspendedAt:     dag.ModuleNodeId(3),
		ResumeCondition: "module[3].cache_ms expired",
		CompletedData:   map[dag.DataNodeId]semtype.Value{1: semtype.IntV(5)},
		Inputs:          map[string]semtype.Value{"x": semtype.Str("hi")},
	}
	require.NoError(t, s.Save(ctx, cp))

	got, err := s.Load(ctx, "exec-1")
	require.NoError(t, err)
	require.Equal(t, cp.PipelineName, got.PipelineName)
	require.Equal(t, cp.Status, got.Status)
	require.Equal(t, cp.SuspendedAt, got.SuspendedAt)
	require.Equal(t, cp.CompletedData[1].Int, got.CompletedData[1].Int)
	require.Equal(t, cp.Inputs["x"].Str, got.Inputs["x"].Str)
	require.False(t, got.CreatedAt.IsZero())
}

func TestMemoryStore_LoadMissing(t *testing.T) {
	s := NewMemoryStore()
	_, err := s.Load(context.Background(), "nope")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestMemoryStore_SavePreservesCreatedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	cp := Checkpoint{ExecutionID: "exec-1", PipelineName: "pipe", Status: StatusSuspended}
	require.NoError(t, s.Save(ctx, cp))
	first, _ := s.Load(ctx, "exec-1")

	time.Sleep(2 * time.Millisecond)
	cp.Status = StatusCompleted
	require.NoError(t, s.Save(ctx, cp))
	second, _ := s.Load(ctx, "exec-1")

	require.Equal(t, first.CreatedAt, second.CreatedAt)
	require.True(t, second.UpdatedAt.After(first.UpdatedAt) || second.UpdatedAt.Equal(first.UpdatedAt))
	require.Equal(t, StatusCompleted, second.Status)
}

func TestMemoryStore_Delete(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, Checkpoint{ExecutionID: "exec-1", PipelineName: "pipe"}))
	require.NoError(t, s.Delete(ctx, "exec-1"))
	_, err := s.Load(ctx, "exec-1")
	require.True(t, errors.Is(err, ErrNotFound))

	// Deleting an unknown id is a no-op, not an error.
	require.NoError(t, s.Delete(ctx, "exec-1"))
}

func TestMemoryStore_ListFiltersByPipelineAndOrdersByRecency(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Save(ctx, Checkpoint{ExecutionID: "a", PipelineName: "p1"}))
	time.Sleep(2 * time.Millisecond)
	require.NoError(t, s.Save(ctx, Checkpoint{ExecutionID: "b", PipelineName: "p1"}))
	require.NoError(t, s.Save(ctx, Checkpoint{ExecutionID: "c", PipelineName: "p2"}))

	p1, err := s.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p1, 2)
	require.Equal(t, "b", p1[0].ExecutionID)

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 3)
}
