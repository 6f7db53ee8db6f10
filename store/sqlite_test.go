package store

import (
	"context"
	"errors"
	"testing"

	"github.com/constellation-run/constellation/dag"
	"github.com/constellation-run/constellation/semtype"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	return s
}

func TestSQLiteStore_SaveLoadRoundTrip(t *testing.T) {
	s := newTestSQLiteStore(t)
	defer s.Close()
	ctx := context.Background()

	cp := Checkpoint{
		ExecutionID:     "exec-1",
		PipelineName:    "pipe",
		Status:          StatusSuspended,
		SuspendedAt:     dag.ModuleNodeId(7),
		ResumeCondition: "awaiting retry backoff",
		CompletedData:   map[dag.DataNodeId]semtype.Value{2: semtype.BoolV(true)},
		Inputs:          map[string]semtype.Value{"n": semtype.IntV(42)},
	}
	require.NoError(t, s.Save(ctx, cp))

	got, err := s.Load(ctx, "exec-1")
	require.NoError(t, err)
	require.Equal(t, cp.PipelineName, got.PipelineName)
	require.Equal(t, cp.Status, got.Status)
	require.Equal(t, cp.SuspendedAt, got.SuspendedAt)
	require.Equal(t, cp.ResumeCondition, got.ResumeCondition)
	require.Equal(t, true, got.CompletedData[2].Bool)
	require.Equal(t, int64(42), got.Inputs["n"].Int)
}

func TestSQLiteStore_LoadMissing(t *testing.T) {
	s := newTestSQLiteStore(t)
	defer s.Close()
	_, err := s.Load(context.Background(), "nope")
	require.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLiteStore_SaveUpsertsOnConflict(t *testing.T) {
	s := newTestSQLiteStore(t)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Checkpoint{ExecutionID: "exec-1", PipelineName: "pipe", Status: StatusSuspended}))
	require.NoError(t, s.Save(ctx, Checkpoint{ExecutionID: "exec-1", PipelineName: "pipe", Status: StatusCompleted}))

	got, err := s.Load(ctx, "exec-1")
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, got.Status)
}

func TestSQLiteStore_DeleteAndList(t *testing.T) {
	s := newTestSQLiteStore(t)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Save(ctx, Checkpoint{ExecutionID: "a", PipelineName: "p1"}))
	require.NoError(t, s.Save(ctx, Checkpoint{ExecutionID: "b", PipelineName: "p2"}))

	all, err := s.List(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)

	p1, err := s.List(ctx, "p1")
	require.NoError(t, err)
	require.Len(t, p1, 1)
	require.Equal(t, "a", p1[0].ExecutionID)

	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Load(ctx, "a")
	require.True(t, errors.Is(err, ErrNotFound))
}
