package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/constellation-run/constellation/dag"

	_ "modernc.org/sqlite"
)

// SQLiteStore is a single-file, WAL-mode SQLite backend, adapted from the
// teacher's graph/store.SQLiteStore: same connection-pool shape (one
// writer), same auto-migration-on-open convention, generalized from a
// generic step/checkpoint history table to the single
// constellation_checkpoints row-per-execution table this package's
// simpler Checkpoint shape needs.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if absent) a SQLite-backed Store at path.
// Use ":memory:" for an ephemeral database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: opening sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx := context.Background()
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: %s: %w", pragma, err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) createTables(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS constellation_checkpoints (
			execution_id     TEXT PRIMARY KEY,
			pipeline_name    TEXT NOT NULL,
			status           TEXT NOT NULL,
			suspended_at     INTEGER NOT NULL,
			resume_condition TEXT NOT NULL DEFAULT '',
			completed_data   TEXT NOT NULL,
			inputs           TEXT NOT NULL,
			created_at       TIMESTAMP NOT NULL,
			updated_at       TIMESTAMP NOT NULL
		)
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: creating constellation_checkpoints: %w", err)
	}
	if _, err := s.db.ExecContext(ctx,
		"CREATE INDEX IF NOT EXISTS idx_checkpoints_pipeline ON constellation_checkpoints(pipeline_name)"); err != nil {
		return fmt.Errorf("store: creating pipeline index: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, cp Checkpoint) error {
	data, err := encodeCompletedData(cp.CompletedData)
	if err != nil {
		return err
	}
	inputs, err := encodeInputs(cp.Inputs)
	if err != nil {
		return err
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO constellation_checkpoints
			(execution_id, pipeline_name, status, suspended_at, resume_condition, completed_data, inputs, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(execution_id) DO UPDATE SET
			pipeline_name = excluded.pipeline_name,
			status = excluded.status,
			suspended_at = excluded.suspended_at,
			resume_condition = excluded.resume_condition,
			completed_data = excluded.completed_data,
			inputs = excluded.inputs,
			updated_at = excluded.updated_at
	`, cp.ExecutionID, cp.PipelineName, string(cp.Status), cp.SuspendedAt, cp.ResumeCondition, string(data), string(inputs), now, now)
	if err != nil {
		return fmt.Errorf("store: saving checkpoint %s: %w", cp.ExecutionID, err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, executionID string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT execution_id, pipeline_name, status, suspended_at, resume_condition, completed_data, inputs, created_at, updated_at
		FROM constellation_checkpoints WHERE execution_id = ?
	`, executionID)
	return scanCheckpoint(row.Scan)
}

func (s *SQLiteStore) Delete(ctx context.Context, executionID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM constellation_checkpoints WHERE execution_id = ?", executionID)
	return err
}

func (s *SQLiteStore) List(ctx context.Context, pipelineName string) ([]Checkpoint, error) {
	query := `
		SELECT execution_id, pipeline_name, status, suspended_at, resume_condition, completed_data, inputs, created_at, updated_at
		FROM constellation_checkpoints
	`
	args := []any{}
	if pipelineName != "" {
		query += " WHERE pipeline_name = ?"
		args = append(args, pipelineName)
	}
	query += " ORDER BY updated_at DESC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: listing checkpoints: %w", err)
	}
	defer rows.Close()

	var out []Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

// scanCheckpoint decodes one row via the scan function shared by
// *sql.Row.Scan and *sql.Rows.Scan.
func scanCheckpoint(scan func(dest ...any) error) (Checkpoint, error) {
	var (
		cp                     Checkpoint
		status                 string
		suspendedAt            uint64
		completedData, inputs  string
	)
	if err := scan(&cp.ExecutionID, &cp.PipelineName, &status, &suspendedAt, &cp.ResumeCondition,
		&completedData, &inputs, &cp.CreatedAt, &cp.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return Checkpoint{}, ErrNotFound
		}
		return Checkpoint{}, fmt.Errorf("store: scanning checkpoint: %w", err)
	}
	cp.Status = Status(status)
	cp.SuspendedAt = dag.ModuleNodeId(suspendedAt)
	data, err := decodeCompletedData([]byte(completedData))
	if err != nil {
		return Checkpoint{}, err
	}
	cp.CompletedData = data
	in, err := decodeInputs([]byte(inputs))
	if err != nil {
		return Checkpoint{}, err
	}
	cp.Inputs = in
	return cp, nil
}
