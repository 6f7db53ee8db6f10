package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// MySQLStore is a second checkpoint backend behind the same Store
// interface, adapted from the teacher's graph/store.MySQLStore for
// production/multi-worker deployments where checkpoints must survive a
// process restart and be visible to more than one compiler instance.
type MySQLStore struct {
	db *sql.DB
}

// NewMySQLStore opens a MySQL/MariaDB-backed Store using dsn (see
// github.com/go-sql-driver/mysql for the DSN format).
func NewMySQLStore(dsn string) (*MySQLStore, error) {
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening mysql: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(10 * time.Minute)

	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: pinging mysql: %w", err)
	}

	s := &MySQLStore{db: db}
	if err := s.createTables(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *MySQLStore) createTables(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS constellation_checkpoints (
			execution_id     VARCHAR(191) PRIMARY KEY,
			pipeline_name    VARCHAR(255) NOT NULL,
			status           VARCHAR(32) NOT NULL,
			suspended_at     BIGINT UNSIGNED NOT NULL,
			resume_condition TEXT NOT NULL,
			completed_data   LONGTEXT NOT NULL,
			inputs           LONGTEXT NOT NULL,
			created_at       DATETIME NOT NULL,
			updated_at       DATETIME NOT NULL,
			INDEX idx_checkpoints_pipeline (pipeline_name)
		) ENGINE=InnoDB
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: creating constellation_checkpoints: %w", err)
	}
	return nil
}

func (s *MySQLStore) Save(ctx context.Context, cp Checkpoint) error {
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
		ON DUPLICATE KEY UPDATE
			pipeline_name = VALUES(pipeline_name),
			status = VALUES(status),
			suspended_at = VALUES(suspended_at),
			resume_condition = VALUES(resume_condition),
			completed_data = VALUES(completed_data),
			inputs = VALUES(inputs),
			updated_at = VALUES(updated_at)
	`, cp.ExecutionID, cp.PipelineName, string(cp.Status), cp.SuspendedAt, cp.ResumeCondition, string(data), string(inputs), now, now)
	if err != nil {
		return fmt.Errorf("store: saving checkpoint %s: %w", cp.ExecutionID, err)
	}
	return nil
}

func (s *MySQLStore) Load(ctx context.Context, executionID string) (Checkpoint, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT execution_id, pipeline_name, status, suspended_at, resume_condition, completed_data, inputs, created_at, updated_at
		FROM constellation_checkpoints WHERE execution_id = ?
	`, executionID)
	return scanCheckpoint(row.Scan)
}

func (s *MySQLStore) Delete(ctx context.Context, executionID string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM constellation_checkpoints WHERE execution_id = ?", executionID)
	return err
}

func (s *MySQLStore) List(ctx context.Context, pipelineName string) ([]Checkpoint, error) {
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

func (s *MySQLStore) Close() error { return s.db.Close() }
