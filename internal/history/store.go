// Package history persists run records in an embedded SQLite database. The
// stored runs are the runner's notification surface: a failed run is visible
// here even after the process exits.
package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/pipewerk/pipewerk/internal/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store is a SQLite-backed run-record store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the history database at path and brings
// its schema up to date.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database %q: %w", path, err)
	}
	// SQLite handles one writer; the runner is single-run-at-a-time anyway.
	db.SetMaxOpenConns(1)

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// migrateUp applies all pending embedded migrations.
func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to prepare migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// RecordRun persists a run and its step results in one transaction.
func (s *Store) RecordRun(ctx context.Context, record *engine.RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin history transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, pipeline, trigger_kind, status, started_at, finished_at, digest_before, digest_after, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.ID, record.Pipeline, string(record.Trigger), string(record.Status),
		record.StartedAt.UTC(), record.FinishedAt.UTC(),
		record.DigestBefore, record.DigestAfter, record.Error,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run %s: %w", record.ID, err)
	}

	for i, step := range record.Steps {
		output := ""
		if step.Output != nil {
			raw, err := json.Marshal(step.Output)
			if err != nil {
				return fmt.Errorf("failed to encode output of step %q: %w", step.Name, err)
			}
			output = string(raw)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_steps (run_id, position, name, kind, status, started_at, finished_at, output, error)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			record.ID, i, step.Name, step.Kind, string(step.Status),
			step.StartedAt.UTC(), step.FinishedAt.UTC(), output, step.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step %q of run %s: %w", step.Name, record.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run record: %w", err)
	}
	return nil
}

// LastRun returns the most recent run of the named pipeline, with its steps,
// or sql.ErrNoRows if the pipeline has never run.
func (s *Store) LastRun(ctx context.Context, pipeline string) (*engine.RunRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, pipeline, trigger_kind, status, started_at, finished_at, digest_before, digest_after, error
		FROM runs WHERE pipeline = ? ORDER BY started_at DESC, id DESC LIMIT 1`, pipeline)

	var record engine.RunRecord
	var trigger, status string
	var startedAt, finishedAt time.Time
	if err := row.Scan(&record.ID, &record.Pipeline, &trigger, &status,
		&startedAt, &finishedAt, &record.DigestBefore, &record.DigestAfter, &record.Error); err != nil {
		return nil, err
	}
	record.Trigger = engine.Trigger(trigger)
	record.Status = engine.Status(status)
	record.StartedAt = startedAt
	record.FinishedAt = finishedAt

	rows, err := s.db.QueryContext(ctx, `
		SELECT name, kind, status, started_at, finished_at, output, error
		FROM run_steps WHERE run_id = ? ORDER BY position`, record.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps of run %s: %w", record.ID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var step engine.StepResult
		var stepStatus, output string
		if err := rows.Scan(&step.Name, &step.Kind, &stepStatus,
			&step.StartedAt, &step.FinishedAt, &output, &step.Error); err != nil {
			return nil, fmt.Errorf("failed to scan step of run %s: %w", record.ID, err)
		}
		step.Status = engine.Status(stepStatus)
		if output != "" {
			if err := json.Unmarshal([]byte(output), &step.Output); err != nil {
				return nil, fmt.Errorf("failed to decode output of step %q: %w", step.Name, err)
			}
		}
		record.Steps = append(record.Steps, step)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &record, nil
}
