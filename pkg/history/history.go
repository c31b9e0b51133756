// Package history journals every execution attempt to SQLite. The journal
// is observability only: the engine's skip decisions read the state store,
// never this database, so a lost or reset journal cannot re-run a task.
package history

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/runbook/runbook/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Journal records task attempts in a SQLite database.
type Journal struct {
	db   *sql.DB
	path string
}

// Open opens the journal database at path and runs pending migrations.
func Open(ctx context.Context, path string) (*Journal, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	dsn := fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	j := &Journal{db: db, path: path}
	if err := j.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

// migrate applies the embedded migrations.
func (j *Journal) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(j.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// RecordAttempt implements engine.Journal.
func (j *Journal) RecordAttempt(ctx context.Context, a engine.Attempt) error {
	query := `
		INSERT INTO attempts (id, run_id, task_id, kind, target, number, status,
			exit_code, reason, started_at, completed_at, duration_seconds, log_path)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := j.db.ExecContext(ctx, query,
		a.ID,
		a.RunID,
		a.TaskID,
		string(a.Kind),
		a.Target,
		a.Number,
		string(a.Status),
		a.ExitCode,
		a.Reason,
		a.StartedAt.UTC().Format(time.RFC3339Nano),
		a.CompletedAt.UTC().Format(time.RFC3339Nano),
		a.DurationSeconds,
		a.LogPath,
	)
	if err != nil {
		return fmt.Errorf("failed to record attempt: %w", err)
	}
	return nil
}

// Filter narrows ListAttempts results. Zero values match everything.
type Filter struct {
	TaskID string
	RunID  string
	Limit  int
}

// ListAttempts returns journal rows, newest first.
func (j *Journal) ListAttempts(ctx context.Context, f Filter) ([]engine.Attempt, error) {
	query := `
		SELECT id, run_id, task_id, kind, target, number, status,
			exit_code, reason, started_at, completed_at, duration_seconds, log_path
		FROM attempts
		WHERE (? = '' OR task_id = ?)
		  AND (? = '' OR run_id = ?)
		ORDER BY started_at DESC
	`
	args := []any{f.TaskID, f.TaskID, f.RunID, f.RunID}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var out []engine.Attempt
	for rows.Next() {
		var a engine.Attempt
		var kind, status, startedAt, completedAt string
		if err := rows.Scan(&a.ID, &a.RunID, &a.TaskID, &kind, &a.Target,
			&a.Number, &status, &a.ExitCode, &a.Reason,
			&startedAt, &completedAt, &a.DurationSeconds, &a.LogPath); err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		a.Kind = engine.TaskKind(kind)
		a.Status = engine.TaskStatus(status)
		if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
			a.StartedAt = t
		}
		if t, err := time.Parse(time.RFC3339Nano, completedAt); err == nil {
			a.CompletedAt = t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}
