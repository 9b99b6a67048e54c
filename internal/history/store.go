// Package history keeps the timing of every job of every run in a SQLite
// database so that analyses can compare a job with its previous executions.
package history

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vk/benchgrid/internal/ctxlog"
	"github.com/vk/benchgrid/internal/job"
	"github.com/vk/benchgrid/internal/plugin"
)

const schema = `
CREATE TABLE IF NOT EXISTS job_runs (
	run_id      TEXT    NOT NULL,
	job         TEXT    NOT NULL,
	status      TEXT    NOT NULL,
	elapsed_ns  INTEGER NOT NULL,
	finished_at INTEGER NOT NULL,
	PRIMARY KEY (run_id, job)
);
CREATE INDEX IF NOT EXISTS job_runs_by_job ON job_runs (job, finished_at DESC);
`

// Store is a history database. It implements plugin.History.
type Store struct {
	db *sql.DB
}

var _ plugin.History = (*Store)(nil)

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory store.
func Open(ctx context.Context, path string) (*Store, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Opening history database.", "path", path)

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open history database")
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to set busy timeout")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create history schema")
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record stores the terminal jobs of a run in a single transaction. Jobs that
// never ran are skipped.
func (s *Store) Record(ctx context.Context, runID string, jobs []*job.Job) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin history transaction")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO job_runs (run_id, job, status, elapsed_ns, finished_at) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare history insert")
	}
	defer stmt.Close()

	n := 0
	for _, j := range jobs {
		if !j.Status.IsTerminal() || j.Attempts == 0 {
			continue
		}
		finished := j.Result.End
		if finished.IsZero() {
			finished = time.Now()
		}
		if _, err := stmt.ExecContext(ctx, runID, j.FQName(), j.Status.String(), int64(j.Result.Elapsed), finished.UnixNano()); err != nil {
			return errors.Wrapf(err, "failed to record %s", j.FQName())
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit history")
	}
	ctxlog.FromContext(ctx).Debug("History recorded.", "run_id", runID, "jobs", n)
	return nil
}

// Previous implements plugin.History.
func (s *Store) Previous(ctx context.Context, name string, limit int) ([]plugin.Run, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, status, elapsed_ns, finished_at FROM job_runs
		 WHERE job = ? ORDER BY finished_at DESC, rowid DESC LIMIT ?`, name, limit)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to query history of %s", name)
	}
	defer rows.Close()

	var runs []plugin.Run
	for rows.Next() {
		var (
			r        plugin.Run
			status   string
			elapsed  int64
			finished int64
		)
		if err := rows.Scan(&r.RunID, &status, &elapsed, &finished); err != nil {
			return nil, errors.Wrap(err, "failed to scan history row")
		}
		if r.Status, err = job.ParseStatus(status); err != nil {
			return nil, err
		}
		r.Elapsed = time.Duration(elapsed)
		r.Finished = time.Unix(0, finished)
		runs = append(runs, r)
	}
	return runs, errors.Wrap(rows.Err(), "failed to read history")
}
