// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ledger persists run history in a SQLite database under the output
// directory. Append-only from the pipeline's point of view: the current run
// never reads it back, it exists for the history command and post-hoc
// diagnosis.
// Implements: prd003-artifacts (R5); docs/ARCHITECTURE § Run Ledger.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/patent-harvester/pkg/types"
)

const dbFile = "harvest.db"

// Ledger manages the run history database.
type Ledger struct {
	db *sql.DB
}

// RunRecord summarizes one persisted run.
type RunRecord struct {
	ID        int64
	Topic     string
	Started   time.Time
	Elapsed   time.Duration
	PDFSaved  int
	HTMLSaved int
	NotFound  int
	Failed    int
}

// Open opens or creates the ledger database at dir/harvest.db, creating the
// schema if it does not exist.
func Open(dir string) (*Ledger, error) {
	path := filepath.Join(dir, dbFile)
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening ledger database: %w", err)
	}

	l := &Ledger{db: db}
	if err := l.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating ledger schema: %w", err)
	}
	return l, nil
}

// Close releases the database connection.
func (l *Ledger) Close() error {
	return l.db.Close()
}

func (l *Ledger) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			topic TEXT NOT NULL,
			started TEXT NOT NULL,
			elapsed_ms INTEGER NOT NULL,
			requested INTEGER NOT NULL,
			found INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outcomes (
			run_id INTEGER NOT NULL REFERENCES runs(id),
			position INTEGER NOT NULL,
			identifier TEXT NOT NULL,
			status TEXT NOT NULL,
			artifact_path TEXT,
			attempts INTEGER NOT NULL,
			error TEXT,
			PRIMARY KEY (run_id, position)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outcomes_identifier ON outcomes(identifier)`,
	}

	for _, stmt := range statements {
		if _, err := l.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// RecordRun appends a finished run and its outcomes, returning the run id.
func (l *Ledger) RecordRun(ctx context.Context, sum *types.RunSummary) (int64, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO runs (topic, started, elapsed_ms, requested, found) VALUES (?, ?, ?, ?, ?)`,
		sum.Topic, sum.Started.UTC().Format(time.RFC3339), sum.Elapsed.Milliseconds(), sum.Requested, sum.Found)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading run id: %w", err)
	}

	for i, o := range sum.Outcomes {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO outcomes (run_id, position, identifier, status, artifact_path, attempts, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, i, o.Identifier, string(o.Status), o.ArtifactPath, o.Attempts, o.Error)
		if err != nil {
			return 0, fmt.Errorf("inserting outcome %s: %w", o.Identifier, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing run: %w", err)
	}
	return runID, nil
}

// Runs returns the most recent runs, newest first.
func (l *Ledger) Runs(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT r.id, r.topic, r.started, r.elapsed_ms,
			COALESCE(SUM(CASE WHEN o.status = 'pdf-saved' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN o.status = 'html-saved' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN o.status = 'not-found' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN o.status = 'failed' THEN 1 ELSE 0 END), 0)
		FROM runs r LEFT JOIN outcomes o ON o.run_id = r.id
		GROUP BY r.id ORDER BY r.id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started string
		var elapsedMS int64
		if err := rows.Scan(&rec.ID, &rec.Topic, &started, &elapsedMS,
			&rec.PDFSaved, &rec.HTMLSaved, &rec.NotFound, &rec.Failed); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if t, perr := time.Parse(time.RFC3339, started); perr == nil {
			rec.Started = t
		}
		rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Outcomes returns the per-identifier outcomes of one run in position order.
func (l *Ledger) Outcomes(ctx context.Context, runID int64) ([]types.Outcome, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT identifier, status, artifact_path, attempts, error
		FROM outcomes WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("querying outcomes: %w", err)
	}
	defer rows.Close()

	var outcomes []types.Outcome
	for rows.Next() {
		var o types.Outcome
		var status string
		if err := rows.Scan(&o.Identifier, &status, &o.ArtifactPath, &o.Attempts, &o.Error); err != nil {
			return nil, fmt.Errorf("scanning outcome: %w", err)
		}
		o.Status = types.Status(status)
		outcomes = append(outcomes, o)
	}
	return outcomes, rows.Err()
}
