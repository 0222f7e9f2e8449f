// Package runlog keeps a history of collection runs in a small SQLite
// database. It is an operational aid: recording is best-effort and never
// fails a run.
package runlog

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/maxliesegang/telraam-data-collector/internal/collector"
)

// schemaSQL is the single source of truth for the run-history schema,
// embedded at compile time from schema.sql.
//
//go:embed schema.sql
var schemaSQL string

// DB wraps the SQLite run-history database.
type DB struct {
	conn *sql.DB
}

// Open opens (or creates) the run-history database with WAL mode enabled.
func Open(path string) (*DB, error) {
	dsn := path + "?_journal=WAL&_fk=1&_busy_timeout=5000"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open run log: %w", err)
	}

	// One logical process writes at a time; a single connection avoids
	// SQLite writer conflicts entirely.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping run log: %w", err)
	}

	return &DB{conn: conn}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// EnsureSchema creates the tables if they do not exist yet.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to ensure run log schema: %w", err)
	}
	return nil
}

// Record stores one run summary with its per-device results.
func (d *DB) Record(ctx context.Context, summary *collector.Summary) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at_utc, finished_at_utc, total_devices, succeeded, failed, points_saved)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID,
		summary.StartedAt.UTC().Format(time.RFC3339),
		summary.FinishedAt.UTC().Format(time.RFC3339),
		summary.TotalDevices,
		summary.Succeeded,
		summary.Failed,
		summary.PointsSaved,
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, r := range summary.DeviceResults {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_device_results (run_id, device_id, success, points_saved, error)
			 VALUES (?, ?, ?, ?, ?)`,
			summary.RunID, r.DeviceID, r.Success, r.PointsSaved, r.Error,
		)
		if err != nil {
			return fmt.Errorf("failed to insert device result: %w", err)
		}
	}

	return tx.Commit()
}

// RunRecord is one stored run summary.
type RunRecord struct {
	ID           string    `json:"id"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
	TotalDevices int       `json:"total_devices"`
	Succeeded    int       `json:"succeeded"`
	Failed       int       `json:"failed"`
	PointsSaved  int       `json:"points_saved"`
}

// RecentRuns returns the most recent runs, newest first.
func (d *DB) RecentRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT id, started_at_utc, finished_at_utc, total_devices, succeeded, failed, points_saved
		 FROM runs ORDER BY started_at_utc DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var records []RunRecord
	for rows.Next() {
		var rec RunRecord
		var started, finished string
		if err := rows.Scan(&rec.ID, &started, &finished, &rec.TotalDevices, &rec.Succeeded, &rec.Failed, &rec.PointsSaved); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339, started)
		rec.FinishedAt, _ = time.Parse(time.RFC3339, finished)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Prune deletes runs that started before the retention window.
func (d *DB) Prune(ctx context.Context, retention time.Duration) error {
	cutoff := time.Now().UTC().Add(-retention).Format(time.RFC3339)

	if _, err := d.conn.ExecContext(ctx,
		`DELETE FROM run_device_results WHERE run_id IN (SELECT id FROM runs WHERE started_at_utc < ?)`, cutoff); err != nil {
		return fmt.Errorf("failed to prune device results: %w", err)
	}

	result, err := d.conn.ExecContext(ctx, `DELETE FROM runs WHERE started_at_utc < ?`, cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune runs: %w", err)
	}
	if deleted, _ := result.RowsAffected(); deleted > 0 {
		log.Printf("Run log: pruned %d runs older than %v", deleted, retention)
	}
	return nil
}
