package duckdb

import (
	"database/sql"
	"fmt"
)

func (s *Store) ensureRunTables() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS runs (
		run_id VARCHAR PRIMARY KEY,
		started_at TIMESTAMP NOT NULL,
		finished_at TIMESTAMP NOT NULL,
		key_count INTEGER NOT NULL,
		hits INTEGER NOT NULL,
		misses INTEGER NOT NULL,
		fetched INTEGER NOT NULL,
		added INTEGER NOT NULL
	)`); err != nil {
		return err
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS run_sources (
		run_id VARCHAR NOT NULL,
		path VARCHAR NOT NULL,
		size BIGINT,
		mod_time TIMESTAMP,
		skipped BOOLEAN NOT NULL
	)`)
	return err
}

// RecordRun stores a run summary and its input files in one transaction.
func (s *Store) RecordRun(r RunRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Started.UTC(), r.Finished.UTC(), r.Keys, r.Hits, r.Misses, r.Fetched, r.Added); err != nil {
		return fmt.Errorf("insert run %s: %w", r.ID, err)
	}

	stmt, err := tx.Prepare(`INSERT INTO run_sources VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, src := range r.Sources {
		var size sql.NullInt64
		var mod sql.NullTime
		if !src.ModTime.IsZero() {
			size = sql.NullInt64{Int64: src.Size, Valid: true}
			mod = sql.NullTime{Time: src.ModTime.UTC(), Valid: true}
		}
		if _, err := stmt.Exec(r.ID, src.Path, size, mod, src.Skipped); err != nil {
			return fmt.Errorf("insert run source %s: %w", src.Path, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Runs returns the most recent runs, newest first, with their sources.
// A limit of 0 or less returns every run.
func (s *Store) Runs(limit int) ([]RunRecord, error) {
	query := `SELECT run_id, started_at, finished_at, key_count, hits, misses, fetched, added
		FROM runs ORDER BY started_at DESC, run_id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.ID, &r.Started, &r.Finished, &r.Keys, &r.Hits, &r.Misses, &r.Fetched, &r.Added); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		sources, err := s.runSources(runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Sources = sources
	}
	return runs, nil
}

func (s *Store) runSources(runID string) ([]FileFingerprint, error) {
	rows, err := s.db.Query(`SELECT path, size, mod_time, skipped FROM run_sources
		WHERE run_id = ? ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run sources: %w", err)
	}
	defer rows.Close()

	var sources []FileFingerprint
	for rows.Next() {
		var (
			f    FileFingerprint
			size sql.NullInt64
			mod  sql.NullTime
		)
		if err := rows.Scan(&f.Path, &size, &mod, &f.Skipped); err != nil {
			return nil, fmt.Errorf("scan run source: %w", err)
		}
		f.Size = size.Int64
		if mod.Valid {
			f.ModTime = mod.Time.UTC()
		}
		sources = append(sources, f)
	}
	return sources, rows.Err()
}
