// Package duckdb persists the annotation cache in a DuckDB database.
// The schema is explicit and versioned; key fields are normalized before
// every write so stored keys never drift in type or spelling.
package duckdb

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-annotate/internal/annotation"
)

// SchemaVersion is the version of the annotations table layout.
const SchemaVersion = 1

var (
	// ErrCorruptCache is returned when an existing cache file cannot be read.
	ErrCorruptCache = errors.New("annotation cache unreadable")
	// ErrSchemaVersion is returned when the cache was written by another schema version.
	ErrSchemaVersion = errors.New("annotation cache schema version mismatch")
)

// Store manages a DuckDB connection holding the annotation cache.
type Store struct {
	db      *sql.DB
	path    string
	existed bool
}

// Open opens or creates a DuckDB database at the given path.
// Use an empty string for an in-memory database. A missing file is
// created empty; an existing file that cannot be read fails with
// ErrCorruptCache.
func Open(path string) (*Store, error) {
	existed := false
	if path != "" {
		info, err := os.Stat(path)
		switch {
		case err == nil && info.IsDir():
			return nil, fmt.Errorf("%w: %s is a directory", ErrCorruptCache, path)
		case err == nil:
			existed = true
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("%w: %v", ErrCorruptCache, err)
		}

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create cache directory: %w", err)
		}
	}

	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open duckdb: %v", ErrCorruptCache, err)
	}

	s := &Store{db: db, path: path, existed: existed}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		if errors.Is(err, ErrSchemaVersion) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptCache, path, err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for direct access.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path; empty for in-memory stores.
func (s *Store) Path() string {
	return s.path
}

// Existed reports whether the cache file was present before Open.
func (s *Store) Existed() bool {
	return s.existed
}

// ensureSchema creates tables if they don't exist and checks the version.
// Only a database created by this Open is stamped with the current
// version; an existing file must already carry it.
func (s *Store) ensureSchema() error {
	if s.existed {
		if err := s.checkVersion(); err != nil {
			return err
		}
	}

	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS cache_meta (
		key VARCHAR PRIMARY KEY,
		value VARCHAR
	)`); err != nil {
		return err
	}

	cols := make([]string, 0, len(annotation.Fields))
	for _, f := range annotation.Fields {
		cols = append(cols, "\t\t"+f+" VARCHAR,")
	}
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS annotations (
		chrom VARCHAR NOT NULL,
		pos VARCHAR NOT NULL,
		ref VARCHAR NOT NULL,
		alt VARCHAR NOT NULL,
` + strings.Join(cols, "\n") + `
		extra VARCHAR,
		first_annotated DATE NOT NULL,
		run_id VARCHAR,
		PRIMARY KEY (chrom, pos, ref, alt)
	)`); err != nil {
		return err
	}
	if err := s.ensureRunTables(); err != nil {
		return err
	}

	if s.existed {
		return nil
	}
	_, err := s.db.Exec(`INSERT INTO cache_meta VALUES ('schema_version', ?)
		ON CONFLICT DO NOTHING`, strconv.Itoa(SchemaVersion))
	return err
}

// checkVersion verifies the version row of an existing database.
func (s *Store) checkVersion() error {
	var tables int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM information_schema.tables
		WHERE table_name = 'cache_meta'`).Scan(&tables); err != nil {
		return err
	}
	if tables == 0 {
		return fmt.Errorf("%w: %s has no cache_meta table", ErrSchemaVersion, s.path)
	}

	var version string
	err := s.db.QueryRow(`SELECT value FROM cache_meta WHERE key = 'schema_version'`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%w: %s records no schema version", ErrSchemaVersion, s.path)
	case err != nil:
		return err
	}
	if version != strconv.Itoa(SchemaVersion) {
		return fmt.Errorf("%w: file has version %s, want %d", ErrSchemaVersion, version, SchemaVersion)
	}
	return nil
}

// SchemaVersion returns the schema version recorded in the database.
func (s *Store) SchemaVersion() (int, error) {
	var version string
	if err := s.db.QueryRow(`SELECT value FROM cache_meta WHERE key = 'schema_version'`).Scan(&version); err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	return strconv.Atoi(version)
}
