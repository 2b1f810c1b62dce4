package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-annotate/internal/annotation"
	"github.com/inodb/vibe-annotate/internal/cache"
	"github.com/inodb/vibe-annotate/internal/variant"
)

// selectColumns is the column list shared by every annotations query.
var selectColumns = "chrom, pos, ref, alt, " + strings.Join(annotation.Fields, ", ") +
	", extra, first_annotated, run_id"

// Load reads every persisted record into c in insertion order. Keys are
// renormalized on the way in. It returns the number of records added.
func (s *Store) Load(c *cache.Cache) (int, error) {
	rows, err := s.db.Query(`SELECT ` + selectColumns + ` FROM annotations ORDER BY rowid`)
	if err != nil {
		return 0, fmt.Errorf("%w: query annotations: %v", ErrCorruptCache, err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrCorruptCache, err)
	}

	n := 0
	for _, r := range records {
		if c.Add(r) {
			n++
		}
	}
	return n, nil
}

// resultKey is the composite key for deduplicating records before writing.
type resultKey struct {
	chrom, pos, ref, alt string
}

// Save batch-inserts the records appended to c since the last save, using
// the Appender API, and marks them persisted. Keys already present in the
// table are skipped so the first stored record for a key is retained.
func (s *Store) Save(c *cache.Cache) error {
	pending := c.Pending()
	if len(pending) == 0 {
		return nil
	}

	existing, err := s.existingKeys()
	if err != nil {
		return err
	}

	// Deduplicate by primary key
	deduped := make([]*annotation.Record, 0, len(pending))
	for _, r := range pending {
		k := r.Key.Normalize()
		rk := resultKey{k.Chrom, k.Pos, k.Ref, k.Alt}
		if existing[rk] {
			continue
		}
		existing[rk] = true
		deduped = append(deduped, r)
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "annotations")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, r := range deduped {
		row, err := recordRow(r)
		if err != nil {
			return err
		}
		if err := appender.AppendRow(row...); err != nil {
			return fmt.Errorf("append annotation %s: %w", r.Key, err)
		}
	}

	if err := appender.Flush(); err != nil {
		return fmt.Errorf("flush annotations: %w", err)
	}
	c.MarkPersisted()
	return nil
}

func (s *Store) existingKeys() (map[resultKey]bool, error) {
	rows, err := s.db.Query(`SELECT chrom, pos, ref, alt FROM annotations`)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	keys := make(map[resultKey]bool)
	for rows.Next() {
		var k resultKey
		if err := rows.Scan(&k.chrom, &k.pos, &k.ref, &k.alt); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys[k] = true
	}
	return keys, rows.Err()
}

// recordRow lays out a record in table column order. Null attributes
// become SQL NULL; non-schema attributes are stored as a JSON object.
func recordRow(r *annotation.Record) ([]driver.Value, error) {
	k := r.Key.Normalize()
	row := make([]driver.Value, 0, len(annotation.Fields)+7)
	row = append(row, k.Chrom, k.Pos, k.Ref, k.Alt)

	for _, f := range annotation.Fields {
		if v, ok := r.Attributes[f]; ok {
			row = append(row, v)
		} else {
			row = append(row, nil)
		}
	}

	if extra := r.Extra(); extra != nil {
		b, err := json.Marshal(extra)
		if err != nil {
			return nil, fmt.Errorf("encode extra attributes for %s: %w", k, err)
		}
		row = append(row, string(b))
	} else {
		row = append(row, nil)
	}

	first := r.FirstAnnotated
	if first.IsZero() {
		first = time.Now().UTC()
	}
	row = append(row, first, r.RunID)
	return row, nil
}

// Count returns the number of persisted records.
func (s *Store) Count() (int64, error) {
	var count int64
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM annotations`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count annotations: %w", err)
	}
	return count, nil
}

// ClearAnnotations removes all cached records.
func (s *Store) ClearAnnotations() error {
	_, err := s.db.Exec("DELETE FROM annotations")
	return err
}

// LookupVariant returns the persisted record for a variant, or nil.
func (s *Store) LookupVariant(k variant.Key) (*annotation.Record, error) {
	k = k.Normalize()
	rows, err := s.db.Query(`SELECT `+selectColumns+` FROM annotations
		WHERE chrom=? AND pos=? AND ref=? AND alt=?`,
		k.Chrom, k.Pos, k.Ref, k.Alt)
	if err != nil {
		return nil, fmt.Errorf("query variant: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// SearchByGene returns all persisted records for a gene symbol.
func (s *Store) SearchByGene(geneName string) ([]*annotation.Record, error) {
	rows, err := s.db.Query(`SELECT `+selectColumns+` FROM annotations
		WHERE `+annotation.GeneSymbol+`=? ORDER BY rowid`, geneName)
	if err != nil {
		return nil, fmt.Errorf("query by gene: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// scanRecords scans rows selected with selectColumns.
func scanRecords(rows *sql.Rows) ([]*annotation.Record, error) {
	var records []*annotation.Record
	for rows.Next() {
		var (
			chrom, pos, ref, alt string
			extra, runID         sql.NullString
			first                time.Time
		)
		values := make([]sql.NullString, len(annotation.Fields))

		dest := make([]any, 0, len(annotation.Fields)+7)
		dest = append(dest, &chrom, &pos, &ref, &alt)
		for i := range values {
			dest = append(dest, &values[i])
		}
		dest = append(dest, &extra, &first, &runID)

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}

		r := &annotation.Record{
			Key:            variant.NewKey(chrom, pos, ref, alt),
			FirstAnnotated: first.UTC(),
			RunID:          runID.String,
		}
		for i, f := range annotation.Fields {
			if values[i].Valid {
				r.Set(f, values[i].String)
			}
		}
		if extra.Valid && extra.String != "" {
			var attrs map[string]string
			if err := json.Unmarshal([]byte(extra.String), &attrs); err != nil {
				return nil, fmt.Errorf("decode extra attributes for %s: %w", r.Key, err)
			}
			for name, v := range attrs {
				r.Set(name, v)
			}
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return records, nil
}
