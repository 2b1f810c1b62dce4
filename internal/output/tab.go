// Package output writes enriched tables as tab-separated reports.
package output

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/inodb/vibe-annotate/internal/annotate"
)

// Extension is the file extension of written reports.
const Extension = ".tsv"

var cellEscaper = strings.NewReplacer("\t", " ", "\r\n", " ", "\n", " ", "\r", " ")

// TabWriter writes table rows in tab-delimited format. Null cells are
// written as empty fields.
type TabWriter struct {
	w       *bufio.Writer
	columns int
}

// NewTabWriter creates a new tab-delimited writer.
func NewTabWriter(w io.Writer) *TabWriter {
	return &TabWriter{w: bufio.NewWriter(w)}
}

// WriteHeader writes the header line and fixes the row width.
func (tw *TabWriter) WriteHeader(columns []string) error {
	tw.columns = len(columns)
	fields := make([]string, len(columns))
	for i, c := range columns {
		fields[i] = cellEscaper.Replace(c)
	}
	_, err := tw.w.WriteString(strings.Join(fields, "\t") + "\n")
	return err
}

// Write writes a single row.
func (tw *TabWriter) Write(row []annotate.Cell) error {
	if len(row) != tw.columns {
		return fmt.Errorf("row has %d cells, header has %d", len(row), tw.columns)
	}
	fields := make([]string, len(row))
	for i, c := range row {
		if c.Valid {
			fields[i] = cellEscaper.Replace(c.Value)
		}
	}
	_, err := tw.w.WriteString(strings.Join(fields, "\t") + "\n")
	return err
}

// Flush flushes any buffered data to the underlying writer.
func (tw *TabWriter) Flush() error {
	return tw.w.Flush()
}

// WriteTable writes a full table, header first.
func WriteTable(w io.Writer, t *annotate.Table) error {
	tw := NewTabWriter(w)
	if err := tw.WriteHeader(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, row := range t.Rows {
		if err := tw.Write(row); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	return tw.Flush()
}

// WriteFile writes t to dir/<t.Name>.tsv and returns the path. The report
// is written to a temporary file first so a failed write leaves no partial
// report behind.
func WriteFile(dir string, t *annotate.Table) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, t.Name+Extension)

	tmp, err := os.CreateTemp(dir, "."+t.Name+"-*"+Extension)
	if err != nil {
		return "", fmt.Errorf("create report: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := WriteTable(tmp, t); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename report: %w", err)
	}
	return path, nil
}
