// Package vcf reads variant call files into row-oriented tables.
package vcf

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// HeaderMarker is the prefix of the column header line.
const HeaderMarker = "#CHROM"

var gzipMagic = []byte{0x1f, 0x8b}

// Parser reads data rows from a variant call file. The header is located
// when the parser is created; Next then yields one row per data line.
type Parser struct {
	lines   *bufio.Reader
	closers []io.Closer
	line    int
	meta    []string // "##" lines preceding the header
	columns []string
}

// NewParser opens path, plain or gzipped, and positions the parser after
// the header line.
func NewParser(path string) (*Parser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open vcf file: %w", err)
	}
	p, err := newParser(f, f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return p, nil
}

func newParser(r io.Reader, owner io.Closer) (*Parser, error) {
	p := &Parser{}
	if owner != nil {
		p.closers = append(p.closers, owner)
	}

	br := bufio.NewReader(r)
	magic, err := br.Peek(len(gzipMagic))
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read vcf header: %w", err)
	}
	if bytes.Equal(magic, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("create gzip reader: %w", err)
		}
		p.closers = append(p.closers, zr)
		br = bufio.NewReader(zr)
	}
	p.lines = br

	if err := p.readHeader(); err != nil {
		return nil, err
	}
	return p, nil
}

// readLine returns the next line without its terminator. ok is false at
// end of input; a final line without a newline is still returned.
func (p *Parser) readLine() (line string, ok bool, err error) {
	line, err = p.lines.ReadString('\n')
	if err != nil {
		if !errors.Is(err, io.EOF) {
			return "", false, err
		}
		if line == "" {
			return "", false, nil
		}
	}
	p.line++
	return strings.TrimRight(line, "\r\n"), true, nil
}

// readHeader collects meta lines up to the header marker. Any number of
// leading "##" lines is accepted.
func (p *Parser) readHeader() error {
	for {
		line, ok, err := p.readLine()
		if err != nil {
			return fmt.Errorf("read header: %w", err)
		}
		if !ok {
			return &ParseError{Line: p.line, Message: "no " + HeaderMarker + " header line found"}
		}
		if strings.HasPrefix(line, HeaderMarker) {
			p.columns = strings.Split(strings.TrimPrefix(line, "#"), "\t")
			return nil
		}
		p.meta = append(p.meta, line)
	}
}

// Next returns the next data row, skipping blank lines. Short rows are
// padded with empty cells; rows wider than the header are an error.
// Returns nil, nil at end of input.
func (p *Parser) Next() ([]string, error) {
	for {
		line, ok, err := p.readLine()
		if err != nil {
			return nil, fmt.Errorf("read variant line: %w", err)
		}
		if !ok {
			return nil, nil
		}
		if line == "" {
			continue
		}

		cells := strings.Split(line, "\t")
		if len(cells) > len(p.columns) {
			return nil, &ParseError{
				Line:    p.line,
				Message: fmt.Sprintf("expected at most %d columns, found %d", len(p.columns), len(cells)),
			}
		}
		for len(cells) < len(p.columns) {
			cells = append(cells, "")
		}
		return cells, nil
	}
}

// Columns returns the header columns, "#CHROM" reported as "CHROM".
func (p *Parser) Columns() []string {
	return p.columns
}

// Close releases the gzip stream and the file, innermost first.
func (p *Parser) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// ParseError is a structural problem at a specific line.
type ParseError struct {
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("vcf parse error at line %d: %s", e.Line, e.Message)
}
