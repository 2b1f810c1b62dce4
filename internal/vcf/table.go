package vcf

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Table is the fully read data section of one variant call file.
type Table struct {
	Name    string     // file base name without extension(s)
	Path    string     // source path
	Columns []string   // header columns, "#CHROM" reported as "CHROM"
	Rows    [][]string // one entry per data line, len(row) == len(Columns)
}

// ReadTable reads every data row of the file at path.
func ReadTable(path string) (*Table, error) {
	p, err := NewParser(path)
	if err != nil {
		return nil, err
	}
	defer p.Close()

	t := &Table{
		Name:    BaseName(path),
		Path:    path,
		Columns: p.Columns(),
	}
	for {
		row, err := p.Next()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if row == nil {
			break
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// IsVCF reports whether path names a variant call file (.vcf or .vcf.gz).
func IsVCF(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".vcf") || strings.HasSuffix(lower, ".vcf.gz")
}

// BaseName strips the directory and the .vcf / .vcf.gz extension.
func BaseName(path string) string {
	base := filepath.Base(path)
	lower := strings.ToLower(base)
	switch {
	case strings.HasSuffix(lower, ".vcf.gz"):
		return base[:len(base)-len(".vcf.gz")]
	case strings.HasSuffix(lower, ".vcf"):
		return base[:len(base)-len(".vcf")]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
