package annotate

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/inodb/vibe-annotate/internal/annotation"
	"github.com/inodb/vibe-annotate/internal/variant"
)

// ColFirstAnnotated is the last column of every enriched table.
const ColFirstAnnotated = "first_annotated"

// Cell is one table value. Valid is false for null.
type Cell struct {
	Value string
	Valid bool
}

// Table is an enriched per-source report.
type Table struct {
	Name    string
	Columns []string
	Rows    [][]Cell
}

// Column returns the index of the first column called name, or -1.
func (t *Table) Column(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Merge left-joins the source's records against the annotation set. Every
// source row yields exactly one output row, with null annotation cells when
// no record exists for its key. Columns are the source columns, the derived
// record columns, the annotation attributes present for this source, the
// local source columns, and first_annotated. Local columns always appear,
// in the order given, even when no record carries them. Rows are stably
// sorted on sortBy, descending, with null and non-numeric values last.
func Merge(s *Source, combined map[variant.Key]*annotation.Record, sortBy string, local []string) (*Table, error) {
	var matched []*annotation.Record
	seen := make(map[variant.Key]bool)
	for i := range s.Records {
		k := s.Records[i].Key.Normalize()
		if r, ok := combined[k]; ok && !seen[k] {
			seen[k] = true
			matched = append(matched, r)
		}
	}
	attrs := withLocalColumns(annotation.Columns(matched), local)

	columns := make([]string, 0, len(s.Columns)+len(variant.DerivedColumns)+len(attrs)+1)
	columns = append(columns, s.Columns...)
	columns = append(columns, variant.DerivedColumns...)
	columns = append(columns, attrs...)
	columns = append(columns, ColFirstAnnotated)

	t := &Table{Name: s.Name, Columns: columns, Rows: make([][]Cell, len(s.Records))}
	for i := range s.Records {
		t.Rows[i] = mergeRow(&s.Records[i], len(s.Columns), combined[s.Records[i].Key.Normalize()], attrs)
	}

	if sortBy == "" {
		return t, nil
	}
	col := t.Column(sortBy)
	if col < 0 {
		return nil, fmt.Errorf("unknown sort column %q", sortBy)
	}
	sortDescending(t.Rows, col)
	return t, nil
}

// withLocalColumns moves local source columns to the end of attrs.
func withLocalColumns(attrs, local []string) []string {
	if len(local) == 0 {
		return attrs
	}
	isLocal := make(map[string]bool, len(local))
	for _, c := range local {
		isLocal[c] = true
	}
	out := make([]string, 0, len(attrs)+len(local))
	for _, c := range attrs {
		if !isLocal[c] {
			out = append(out, c)
		}
	}
	for _, c := range local {
		if isLocal[c] {
			out = append(out, c)
			isLocal[c] = false
		}
	}
	return out
}

func mergeRow(rec *variant.Record, width int, ann *annotation.Record, attrs []string) []Cell {
	row := make([]Cell, 0, width+len(variant.DerivedColumns)+len(attrs)+1)
	for i := 0; i < width; i++ {
		if i < len(rec.Row) {
			row = append(row, Cell{Value: rec.Row[i], Valid: true})
		} else {
			row = append(row, Cell{})
		}
	}

	values, valid := rec.DerivedValues()
	for i, v := range values {
		row = append(row, Cell{Value: v, Valid: valid[i]})
	}

	for _, name := range attrs {
		var c Cell
		if ann != nil {
			c.Value, c.Valid = ann.Get(name)
		}
		row = append(row, c)
	}

	var first Cell
	if ann != nil && !ann.FirstAnnotated.IsZero() {
		first = Cell{Value: ann.FirstAnnotated.Format(time.DateOnly), Valid: true}
	}
	return append(row, first)
}

func sortDescending(rows [][]Cell, col int) {
	keys := make([]float64, len(rows))
	ok := make([]bool, len(rows))
	for i, r := range rows {
		keys[i], ok[i] = numeric(r[col])
	}

	idx := make([]int, len(rows))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ia, ib := idx[a], idx[b]
		if ok[ia] != ok[ib] {
			return ok[ia]
		}
		return ok[ia] && keys[ia] > keys[ib]
	})

	sorted := make([][]Cell, len(rows))
	for i, j := range idx {
		sorted[i] = rows[j]
	}
	copy(rows, sorted)
}

func numeric(c Cell) (float64, bool) {
	if !c.Valid {
		return 0, false
	}
	f, err := strconv.ParseFloat(c.Value, 64)
	if err != nil || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}
