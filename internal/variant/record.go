package variant

import (
	"fmt"
	"strconv"
	"strings"
)

// Required source columns.
const (
	ColChrom = "CHROM"
	ColPos   = "POS"
	ColRef   = "REF"
	ColAlt   = "ALT"
	ColInfo  = "INFO"
)

// RequiredColumns lists the columns every source table must carry.
var RequiredColumns = []string{ColChrom, ColPos, ColRef, ColAlt, ColInfo}

// INFO keys extracted into dedicated columns.
const (
	InfoAF           = "AF"
	InfoClinVarPat   = "CLINVARPAT"
	InfoRNAAccession = "RNA_ACC"
	InfoConsequences = "CONSEQUENCES"
)

// Derived column names appended after the source columns.
const (
	ColVariantID  = "VariantID"
	ColOccurrence = "Occurrence"
)

// DerivedColumns are the columns a Record adds to its source row, in order.
var DerivedColumns = []string{
	InfoAF, InfoClinVarPat, InfoRNAAccession, InfoConsequences,
	ColVariantID, ColOccurrence,
}

// Record is one source row with its normalized identity and extracted metadata.
type Record struct {
	Key             Key
	Row             []string // raw cells, in source column order
	AlleleFrequency *float64 // nil when AF is absent or not numeric
	ClinVarPat      string
	RNAAccession    string
	Consequences    string
	DisplayID       string // raw "CHROM-POS-REF-ALT"
	Occurrence      string // "count/total", empty until counted
}

// DerivedValues returns the values for DerivedColumns. The bool reports
// whether each value is non-null.
func (r *Record) DerivedValues() ([]string, []bool) {
	af, afValid := "", false
	if r.AlleleFrequency != nil {
		af, afValid = strconv.FormatFloat(*r.AlleleFrequency, 'f', -1, 64), true
	}
	return []string{af, r.ClinVarPat, r.RNAAccession, r.Consequences, r.DisplayID, r.Occurrence},
		[]bool{afValid, true, true, true, true, r.Occurrence != ""}
}

// MissingColumnError reports a required column absent from a source header.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("missing required column %q", e.Column)
}

// Extractor turns rows of a table with a fixed header into Records.
type Extractor struct {
	chrom, pos, ref, alt, info int
}

// NewExtractor validates the header and resolves required column indices.
func NewExtractor(columns []string) (*Extractor, error) {
	idx := make(map[string]int, len(columns))
	for i, c := range columns {
		if _, dup := idx[c]; !dup {
			idx[c] = i
		}
	}
	for _, c := range RequiredColumns {
		if _, ok := idx[c]; !ok {
			return nil, &MissingColumnError{Column: c}
		}
	}
	return &Extractor{
		chrom: idx[ColChrom],
		pos:   idx[ColPos],
		ref:   idx[ColRef],
		alt:   idx[ColAlt],
		info:  idx[ColInfo],
	}, nil
}

// Extract builds a Record from one row.
func (e *Extractor) Extract(row []string) Record {
	info := ParseInfo(row[e.info])

	var af *float64
	if v, err := strconv.ParseFloat(info[InfoAF], 64); err == nil {
		af = &v
	}

	chrom, pos, ref, alt := row[e.chrom], row[e.pos], row[e.ref], row[e.alt]
	return Record{
		Key:             NewKey(chrom, pos, ref, alt),
		Row:             row,
		AlleleFrequency: af,
		ClinVarPat:      info[InfoClinVarPat],
		RNAAccession:    info[InfoRNAAccession],
		Consequences:    info[InfoConsequences],
		DisplayID:       chrom + "-" + pos + "-" + ref + "-" + alt,
	}
}

// ParseInfo extracts the fixed INFO subset from a "KEY=VALUE;..." string.
// Absent keys map to the empty string; flags and unknown keys are ignored.
func ParseInfo(info string) map[string]string {
	result := map[string]string{
		InfoAF:           "",
		InfoClinVarPat:   "",
		InfoRNAAccession: "",
		InfoConsequences: "",
	}
	for _, kv := range strings.Split(info, ";") {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		if _, known := result[k]; known {
			result[k] = v
		}
	}
	return result
}
