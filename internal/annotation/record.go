// Package annotation defines externally sourced variant annotations.
package annotation

import (
	"sort"
	"time"

	"github.com/inodb/vibe-annotate/internal/variant"
)

// Schema attribute names. These are persisted as typed cache columns;
// anything else a service returns is kept as an extra attribute.
const (
	GeneSymbol                   = "gene_symbol"
	GeneHGNCID                   = "gene_hgnc_id"
	Transcript                   = "transcript"
	Effect                       = "effect"
	HGVSc                        = "hgvs_c"
	HGVSp                        = "hgvs_p"
	DbSNP                        = "dbsnp"
	FrequencyReferencePopulation = "frequency_reference_population"
	HomCountReferencePopulation  = "hom_count_reference_population"
	AlleleCountReference         = "allele_count_reference_population"
	GnomadExomesAF               = "gnomad_exomes_af"
	GnomadGenomesAF              = "gnomad_genomes_af"
	AlphaMissenseScore           = "alphamissense_score"
	AlphaMissensePrediction      = "alphamissense_prediction"
	RevelScore                   = "revel_score"
	SpliceAIMaxScore             = "spliceai_max_score"
	PhyloP100WayScore            = "phylop100way_score"
	ACMGScore                    = "acmg_score"
	ACMGClassification           = "acmg_classification"
	ACMGCriteria                 = "acmg_criteria"
	ClinVarDisease               = "clinvar_disease"
	ClinVarClassification        = "clinvar_classification"
	ClinVarReviewStatus          = "clinvar_review_status"
)

// Fields lists the schema attributes in report column order.
var Fields = []string{
	GeneSymbol, GeneHGNCID, Transcript, Effect, HGVSc, HGVSp, DbSNP,
	FrequencyReferencePopulation, HomCountReferencePopulation, AlleleCountReference,
	GnomadExomesAF, GnomadGenomesAF,
	AlphaMissenseScore, AlphaMissensePrediction, RevelScore, SpliceAIMaxScore, PhyloP100WayScore,
	ACMGScore, ACMGClassification, ACMGCriteria,
	ClinVarDisease, ClinVarClassification, ClinVarReviewStatus,
}

var schemaFields = func() map[string]bool {
	m := make(map[string]bool, len(Fields))
	for _, f := range Fields {
		m[f] = true
	}
	return m
}()

// IsSchemaField reports whether name is a typed schema attribute.
func IsSchemaField(name string) bool {
	return schemaFields[name]
}

// Attributes holds annotation values by name. An absent name is null.
type Attributes map[string]string

// Record is the annotation for one variant.
type Record struct {
	Key            variant.Key
	Attributes     Attributes
	FirstAnnotated time.Time // date the record entered the cache; zero if not yet cached
	RunID          string    // batch run that appended the record
}

// IsEmpty reports whether no non-key attribute is populated.
func (r *Record) IsEmpty() bool {
	return len(r.Attributes) == 0
}

// Get returns the attribute value and whether it is non-null.
func (r *Record) Get(name string) (string, bool) {
	v, ok := r.Attributes[name]
	return v, ok
}

// Set stores a non-null attribute value.
func (r *Record) Set(name, value string) {
	if r.Attributes == nil {
		r.Attributes = make(Attributes)
	}
	r.Attributes[name] = value
}

// Fill copies attributes from other that are null on r. Populated values
// on r are never replaced. It returns the number of attributes filled.
func (r *Record) Fill(other *Record) int {
	n := 0
	for name, v := range other.Attributes {
		if _, ok := r.Attributes[name]; ok {
			continue
		}
		r.Set(name, v)
		n++
	}
	return n
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	c := *r
	if r.Attributes != nil {
		c.Attributes = make(Attributes, len(r.Attributes))
		for k, v := range r.Attributes {
			c.Attributes[k] = v
		}
	}
	return &c
}

// Extra returns the attributes that are not schema fields.
func (r *Record) Extra() Attributes {
	var extra Attributes
	for k, v := range r.Attributes {
		if schemaFields[k] {
			continue
		}
		if extra == nil {
			extra = make(Attributes)
		}
		extra[k] = v
	}
	return extra
}

// Columns returns the attribute column order for a set of records:
// schema fields first, then extra attribute names sorted.
func Columns(records []*Record) []string {
	extra := make(map[string]struct{})
	for _, r := range records {
		for k := range r.Attributes {
			if !schemaFields[k] {
				extra[k] = struct{}{}
			}
		}
	}
	names := make([]string, 0, len(extra))
	for k := range extra {
		names = append(names, k)
	}
	sort.Strings(names)

	cols := make([]string, 0, len(Fields)+len(names))
	cols = append(cols, Fields...)
	return append(cols, names...)
}
