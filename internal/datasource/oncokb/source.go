package oncokb

import (
	"github.com/inodb/vibe-annotate/internal/annotate"
	"github.com/inodb/vibe-annotate/internal/annotation"
	"github.com/inodb/vibe-annotate/internal/variant"
)

// GeneTypeAttribute is the attribute set on records whose gene is listed.
const GeneTypeAttribute = "oncokb_gene_type"

// Source wraps a CancerGeneList as an annotate.AnnotationSource.
type Source struct {
	cgl CancerGeneList
}

// NewSource creates an AnnotationSource backed by the given CancerGeneList.
func NewSource(cgl CancerGeneList) *Source {
	return &Source{cgl: cgl}
}

func (s *Source) Name() string    { return "oncokb" }
func (s *Source) Version() string { return "cancerGeneList.tsv" }

func (s *Source) Columns() []annotate.ColumnDef {
	return []annotate.ColumnDef{
		{Name: GeneTypeAttribute, Description: "OncoKB gene role (ONCOGENE/TSG)"},
	}
}

// Annotate sets the gene type on records whose gene symbol is listed.
// Records that already carry a gene type keep it.
func (s *Source) Annotate(records map[variant.Key]*annotation.Record) {
	for _, r := range records {
		symbol, ok := r.Get(annotation.GeneSymbol)
		if !ok || !s.cgl.IsCancerGene(symbol) {
			continue
		}
		g := s.cgl[symbol]
		if g.GeneType == "" {
			continue
		}
		if _, set := r.Get(GeneTypeAttribute); set {
			continue
		}
		r.Set(GeneTypeAttribute, g.GeneType)
	}
}
