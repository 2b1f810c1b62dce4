package annotate

import (
	"github.com/inodb/vibe-annotate/internal/annotation"
	"github.com/inodb/vibe-annotate/internal/variant"
)

// AnnotationSource adds local data to the combined annotation set. Values
// it sets are reported but never written to the cache.
type AnnotationSource interface {
	Name() string         // e.g. "oncokb"
	Version() string      // e.g. "v4.21"
	Columns() []ColumnDef // attributes this source provides
	Annotate(records map[variant.Key]*annotation.Record)
}

// ColumnDef describes an attribute provided by an annotation source.
type ColumnDef struct {
	Name        string // attribute name, e.g. "oncokb_gene_type"
	Description string
}
