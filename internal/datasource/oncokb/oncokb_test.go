package oncokb

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-annotate/internal/annotation"
	"github.com/inodb/vibe-annotate/internal/variant"
)

func TestLoadCancerGeneList(t *testing.T) {
	cgl, err := LoadCancerGeneList(filepath.Join("testdata", "cancerGeneList.tsv"))
	require.NoError(t, err)
	assert.Len(t, cgl, 6)

	tests := []struct {
		gene     string
		geneType string
	}{
		{"ABL1", "ONCOGENE"},
		{"TP53", "TSG"},
		{"BRCA1", "TSG"},
		{"KRAS", "ONCOGENE"},
		{"NOTCH1", "ONCOGENE_AND_TSG"},
	}
	for _, tt := range tests {
		t.Run(tt.gene, func(t *testing.T) {
			g, ok := cgl[tt.gene]
			require.True(t, ok, "gene %s should be in cancer gene list", tt.gene)
			assert.Equal(t, tt.gene, g.HugoSymbol)
			assert.Equal(t, tt.geneType, g.GeneType)
		})
	}
}

func TestLoadCancerGeneList_NotFound(t *testing.T) {
	_, err := LoadCancerGeneList("/nonexistent/path.tsv")
	assert.Error(t, err)
}

func TestParseCancerGeneList_Errors(t *testing.T) {
	tests := []struct {
		name, input, want string
	}{
		{"empty", "", "empty"},
		{"no symbol", "Gene Type\nTSG\n", "Hugo Symbol"},
		{"no type", "Hugo Symbol\nTP53\n", "Gene Type"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCancerGeneList(strings.NewReader(tt.input))
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestCancerGeneList_IsCancerGene(t *testing.T) {
	cgl := CancerGeneList{
		"TP53": &Gene{HugoSymbol: "TP53", GeneType: "TSG"},
	}
	assert.True(t, cgl.IsCancerGene("TP53"))
	assert.False(t, cgl.IsCancerGene("UNKNOWN"))
}

func TestSource_Annotate(t *testing.T) {
	src := NewSource(CancerGeneList{
		"BRCA1": &Gene{HugoSymbol: "BRCA1", GeneType: "TSG"},
		"KRAS":  &Gene{HugoSymbol: "KRAS", GeneType: "ONCOGENE"},
	})
	assert.Equal(t, "oncokb", src.Name())
	require.Len(t, src.Columns(), 1)
	assert.Equal(t, GeneTypeAttribute, src.Columns()[0].Name)

	brca1 := variant.NewKey("17", 41245466, "G", "A")
	kras := variant.NewKey("12", 25398284, "C", "A")
	other := variant.NewKey("1", 100, "A", "T")
	bare := variant.NewKey("2", 200, "G", "C")

	records := map[variant.Key]*annotation.Record{
		brca1: {Key: brca1, Attributes: annotation.Attributes{annotation.GeneSymbol: "BRCA1"}},
		kras:  {Key: kras, Attributes: annotation.Attributes{annotation.GeneSymbol: "KRAS", GeneTypeAttribute: "custom"}},
		other: {Key: other, Attributes: annotation.Attributes{annotation.GeneSymbol: "OR4F5"}},
		bare:  {Key: bare},
	}
	src.Annotate(records)

	assert.Equal(t, "TSG", records[brca1].Attributes[GeneTypeAttribute])
	assert.Equal(t, "custom", records[kras].Attributes[GeneTypeAttribute])
	_, ok := records[other].Get(GeneTypeAttribute)
	assert.False(t, ok)
	assert.True(t, records[bare].IsEmpty())
}
