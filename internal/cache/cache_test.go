package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-annotate/internal/annotation"
	"github.com/inodb/vibe-annotate/internal/variant"
)

var (
	brca1 = variant.NewKey("17", 41245466, "G", "A")
	brca2 = variant.NewKey("13", 32906729, "A", "C")
	tp53  = variant.NewKey("17", 7577120, "C", "T")
)

func rec(k variant.Key, attrs annotation.Attributes) *annotation.Record {
	return &annotation.Record{Key: k, Attributes: attrs}
}

func TestAppend_KeepFirst(t *testing.T) {
	c := New()
	day1 := time.Date(2026, 3, 1, 15, 4, 5, 0, time.Local)
	day2 := day1.AddDate(0, 0, 7)

	added := c.Append([]*annotation.Record{
		rec(brca1, annotation.Attributes{annotation.GeneSymbol: "BRCA1"}),
	}, day1, "run-1")
	require.Len(t, added, 1)

	added = c.Append([]*annotation.Record{
		rec(brca1, annotation.Attributes{annotation.GeneSymbol: "OVERWRITE"}),
	}, day2, "run-2")
	assert.Empty(t, added)

	got := c.Get(brca1)
	require.NotNil(t, got)
	assert.Equal(t, "BRCA1", got.Attributes[annotation.GeneSymbol])
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC), got.FirstAnnotated)
	assert.Equal(t, 1, c.Len())
}

func TestAppend_DuplicatesWithinBatch(t *testing.T) {
	c := New()
	added := c.Append([]*annotation.Record{
		rec(brca1, annotation.Attributes{annotation.GeneSymbol: "first"}),
		rec(variant.NewKey("chr17", "41245466", "G", "A"), annotation.Attributes{annotation.GeneSymbol: "second"}),
	}, time.Now(), "run")

	require.Len(t, added, 1)
	assert.Equal(t, "first", c.Get(brca1).Attributes[annotation.GeneSymbol])
}

func TestAppend_DoesNotAliasInput(t *testing.T) {
	c := New()
	in := rec(brca1, annotation.Attributes{annotation.GeneSymbol: "BRCA1"})
	c.Append([]*annotation.Record{in}, time.Now(), "run")

	in.Attributes[annotation.GeneSymbol] = "changed"
	assert.Equal(t, "BRCA1", c.Get(brca1).Attributes[annotation.GeneSymbol])
	assert.True(t, in.FirstAnnotated.IsZero())
}

func TestLookup_PartialIsHit(t *testing.T) {
	c := New()
	c.Add(rec(brca1, annotation.Attributes{annotation.FrequencyReferencePopulation: "0.97"}))
	c.Add(rec(brca2, nil))

	hits, misses := c.Lookup([]variant.Key{brca1, brca2, tp53, brca1})

	require.Contains(t, hits, brca1)
	_, hasGene := hits[brca1].Get(annotation.GeneSymbol)
	assert.False(t, hasGene)
	assert.Equal(t, []variant.Key{brca2, tp53}, misses)
}

func TestLookup_NormalizesKeys(t *testing.T) {
	c := New()
	c.Add(rec(variant.Key{Chrom: "chr17", Pos: "41245466", Ref: "G", Alt: "A"},
		annotation.Attributes{annotation.GeneSymbol: "BRCA1"}))

	hits, misses := c.Lookup([]variant.Key{{Chrom: "CHR17", Pos: "41245466", Ref: "G", Alt: "A"}})
	assert.Len(t, hits, 1)
	assert.Empty(t, misses)
}

func TestPending(t *testing.T) {
	c := New()
	c.Add(rec(brca1, annotation.Attributes{annotation.GeneSymbol: "BRCA1"}))
	assert.Empty(t, c.Pending())

	c.Append([]*annotation.Record{
		rec(brca1, annotation.Attributes{annotation.GeneSymbol: "dup"}),
		rec(tp53, annotation.Attributes{annotation.GeneSymbol: "TP53"}),
	}, time.Now(), "run")

	pending := c.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, tp53, pending[0].Key)

	c.MarkPersisted()
	assert.Empty(t, c.Pending())

	recs := c.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, brca1, recs[0].Key)
	assert.Equal(t, tp53, recs[1].Key)
}
