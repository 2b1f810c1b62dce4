package duckdb

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/vibe-annotate/internal/annotation"
	"github.com/inodb/vibe-annotate/internal/cache"
	"github.com/inodb/vibe-annotate/internal/variant"
)

func openInMemory(t *testing.T) *Store {
	t.Helper()
	s, err := Open("")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

var (
	brca1 = variant.NewKey("17", 41245466, "G", "A")
	brca2 = variant.NewKey("13", 32906729, "A", "C")
	day   = time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC)
)

func appendRecords(c *cache.Cache, records ...*annotation.Record) {
	c.Append(records, day, "run-1")
}

// --- Annotation cache tests (DuckDB) ---

func TestOpenClose(t *testing.T) {
	s := openInMemory(t)
	assert.NotNil(t, s.DB())

	v, err := s.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, SchemaVersion, v)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotation_cache.duckdb")

	s, err := Open(path)
	require.NoError(t, err)
	assert.False(t, s.Existed())

	c := cache.New()
	appendRecords(c,
		&annotation.Record{Key: brca1, Attributes: annotation.Attributes{
			annotation.GeneSymbol:                   "BRCA1",
			annotation.FrequencyReferencePopulation: "0.43",
			"oncokb_gene_type":                      "TSG",
		}},
		&annotation.Record{Key: brca2, Attributes: annotation.Attributes{
			annotation.GeneSymbol: "BRCA2",
		}},
	)
	require.NoError(t, s.Save(c))
	assert.Empty(t, c.Pending())
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	assert.True(t, s.Existed())

	loaded := cache.New()
	n, err := s.Load(loaded)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got := loaded.Get(brca1)
	require.NotNil(t, got)
	assert.Equal(t, "BRCA1", got.Attributes[annotation.GeneSymbol])
	assert.Equal(t, "0.43", got.Attributes[annotation.FrequencyReferencePopulation])
	assert.Equal(t, "TSG", got.Attributes["oncokb_gene_type"])
	_, hasACMG := got.Get(annotation.ACMGClassification)
	assert.False(t, hasACMG, "null columns load as absent attributes")
	assert.Equal(t, time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC), got.FirstAnnotated)
	assert.Equal(t, "run-1", got.RunID)

	recs := loaded.Records()
	require.Len(t, recs, 2)
	assert.Equal(t, brca1, recs[0].Key)
	assert.Equal(t, brca2, recs[1].Key)
}

func TestSave_KeepFirstAcrossRuns(t *testing.T) {
	s := openInMemory(t)

	c := cache.New()
	appendRecords(c, &annotation.Record{Key: brca1, Attributes: annotation.Attributes{annotation.GeneSymbol: "first"}})
	require.NoError(t, s.Save(c))

	// A second run that did not load the first run's records re-fetches the variant.
	c2 := cache.New()
	appendRecords(c2, &annotation.Record{Key: brca1, Attributes: annotation.Attributes{annotation.GeneSymbol: "second"}})
	require.NoError(t, s.Save(c2))

	count, err := s.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	got, err := s.LookupVariant(brca1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "first", got.Attributes[annotation.GeneSymbol])
}

func TestSave_NothingPending(t *testing.T) {
	s := openInMemory(t)
	require.NoError(t, s.Save(cache.New()))

	count, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestLookupVariant_NormalizesKey(t *testing.T) {
	s := openInMemory(t)

	c := cache.New()
	appendRecords(c, &annotation.Record{Key: brca1, Attributes: annotation.Attributes{annotation.GeneSymbol: "BRCA1"}})
	require.NoError(t, s.Save(c))

	got, err := s.LookupVariant(variant.Key{Chrom: "chr17", Pos: "41245466", Ref: "G", Alt: "A"})
	require.NoError(t, err)
	require.NotNil(t, got)

	got, err = s.LookupVariant(variant.NewKey("1", 1, "A", "T"))
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSearchByGene(t *testing.T) {
	s := openInMemory(t)

	c := cache.New()
	appendRecords(c,
		&annotation.Record{Key: brca1, Attributes: annotation.Attributes{annotation.GeneSymbol: "BRCA1"}},
		&annotation.Record{Key: variant.NewKey("17", 41276045, "ACT", "A"), Attributes: annotation.Attributes{annotation.GeneSymbol: "BRCA1"}},
		&annotation.Record{Key: brca2, Attributes: annotation.Attributes{annotation.GeneSymbol: "BRCA2"}},
	)
	require.NoError(t, s.Save(c))

	found, err := s.SearchByGene("BRCA1")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = s.SearchByGene("NOTEXIST")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestClearAnnotations(t *testing.T) {
	s := openInMemory(t)

	c := cache.New()
	appendRecords(c, &annotation.Record{Key: brca1, Attributes: annotation.Attributes{annotation.GeneSymbol: "BRCA1"}})
	require.NoError(t, s.Save(c))
	require.NoError(t, s.ClearAnnotations())

	count, err := s.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotation_cache.duckdb")
	require.NoError(t, os.WriteFile(path, []byte("this is not a database"), 0644))

	_, err := Open(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCorruptCache)
}

func TestOpen_Directory(t *testing.T) {
	_, err := Open(t.TempDir())
	assert.ErrorIs(t, err, ErrCorruptCache)
}

func TestOpen_SchemaVersionMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotation_cache.duckdb")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.DB().Exec(`UPDATE cache_meta SET value = '99' WHERE key = 'schema_version'`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrSchemaVersion)
}

func TestOpen_ForeignDatabaseNotAdopted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.duckdb")
	db, err := sql.Open("duckdb", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE samples (id INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrSchemaVersion)

	db, err = sql.Open("duckdb", path)
	require.NoError(t, err)
	defer db.Close()
	var tables int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM information_schema.tables
		WHERE table_name IN ('cache_meta', 'annotations')`).Scan(&tables))
	assert.Zero(t, tables, "file left untouched")
}

func TestOpen_MissingVersionRow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotation_cache.duckdb")

	s, err := Open(path)
	require.NoError(t, err)
	_, err = s.DB().Exec(`DELETE FROM cache_meta`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = Open(path)
	assert.ErrorIs(t, err, ErrSchemaVersion)
}

func TestOpen_ReopenKeepsVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "annotation_cache.duckdb")
	for i := 0; i < 2; i++ {
		s, err := Open(path)
		require.NoError(t, err)
		assert.Equal(t, i == 1, s.Existed())
		v, err := s.SchemaVersion()
		require.NoError(t, err)
		assert.Equal(t, SchemaVersion, v)
		require.NoError(t, s.Close())
	}
}

func TestRecordRun(t *testing.T) {
	s := openInMemory(t)

	input := filepath.Join(t.TempDir(), "panel.vcf")
	require.NoError(t, os.WriteFile(input, []byte("#CHROM\tPOS\tREF\tALT\tINFO\n"), 0644))
	fp, err := StatFile(input)
	require.NoError(t, err)

	missing, err := StatFile(filepath.Join(t.TempDir(), "gone.vcf"))
	require.Error(t, err)
	missing.Skipped = true

	older := RunRecord{ID: "run-1", Started: day.Add(-time.Hour), Finished: day.Add(-time.Hour + time.Second)}
	require.NoError(t, s.RecordRun(older))

	newer := RunRecord{
		ID:       "run-2",
		Started:  day,
		Finished: day.Add(3 * time.Second),
		Keys:     3, Hits: 1, Misses: 2, Fetched: 2, Added: 2,
		Sources: []FileFingerprint{fp, missing},
	}
	require.NoError(t, s.RecordRun(newer))

	runs, err := s.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-2", runs[0].ID)
	assert.Equal(t, "run-1", runs[1].ID)

	got := runs[0]
	assert.Equal(t, 3, got.Keys)
	assert.Equal(t, 2, got.Added)
	assert.Equal(t, 3*time.Second, got.Duration())
	require.Len(t, got.Sources, 2)
	assert.Equal(t, fp.Size, got.Sources[0].Size)
	assert.False(t, got.Sources[0].Skipped)
	assert.True(t, got.Sources[1].Skipped)
	assert.Equal(t, 1, got.Skipped())

	latest, err := s.Runs(1)
	require.NoError(t, err)
	require.Len(t, latest, 1)
	assert.Equal(t, "run-2", latest[0].ID)
}
