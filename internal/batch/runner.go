// Package batch annotates every variant call file in a folder as one run.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/inodb/vibe-annotate/internal/annotate"
	"github.com/inodb/vibe-annotate/internal/duckdb"
	"github.com/inodb/vibe-annotate/internal/occurrence"
	"github.com/inodb/vibe-annotate/internal/output"
	"github.com/inodb/vibe-annotate/internal/variant"
	"github.com/inodb/vibe-annotate/internal/vcf"
)

// ErrNoInputs is returned when a folder holds no variant call files.
var ErrNoInputs = errors.New("no variant call files found")

// Ledger records run summaries.
type Ledger interface {
	RecordRun(r duckdb.RunRecord) error
}

// FileResult is the outcome for one input file.
type FileResult struct {
	Path   string
	Output string // report path; empty when the file was skipped
	Rows   int
	Err    error
}

// Result summarizes a batch.
type Result struct {
	Files  []FileResult
	Stats  *annotate.Stats
	Counts *occurrence.Counts
}

// Failed returns the number of files that produced no report.
func (r *Result) Failed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err != nil {
			n++
		}
	}
	return n
}

// Runner processes folders sequentially: read and extract every file,
// count occurrences, annotate the union of keys once, then write one
// report per readable file.
type Runner struct {
	annotator *annotate.Annotator
	outputDir func(folder string) string
	ledger    Ledger
	logger    *zap.Logger
}

// NewRunner creates a runner. outputDir maps an input folder to the
// directory reports are written to.
func NewRunner(a *annotate.Annotator, outputDir func(folder string) string) *Runner {
	return &Runner{
		annotator: a,
		outputDir: outputDir,
		logger:    zap.NewNop(),
	}
}

// SetLogger sets the logger for per-file diagnostics and the run summary.
func (r *Runner) SetLogger(l *zap.Logger) {
	r.logger = l
}

// SetLedger sets where run summaries are recorded.
func (r *Runner) SetLedger(l Ledger) {
	r.ledger = l
}

// FindInputs lists the .vcf and .vcf.gz files directly inside folder, in
// name order.
func FindInputs(folder string) ([]string, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, fmt.Errorf("read folder: %w", err)
	}
	var paths []string
	for _, e := range entries {
		if e.IsDir() || !vcf.IsVCF(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(folder, e.Name()))
	}
	return paths, nil
}

// reportName returns a report name for path that no earlier input in the
// batch holds. Names compare case-insensitively. On a collision the input's
// full base name without ".gz" is tried, then numbered suffixes.
func reportName(used map[string]bool, path, name string) string {
	candidates := []string{name}
	base := filepath.Base(path)
	if strings.HasSuffix(strings.ToLower(base), ".gz") {
		candidates = append(candidates, base[:len(base)-len(".gz")])
	}
	candidates = append(candidates, base)
	for _, c := range candidates {
		if !used[strings.ToLower(c)] {
			used[strings.ToLower(c)] = true
			return c
		}
	}
	for n := 2; ; n++ {
		c := fmt.Sprintf("%s-%d", name, n)
		if !used[strings.ToLower(c)] {
			used[strings.ToLower(c)] = true
			return c
		}
	}
}

// ReadSource reads and extracts one input file.
func ReadSource(path string) (*annotate.Source, error) {
	tbl, err := vcf.ReadTable(path)
	if err != nil {
		return nil, err
	}
	ex, err := variant.NewExtractor(tbl.Columns)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	src := &annotate.Source{
		Name:    tbl.Name,
		Columns: tbl.Columns,
		Records: make([]variant.Record, len(tbl.Rows)),
	}
	for i, row := range tbl.Rows {
		src.Records[i] = ex.Extract(row)
	}
	return src, nil
}

// Run annotates every input file in folder. Files that cannot be read or
// written are logged and reported in the result; annotation service and
// cache failures abort the run.
func (r *Runner) Run(ctx context.Context, folder string) (*Result, error) {
	started := time.Now()

	paths, err := FindInputs(folder)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoInputs, folder)
	}
	r.logger.Info("found input files", zap.String("folder", folder), zap.Int("files", len(paths)))

	res := &Result{Files: make([]FileResult, len(paths))}
	counter := occurrence.NewCounter()
	var (
		sources []*annotate.Source
		owners  []int // index into res.Files for each source
		names   = make(map[string]bool)
	)
	for i, path := range paths {
		res.Files[i].Path = path
		src, err := ReadSource(path)
		if err != nil {
			r.logger.Warn("skipping file", zap.String("file", path), zap.Error(err))
			res.Files[i].Err = err
			counter.Skip()
			continue
		}
		if name := reportName(names, path, src.Name); name != src.Name {
			r.logger.Warn("report name already taken",
				zap.String("file", path),
				zap.String("name", src.Name),
				zap.String("using", name))
			src.Name = name
		}
		counter.Add(src.Keys())
		sources = append(sources, src)
		owners = append(owners, i)
		r.logger.Debug("read file", zap.String("file", path), zap.Int("rows", len(src.Records)))
	}

	res.Counts = counter.Counts()
	for _, src := range sources {
		for i := range src.Records {
			src.Records[i].Occurrence = res.Counts.Fraction(src.Records[i].Key)
		}
	}

	tables, stats, err := r.annotator.Run(ctx, sources)
	if err != nil {
		return nil, err
	}
	res.Stats = stats

	outDir := r.outputDir(folder)
	for j, t := range tables {
		fr := &res.Files[owners[j]]
		path, err := output.WriteFile(outDir, t)
		if err != nil {
			r.logger.Warn("failed to write report", zap.String("file", fr.Path), zap.Error(err))
			fr.Err = err
			continue
		}
		fr.Output = path
		fr.Rows = len(t.Rows)
		r.logger.Info("wrote report", zap.String("file", path), zap.Int("rows", fr.Rows))
	}

	r.logger.Info("batch finished",
		zap.Int("files", len(paths)),
		zap.Int("failed", res.Failed()),
		zap.Int("unique_variants", stats.Keys),
		zap.Int("cache_hits", stats.Hits),
		zap.Int("cache_misses", stats.Misses),
		zap.Int("fetched", stats.Fetched),
		zap.Int("cache_size", stats.CacheSize))

	if r.ledger != nil {
		if err := r.ledger.RecordRun(r.runRecord(res, started)); err != nil {
			r.logger.Warn("failed to record run", zap.Error(err))
		}
	}
	return res, nil
}

func (r *Runner) runRecord(res *Result, started time.Time) duckdb.RunRecord {
	rec := duckdb.RunRecord{
		ID:       r.annotator.RunID(),
		Started:  started,
		Finished: time.Now(),
		Keys:     res.Stats.Keys,
		Hits:     res.Stats.Hits,
		Misses:   res.Stats.Misses,
		Fetched:  res.Stats.Fetched,
		Added:    res.Stats.Added,
	}
	for _, f := range res.Files {
		fp, err := duckdb.StatFile(f.Path)
		if err != nil {
			r.logger.Debug("stat input", zap.String("file", f.Path), zap.Error(err))
		}
		fp.Skipped = f.Err != nil
		rec.Sources = append(rec.Sources, fp)
	}
	return rec
}
