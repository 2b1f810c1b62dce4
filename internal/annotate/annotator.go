// Package annotate reconciles per-source variant records with cached and
// freshly fetched annotations.
package annotate

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/inodb/vibe-annotate/internal/annotation"
	"github.com/inodb/vibe-annotate/internal/cache"
	"github.com/inodb/vibe-annotate/internal/variant"
)

// Service fetches annotations for keys missing from the cache.
type Service interface {
	Annotate(ctx context.Context, keys []variant.Key) ([]*annotation.Record, error)
}

// Store persists the cache's pending records.
type Store interface {
	Save(c *cache.Cache) error
}

// Source is one extracted input file.
type Source struct {
	Name    string
	Columns []string
	Records []variant.Record
}

// Keys returns the normalized key of every record, in row order.
func (s *Source) Keys() []variant.Key {
	keys := make([]variant.Key, len(s.Records))
	for i := range s.Records {
		keys[i] = s.Records[i].Key
	}
	return keys
}

// Stats summarizes one run.
type Stats struct {
	Sources   int
	Keys      int // distinct keys across all sources
	Hits      int
	Misses    int
	Fetched   int // records returned by the service
	Added     int // records appended to the cache
	CacheSize int
}

// Annotator runs the lookup, fetch, append and merge sequence over a batch
// of sources. It is not safe for concurrent use.
type Annotator struct {
	cache   *cache.Cache
	service Service
	store   Store
	sources []AnnotationSource
	sortBy  string
	runID   string
	now     func() time.Time
	logger  *zap.Logger
}

// NewAnnotator creates an annotator over a loaded cache. store may be nil,
// in which case appended records stay pending.
func NewAnnotator(c *cache.Cache, service Service, store Store) *Annotator {
	return &Annotator{
		cache:   c,
		service: service,
		store:   store,
		sortBy:  variant.InfoAF,
		runID:   uuid.NewString(),
		now:     time.Now,
		logger:  zap.NewNop(),
	}
}

// SetLogger sets the logger for progress messages.
func (a *Annotator) SetLogger(l *zap.Logger) {
	a.logger = l
}

// SetSortBy sets the column output tables are sorted on.
func (a *Annotator) SetSortBy(column string) {
	a.sortBy = column
}

// SetClock overrides the time source used to date appended records.
func (a *Annotator) SetClock(now func() time.Time) {
	a.now = now
}

// SetRunID overrides the generated run identifier.
func (a *Annotator) SetRunID(id string) {
	a.runID = id
}

// RunID returns the identifier stamped on records appended by this annotator.
func (a *Annotator) RunID() string {
	return a.runID
}

// AddSource registers a local annotation source, applied in order.
func (a *Annotator) AddSource(s AnnotationSource) {
	a.sources = append(a.sources, s)
}

// Run annotates a batch and returns one table per source, in source order.
// Service and store failures abort the run.
func (a *Annotator) Run(ctx context.Context, sources []*Source) ([]*Table, *Stats, error) {
	keys := UnionKeys(sources)
	stats := &Stats{Sources: len(sources), Keys: len(keys)}

	hits, misses := a.cache.Lookup(keys)
	stats.Hits, stats.Misses = len(hits), len(misses)
	a.logger.Info("cache lookup",
		zap.Int("keys", len(keys)),
		zap.Int("hits", len(hits)),
		zap.Int("misses", len(misses)))

	var fresh []*annotation.Record
	if len(misses) > 0 {
		got, err := a.service.Annotate(ctx, misses)
		if err != nil {
			return nil, nil, fmt.Errorf("fetch annotations: %w", err)
		}
		fresh = renormalize(got)
		stats.Fetched = len(fresh)

		added := a.cache.Append(fresh, a.now(), a.runID)
		stats.Added = len(added)
		if a.store != nil {
			if err := a.store.Save(a.cache); err != nil {
				return nil, nil, fmt.Errorf("save cache: %w", err)
			}
		}
		a.logger.Info("cache updated",
			zap.Int("fetched", len(fresh)),
			zap.Int("added", len(added)),
			zap.String("run_id", a.runID))
	}
	stats.CacheSize = a.cache.Len()

	combined := a.combine(keys, fresh)
	var local []string
	for _, s := range a.sources {
		s.Annotate(combined)
		for _, c := range s.Columns() {
			local = append(local, c.Name)
			a.logger.Debug("applied annotation source",
				zap.String("source", s.Name()),
				zap.String("version", s.Version()),
				zap.String("column", c.Name),
				zap.String("description", c.Description))
		}
	}

	tables := make([]*Table, 0, len(sources))
	for _, s := range sources {
		t, err := Merge(s, combined, a.sortBy, local)
		if err != nil {
			return nil, nil, fmt.Errorf("merge %s: %w", s.Name, err)
		}
		tables = append(tables, t)
	}
	return tables, stats, nil
}

// combine builds the annotation set for keys: the cached record for each
// key, with nulls filled from fresh records. Records are copies, so local
// sources may modify them without touching the cache.
func (a *Annotator) combine(keys []variant.Key, fresh []*annotation.Record) map[variant.Key]*annotation.Record {
	combined := make(map[variant.Key]*annotation.Record, len(keys))
	for _, k := range keys {
		if r := a.cache.Get(k); r != nil {
			combined[k] = r.Clone()
		}
	}
	for _, r := range fresh {
		if existing, ok := combined[r.Key]; ok {
			existing.Fill(r)
			continue
		}
		combined[r.Key] = r.Clone()
	}
	return combined
}

// UnionKeys returns the distinct keys across sources in first-seen order.
func UnionKeys(sources []*Source) []variant.Key {
	seen := make(map[variant.Key]struct{})
	var keys []variant.Key
	for _, s := range sources {
		for i := range s.Records {
			k := s.Records[i].Key.Normalize()
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		}
	}
	return keys
}

func renormalize(records []*annotation.Record) []*annotation.Record {
	out := make([]*annotation.Record, 0, len(records))
	for _, r := range records {
		if r == nil {
			continue
		}
		r.Key = r.Key.Normalize()
		out = append(out, r)
	}
	return out
}
