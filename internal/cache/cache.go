// Package cache holds the in-memory annotation cache for one batch run.
package cache

import (
	"time"

	"github.com/inodb/vibe-annotate/internal/annotation"
	"github.com/inodb/vibe-annotate/internal/variant"
)

// Cache is the set of known annotation records, keyed by variant.
// At most one record is held per key; the first record seen wins.
type Cache struct {
	records map[variant.Key]*annotation.Record
	order   []variant.Key // insertion order
	pending []variant.Key // appended since the last MarkPersisted
}

// New creates a new empty cache.
func New() *Cache {
	return &Cache{
		records: make(map[variant.Key]*annotation.Record),
	}
}

// Add inserts a record loaded from durable storage. The key is
// renormalized. It returns false if the key was already present.
func (c *Cache) Add(r *annotation.Record) bool {
	r.Key = r.Key.Normalize()
	if _, ok := c.records[r.Key]; ok {
		return false
	}
	c.records[r.Key] = r
	c.order = append(c.order, r.Key)
	return true
}

// Append merges freshly fetched records. Each record new to the cache is
// stamped with the date of now and the given run id and queued for
// persistence; records for keys already cached are dropped. It returns the
// records that were added.
func (c *Cache) Append(records []*annotation.Record, now time.Time, runID string) []*annotation.Record {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	var added []*annotation.Record
	for _, r := range records {
		r = r.Clone()
		r.FirstAnnotated = day
		r.RunID = runID
		if !c.Add(r) {
			continue
		}
		c.pending = append(c.pending, r.Key)
		added = append(added, r)
	}
	return added
}

// Lookup partitions keys into cache hits and misses. A cached record with
// at least one populated attribute is a hit; a key with no record, or
// whose record has every attribute null, is a miss. Misses keep the order
// of keys, and duplicates in keys are ignored.
func (c *Cache) Lookup(keys []variant.Key) (map[variant.Key]*annotation.Record, []variant.Key) {
	hits := make(map[variant.Key]*annotation.Record)
	var misses []variant.Key
	seen := make(map[variant.Key]struct{}, len(keys))

	for _, k := range keys {
		k = k.Normalize()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}

		if r, ok := c.records[k]; ok && !r.IsEmpty() {
			hits[k] = r
			continue
		}
		misses = append(misses, k)
	}
	return hits, misses
}

// Get returns the record for k, or nil.
func (c *Cache) Get(k variant.Key) *annotation.Record {
	return c.records[k.Normalize()]
}

// Len returns the number of cached records.
func (c *Cache) Len() int {
	return len(c.records)
}

// Records returns all records in insertion order.
func (c *Cache) Records() []*annotation.Record {
	out := make([]*annotation.Record, len(c.order))
	for i, k := range c.order {
		out[i] = c.records[k]
	}
	return out
}

// Pending returns the records appended since the last MarkPersisted.
func (c *Cache) Pending() []*annotation.Record {
	out := make([]*annotation.Record, len(c.pending))
	for i, k := range c.pending {
		out[i] = c.records[k]
	}
	return out
}

// MarkPersisted clears the pending queue.
func (c *Cache) MarkPersisted() {
	c.pending = nil
}
