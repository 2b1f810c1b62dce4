// Package occurrence counts in how many sources of a batch each variant appears.
package occurrence

import (
	"strconv"

	"github.com/inodb/vibe-annotate/internal/variant"
)

// Counts maps each variant key to the number of distinct sources containing it.
type Counts struct {
	counts map[variant.Key]int
	total  int
}

// Counter accumulates per-source key sets. Sources that failed to parse are
// registered with Skip so they still count toward the denominator.
type Counter struct {
	counts map[variant.Key]int
	total  int
}

// NewCounter returns an empty counter.
func NewCounter() *Counter {
	return &Counter{counts: make(map[variant.Key]int)}
}

// Add registers one source. Keys repeated within the source count once.
func (c *Counter) Add(keys []variant.Key) {
	c.total++
	seen := make(map[variant.Key]struct{}, len(keys))
	for _, k := range keys {
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		c.counts[k]++
	}
}

// Skip registers an attempted source that contributed no keys.
func (c *Counter) Skip() {
	c.total++
}

// Counts returns a snapshot of the tallies.
func (c *Counter) Counts() *Counts {
	snapshot := make(map[variant.Key]int, len(c.counts))
	for k, n := range c.counts {
		snapshot[k] = n
	}
	return &Counts{counts: snapshot, total: c.total}
}

// Get returns the number of sources containing k.
func (c *Counts) Get(k variant.Key) int {
	return c.counts[k]
}

// Total returns the number of sources attempted.
func (c *Counts) Total() int {
	return c.total
}

// Len returns the number of distinct keys.
func (c *Counts) Len() int {
	return len(c.counts)
}

// Fraction renders the count for k as "count/total".
func (c *Counts) Fraction(k variant.Key) string {
	return strconv.Itoa(c.counts[k]) + "/" + strconv.Itoa(c.total)
}
