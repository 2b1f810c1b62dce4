package duckdb

import (
	"os"
	"time"
)

// FileFingerprint holds stat-based identity for an input file of a run.
type FileFingerprint struct {
	Path    string
	Size    int64
	ModTime time.Time
	Skipped bool // the file could not be read or lacked required columns
}

// StatFile creates a FileFingerprint from an on-disk file.
func StatFile(path string) (FileFingerprint, error) {
	info, err := os.Stat(path)
	if err != nil {
		return FileFingerprint{Path: path}, err
	}
	return FileFingerprint{
		Path:    path,
		Size:    info.Size(),
		ModTime: info.ModTime().UTC(),
	}, nil
}

// RunRecord summarizes one batch run against the cache.
type RunRecord struct {
	ID       string
	Started  time.Time
	Finished time.Time
	Keys     int
	Hits     int
	Misses   int
	Fetched  int
	Added    int
	Sources  []FileFingerprint
}

// Skipped returns the number of sources that were not processed.
func (r *RunRecord) Skipped() int {
	n := 0
	for _, s := range r.Sources {
		if s.Skipped {
			n++
		}
	}
	return n
}

// Duration returns the time between start and finish.
func (r *RunRecord) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}
