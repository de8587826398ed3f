// Package model defines the normalized record shape that flows through the
// whole ingest-to-file-list pipeline (codec -> wal -> catalog -> query),
// independent of any one wire format.
package model

import (
	"sort"

	"github.com/cespare/xxhash/v2"
)

// Record is a single normalized observability event. Timestamps are
// microseconds since epoch; zero is never valid.
type Record struct {
	TimestampUs int64
	Stream      string
	Labels      map[string]string
	Line        string
	Structured  map[string]string
}

// MaxLabelStringLen is the largest accepted encoded label string, per the
// boundary behavior in the spec (16 KiB).
const MaxLabelStringLen = 16 * 1024

// StreamHash returns a stable 64-bit hash of a label set, used as the
// stream identity. Two label sets with identical key/value pairs (in any
// order) hash identically.
func StreamHash(labels map[string]string) uint64 {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	d := xxhash.New()
	for _, k := range keys {
		_, _ = d.WriteString(k)
		_, _ = d.WriteString("\x00")
		_, _ = d.WriteString(labels[k])
		_, _ = d.WriteString("\x01")
	}
	return d.Sum64()
}

// PartitionID returns floor(timestampUs / partitionDurationUs), the unit of
// file creation for a stream.
func PartitionID(timestampUs int64, partitionDurationUs int64) int64 {
	if timestampUs < 0 {
		// Integer division in Go truncates towards zero; observability
		// timestamps are never negative in practice, but floor() must still
		// round towards negative infinity for the invariant to hold.
		q := timestampUs / partitionDurationUs
		if timestampUs%partitionDurationUs != 0 {
			q--
		}
		return q
	}
	return timestampUs / partitionDurationUs
}

// FileMeta describes one immutable columnar file.
type FileMeta struct {
	MinTS          int64 `json:"min_ts"`
	MaxTS          int64 `json:"max_ts"`
	Records        int64 `json:"records"`
	OriginalSize   int64 `json:"original_size"`
	CompressedSize int64 `json:"compressed_size"`
	IndexSize      int64 `json:"index_size"`
}

// FileKey identifies one immutable file and its metadata.
type FileKey struct {
	ID         int64    `json:"id"`
	Account    string   `json:"account"`
	Key        string   `json:"key"`
	IndexKey   string   `json:"index_key,omitempty"`
	Meta       FileMeta `json:"meta"`
	Deleted    bool     `json:"deleted"`
	SegmentIDs []byte   `json:"segment_ids,omitempty"`
}

// Intersects reports whether the file's time range intersects [start, end],
// inclusive, the pruning rule used by the catalog and the query coordinator.
func (f *FileKey) Intersects(start, end int64) bool {
	return f.Meta.MinTS <= end && f.Meta.MaxTS >= start
}

// ScanStats accumulates per-query accounting across workers. All fields are
// additive (invariant I5).
type ScanStats struct {
	Files                   int64 `json:"files"`
	Records                 int64 `json:"records"`
	OriginalSize            int64 `json:"original_size"`
	CompressedSize          int64 `json:"compressed_size"`
	QuerierFiles            int64 `json:"querier_files"`
	QuerierMemoryCachedFiles int64 `json:"querier_memory_cached_files"`
	QuerierDiskCachedFiles  int64 `json:"querier_disk_cached_files"`
	IdxScanSize             int64 `json:"idx_scan_size"`
	IdxTookMs               int64 `json:"idx_took"`
	FileListTookMs          int64 `json:"file_list_took"`
	AggsCacheRatio          float64 `json:"aggs_cache_ratio"`
}

// Add accumulates other into s, in place.
func (s *ScanStats) Add(other ScanStats) {
	s.Files += other.Files
	s.Records += other.Records
	s.OriginalSize += other.OriginalSize
	s.CompressedSize += other.CompressedSize
	s.QuerierFiles += other.QuerierFiles
	s.QuerierMemoryCachedFiles += other.QuerierMemoryCachedFiles
	s.QuerierDiskCachedFiles += other.QuerierDiskCachedFiles
	s.IdxScanSize += other.IdxScanSize
	s.IdxTookMs += other.IdxTookMs
	s.FileListTookMs += other.FileListTookMs
	// aggs_cache_ratio isn't strictly additive across workers; approximate it
	// as a running average weighted by files scanned, which keeps it in
	// [0,1] and degrades gracefully to the single-worker case.
	total := s.Files
	if total > 0 {
		s.AggsCacheRatio = (s.AggsCacheRatio*float64(total-other.Files) + other.AggsCacheRatio*float64(other.Files)) / float64(total)
	}
}
