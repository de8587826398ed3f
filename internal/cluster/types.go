// Package cluster defines the wire types and gRPC service exchanged
// between the query coordinator (C5) and its worker executors, mirroring
// the spec's cluster/common.proto naming as plain Go structs carried over
// a real google.golang.org/grpc channel with a custom JSON codec, rather
// than inventing a bespoke RPC protocol.
package cluster

import (
	"github.com/openobserve/corelake/internal/model"
)

// TimeRange is an inclusive [Start, End] microsecond-timestamp window.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// Predicate is a conjunction of label equalities and free-text line
// substrings, the filter pushed down to each worker.
type Predicate struct {
	LabelEquals  map[string]string `json:"label_equals,omitempty"`
	LineContains []string          `json:"line_contains,omitempty"`
}

// Matches reports whether rec satisfies every clause of p.
func (p Predicate) Matches(rec model.Record) bool {
	for k, v := range p.LabelEquals {
		if rec.Labels[k] != v {
			return false
		}
	}
	for _, substr := range p.LineContains {
		if !contains(rec.Line, substr) {
			return false
		}
	}
	return true
}

func contains(haystack, needle string) bool {
	if needle == "" {
		return true
	}
	return indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	n, m := len(haystack), len(needle)
	if m > n {
		return -1
	}
	for i := 0; i+m <= n; i++ {
		if haystack[i:i+m] == needle {
			return i
		}
	}
	return -1
}

// Partition is one work unit assigned to a worker: a set of files to scan,
// the time range and predicate to apply, and the result projection/sort.
type Partition struct {
	Tenant    string          `json:"tenant"`
	Stream    string          `json:"stream"`
	Files     []model.FileKey `json:"files"`
	Range     TimeRange       `json:"range"`
	Predicate Predicate       `json:"predicate"`
	SortDesc  bool            `json:"sort_desc"`
	Limit     int64           `json:"limit,omitempty"`
}

// Job is one unit of dispatched work, schema mirrors cluster/common.proto's
// Job message: a trace id for cancellation correlation, the owning query
// id, a pipeline stage label, and the partition payload.
type Job struct {
	TraceID   string    `json:"trace_id"`
	QueryID   string    `json:"query_id"`
	Stage     string    `json:"stage"`
	Partition Partition `json:"partition"`
}

// PartialResult is what a worker returns for one Job: the matching records
// (already filtered and locally sorted) plus its contribution to the
// query's accumulated ScanStats.
type PartialResult struct {
	TraceID string          `json:"trace_id"`
	Records []model.Record  `json:"records"`
	Stats   model.ScanStats `json:"stats"`
	Missing []string        `json:"missing,omitempty"` // file keys this worker could not read
}

// Empty is the response type for RPCs that return no payload.
type Empty struct{}

// CancelRequest identifies the query a client disconnected from.
type CancelRequest struct {
	TraceID string `json:"trace_id"`
}
