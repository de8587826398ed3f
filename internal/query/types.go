// Package query implements the query coordinator (C5): it resolves a file
// set from the catalog, clusters it into balanced work units, dispatches
// them to worker executors over the cluster RPC, merges the ordered
// partial results, and accumulates ScanStats -- generalizing the
// teacher's LoadData/buildQueries fan-out-then-merge shape
// (pkg/metricstore/query.go) from a fixed in-process worker set to
// RPC-dispatched partitions.
package query

import (
	"github.com/openobserve/corelake/internal/cluster"
	"github.com/openobserve/corelake/internal/model"
)

// Request is one query against a tenant's stream, mirroring spec.md §4.5.
type Request struct {
	Tenant     string
	Stream     string
	StartTS    int64
	EndTS      int64
	Predicate  cluster.Predicate
	Projection []string
	Limit      int64
	SortDesc   bool

	// PartialResultsAllowed, when false, turns an Incomplete outcome into a
	// hard error instead of returning the records that were read.
	PartialResultsAllowed bool
}

// Response is what Execute returns: the merged, sorted, limited record set
// plus the accumulated stats and (if any) the partitions that could not be
// read.
type Response struct {
	Records    []model.Record
	Stats      model.ScanStats
	Incomplete bool
	Missing    []string
}
