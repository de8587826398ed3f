package query

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/openobserve/corelake/internal/cluster"
	"github.com/openobserve/corelake/internal/codec"
	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/logx"
	"github.com/openobserve/corelake/internal/model"
	"github.com/openobserve/corelake/internal/objstore"
)

// Executor is the worker-side cluster.ScanServer: it opens the files
// assigned to one partition, applies the predicate, and returns a locally
// sorted PartialResult. One Executor can serve any number of concurrent
// Dispatch calls; it is stateless except for the cancellation set.
type Executor struct {
	store objstore.Target

	mu        sync.Mutex
	cancelled map[string]bool
}

// NewExecutor builds an Executor reading files from store.
func NewExecutor(store objstore.Target) *Executor {
	return &Executor{store: store, cancelled: make(map[string]bool)}
}

// Addr satisfies Worker so a single-process deployment can register an
// Executor directly into a Pool without a gRPC hop.
func (e *Executor) Addr() string { return "local" }

// Dispatch runs job's partition: for each assigned file, it consults the
// bloom sidecar (if any) to skip files the predicate's label-equality
// clauses cannot match, decodes the rest, applies the predicate, and
// returns the matching records sorted by the partition's sort key.
func (e *Executor) Dispatch(ctx context.Context, job *cluster.Job) (*cluster.PartialResult, error) {
	start := time.Now()
	var (
		records []model.Record
		missing []string
		stats   model.ScanStats
	)

	for _, fk := range job.Partition.Files {
		if e.isCancelled(job.TraceID) || ctx.Err() != nil {
			break
		}
		stats.Files++

		if fk.IndexKey != "" {
			if skip := e.consultIndex(ctx, fk.IndexKey, job.Partition.Predicate, &stats); skip {
				continue
			}
		}

		data, err := e.getWithRetry(ctx, fk.Key)
		if err != nil {
			logx.Warnf("query: file %s unreadable after retry: %s", fk.Key, err)
			missing = append(missing, fk.Key)
			continue
		}

		// The partition's range is inclusive; Decode's end bound is exclusive.
		end := job.Partition.Range.End
		if end < math.MaxInt64 {
			end++
		}
		recs, err := codec.Decode(data, job.Partition.Range.Start, end)
		if err != nil {
			return nil, errs.Wrap(errs.Internal, err, "query: decode %s", fk.Key)
		}

		stats.QuerierFiles++
		stats.Records += int64(len(recs))
		stats.OriginalSize += fk.Meta.OriginalSize
		stats.CompressedSize += fk.Meta.CompressedSize

		for _, r := range recs {
			if job.Partition.Predicate.Matches(r) {
				records = append(records, r)
			}
		}
	}

	sortRecords(records, job.Partition.SortDesc)
	stats.FileListTookMs = time.Since(start).Milliseconds()

	return &cluster.PartialResult{
		TraceID: job.TraceID,
		Records: records,
		Stats:   stats,
		Missing: missing,
	}, nil
}

// Cancel marks traceID cancelled; any Dispatch still iterating that
// partition's files stops before opening the next one.
func (e *Executor) Cancel(ctx context.Context, req *cluster.CancelRequest) (*cluster.Empty, error) {
	e.mu.Lock()
	e.cancelled[req.TraceID] = true
	e.mu.Unlock()
	return &cluster.Empty{}, nil
}

func (e *Executor) isCancelled(traceID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cancelled[traceID]
}

// consultIndex fetches a file's bloom sidecar and reports whether the
// predicate's label-equality clauses can be proven absent, letting Dispatch
// skip the (far larger) columnar file entirely. A false-negative bloom
// read error never skips a file -- it only costs the wasted decode.
func (e *Executor) consultIndex(ctx context.Context, indexKey string, pred cluster.Predicate, stats *model.ScanStats) bool {
	if len(pred.LabelEquals) == 0 {
		return false
	}

	idxStart := time.Now()
	data, err := e.store.Get(ctx, indexKey)
	stats.IdxTookMs += time.Since(idxStart).Milliseconds()
	if err != nil {
		return false
	}
	stats.IdxScanSize += int64(len(data))

	may, err := codec.IndexMayMatchLabels(data, pred.LabelEquals)
	if err != nil {
		return false
	}
	return !may
}

// getWithRetry fetches key once, and -- per spec.md §4.5's "a missing file
// is ... retried once" -- a single time more on failure before giving up.
func (e *Executor) getWithRetry(ctx context.Context, key string) ([]byte, error) {
	data, err := e.store.Get(ctx, key)
	if err == nil {
		return data, nil
	}
	return e.store.Get(ctx, key)
}

func sortRecords(records []model.Record, desc bool) {
	sort.SliceStable(records, func(i, j int) bool {
		if desc {
			return records[i].TimestampUs > records[j].TimestampUs
		}
		return records[i].TimestampUs < records[j].TimestampUs
	})
}
