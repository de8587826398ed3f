package query

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openobserve/corelake/internal/catalog"
	"github.com/openobserve/corelake/internal/cluster"
	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/logx"
	"github.com/openobserve/corelake/internal/obsmetrics"
)

const (
	maxJobRetries    = 3
	retryBackoffBase = 100 * time.Millisecond
	retryBackoffCap  = 2 * time.Second
)

// Coordinator plans, dispatches, merges and accounts for one query at a
// time's worth of work against a fixed worker Pool, the RPC-fanned-out
// analogue of the teacher's LoadData.
type Coordinator struct {
	store                *catalog.Store
	pool                 *Pool
	workerCount          int
	parallelismPerWorker int

	mu        sync.Mutex
	cancelled map[string]bool // trace_id -> cancelled, checked before every dispatch attempt
}

// New builds a Coordinator. workerCount/parallelismPerWorker feed the
// planner's N = min(files, workerCount*parallelismPerWorker) rule; a
// single-process deployment passes workerCount=1 with one in-process
// Executor wrapped into pool.
func New(store *catalog.Store, pool *Pool, workerCount, parallelismPerWorker int) *Coordinator {
	return &Coordinator{
		store:                store,
		pool:                 pool,
		workerCount:          workerCount,
		parallelismPerWorker: parallelismPerWorker,
		cancelled:            make(map[string]bool),
	}
}

// Execute plans req, dispatches every partition concurrently, merges the
// ordered partial results and returns the accumulated response. A caller
// that wants to propagate a client disconnect should cancel ctx; Execute
// then broadcasts Cancel to every worker in the pool before returning
// ctx.Err() wrapped as Timeout.
func (c *Coordinator) Execute(ctx context.Context, req Request) (*Response, error) {
	traceID := uuid.NewString()
	start := time.Now()
	defer func() { obsmetrics.QueryDurationSeconds.Observe(time.Since(start).Seconds()) }()

	partitions, err := Plan(ctx, c.store, req, c.workerCount, c.parallelismPerWorker)
	if err != nil {
		return nil, err
	}
	if len(partitions) == 0 {
		return &Response{}, nil
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		result  *cluster.PartialResult
		missing string // non-empty if this partition could not be read at all
	}
	results := make([]outcome, len(partitions))

	var wg sync.WaitGroup
	for i, part := range partitions {
		wg.Add(1)
		go func(i int, part cluster.Partition) {
			defer wg.Done()
			job := &cluster.Job{TraceID: traceID, QueryID: traceID, Stage: "scan", Partition: part}
			res, missing := c.dispatchWithRetry(ctx, job)
			results[i] = outcome{result: res, missing: missing}
		}(i, part)
	}
	wg.Wait()

	select {
	case <-ctx.Done():
		c.broadcastCancel(traceID)
		return nil, errs.Wrap(errs.Timeout, ctx.Err(), "query: cancelled during dispatch").WithTraceID(traceID)
	default:
	}

	resp := &Response{}
	var partials []*cluster.PartialResult
	for _, o := range results {
		if o.missing != "" {
			resp.Missing = append(resp.Missing, o.missing)
			continue
		}
		partials = append(partials, o.result)
		resp.Stats.Add(o.result.Stats)
		resp.Missing = append(resp.Missing, o.result.Missing...)
	}

	obsmetrics.QueryFilesScanned.Observe(float64(resp.Stats.QuerierFiles))

	resp.Records = mergeResults(partials, req.SortDesc)
	if req.Limit > 0 && int64(len(resp.Records)) > req.Limit {
		resp.Records = resp.Records[:req.Limit]
	}

	if len(resp.Missing) > 0 {
		resp.Incomplete = true
		c.tombstoneMissing(ctx, partitions, resp.Missing)
		if !req.PartialResultsAllowed {
			return nil, errs.New(errs.Incomplete, "query: %d partition(s) unread", len(resp.Missing)).
				WithTraceID(traceID).WithMissing(resp.Missing)
		}
	}
	return resp, nil
}

// tombstoneMissing marks, in the catalog, every file whose object-key
// shows up in missing -- the "persistent absence tombstones the FileKey"
// rule once a worker has already retried the fetch once and still got a
// 404.
func (c *Coordinator) tombstoneMissing(ctx context.Context, partitions []cluster.Partition, missing []string) {
	missingSet := make(map[string]bool, len(missing))
	for _, m := range missing {
		missingSet[m] = true
	}
	for _, p := range partitions {
		for _, f := range p.Files {
			if !missingSet[f.Key] {
				continue
			}
			if err := c.store.Tombstone(ctx, f.ID, "object missing from store on repeated read"); err != nil {
				logx.Warnf("query: tombstone missing file %s (id %d) failed: %s", f.Key, f.ID, err)
			}
		}
	}
}

// dispatchWithRetry runs job against the pool, retrying up to
// maxJobRetries times with a different worker and bounded exponential
// backoff on transient failure. It returns either a successful result or
// a non-empty "missing" description once retries are exhausted.
func (c *Coordinator) dispatchWithRetry(ctx context.Context, job *cluster.Job) (*cluster.PartialResult, string) {
	tried := map[string]bool{}

	for attempt := 0; attempt <= maxJobRetries; attempt++ {
		if c.isCancelled(job.TraceID) || ctx.Err() != nil {
			return nil, partitionDescription(job.Partition)
		}

		w := c.pool.Pick(tried)
		if w == nil {
			logx.Warnf("query: no untried worker left for trace %s after %d attempt(s)", job.TraceID, attempt)
			return nil, partitionDescription(job.Partition)
		}
		tried[w.Addr()] = true

		res, err := w.Dispatch(ctx, job)
		if err == nil {
			return res, ""
		}

		logx.Warnf("query: worker %s failed trace %s attempt %d: %s", w.Addr(), job.TraceID, attempt, err)
		if attempt == maxJobRetries {
			break
		}
		if !sleepBackoff(ctx, attempt) {
			return nil, partitionDescription(job.Partition)
		}
	}
	return nil, partitionDescription(job.Partition)
}

func sleepBackoff(ctx context.Context, attempt int) bool {
	d := retryBackoffBase << attempt
	if d > retryBackoffCap {
		d = retryBackoffCap
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func partitionDescription(p cluster.Partition) string {
	if len(p.Files) == 0 {
		return p.Tenant + "/" + p.Stream
	}
	return p.Files[0].Key
}

// Cancel marks traceID cancelled so any dispatch attempt still in flight
// aborts before its next retry, and broadcasts Cancel to every worker in
// the pool. Callers use this on client disconnect (spec.md §5's
// "cancellation propagates to child tasks within 100 ms").
func (c *Coordinator) Cancel(traceID string) {
	c.markCancelled(traceID)
	c.broadcastCancel(traceID)
}

func (c *Coordinator) markCancelled(traceID string) {
	c.mu.Lock()
	c.cancelled[traceID] = true
	c.mu.Unlock()
}

func (c *Coordinator) isCancelled(traceID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancelled[traceID]
}

func (c *Coordinator) broadcastCancel(traceID string) {
	req := &cluster.CancelRequest{TraceID: traceID}
	for _, w := range c.pool.All() {
		ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
		if _, err := w.Cancel(ctx, req); err != nil {
			logx.Warnf("query: cancel broadcast to %s for trace %s failed: %s", w.Addr(), traceID, err)
		}
		cancel()
	}
}
