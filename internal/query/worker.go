package query

import (
	"context"
	"sync"

	"github.com/openobserve/corelake/internal/cluster"
)

// Worker is anything capable of running one cluster.Job and cancelling an
// in-flight trace: an in-process Executor for single-node deployments, or
// a grpcWorker dialed to a remote corelake worker process.
type Worker interface {
	Dispatch(ctx context.Context, job *cluster.Job) (*cluster.PartialResult, error)
	Cancel(ctx context.Context, req *cluster.CancelRequest) (*cluster.Empty, error)
	Addr() string
}

// grpcWorker adapts a cluster.ScanServiceClient (which carries a variadic
// grpc.CallOption tail) to the query package's narrower Worker interface.
type grpcWorker struct {
	addr   string
	client *cluster.ScanServiceClient
}

// NewGRPCWorker wraps an established connection to a remote worker,
// addressed by addr for logging and retry-exclusion bookkeeping.
func NewGRPCWorker(addr string, client *cluster.ScanServiceClient) Worker {
	return &grpcWorker{addr: addr, client: client}
}

func (w *grpcWorker) Dispatch(ctx context.Context, job *cluster.Job) (*cluster.PartialResult, error) {
	return w.client.Dispatch(ctx, job)
}

func (w *grpcWorker) Cancel(ctx context.Context, req *cluster.CancelRequest) (*cluster.Empty, error) {
	return w.client.Cancel(ctx, req)
}

func (w *grpcWorker) Addr() string { return w.addr }

// Pool is a thread-safe round-robin view of the worker fleet, used by the
// coordinator to pick an initial assignment and to pick a *different*
// worker on retry.
type Pool struct {
	mu      sync.Mutex
	workers []Worker
	next    int
}

// NewPool wraps a fixed worker set. An empty pool is valid (e.g. a
// single-process deployment dispatching directly to a local Executor
// wrapped as the sole Worker).
func NewPool(workers ...Worker) *Pool {
	return &Pool{workers: workers}
}

// Pick returns the next worker in rotation that is not in exclude, or nil
// if every worker has already been excluded (all of them have been tried
// for this job).
func (p *Pool) Pick(exclude map[string]bool) Worker {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.workers) == 0 {
		return nil
	}
	for i := 0; i < len(p.workers); i++ {
		idx := (p.next + i) % len(p.workers)
		w := p.workers[idx]
		if !exclude[w.Addr()] {
			p.next = (idx + 1) % len(p.workers)
			return w
		}
	}
	return nil
}

// All returns a snapshot of the current worker set, used to broadcast a
// cancellation to every outstanding worker.
func (p *Pool) All() []Worker {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Worker, len(p.workers))
	copy(out, p.workers)
	return out
}
