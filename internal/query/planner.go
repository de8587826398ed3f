package query

import (
	"context"
	"sort"

	"github.com/openobserve/corelake/internal/catalog"
	"github.com/openobserve/corelake/internal/cluster"
	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/model"
)

// Plan resolves req's candidate file set from the catalog and clusters it
// into N work units, N = min(files, workerCount*parallelismPerWorker),
// balanced by original_size via a greedy longest-processing-time
// assignment: files are sorted largest-first and each goes to whichever
// bucket currently holds the least bytes, the same load-balancing shape
// buildQueries uses when spreading per-host queries across a subcluster's
// topology.
func Plan(ctx context.Context, store *catalog.Store, req Request, workerCount, parallelismPerWorker int) ([]cluster.Partition, error) {
	hints := catalog.PredicateHints{LabelEquals: req.Predicate.LabelEquals}
	files, err := store.List(ctx, req.Tenant, req.Stream, req.StartTS, req.EndTS, hints)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	n := workerCount * parallelismPerWorker
	if n <= 0 || n > len(files) {
		n = len(files)
	}

	buckets := bucketFiles(files, n)

	partitions := make([]cluster.Partition, 0, len(buckets))
	for _, bucket := range buckets {
		if len(bucket) == 0 {
			continue
		}
		partitions = append(partitions, cluster.Partition{
			Tenant:    req.Tenant,
			Stream:    req.Stream,
			Files:     bucket,
			Range:     cluster.TimeRange{Start: req.StartTS, End: req.EndTS},
			Predicate: req.Predicate,
			SortDesc:  req.SortDesc,
			Limit:     req.Limit,
		})
	}
	if len(partitions) == 0 {
		return nil, errs.New(errs.Internal, "query: plan produced no partitions for %d files", len(files))
	}
	return partitions, nil
}

// bucketFiles distributes files across n buckets, largest file first, each
// always placed in the currently-lightest bucket by accumulated
// original_size.
func bucketFiles(files []model.FileKey, n int) [][]model.FileKey {
	if n < 1 {
		n = 1
	}
	sorted := make([]model.FileKey, len(files))
	copy(sorted, files)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Meta.OriginalSize > sorted[j].Meta.OriginalSize
	})

	buckets := make([][]model.FileKey, n)
	weights := make([]int64, n)
	for _, f := range sorted {
		lightest := 0
		for i := 1; i < n; i++ {
			if weights[i] < weights[lightest] {
				lightest = i
			}
		}
		buckets[lightest] = append(buckets[lightest], f)
		weights[lightest] += f.Meta.OriginalSize
	}
	return buckets
}
