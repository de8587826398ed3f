package catalog

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/logx"
	"github.com/openobserve/corelake/internal/obsmetrics"
)

// CleanupScheduler drives the periodic tombstone sweep, the same
// gocron.Scheduler shape internal/ingest's roll-age sweep uses.
type CleanupScheduler struct {
	s gocron.Scheduler
}

// StartCleanupSweep registers a job that runs every interval, physically
// removing every tombstoned file (via remove) whose grace period has
// elapsed.
func StartCleanupSweep(store *Store, interval, gracePeriod time.Duration, remove func(ctx context.Context, objectKey, indexKey string) error) (*CleanupScheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "catalog: create cleanup scheduler")
	}

	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(func() {
			defer func() {
				if r := recover(); r != nil {
					logx.Errorf("catalog: cleanup sweep panicked: %v", r)
				}
			}()
			n, err := store.SweepExpiredTombstones(context.Background(), gracePeriod, remove)
			if err != nil {
				logx.Errorf("catalog: cleanup sweep: %s", err)
				return
			}
			if n > 0 {
				obsmetrics.CatalogTombstonesSweptTotal.Add(float64(n))
				logx.Infof("catalog: cleanup sweep removed %d expired file(s)", n)
			}
		}),
	)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "catalog: register cleanup sweep job")
	}

	s.Start()
	return &CleanupScheduler{s: s}, nil
}

// Shutdown stops the scheduler, letting any in-flight sweep finish.
func (sc *CleanupScheduler) Shutdown() error {
	if sc.s == nil {
		return nil
	}
	return sc.s.Shutdown()
}
