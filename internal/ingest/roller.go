package ingest

import (
	"time"

	"github.com/go-co-op/gocron/v2"

	"github.com/openobserve/corelake/internal/errs"
	"github.com/openobserve/corelake/internal/logx"
)

const gocronRollAgeSweepInterval = time.Second

// Scheduler drives the background roll-age sweep, grounded on the
// teacher's internal/taskmanager (gocron.Scheduler, one registered
// recurring gocron.NewJob/gocron.NewTask per background concern).
type Scheduler struct {
	s gocron.Scheduler
}

// StartRollAgeSweep registers a once-a-second job checking every open
// partition builder for roll_age expiry, per spec.md §4.4's "background
// timekeeper checks roll_age every second" rule.
func StartRollAgeSweep(c *Coordinator) (*Scheduler, error) {
	s, err := gocron.NewScheduler()
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "ingest: create scheduler")
	}

	_, err = s.NewJob(
		gocron.DurationJob(gocronRollAgeSweepInterval),
		gocron.NewTask(func() {
			defer func() {
				if r := recover(); r != nil {
					logx.Errorf("ingest: roll-age sweep panicked: %v", r)
				}
			}()
			c.CheckRollAge()
		}),
	)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, err, "ingest: register roll-age sweep job")
	}

	s.Start()
	return &Scheduler{s: s}, nil
}

// Shutdown stops the scheduler, letting any in-flight job finish.
func (sc *Scheduler) Shutdown() error {
	if sc.s == nil {
		return nil
	}
	return sc.s.Shutdown()
}
