package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/waconnect/pkg/logger"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Syncer is the part of the connection manager the reconciler drives.
type Syncer interface {
	SyncStatuses(ctx context.Context) error
}

// Scheduler runs the periodic status reconciliation.
type Scheduler struct {
	sched   *cron.Cron
	syncer  Syncer
	timeout time.Duration
}

// NewScheduler registers the reconcile job on schedule (a cron expression or
// descriptor such as "@every 5m"). Runs never overlap.
func NewScheduler(schedule string, syncer Syncer, timeout time.Duration) (*Scheduler, error) {
	s := &Scheduler{
		sched: cron.New(
			cron.WithParser(cronParser),
			cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger)),
		),
		syncer:  syncer,
		timeout: timeout,
	}
	if _, err := s.sched.AddFunc(schedule, s.SchedSyncStatuses); err != nil {
		return nil, fmt.Errorf("reconcile schedule %q: %w", schedule, err)
	}
	return s, nil
}

func (s *Scheduler) Start() {
	s.sched.Start()
}

// Stop halts the schedule and waits for a running job.
func (s *Scheduler) Stop() {
	<-s.sched.Stop().Done()
}

// SchedSyncStatuses runs one reconciliation pass.
func (s *Scheduler) SchedSyncStatuses() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	if err := s.syncer.SyncStatuses(ctx); err != nil {
		logger.Get().Errorw("status reconciliation failed", "error", err)
		return
	}
	logger.Get().Debugw("status reconciliation done", "took", time.Since(start))
}
