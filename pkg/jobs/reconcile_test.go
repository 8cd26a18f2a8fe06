package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingSyncer struct {
	calls   atomic.Int32
	err     error
	sawDead atomic.Bool
}

func (c *countingSyncer) SyncStatuses(ctx context.Context) error {
	c.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		c.sawDead.Store(true)
	}
	return c.err
}

func TestNewSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewScheduler("every now and then", &countingSyncer{}, 0)
	assert.Error(t, err)
}

func TestSchedulerAcceptsSchedules(t *testing.T) {
	for _, schedule := range []string{"@every 5m", "*/30 * * * * *", "0 */5 * * *", "@hourly"} {
		_, err := NewScheduler(schedule, &countingSyncer{}, time.Minute)
		assert.NoError(t, err, schedule)
	}
}

func TestSchedSyncStatuses(t *testing.T) {
	syncer := &countingSyncer{}
	s, err := NewScheduler("@every 1h", syncer, time.Second)
	require.NoError(t, err)

	s.SchedSyncStatuses()
	assert.EqualValues(t, 1, syncer.calls.Load())
	assert.True(t, syncer.sawDead.Load())

	syncer.err = errors.New("db down")
	s.SchedSyncStatuses()
	assert.EqualValues(t, 2, syncer.calls.Load())
}

func TestSchedulerRuns(t *testing.T) {
	syncer := &countingSyncer{}
	s, err := NewScheduler("@every 1s", syncer, 0)
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	assert.Eventually(t, func() bool { return syncer.calls.Load() >= 1 }, 3*time.Second, 20*time.Millisecond)
}
