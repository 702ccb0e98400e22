package cron

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/questx-lab/badgehub/pkg/testutil"
	"github.com/stretchr/testify/require"
)

type countingJob struct {
	runNow bool
	count  atomic.Int32
	done   chan struct{}
}

func (job *countingJob) Do(context.Context) {
	if job.count.Add(1) == 2 {
		close(job.done)
	}
}

func (job *countingJob) RunNow() bool {
	return job.runNow
}

func (job *countingJob) Next() time.Time {
	return time.Now().Add(time.Millisecond)
}

func Test_CronJobManager(t *testing.T) {
	ctx := testutil.MockContext()
	manager := NewCronJobManager()

	immediate := &countingJob{runNow: true, done: make(chan struct{})}
	delayed := &countingJob{done: make(chan struct{})}
	manager.Register(immediate)
	manager.Register(delayed)

	stopped := make(chan struct{})
	go func() {
		manager.Start(ctx)
		close(stopped)
	}()

	<-immediate.done
	<-delayed.done
	manager.Cancel(ctx)

	select {
	case <-stopped:
	case <-time.After(time.Second):
		require.FailNow(t, "cron job manager didn't stop")
	}

	// Cancelling twice is a no-op.
	manager.Cancel(ctx)
}
