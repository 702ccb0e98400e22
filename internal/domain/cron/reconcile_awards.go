package cron

import (
	"context"
	"time"

	"github.com/questx-lab/badgehub/internal/domain"
	"github.com/questx-lab/badgehub/pkg/xcontext"
)

const reconcileAwardsBatch = 50

// ReconcileAwardsCronJob replays award transfers which were journaled but
// never committed off-chain.
type ReconcileAwardsCronJob struct {
	awardDomain domain.AwardDomain
}

func NewReconcileAwardsCronJob(awardDomain domain.AwardDomain) *ReconcileAwardsCronJob {
	return &ReconcileAwardsCronJob{awardDomain: awardDomain}
}

func (job *ReconcileAwardsCronJob) Do(ctx context.Context) {
	committed, err := job.awardDomain.ReconcilePending(ctx, reconcileAwardsBatch)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot reconcile pending awards: %v", err)
		return
	}

	if committed > 0 {
		xcontext.Logger(ctx).Infof("Reconciled %d pending awards", committed)
	}
}

func (job *ReconcileAwardsCronJob) RunNow() bool {
	return false
}

func (job *ReconcileAwardsCronJob) Next() time.Time {
	return time.Now().Add(5 * time.Minute).Truncate(time.Minute)
}
