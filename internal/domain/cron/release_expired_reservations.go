package cron

import (
	"context"
	"time"

	"github.com/questx-lab/badgehub/internal/common"
	"github.com/questx-lab/badgehub/internal/domain"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"github.com/questx-lab/badgehub/pkg/xredis"
)

// ReleaseExpiredReservationsCronJob returns listings whose buyer never
// submitted payment to active.
type ReleaseExpiredReservationsCronJob struct {
	marketplaceDomain domain.MarketplaceDomain
	redisClient       xredis.Client
	interval          time.Duration
}

func NewReleaseExpiredReservationsCronJob(
	ctx context.Context,
	marketplaceDomain domain.MarketplaceDomain,
	redisClient xredis.Client,
) *ReleaseExpiredReservationsCronJob {
	return &ReleaseExpiredReservationsCronJob{
		marketplaceDomain: marketplaceDomain,
		redisClient:       redisClient,
		interval:          xcontext.Configs(ctx).Marketplace.SweepInterval,
	}
}

func (job *ReleaseExpiredReservationsCronJob) Do(ctx context.Context) {
	if xcontext.Configs(ctx).Marketplace.ReservationTimeout <= 0 {
		return
	}

	now := time.Now()
	listingIDs, err := job.redisClient.ZRangeByScore(ctx, common.RedisKeyListingReservations,
		float64(now.Unix()), xcontext.Configs(ctx).Marketplace.SweepBatchSize)
	if err != nil {
		xcontext.Logger(ctx).Errorf("Cannot get expired reservations: %v", err)
		return
	}

	counter := common.PromCounters[common.ExpiredReservationRelease]
	for _, id := range listingIDs {
		released, err := job.marketplaceDomain.ReleaseExpired(ctx, id, now)
		if err != nil {
			counter.WithLabelValues("error").Inc()
			xcontext.Logger(ctx).Errorf("Cannot release expired reservation of listing %s: %v", id, err)
			continue
		}

		if released {
			counter.WithLabelValues("released").Inc()
		} else {
			counter.WithLabelValues("skipped").Inc()
		}

		if err := job.redisClient.ZRem(ctx, common.RedisKeyListingReservations, id); err != nil {
			xcontext.Logger(ctx).Errorf("Cannot remove listing %s from expiry index: %v", id, err)
		}
	}
}

func (job *ReleaseExpiredReservationsCronJob) RunNow() bool {
	return true
}

func (job *ReleaseExpiredReservationsCronJob) Next() time.Time {
	return time.Now().Add(job.interval)
}
