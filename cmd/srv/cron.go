package main

import (
	"github.com/questx-lab/badgehub/internal/domain/cron"
	"github.com/urfave/cli/v2"
)

func (s *srv) startCron(*cli.Context) error {
	if err := s.loadService(); err != nil {
		return err
	}

	cronJobManager := cron.NewCronJobManager()
	cronJobManager.Register(cron.NewReleaseExpiredReservationsCronJob(s.ctx, s.marketplaceDomain, s.redisClient))
	cronJobManager.Register(cron.NewReconcileAwardsCronJob(s.awardDomain))

	go func() {
		<-s.ctx.Done()
		cronJobManager.Cancel(s.ctx)
	}()

	cronJobManager.Start(s.ctx)
	return nil
}
