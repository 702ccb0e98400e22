package main

import (
	"errors"

	"github.com/questx-lab/badgehub/internal/common"
	"github.com/questx-lab/badgehub/internal/domain"
	"github.com/questx-lab/badgehub/pkg/kafka"
	"github.com/questx-lab/badgehub/pkg/pubsub"
	"github.com/questx-lab/badgehub/pkg/xcontext"
	"github.com/urfave/cli/v2"
)

func (s *srv) startSubscriber(*cli.Context) error {
	cfg := xcontext.Configs(s.ctx).Kafka
	if !cfg.Enabled() {
		return errors.New("subscriber needs a kafka broker")
	}

	if err := s.loadDatabase(); err != nil {
		return err
	}

	s.loadRepos()
	s.depletionDomain = domain.NewDepletionDomain(s.triggerRepo, s.awardContextRepo, s.batchRepo)

	subscriber, err := kafka.NewSubscriber(
		cfg.ConsumerGroup,
		[]string{cfg.Addr},
		[]string{common.DepletionTopic},
		pubsub.JSONHandler(s.depletionDomain.HandleSignal),
	)
	if err != nil {
		return err
	}
	defer subscriber.Stop(s.ctx)

	xcontext.Logger(s.ctx).Infof("Subscribing topic %s", common.DepletionTopic)
	subscriber.Subscribe(s.ctx)
	return nil
}
