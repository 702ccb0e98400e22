package kafka

import (
	"context"
	"time"

	"github.com/Shopify/sarama"
	"github.com/questx-lab/badgehub/pkg/pubsub"
	"github.com/questx-lab/badgehub/pkg/xcontext"
)

type subscriber struct {
	groupID     string
	brokerAddrs []string
	topics      []string
	client      sarama.ConsumerGroup
	handler     pubsub.SubscribeHandler
}

func NewSubscriber(
	groupID string,
	brokerAddrs []string,
	topics []string,
	handler pubsub.SubscribeHandler,
) (*subscriber, error) {
	config := sarama.NewConfig()
	config.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	config.Consumer.Offsets.Initial = sarama.OffsetOldest

	client, err := sarama.NewConsumerGroup(brokerAddrs, groupID, config)
	if err != nil {
		return nil, err
	}

	return &subscriber{
		groupID:     groupID,
		brokerAddrs: brokerAddrs,
		topics:      topics,
		client:      client,
		handler:     handler,
	}, nil
}

func (s *subscriber) Stop(ctx context.Context) error {
	return s.client.Close()
}

// Subscribe blocks until ctx is cancelled. Consume returns on every server-side
// rebalance so it is called in a loop to rejoin the group.
func (s *subscriber) Subscribe(ctx context.Context) {
	consumer := consumerGroupHandler{ctx: ctx, fn: s.handler}
	for {
		if err := s.client.Consume(ctx, s.topics, &consumer); err != nil {
			xcontext.Logger(ctx).Errorf("Error from consumer group %s: %v", s.groupID, err)
			time.Sleep(time.Second)
		}

		if ctx.Err() != nil {
			return
		}
	}
}

type consumerGroupHandler struct {
	ctx context.Context
	fn  pubsub.SubscribeHandler
}

func (h *consumerGroupHandler) Setup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

func (h *consumerGroupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		// The root context carries configs, logger and database.
		pack := &pubsub.Pack{Key: message.Key, Msg: message.Value}
		if err := h.fn(h.ctx, pack, message.Timestamp); err != nil {
			xcontext.Logger(h.ctx).Errorf("Cannot handle message %s/%d@%d: %v",
				message.Topic, message.Partition, message.Offset, err)
		}

		session.MarkMessage(message, "")
	}
	return nil
}
