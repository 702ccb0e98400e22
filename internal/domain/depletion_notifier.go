package domain

import (
	"context"

	"github.com/questx-lab/badgehub/internal/common"
	"github.com/questx-lab/badgehub/internal/model"
	"github.com/questx-lab/badgehub/pkg/pubsub"
)

// DepletionNotifier delivers depletion signals from the award flow to the
// depletion controller.
type DepletionNotifier interface {
	NotifyDepletion(ctx context.Context, signal model.DepletionSignal) error
}

type publisherDepletionNotifier struct {
	publisher pubsub.Publisher
}

func NewPublisherDepletionNotifier(publisher pubsub.Publisher) *publisherDepletionNotifier {
	return &publisherDepletionNotifier{publisher: publisher}
}

func (n *publisherDepletionNotifier) NotifyDepletion(ctx context.Context, signal model.DepletionSignal) error {
	return pubsub.PublishJSON(ctx, n.publisher, common.DepletionTopic, signal.ContextID, signal)
}

type directDepletionNotifier struct {
	depletionDomain DepletionDomain
}

func NewDirectDepletionNotifier(depletionDomain DepletionDomain) *directDepletionNotifier {
	return &directDepletionNotifier{depletionDomain: depletionDomain}
}

func (n *directDepletionNotifier) NotifyDepletion(ctx context.Context, signal model.DepletionSignal) error {
	return n.depletionDomain.HandleSignal(ctx, signal)
}
