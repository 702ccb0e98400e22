package testutil

import (
	"context"
	"sync"

	"github.com/questx-lab/badgehub/pkg/pubsub"
)

// MockPublisher records every published pack. PublishFunc, if set, decides
// the result of Publish.
type MockPublisher struct {
	PublishFunc func(context.Context, string, *pubsub.Pack) error

	mutex     sync.Mutex
	published map[string][]*pubsub.Pack
}

func (m *MockPublisher) Publish(ctx context.Context, topic string, pack *pubsub.Pack) error {
	m.mutex.Lock()
	if m.published == nil {
		m.published = make(map[string][]*pubsub.Pack)
	}
	m.published[topic] = append(m.published[topic], pack)
	m.mutex.Unlock()

	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, topic, pack)
	}

	return nil
}

func (m *MockPublisher) Published(topic string) []*pubsub.Pack {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	return append([]*pubsub.Pack{}, m.published[topic]...)
}
