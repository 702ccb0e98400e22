package pubsub

import (
	"context"
	"encoding/json"
)

// Publisher sends a pack to a topic. Packs with the same key keep their order.
type Publisher interface {
	Publish(ctx context.Context, topic string, pack *Pack) error
}

// PublishJSON encodes v as the message of a pack keyed by key.
func PublishJSON(ctx context.Context, publisher Publisher, topic, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	return publisher.Publish(ctx, topic, &Pack{Key: []byte(key), Msg: b})
}
