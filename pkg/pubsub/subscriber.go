package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// SubscribeHandler processes one pack. A returned error is logged by the
// subscriber and the pack is not redelivered.
type SubscribeHandler func(ctx context.Context, pack *Pack, t time.Time) error

type Subscriber interface {
	Subscribe(ctx context.Context)
	Stop(ctx context.Context) error
}

// JSONHandler decodes the message of every pack into T before calling fn.
func JSONHandler[T any](fn func(context.Context, T) error) SubscribeHandler {
	return func(ctx context.Context, pack *Pack, _ time.Time) error {
		var v T
		if err := json.Unmarshal(pack.Msg, &v); err != nil {
			return fmt.Errorf("cannot decode %T: %w", v, err)
		}

		return fn(ctx, v)
	}
}
