package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const Channel = "poimap:events"

// RedisBus fans events out over Redis pub/sub so every server instance sees them.
type RedisBus struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisBus(client *redis.Client, logger *zap.Logger) *RedisBus {
	return &RedisBus{client: client, logger: logger}
}

func (b *RedisBus) Publish(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	b.logger.Debug("publishing event", zap.String("type", string(e.Type)), zap.String("point_id", e.PointID))
	return b.client.Publish(ctx, Channel, data).Err()
}

// Subscribe streams events until ctx is done. The channel is closed afterwards.
func (b *RedisBus) Subscribe(ctx context.Context) <-chan Event {
	sub := b.client.Subscribe(ctx, Channel)
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					b.logger.Warn("dropping malformed event", zap.Error(err))
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
