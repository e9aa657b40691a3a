package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Channel is the pub/sub channel shared by every API instance.
const Channel = "taskboard:events"

// RedisBus relays events through Redis pub/sub so that clients connected to any
// instance receive changes made on any other. Events published here come back
// through the subscription and are delivered to local.
type RedisBus struct {
	rdb   *redis.Client
	local Publisher
	log   *zap.Logger
}

// NewRedisBus parses url and checks connectivity.
func NewRedisBus(url string, local Publisher, log *zap.Logger) (*RedisBus, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisBus{rdb: rdb, local: local, log: log}, nil
}

// Publish sends ev to Redis. Failures fall back to local delivery.
func (b *RedisBus) Publish(ev TaskEvent) {
	payload, err := Encode(ev)
	if err != nil {
		b.log.Error("encode event", zap.Error(err))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.rdb.Publish(ctx, Channel, payload).Err(); err != nil {
		b.log.Warn("redis publish failed, delivering locally", zap.Error(err))
		b.local.Publish(ev)
	}
}

// Run forwards subscribed events to the local publisher until ctx is done.
func (b *RedisBus) Run(ctx context.Context) {
	sub := b.rdb.Subscribe(ctx, Channel)
	defer sub.Close()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			ev, err := Decode([]byte(msg.Payload))
			if err != nil {
				b.log.Warn("dropping malformed event", zap.Error(err))
				continue
			}
			b.local.Publish(ev)
		}
	}
}

func (b *RedisBus) Close() error {
	return b.rdb.Close()
}

func Encode(ev TaskEvent) ([]byte, error) {
	return json.Marshal(ev)
}

func Decode(data []byte) (TaskEvent, error) {
	var ev TaskEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ev, err
	}
	if ev.Type == "" {
		return ev, fmt.Errorf("event without type")
	}
	return ev, nil
}
