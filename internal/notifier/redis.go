package notifier

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"meal_planner/pkg/logger"
)

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
)

// RedisNotifier bridges appends to every relay process over a redis pub/sub
// channel. While the subscription is down the system degrades to
// catch-up-only delivery; nothing is dropped from the durable log.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	log     logger.Logger
}

func NewRedisNotifier(client *redis.Client, channel string, log logger.Logger) *RedisNotifier {
	return &RedisNotifier{
		client:  client,
		channel: channel,
		log:     log,
	}
}

func (n *RedisNotifier) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.client.Publish(ctx, n.channel, data).Err()
}

// Run subscribes and hands every received event to handle, resubscribing
// with exponential backoff when the link drops. Returns when ctx is done.
func (n *RedisNotifier) Run(ctx context.Context, handle func(Event)) {
	backoff := initialBackoff

	for {
		if ctx.Err() != nil {
			return
		}

		pubsub := n.client.Subscribe(ctx, n.channel)
		if _, err := pubsub.Receive(ctx); err != nil {
			pubsub.Close()
			if ctx.Err() != nil {
				return
			}
			n.log.Warn("Notifier subscribe failed, retrying", "channel", n.channel, "backoff", backoff.String(), "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff = nextBackoff(backoff)
			continue
		}

		n.log.Info("Notifier subscribed", "channel", n.channel)
		backoff = initialBackoff
		n.consume(ctx, pubsub, handle)
		pubsub.Close()
	}
}

func (n *RedisNotifier) consume(ctx context.Context, pubsub *redis.PubSub, handle func(Event)) {
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				n.log.Warn("Notifier channel closed", "channel", n.channel)
				return
			}
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				n.log.Warn("Notifier received malformed event", "payload", msg.Payload, "error", err)
				continue
			}
			handle(event)
		}
	}
}

func nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}
