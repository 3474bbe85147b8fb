package redis

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// PubSubService publishes and consumes JSON-encoded events over a shared
// Redis client. The reaper uses PublishEvent to announce the end of a reap
// cycle; nothing in this repository currently subscribes, but the
// subscriber side is kept because an operator tool watching reap cycles is
// a natural, cheap consumer of the same channel.
type PubSubService struct {
	client *redis.Client
}

// NewPubSubService wraps an existing client; it does not own the
// connection's lifecycle.
func NewPubSubService(client *redis.Client) *PubSubService {
	return &PubSubService{client: client}
}

// PublishEvent marshals event to JSON and publishes it on channel.
func (ps *PubSubService) PublishEvent(ctx context.Context, channel string, event interface{}) error {
	data, err := json.Marshal(event)
	if err != nil {
		return errors.Wrap(err, "redis: marshal event")
	}
	if err := ps.client.Publish(ctx, channel, data).Err(); err != nil {
		return errors.Wrap(err, "redis: publish event")
	}
	return nil
}

// SubscribeToEvents blocks, delivering each message on channel to handler
// until ctx is cancelled. readyChan is signalled once the subscription is
// confirmed active, so callers can synchronize startup with a publisher.
func (ps *PubSubService) SubscribeToEvents(ctx context.Context, channel string, readyChan chan<- struct{}, handler func([]byte) error) error {
	sub := ps.client.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return errors.Wrap(err, "redis: subscribe")
	}

	close(readyChan)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := handler([]byte(msg.Payload)); err != nil {
				logrus.WithError(err).WithField("channel", channel).Error("pubsub: handler failed")
			}
		}
	}
}
