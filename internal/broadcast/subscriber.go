package broadcast

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"talkbridge-backend/pkg/logger"
)

// DispatchFunc receives one raw envelope per bus message, already JSON-encoded
type DispatchFunc func(topic Topic, frame []byte)

// Subscriber holds the single pattern subscription of a gateway process
type Subscriber struct {
	client *redis.Client
}

// NewSubscriber creates a new Subscriber
func NewSubscriber(client *redis.Client) *Subscriber {
	return &Subscriber{client: client}
}

// Run pattern-subscribes to every bus channel and calls dispatch until ctx is done
func (s *Subscriber) Run(ctx context.Context, dispatch DispatchFunc) error {
	pubsub := s.client.PSubscribe(ctx, ChannelPrefix+"*")
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	logger.Info("Subscribed to broadcast bus", zap.String("pattern", ChannelPrefix+"*"))

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			topic, frame, err := Decode(msg.Channel, msg.Payload)
			if err != nil {
				logger.Warn("Dropping malformed bus message",
					zap.String("channel", msg.Channel),
					zap.Error(err))
				continue
			}
			dispatch(topic, frame)
		}
	}
}

// Decode checks a bus message and returns its topic with the frame to forward
func Decode(channel, payload string) (Topic, []byte, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return "", nil, err
	}
	if env.Topic == "" {
		env.Topic = Topic(strings.TrimPrefix(channel, ChannelPrefix))
	}
	return env.Topic, []byte(payload), nil
}
