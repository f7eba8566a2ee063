package broadcast

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"talkbridge-backend/pkg/logger"
	"talkbridge-backend/pkg/metrics"
)

// ChannelPrefix namespaces bus topics inside Redis pub/sub
const ChannelPrefix = "bus:"

// Envelope is the frame carried on the bus and delivered to WebSocket subscribers
type Envelope struct {
	Topic   Topic           `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// Publisher delivers a payload to every current subscriber of a topic
type Publisher interface {
	Publish(ctx context.Context, topic Topic, payload interface{}) error
}

// RedisPublisher publishes envelopes with Redis PUBLISH
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher creates a new RedisPublisher
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

// Publish JSON-encodes payload and publishes it on the topic's channel
func (p *RedisPublisher) Publish(ctx context.Context, topic Topic, payload interface{}) error {
	data, err := Encode(topic, payload)
	if err != nil {
		metrics.BusPublishTotal.WithLabelValues(topic.Kind(), "encode_error").Inc()
		return err
	}

	if err := p.client.Publish(ctx, ChannelPrefix+string(topic), data).Err(); err != nil {
		metrics.BusPublishTotal.WithLabelValues(topic.Kind(), "error").Inc()
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	metrics.BusPublishTotal.WithLabelValues(topic.Kind(), "ok").Inc()
	return nil
}

// Encode builds the wire envelope for a topic and payload
func Encode(topic Topic, payload interface{}) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode payload for %s: %w", topic, err)
	}
	data, err := json.Marshal(Envelope{Topic: topic, Payload: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope for %s: %w", topic, err)
	}
	return data, nil
}

// Notify publishes and only logs a failure. Notifications are sent after the
// state change has committed, so a bus outage must not fail the operation.
func Notify(ctx context.Context, pub Publisher, topic Topic, payload interface{}) {
	if err := pub.Publish(ctx, topic, payload); err != nil {
		logger.FromContext(ctx).Warn("Failed to publish notification",
			zap.String("topic", string(topic)),
			zap.Error(err))
	}
}
