package mq

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/wanderlog/apiserver/config"
	"google.golang.org/api/option"
)

const (
	subscriptionAckDeadline = 30 * time.Second

	// Failed messages are redelivered with backoff instead of immediately.
	retryMinimumBackoff = 10 * time.Second
	retryMaximumBackoff = 10 * time.Minute

	// maxDeliveryAttempts bounds redelivery when the subscription reports
	// delivery attempts.
	maxDeliveryAttempts = 5
)

// PubSubClient wraps the Google Cloud Pub/Sub SDK client.
type PubSubClient struct {
	client             *pubsub.Client
	subscriptionSuffix string
}

// NewPubSubClient constructs a Pub/Sub client from config.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}

	return &PubSubClient{
		client:             client,
		subscriptionSuffix: suffix,
	}, nil
}

// Publish sends a message to the named topic.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.ensureTopic(ctx, channel)
	if err != nil {
		return "", err
	}
	result := topic.Publish(ctx, outgoingMessage(data, attrs))
	return result.Get(ctx)
}

// Subscribe consumes messages from the named channel.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.ensureTopic(ctx, channel)
	if err != nil {
		return err
	}

	subscriptionName := p.subscriptionName(channel)
	sub, err := p.ensureSubscription(ctx, subscriptionName, topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		if err := handler(ctx, receivedMessage(msg)); err != nil {
			if deliveriesExhausted(msg) {
				msg.Ack()
				return
			}
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close closes the underlying Pub/Sub client.
func (p *PubSubClient) Close() error {
	return p.client.Close()
}

func (p *PubSubClient) ensureTopic(ctx context.Context, name string) (*pubsub.Topic, error) {
	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateTopic(ctx, name)
	}
	return topic, nil
}

func (p *PubSubClient) ensureSubscription(ctx context.Context, name string, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	sub := p.client.Subscription(name)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{
			Topic:       topic,
			AckDeadline: subscriptionAckDeadline,
			RetryPolicy: &pubsub.RetryPolicy{
				MinimumBackoff: retryMinimumBackoff,
				MaximumBackoff: retryMaximumBackoff,
			},
		})
	}
	return sub, nil
}

func (p *PubSubClient) subscriptionName(channel string) string {
	if p.subscriptionSuffix == "" {
		return channel
	}
	return channel + p.subscriptionSuffix
}

// outgoingMessage copies attrs so callers may reuse their map, and marks
// payloads without a content type as opaque bytes.
func outgoingMessage(data []byte, attrs map[string]string) *pubsub.Message {
	copied := make(map[string]string, len(attrs)+1)
	for key, value := range attrs {
		copied[key] = value
	}
	if copied[AttrContentType] == "" {
		copied[AttrContentType] = "application/octet-stream"
	}
	return &pubsub.Message{Data: data, Attributes: copied}
}

func receivedMessage(msg *pubsub.Message) Message {
	return Message{
		ID:         msg.ID,
		Data:       msg.Data,
		Attributes: msg.Attributes,
	}
}

// deliveriesExhausted reports whether a failing message has been delivered
// often enough to be dropped. Delivery attempts are only known when the
// subscription has a dead letter policy.
func deliveriesExhausted(msg *pubsub.Message) bool {
	return msg.DeliveryAttempt != nil && *msg.DeliveryAttempt >= maxDeliveryAttempts
}
