package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"github.com/sitedesk/apiserver/config"
)

const (
	minDeliveryAttempts = 5
	maxDeliveryAttempts = 100

	// Mail delivery goes through SMTP, which can take a while.
	notificationAckDeadline = time.Minute
)

// PubSubClient publishes notification events to a topic named after the
// channel and consumes them through a single shared subscription, so every
// event is mailed by exactly one worker.
type PubSubClient struct {
	client              *pubsub.Client
	projectID           string
	subscriptionSuffix  string
	deadLetterTopic     string
	maxDeliveryAttempts int
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
	return newPubSubClient(client, cfg), nil
}

func newPubSubClient(client *pubsub.Client, cfg config.PubSubConfig) *PubSubClient {
	suffix := cfg.SubscriptionSuffix
	if suffix == "" {
		suffix = "-sub"
	}
	return &PubSubClient{
		client:              client,
		projectID:           cfg.ProjectID,
		subscriptionSuffix:  suffix,
		deadLetterTopic:     strings.TrimSpace(cfg.DeadLetterTopic),
		maxDeliveryAttempts: clampAttempts(cfg.MaxDeliveryAttempts),
	}
}

// Publish sends an event to the channel's topic.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.ensureTopic(ctx, channel)
	if err != nil {
		return "", err
	}
	defer topic.Stop()
	result := topic.Publish(ctx, &pubsub.Message{Data: data, Attributes: attrs})
	return result.Get(ctx)
}

// Subscribe consumes events from the channel's subscription. Failed events
// are nacked; the subscription's retry and dead-letter policies bound how
// often they come back.
func (p *PubSubClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("pubsub channel is required")
	}

	topic, err := p.ensureTopic(ctx, channel)
	if err != nil {
		return err
	}
	if p.deadLetterTopic != "" {
		dead, err := p.ensureTopic(ctx, p.deadLetterTopic)
		if err != nil {
			return fmt.Errorf("ensure dead-letter topic: %w", err)
		}
		dead.Stop()
	}

	sub, err := p.ensureSubscription(ctx, p.subscriptionName(channel), topic)
	if err != nil {
		return err
	}

	return sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		message := Message{
			ID:         msg.ID,
			Data:       msg.Data,
			Attributes: msg.Attributes,
		}
		if err := handler(ctx, message); err != nil {
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
	topic := p.client.Topic(shortTopicName(name))
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateTopic(ctx, shortTopicName(name))
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
		return p.client.CreateSubscription(ctx, name, p.subscriptionConfig(topic))
	}
	return sub, nil
}

// subscriptionConfig describes the notification subscription: a deadline
// long enough for an SMTP round trip, exponential backoff between retries,
// and a dead-letter topic when configured.
func (p *PubSubClient) subscriptionConfig(topic *pubsub.Topic) pubsub.SubscriptionConfig {
	cfg := pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: notificationAckDeadline,
		RetryPolicy: &pubsub.RetryPolicy{
			MinimumBackoff: 10 * time.Second,
			MaximumBackoff: 10 * time.Minute,
		},
		Labels: map[string]string{"app": appID},
	}
	if p.deadLetterTopic != "" {
		cfg.DeadLetterPolicy = &pubsub.DeadLetterPolicy{
			DeadLetterTopic:     fullTopicName(p.projectID, p.deadLetterTopic),
			MaxDeliveryAttempts: p.maxDeliveryAttempts,
		}
	}
	return cfg
}

func (p *PubSubClient) subscriptionName(channel string) string {
	if p.subscriptionSuffix == "" {
		return channel
	}
	return channel + p.subscriptionSuffix
}

// fullTopicName accepts either a bare topic id or a full resource name.
func fullTopicName(projectID, topic string) string {
	if strings.HasPrefix(topic, "projects/") {
		return topic
	}
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topic)
}

func shortTopicName(topic string) string {
	if i := strings.LastIndex(topic, "/topics/"); i >= 0 {
		return topic[i+len("/topics/"):]
	}
	return topic
}

// clampAttempts keeps the value inside the range Pub/Sub accepts.
func clampAttempts(n int) int {
	switch {
	case n < minDeliveryAttempts:
		return minDeliveryAttempts
	case n > maxDeliveryAttempts:
		return maxDeliveryAttempts
	default:
		return n
	}
}
