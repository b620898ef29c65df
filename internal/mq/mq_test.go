package mq

import (
	"context"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk/apiserver/config"
)

func TestMemoryBackendDelivers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queue, err := Open(ctx, config.MQConfig{Channel: "notifications"})
	require.NoError(t, err)
	defer queue.Close()
	assert.True(t, queue.Local())
	assert.Equal(t, "notifications", queue.Channel())

	received := make(chan Message, 1)
	go func() {
		_ = queue.Subscribe(ctx, func(_ context.Context, msg Message) error {
			received <- msg
			return nil
		})
	}()

	id, err := queue.Publish(ctx, []byte(`{"k":"v"}`), map[string]string{"type": "test"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case msg := <-received:
		assert.Equal(t, id, msg.ID)
		assert.JSONEq(t, `{"k":"v"}`, string(msg.Data))
		assert.Equal(t, "test", msg.Attributes["type"])
	case <-time.After(2 * time.Second):
		t.Fatal("message was not delivered")
	}
}

func TestMemoryBackendFull(t *testing.T) {
	backend := NewMemoryBackend(1)
	ctx := context.Background()

	_, err := backend.Publish(ctx, "c", []byte("1"), nil)
	require.NoError(t, err)
	_, err = backend.Publish(ctx, "c", []byte("2"), nil)
	assert.ErrorIs(t, err, ErrQueueFull)

	_, err = backend.Publish(ctx, " ", []byte("x"), nil)
	assert.Error(t, err)
}

func TestMemoryBackendClose(t *testing.T) {
	backend := NewMemoryBackend(0)
	done := make(chan error, 1)
	go func() {
		done <- backend.Subscribe(context.Background(), "c", func(context.Context, Message) error {
			return errors.New("ignored")
		})
	}()

	require.NoError(t, backend.Close())
	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrClosed)
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not stop")
	}

	_, err := backend.Publish(context.Background(), "c", nil, nil)
	assert.ErrorIs(t, err, ErrClosed)
	assert.NoError(t, backend.Close())
}

func TestOpenValidation(t *testing.T) {
	ctx := context.Background()

	_, err := Open(ctx, config.MQConfig{Backend: "kafka"})
	assert.Error(t, err)

	_, err = Open(ctx, config.MQConfig{Backend: "rabbitmq"})
	assert.ErrorContains(t, err, "url")

	_, err = Open(ctx, config.MQConfig{Backend: "pubsub"})
	assert.ErrorContains(t, err, "project")
}

func TestHeadersToAttributes(t *testing.T) {
	assert.Nil(t, headersToAttributes(nil))
	attrs := headersToAttributes(map[string]any{"a": "x", "b": []byte("y"), "c": 3})
	assert.Equal(t, map[string]string{"a": "x", "b": "y", "c": "3"}, attrs)
}

func TestRabbitMQPublishing(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	client := &RabbitMQClient{queueDurable: true, now: func() time.Time { return sentAt }}

	msg := client.publishing([]byte(`{}`), map[string]string{AttrEvent: "contact.submitted"})
	assert.Equal(t, "contact.submitted", msg.Type)
	assert.Equal(t, "contact.submitted", msg.Headers[AttrEvent])
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, appID, msg.AppId)
	assert.Equal(t, sentAt, msg.Timestamp)
	assert.NotEmpty(t, msg.MessageId)

	client.queueDurable = false
	assert.Equal(t, amqp.Transient, client.publishing(nil, nil).DeliveryMode)
}

func TestRabbitMQDeadLetterArgs(t *testing.T) {
	assert.Nil(t, queueArgs("site-notifications", false))
	assert.Equal(t, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": "site-notifications.dead",
	}, queueArgs("site-notifications", true))
}

func TestDeliveryMessageEventFallback(t *testing.T) {
	msg := deliveryMessage(amqp.Delivery{MessageId: "m1", Type: "newsletter.delivery", Body: []byte("x")})
	assert.Equal(t, "m1", msg.ID)
	assert.Equal(t, map[string]string{AttrEvent: "newsletter.delivery"}, msg.Attributes)

	msg = deliveryMessage(amqp.Delivery{Type: "other", Headers: amqp.Table{AttrEvent: "contact.submitted"}})
	assert.Equal(t, "contact.submitted", msg.Attributes[AttrEvent])

	assert.Nil(t, deliveryMessage(amqp.Delivery{}).Attributes)
}

func TestPubSubSubscriptionConfig(t *testing.T) {
	plain := newPubSubClient(nil, config.PubSubConfig{ProjectID: "site"})
	cfg := plain.subscriptionConfig(nil)
	assert.Nil(t, cfg.DeadLetterPolicy)
	assert.Equal(t, notificationAckDeadline, cfg.AckDeadline)
	require.NotNil(t, cfg.RetryPolicy)
	assert.Equal(t, "site-notifications-sub", plain.subscriptionName("site-notifications"))

	dead := newPubSubClient(nil, config.PubSubConfig{ProjectID: "site", DeadLetterTopic: "notifications-dead", MaxDeliveryAttempts: 2})
	cfg = dead.subscriptionConfig(nil)
	require.NotNil(t, cfg.DeadLetterPolicy)
	assert.Equal(t, "projects/site/topics/notifications-dead", cfg.DeadLetterPolicy.DeadLetterTopic)
	assert.Equal(t, minDeliveryAttempts, cfg.DeadLetterPolicy.MaxDeliveryAttempts)
}

func TestTopicNames(t *testing.T) {
	assert.Equal(t, "projects/p/topics/t", fullTopicName("p", "t"))
	assert.Equal(t, "projects/other/topics/t", fullTopicName("p", "projects/other/topics/t"))
	assert.Equal(t, "t", shortTopicName("projects/other/topics/t"))
	assert.Equal(t, "t", shortTopicName("t"))

	assert.Equal(t, minDeliveryAttempts, clampAttempts(0))
	assert.Equal(t, 20, clampAttempts(20))
	assert.Equal(t, maxDeliveryAttempts, clampAttempts(1000))
}
