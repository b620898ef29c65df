package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sitedesk/apiserver/config"
)

const (
	appID            = "sitedesk"
	deadLetterSuffix = ".dead"
)

// RabbitMQClient publishes notification events to a queue named after the
// channel. With dead-lettering on, events whose delivery failed twice are
// parked in "<channel>.dead" for inspection instead of being dropped.
type RabbitMQClient struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queueDurable    bool
	queueAutoDelete bool
	deadLetter      bool
	now             func() time.Time
}

// NewRabbitMQClient constructs a RabbitMQ client from config.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:            conn,
		channel:         ch,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		deadLetter:      cfg.DeadLetter,
		now:             time.Now,
	}, nil
}

// Publish sends an event to the channel's queue.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	if err := r.declareQueue(channel); err != nil {
		return "", err
	}

	msg := r.publishing(data, attrs)
	if err := r.channel.PublishWithContext(ctx, "", channel, false, false, msg); err != nil {
		return "", err
	}
	return msg.MessageId, nil
}

// publishing builds the AMQP message. The event type also goes into the
// native Type property so it shows up in the management UI.
func (r *RabbitMQClient) publishing(data []byte, attrs map[string]string) amqp.Publishing {
	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}
	deliveryMode := amqp.Transient
	if r.queueDurable {
		deliveryMode = amqp.Persistent
	}
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: deliveryMode,
		MessageId:    uuid.NewString(),
		Type:         attrs[AttrEvent],
		AppId:        appID,
		Timestamp:    r.now().UTC(),
		Headers:      headers,
		Body:         data,
	}
}

// Subscribe consumes events from the channel's queue. A failed event is
// requeued once; the second failure rejects it into the dead-letter queue
// when one is configured, and drops it otherwise.
func (r *RabbitMQClient) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("rabbitmq channel is required")
	}
	if err := r.declareQueue(channel); err != nil {
		return err
	}

	consumerTag := fmt.Sprintf("%s-worker-%s", appID, uuid.NewString())
	deliveries, err := r.channel.Consume(channel, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			if err := handler(ctx, deliveryMessage(delivery)); err != nil {
				_ = delivery.Nack(false, !delivery.Redelivered)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the underlying channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareQueue(name string) error {
	if r.deadLetter {
		if _, err := r.channel.QueueDeclare(deadLetterQueue(name), r.queueDurable, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead-letter queue: %w", err)
		}
	}
	_, err := r.channel.QueueDeclare(name, r.queueDurable, r.queueAutoDelete, false, false, queueArgs(name, r.deadLetter))
	return err
}

func deadLetterQueue(channel string) string {
	return channel + deadLetterSuffix
}

// queueArgs routes rejected messages through the default exchange to the
// dead-letter queue.
func queueArgs(channel string, deadLetter bool) amqp.Table {
	if !deadLetter {
		return nil
	}
	return amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": deadLetterQueue(channel),
	}
}

// deliveryMessage converts a delivery, falling back to the Type property for
// the event when the header is missing.
func deliveryMessage(delivery amqp.Delivery) Message {
	attrs := headersToAttributes(delivery.Headers)
	if _, ok := attrs[AttrEvent]; !ok && delivery.Type != "" {
		if attrs == nil {
			attrs = map[string]string{}
		}
		attrs[AttrEvent] = delivery.Type
	}
	return Message{
		ID:         delivery.MessageId,
		Data:       delivery.Body,
		Attributes: attrs,
	}
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
