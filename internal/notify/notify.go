// Package notify turns domain events into queued messages and delivers them
// as email.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sitedesk/apiserver/internal/mail"
	"github.com/sitedesk/apiserver/internal/mq"
	"github.com/sitedesk/apiserver/types"
)

const (
	EventContactSubmitted   = "contact.submitted"
	EventNewsletterDelivery = "newsletter.delivery"

	attrEvent = mq.AttrEvent
)

// ContactSubmitted is emitted after a visitor uses the contact form.
type ContactSubmitted struct {
	MessageID string    `json:"message_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// NewsletterDelivery asks for a newsletter to be mailed to recipients.
type NewsletterDelivery struct {
	NewsletterID string   `json:"newsletter_id"`
	Subject      string   `json:"subject"`
	Content      string   `json:"content"`
	Recipients   []string `json:"recipients"`
}

// Publisher is the outbound side of a queue.
type Publisher interface {
	Publish(ctx context.Context, data []byte, attrs map[string]string) (string, error)
}

// Subscriber is the inbound side of a queue.
type Subscriber interface {
	Subscribe(ctx context.Context, handler mq.Handler) error
}

// Notifier publishes events.
type Notifier struct {
	pub Publisher
}

func NewNotifier(pub Publisher) *Notifier {
	return &Notifier{pub: pub}
}

func (n *Notifier) ContactSubmitted(ctx context.Context, msg types.ContactMessage) error {
	return n.publish(ctx, EventContactSubmitted, ContactSubmitted{
		MessageID: msg.ID,
		Name:      msg.Name,
		Email:     msg.Email,
		Subject:   msg.Subject,
		Message:   msg.Message,
		CreatedAt: msg.CreatedAt,
	})
}

func (n *Notifier) NewsletterDelivery(ctx context.Context, newsletter types.Newsletter, recipients []string) error {
	return n.publish(ctx, EventNewsletterDelivery, NewsletterDelivery{
		NewsletterID: newsletter.ID,
		Subject:      newsletter.Subject,
		Content:      newsletter.Content,
		Recipients:   recipients,
	})
}

func (n *Notifier) publish(ctx context.Context, event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	if _, err := n.pub.Publish(ctx, data, map[string]string{attrEvent: event}); err != nil {
		return fmt.Errorf("publish %s: %w", event, err)
	}
	return nil
}

// Dispatcher consumes events and sends the matching email.
type Dispatcher struct {
	mailer     mail.Mailer
	adminEmail string
	logger     *slog.Logger
}

func NewDispatcher(mailer mail.Mailer, adminEmail string, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{mailer: mailer, adminEmail: adminEmail, logger: logger}
}

// Run consumes from sub until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context, sub Subscriber) error {
	err := sub.Subscribe(ctx, d.Handle)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Handle delivers one message. Unknown events are logged and acknowledged.
func (d *Dispatcher) Handle(ctx context.Context, msg mq.Message) error {
	event := msg.Attributes[attrEvent]
	logger := d.logger.With("event", event, "message_id", msg.ID)

	switch event {
	case EventContactSubmitted:
		var payload ContactSubmitted
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Error("discarding malformed event", "error", err)
			return nil
		}
		return d.contactSubmitted(ctx, logger, payload)
	case EventNewsletterDelivery:
		var payload NewsletterDelivery
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Error("discarding malformed event", "error", err)
			return nil
		}
		return d.newsletterDelivery(ctx, logger, payload)
	default:
		logger.Warn("discarding unknown event")
		return nil
	}
}

func (d *Dispatcher) contactSubmitted(ctx context.Context, logger *slog.Logger, p ContactSubmitted) error {
	if d.adminEmail == "" {
		logger.Warn("admin email not configured, skipping contact notification")
		return nil
	}

	var body strings.Builder
	body.WriteString("New contact message received from your website:\n\n")
	fmt.Fprintf(&body, "From: %s (%s)\n", p.Name, p.Email)
	fmt.Fprintf(&body, "Subject: %s\n", p.Subject)
	fmt.Fprintf(&body, "Date: %s\n\n", p.CreatedAt.Format(time.RFC1123))
	body.WriteString("Message:\n")
	body.WriteString(p.Message)
	body.WriteString("\n\n---\nThis message was sent from your personal website contact form.\n")

	err := d.mailer.Send(ctx, mail.Email{
		To:      []string{d.adminEmail},
		Subject: "New Contact Message: " + p.Subject,
		Body:    body.String(),
	})
	if err != nil {
		logger.Error("contact notification failed", "error", err)
		return err
	}
	logger.Info("contact notification sent")
	return nil
}

// newsletterDelivery mails each recipient separately so addresses are never
// disclosed to each other. Partial failures are logged, not retried.
func (d *Dispatcher) newsletterDelivery(ctx context.Context, logger *slog.Logger, p NewsletterDelivery) error {
	var failed int
	for _, to := range p.Recipients {
		err := d.mailer.Send(ctx, mail.Email{To: []string{to}, Subject: p.Subject, Body: p.Content})
		if err != nil {
			failed++
			logger.Error("newsletter delivery failed", "recipient", to, "error", err)
		}
	}
	logger.Info("newsletter delivered",
		"newsletter_id", p.NewsletterID,
		"recipients", len(p.Recipients),
		"failed", failed,
	)
	if failed > 0 && failed == len(p.Recipients) {
		return fmt.Errorf("newsletter %s: all %d deliveries failed", p.NewsletterID, failed)
	}
	return nil
}
