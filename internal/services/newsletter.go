package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/sitedesk/apiserver/internal/store"
	"github.com/sitedesk/apiserver/types"
)

// NewsletterRepository defines persistence operations for newsletters.
type NewsletterRepository interface {
	List(ctx context.Context, page store.Page) ([]types.Newsletter, int, error)
	GetByID(ctx context.Context, id string) (types.Newsletter, error)
	Create(ctx context.Context, n types.Newsletter) (types.Newsletter, error)
	Update(ctx context.Context, n types.Newsletter) (types.Newsletter, error)
	Delete(ctx context.Context, id string) error
	MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error)
	RevertSent(ctx context.Context, id string) error
	AddSubscriber(ctx context.Context, sub types.Subscriber) (bool, error)
	ListSubscribers(ctx context.Context, page store.Page) ([]types.Subscriber, int, error)
	SubscriberEmails(ctx context.Context) ([]string, error)
}

var errAlreadySent = invalid("Newsletter has already been sent")

// DeliveryNotifier hands a newsletter over for mailing.
type DeliveryNotifier interface {
	NewsletterDelivery(ctx context.Context, n types.Newsletter, recipients []string) error
}

type NewsletterInput struct {
	Subject string `json:"subject"`
	Content string `json:"content"`
}

func (in NewsletterInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Subject, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Content, validation.Required),
	)
}

// SendRequest selects the recipients of a newsletter.
type SendRequest struct {
	SendToAll        bool     `json:"send_to_all"`
	CustomRecipients []string `json:"custom_recipients"`
}

func (r SendRequest) Validate() error {
	for _, email := range r.CustomRecipients {
		if err := validation.Validate(strings.TrimSpace(email), is.Email); err != nil {
			return invalid("custom_recipients: %q %s", email, err.Error())
		}
	}
	return nil
}

// NewsletterService encapsulates newsletter use-cases.
type NewsletterService struct {
	repo     NewsletterRepository
	notifier DeliveryNotifier
	now      func() time.Time
}

func NewNewsletterService(repo NewsletterRepository, notifier DeliveryNotifier) *NewsletterService {
	return &NewsletterService{repo: repo, notifier: notifier, now: time.Now}
}

// WithClock replaces the time source.
func (s *NewsletterService) WithClock(now func() time.Time) *NewsletterService {
	s.now = now
	return s
}

func (s *NewsletterService) List(ctx context.Context, page store.Page) ([]types.Newsletter, int, error) {
	return s.repo.List(ctx, page)
}

func (s *NewsletterService) Get(ctx context.Context, id string) (types.Newsletter, error) {
	return s.repo.GetByID(ctx, id)
}

// Create stores a draft newsletter authored by author.
func (s *NewsletterService) Create(ctx context.Context, author types.AdminUser, in NewsletterInput) (types.Newsletter, error) {
	in.Subject = strings.TrimSpace(in.Subject)
	if err := in.Validate(); err != nil {
		return types.Newsletter{}, fromValidation(err)
	}
	return s.repo.Create(ctx, types.Newsletter{
		ID:        uuid.NewString(),
		Subject:   in.Subject,
		Content:   in.Content,
		Status:    types.NewsletterStatusDraft,
		AuthorID:  author.ID,
		CreatedAt: s.now().UTC(),
	})
}

func (s *NewsletterService) Update(ctx context.Context, id string, u types.NewsletterUpdate) (types.Newsletter, error) {
	err := validation.ValidateStruct(&u,
		validation.Field(&u.Subject, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&u.Content, validation.NilOrNotEmpty),
	)
	if err != nil {
		return types.Newsletter{}, fromValidation(err)
	}
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Newsletter{}, err
	}
	now := s.now().UTC()
	n.Apply(u)
	n.UpdatedAt = &now
	return s.repo.Update(ctx, n)
}

func (s *NewsletterService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// Send marks the newsletter sent and then queues it for delivery. The
// draft-to-sent transition is claimed first, so concurrent sends queue the
// mail at most once. A newsletter can only be sent once.
func (s *NewsletterService) Send(ctx context.Context, id string, req SendRequest) (types.Newsletter, int, error) {
	if err := req.Validate(); err != nil {
		return types.Newsletter{}, 0, err
	}
	n, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.Newsletter{}, 0, err
	}
	if n.Status == types.NewsletterStatusSent {
		return types.Newsletter{}, 0, errAlreadySent
	}

	var candidates []string
	if req.SendToAll {
		emails, err := s.repo.SubscriberEmails(ctx)
		if err != nil {
			return types.Newsletter{}, 0, err
		}
		candidates = append(candidates, emails...)
	}
	candidates = append(candidates, req.CustomRecipients...)
	recipients := dedupeEmails(candidates)
	if len(recipients) == 0 {
		return types.Newsletter{}, 0, invalid("Newsletter has no recipients")
	}

	now := s.now().UTC()
	claimed, err := s.repo.MarkSent(ctx, id, now)
	if err != nil {
		return types.Newsletter{}, 0, err
	}
	if !claimed {
		return types.Newsletter{}, 0, errAlreadySent
	}
	n.Status = types.NewsletterStatusSent
	n.SentAt = &now
	n.UpdatedAt = &now

	if err := s.notifier.NewsletterDelivery(ctx, n, recipients); err != nil {
		err = fmt.Errorf("queue newsletter: %w", err)
		if revertErr := s.repo.RevertSent(ctx, id); revertErr != nil {
			return types.Newsletter{}, 0, errors.Join(err, fmt.Errorf("revert newsletter to draft: %w", revertErr))
		}
		return types.Newsletter{}, 0, err
	}
	return n, len(recipients), nil
}

// Subscribe records an address. Subscribing twice is harmless.
func (s *NewsletterService) Subscribe(ctx context.Context, email string) (types.Subscriber, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if err := validation.Validate(email, validation.Required, is.Email); err != nil {
		return types.Subscriber{}, invalid("email: %s", err.Error())
	}
	sub := types.Subscriber{ID: uuid.NewString(), Email: email, CreatedAt: s.now().UTC()}
	if _, err := s.repo.AddSubscriber(ctx, sub); err != nil {
		return types.Subscriber{}, err
	}
	return sub, nil
}

func (s *NewsletterService) ListSubscribers(ctx context.Context, page store.Page) ([]types.Subscriber, int, error) {
	return s.repo.ListSubscribers(ctx, page)
}

func dedupeEmails(emails []string) []string {
	seen := make(map[string]struct{}, len(emails))
	out := make([]string, 0, len(emails))
	for _, email := range emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" {
			continue
		}
		if _, ok := seen[email]; ok {
			continue
		}
		seen[email] = struct{}{}
		out = append(out, email)
	}
	return out
}
