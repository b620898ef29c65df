package services

import (
	"context"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"

	"github.com/sitedesk/apiserver/internal/store"
	"github.com/sitedesk/apiserver/types"
)

// ContactRepository defines persistence operations for contact messages.
type ContactRepository interface {
	Create(ctx context.Context, msg types.ContactMessage) (types.ContactMessage, error)
	List(ctx context.Context, page store.Page) ([]types.ContactMessage, int, int, error)
	GetByID(ctx context.Context, id string) (types.ContactMessage, error)
	SetRead(ctx context.Context, id string, read bool) error
	MarkRead(ctx context.Context, ids []string) (int64, error)
	Delete(ctx context.Context, id string) error
}

// ContactNotifier announces new submissions.
type ContactNotifier interface {
	ContactSubmitted(ctx context.Context, msg types.ContactMessage) error
}

type ContactInput struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

func (in ContactInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validation.Required, validation.Length(1, 100)),
		validation.Field(&in.Email, validation.Required, is.Email),
		validation.Field(&in.Subject, validation.Required, validation.Length(1, 200)),
		validation.Field(&in.Message, validation.Required),
	)
}

// ClientInfo identifies the sender of a public request.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// ContactPage is one page of messages plus inbox counters.
type ContactPage struct {
	Items       []types.ContactMessage
	Total       int
	UnreadCount int
}

// ContactService encapsulates contact-form use-cases.
type ContactService struct {
	repo     ContactRepository
	notifier ContactNotifier
	logger   *slog.Logger
	now      func() time.Time
}

func NewContactService(repo ContactRepository, notifier ContactNotifier, logger *slog.Logger) *ContactService {
	return &ContactService{repo: repo, notifier: notifier, logger: logger, now: time.Now}
}

// WithClock replaces the time source.
func (s *ContactService) WithClock(now func() time.Time) *ContactService {
	s.now = now
	return s
}

// Submit stores a visitor message and notifies the site owner. A failed
// notification is logged and does not fail the submission.
func (s *ContactService) Submit(ctx context.Context, in ContactInput, client ClientInfo) (types.ContactMessage, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Email = strings.TrimSpace(in.Email)
	in.Subject = strings.TrimSpace(in.Subject)
	if err := in.Validate(); err != nil {
		return types.ContactMessage{}, fromValidation(err)
	}

	msg := types.ContactMessage{
		ID:        uuid.NewString(),
		Name:      in.Name,
		Email:     in.Email,
		Subject:   in.Subject,
		Message:   in.Message,
		IPAddress: optional(client.IP),
		UserAgent: optional(client.UserAgent),
		CreatedAt: s.now().UTC(),
	}
	msg, err := s.repo.Create(ctx, msg)
	if err != nil {
		return types.ContactMessage{}, err
	}

	if err := s.notifier.ContactSubmitted(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "contact notification failed", "message_id", msg.ID, "error", err)
	}
	return msg, nil
}

func (s *ContactService) List(ctx context.Context, page store.Page) (ContactPage, error) {
	items, total, unread, err := s.repo.List(ctx, page)
	if err != nil {
		return ContactPage{}, err
	}
	return ContactPage{Items: items, Total: total, UnreadCount: unread}, nil
}

func (s *ContactService) Get(ctx context.Context, id string) (types.ContactMessage, error) {
	return s.repo.GetByID(ctx, id)
}

// SetRead flags a message read or unread and returns the stored message.
func (s *ContactService) SetRead(ctx context.Context, id string, read bool) (types.ContactMessage, error) {
	if err := s.repo.SetRead(ctx, id, read); err != nil {
		return types.ContactMessage{}, err
	}
	return s.repo.GetByID(ctx, id)
}

func (s *ContactService) MarkRead(ctx context.Context, id string) error {
	return s.repo.SetRead(ctx, id, true)
}

// BulkMarkRead flags every listed message as read and returns how many
// matched.
func (s *ContactService) BulkMarkRead(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, invalid("message_ids must not be empty")
	}
	return s.repo.MarkRead(ctx, ids)
}

func (s *ContactService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
