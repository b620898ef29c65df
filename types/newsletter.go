package types

import (
	"encoding/json"
	"errors"
	"time"
)

// NewsletterStatus is the delivery state of a newsletter.
type NewsletterStatus string

const (
	NewsletterStatusDraft NewsletterStatus = "draft"
	NewsletterStatusSent  NewsletterStatus = "sent"
)

func (s NewsletterStatus) Valid() bool {
	return s == NewsletterStatusDraft || s == NewsletterStatusSent
}

func (s *NewsletterStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status := NewsletterStatus(raw)
	if !status.Valid() {
		return errors.New("status must be draft or sent")
	}
	*s = status
	return nil
}

// Newsletter is an email campaign authored by an administrator.
type Newsletter struct {
	ID        string           `json:"id" db:"id"`
	Subject   string           `json:"subject" db:"subject"`
	Content   string           `json:"content" db:"content"`
	Status    NewsletterStatus `json:"status" db:"status"`
	SentAt    *time.Time       `json:"sent_at" db:"sent_at"`
	AuthorID  string           `json:"author_id" db:"author_id"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time       `json:"updated_at" db:"updated_at"`
}

type NewsletterUpdate struct {
	Subject *string           `json:"subject"`
	Content *string           `json:"content"`
	Status  *NewsletterStatus `json:"status"`
}

func (n *Newsletter) Apply(u NewsletterUpdate) {
	if u.Subject != nil {
		n.Subject = *u.Subject
	}
	if u.Content != nil {
		n.Content = *u.Content
	}
	if u.Status != nil {
		n.Status = *u.Status
	}
}

// Subscriber is an address that receives newsletters.
type Subscriber struct {
	ID        string    `json:"id" db:"id"`
	Email     string    `json:"email" db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
