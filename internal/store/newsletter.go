package store

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/sitedesk/apiserver/types"
)

const newsletterColumns = `id, subject, content, status, sent_at, author_id, created_at, updated_at`

// NewsletterRepository handles persistence for newsletters and their
// subscribers.
type NewsletterRepository struct {
	db *sqlx.DB
}

func NewNewsletterRepository(db *sqlx.DB) *NewsletterRepository {
	return &NewsletterRepository{db: db}
}

func (r *NewsletterRepository) List(ctx context.Context, page Page) ([]types.Newsletter, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM newsletters`); err != nil {
		return nil, 0, err
	}
	query := r.db.Rebind(`SELECT ` + newsletterColumns + ` FROM newsletters ORDER BY created_at DESC, id LIMIT ? OFFSET ?`)
	items := []types.Newsletter{}
	if err := r.db.SelectContext(ctx, &items, query, page.Limit, page.Offset); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *NewsletterRepository) GetByID(ctx context.Context, id string) (types.Newsletter, error) {
	var n types.Newsletter
	query := r.db.Rebind(`SELECT ` + newsletterColumns + ` FROM newsletters WHERE id = ?`)
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		return types.Newsletter{}, translate(err)
	}
	return n, nil
}

func (r *NewsletterRepository) Create(ctx context.Context, n types.Newsletter) (types.Newsletter, error) {
	const query = `
		INSERT INTO newsletters (id, subject, content, status, sent_at, author_id, created_at, updated_at)
		VALUES (:id, :subject, :content, :status, :sent_at, :author_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, n); err != nil {
		return types.Newsletter{}, translate(err)
	}
	return n, nil
}

func (r *NewsletterRepository) Update(ctx context.Context, n types.Newsletter) (types.Newsletter, error) {
	const query = `
		UPDATE newsletters
		SET subject = :subject,
			content = :content,
			status = :status,
			sent_at = :sent_at,
			updated_at = :updated_at
		WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, n)
	if err != nil {
		return types.Newsletter{}, err
	}
	if err := expectOne(result); err != nil {
		return types.Newsletter{}, err
	}
	return n, nil
}

// MarkSent moves a draft to sent. It reports false when the newsletter is
// not a draft anymore, so only one caller ever wins the transition.
func (r *NewsletterRepository) MarkSent(ctx context.Context, id string, sentAt time.Time) (bool, error) {
	query := r.db.Rebind(`
		UPDATE newsletters
		SET status = ?, sent_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`)
	result, err := r.db.ExecContext(ctx, query,
		types.NewsletterStatusSent, sentAt, sentAt, id, types.NewsletterStatusDraft)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

// RevertSent puts a sent newsletter back to draft.
func (r *NewsletterRepository) RevertSent(ctx context.Context, id string) error {
	query := r.db.Rebind(`
		UPDATE newsletters
		SET status = ?, sent_at = NULL
		WHERE id = ? AND status = ?`)
	result, err := r.db.ExecContext(ctx, query, types.NewsletterStatusDraft, id, types.NewsletterStatusSent)
	if err != nil {
		return err
	}
	return expectOne(result)
}

func (r *NewsletterRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM newsletters WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// AddSubscriber records email. Subscribing an existing address is a no-op and
// reports created=false.
func (r *NewsletterRepository) AddSubscriber(ctx context.Context, sub types.Subscriber) (bool, error) {
	query := r.db.Rebind(`
		INSERT INTO newsletter_subscribers (id, email, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT (email) DO NOTHING`)
	result, err := r.db.ExecContext(ctx, query, sub.ID, sub.Email, sub.CreatedAt)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (r *NewsletterRepository) ListSubscribers(ctx context.Context, page Page) ([]types.Subscriber, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM newsletter_subscribers`); err != nil {
		return nil, 0, err
	}
	query := r.db.Rebind(`SELECT id, email, created_at FROM newsletter_subscribers ORDER BY created_at DESC, id LIMIT ? OFFSET ?`)
	subs := []types.Subscriber{}
	if err := r.db.SelectContext(ctx, &subs, query, page.Limit, page.Offset); err != nil {
		return nil, 0, err
	}
	return subs, total, nil
}

// SubscriberEmails returns every subscribed address.
func (r *NewsletterRepository) SubscriberEmails(ctx context.Context) ([]string, error) {
	emails := []string{}
	if err := r.db.SelectContext(ctx, &emails, `SELECT email FROM newsletter_subscribers ORDER BY email`); err != nil {
		return nil, err
	}
	return emails, nil
}
