package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sitedesk/apiserver/types"
)

const contactColumns = `id, name, email, subject, message, is_read, ip_address, user_agent, created_at`

// ContactRepository handles persistence for contact form submissions.
type ContactRepository struct {
	db *sqlx.DB
}

func NewContactRepository(db *sqlx.DB) *ContactRepository {
	return &ContactRepository{db: db}
}

func (r *ContactRepository) Create(ctx context.Context, msg types.ContactMessage) (types.ContactMessage, error) {
	const query = `
		INSERT INTO contact_messages (id, name, email, subject, message, is_read, ip_address, user_agent, created_at)
		VALUES (:id, :name, :email, :subject, :message, :is_read, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return types.ContactMessage{}, translate(err)
	}
	return msg, nil
}

// List returns messages newest first along with the total and unread counts.
func (r *ContactRepository) List(ctx context.Context, page Page) ([]types.ContactMessage, int, int, error) {
	var counts struct {
		Total  int  `db:"total"`
		Unread *int `db:"unread"`
	}
	if err := r.db.GetContext(ctx, &counts, r.db.Rebind(
		`SELECT COUNT(*) AS total, SUM(CASE WHEN is_read = ? THEN 1 ELSE 0 END) AS unread FROM contact_messages`,
	), false); err != nil {
		return nil, 0, 0, err
	}
	unread := 0
	if counts.Unread != nil {
		unread = *counts.Unread
	}

	query := r.db.Rebind(`SELECT ` + contactColumns + ` FROM contact_messages ORDER BY created_at DESC, id LIMIT ? OFFSET ?`)
	msgs := []types.ContactMessage{}
	if err := r.db.SelectContext(ctx, &msgs, query, page.Limit, page.Offset); err != nil {
		return nil, 0, 0, err
	}
	return msgs, counts.Total, unread, nil
}

func (r *ContactRepository) GetByID(ctx context.Context, id string) (types.ContactMessage, error) {
	var msg types.ContactMessage
	query := r.db.Rebind(`SELECT ` + contactColumns + ` FROM contact_messages WHERE id = ?`)
	if err := r.db.GetContext(ctx, &msg, query, id); err != nil {
		return types.ContactMessage{}, translate(err)
	}
	return msg, nil
}

func (r *ContactRepository) SetRead(ctx context.Context, id string, read bool) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`UPDATE contact_messages SET is_read = ? WHERE id = ?`), read, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

// MarkRead flags every listed message as read and reports how many messages
// matched. Unknown ids are ignored.
func (r *ContactRepository) MarkRead(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query, args, err := sqlx.In(`UPDATE contact_messages SET is_read = ? WHERE id IN (?)`, true, ids)
	if err != nil {
		return 0, err
	}
	result, err := r.db.ExecContext(ctx, r.db.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func (r *ContactRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM contact_messages WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectOne(result)
}
