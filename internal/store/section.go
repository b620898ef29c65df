package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sitedesk/apiserver/types"
)

// SectionRepository handles persistence for section visibility flags.
type SectionRepository struct {
	db *sqlx.DB
}

func NewSectionRepository(db *sqlx.DB) *SectionRepository {
	return &SectionRepository{db: db}
}

func (r *SectionRepository) List(ctx context.Context) ([]types.SectionVisibility, error) {
	sections := []types.SectionVisibility{}
	const query = `SELECT id, section_name, is_visible, updated_at, updated_by FROM section_visibility ORDER BY section_name`
	if err := r.db.SelectContext(ctx, &sections, query); err != nil {
		return nil, err
	}
	return sections, nil
}

// Upsert sets the visibility of a section, creating the row on first use.
// The returned value reflects the stored row.
func (r *SectionRepository) Upsert(ctx context.Context, s types.SectionVisibility) (types.SectionVisibility, error) {
	const query = `
		INSERT INTO section_visibility (id, section_name, is_visible, updated_at, updated_by)
		VALUES (:id, :section_name, :is_visible, :updated_at, :updated_by)
		ON CONFLICT (section_name) DO UPDATE
		SET is_visible = excluded.is_visible,
			updated_at = excluded.updated_at,
			updated_by = excluded.updated_by`
	if _, err := r.db.NamedExecContext(ctx, query, s); err != nil {
		return types.SectionVisibility{}, err
	}
	return r.GetByName(ctx, s.SectionName)
}

// InsertMissing creates s only when no row exists for its section.
func (r *SectionRepository) InsertMissing(ctx context.Context, s types.SectionVisibility) error {
	const query = `
		INSERT INTO section_visibility (id, section_name, is_visible, updated_at, updated_by)
		VALUES (:id, :section_name, :is_visible, :updated_at, :updated_by)
		ON CONFLICT (section_name) DO NOTHING`
	_, err := r.db.NamedExecContext(ctx, query, s)
	return err
}

func (r *SectionRepository) GetByName(ctx context.Context, name string) (types.SectionVisibility, error) {
	var s types.SectionVisibility
	query := r.db.Rebind(`SELECT id, section_name, is_visible, updated_at, updated_by FROM section_visibility WHERE section_name = ?`)
	if err := r.db.GetContext(ctx, &s, query, name); err != nil {
		return types.SectionVisibility{}, translate(err)
	}
	return s, nil
}
