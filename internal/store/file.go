package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sitedesk/apiserver/types"
)

const fileColumns = `id, filename, original_filename, file_path, file_size, mime_type, description, uploaded_at, updated_at`

// FileRepository handles persistence for uploaded file metadata.
type FileRepository struct {
	db *sqlx.DB
}

func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(ctx context.Context, f types.File) (types.File, error) {
	const query = `
		INSERT INTO files (id, filename, original_filename, file_path, file_size, mime_type, description, uploaded_at, updated_at)
		VALUES (:id, :filename, :original_filename, :file_path, :file_size, :mime_type, :description, :uploaded_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, f); err != nil {
		return types.File{}, translate(err)
	}
	return f, nil
}

func (r *FileRepository) List(ctx context.Context, page Page) ([]types.File, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM files`); err != nil {
		return nil, 0, err
	}
	query := r.db.Rebind(`SELECT ` + fileColumns + ` FROM files ORDER BY uploaded_at DESC, id LIMIT ? OFFSET ?`)
	files := []types.File{}
	if err := r.db.SelectContext(ctx, &files, query, page.Limit, page.Offset); err != nil {
		return nil, 0, err
	}
	return files, total, nil
}

func (r *FileRepository) GetByID(ctx context.Context, id string) (types.File, error) {
	var f types.File
	query := r.db.Rebind(`SELECT ` + fileColumns + ` FROM files WHERE id = ?`)
	if err := r.db.GetContext(ctx, &f, query, id); err != nil {
		return types.File{}, translate(err)
	}
	return f, nil
}

// GetByFilename looks a file up by its storage key.
func (r *FileRepository) GetByFilename(ctx context.Context, filename string) (types.File, error) {
	var f types.File
	query := r.db.Rebind(`SELECT ` + fileColumns + ` FROM files WHERE filename = ?`)
	if err := r.db.GetContext(ctx, &f, query, filename); err != nil {
		return types.File{}, translate(err)
	}
	return f, nil
}

func (r *FileRepository) UpdateDescription(ctx context.Context, f types.File) (types.File, error) {
	query := r.db.Rebind(`UPDATE files SET description = ?, updated_at = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, f.Description, f.UpdatedAt, f.ID)
	if err != nil {
		return types.File{}, err
	}
	if err := expectOne(result); err != nil {
		return types.File{}, err
	}
	return f, nil
}

func (r *FileRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM files WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectOne(result)
}
