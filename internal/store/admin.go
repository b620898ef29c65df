package store

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/sitedesk/apiserver/types"
)

const adminColumns = `id, username, email, password_hash, is_active, created_at, last_login`

// AdminRepository handles persistence for administrator identities.
type AdminRepository struct {
	db *sqlx.DB
}

func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

func (r *AdminRepository) GetByID(ctx context.Context, id string) (types.AdminUser, error) {
	var admin types.AdminUser
	query := r.db.Rebind(`SELECT ` + adminColumns + ` FROM admin_users WHERE id = ?`)
	if err := r.db.GetContext(ctx, &admin, query, id); err != nil {
		return types.AdminUser{}, translate(err)
	}
	return admin, nil
}

func (r *AdminRepository) GetByUsername(ctx context.Context, username string) (types.AdminUser, error) {
	var admin types.AdminUser
	query := r.db.Rebind(`SELECT ` + adminColumns + ` FROM admin_users WHERE username = ?`)
	if err := r.db.GetContext(ctx, &admin, query, username); err != nil {
		return types.AdminUser{}, translate(err)
	}
	return admin, nil
}

// ExistsByUsernameOrEmail reports whether either identifier is already taken.
func (r *AdminRepository) ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error) {
	var count int
	query := r.db.Rebind(`SELECT COUNT(*) FROM admin_users WHERE username = ? OR email = ?`)
	if err := r.db.GetContext(ctx, &count, query, username, email); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *AdminRepository) Create(ctx context.Context, admin types.AdminUser) (types.AdminUser, error) {
	const query = `
		INSERT INTO admin_users (id, username, email, password_hash, is_active, created_at, last_login)
		VALUES (:id, :username, :email, :password_hash, :is_active, :created_at, :last_login)`
	if _, err := r.db.NamedExecContext(ctx, query, admin); err != nil {
		return types.AdminUser{}, translate(err)
	}
	return admin, nil
}

// Update writes the non-nil fields of u in a single statement.
func (r *AdminRepository) Update(ctx context.Context, id string, u types.AdminUpdate) error {
	var (
		sets []string
		args []any
	)
	if u.PasswordHash != nil {
		sets = append(sets, "password_hash = ?")
		args = append(args, *u.PasswordHash)
	}
	if u.LastLogin != nil {
		sets = append(sets, "last_login = ?")
		args = append(args, u.LastLogin.UTC())
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	query := r.db.Rebind(`UPDATE admin_users SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	return expectOne(result)
}

// SetActive enables or disables an account.
func (r *AdminRepository) SetActive(ctx context.Context, id string, active bool) error {
	query := r.db.Rebind(`UPDATE admin_users SET is_active = ? WHERE id = ?`)
	result, err := r.db.ExecContext(ctx, query, active, id)
	if err != nil {
		return err
	}
	return expectOne(result)
}

func (r *AdminRepository) List(ctx context.Context) ([]types.AdminUser, error) {
	admins := []types.AdminUser{}
	if err := r.db.SelectContext(ctx, &admins, `SELECT `+adminColumns+` FROM admin_users ORDER BY created_at`); err != nil {
		return nil, err
	}
	return admins, nil
}
