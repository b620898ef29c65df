package types

import "time"

// AdminUser represents an administrator able to manage the site.
// Identities are provisioned out-of-band and are never deleted by the API.
type AdminUser struct {
	// ID is the opaque, immutable identifier of the administrator.
	ID string `json:"id" db:"id"`

	// Username is the unique login name.
	Username string `json:"username" db:"username"`

	// Email is the unique contact address of the administrator.
	Email string `json:"email" db:"email"`

	// PasswordHash stores the salted hash of the password.
	// This field is never exposed in API responses.
	PasswordHash string `json:"-" db:"password_hash"`

	// IsActive reports whether the account may authenticate.
	IsActive bool `json:"is_active" db:"is_active"`

	// CreatedAt is the timestamp when the account was provisioned.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// LastLogin is the timestamp of the most recent successful login.
	LastLogin *time.Time `json:"last_login" db:"last_login"`
}

// AdminUpdate lists the mutable fields of an AdminUser. Nil fields are left
// untouched.
type AdminUpdate struct {
	PasswordHash *string
	LastLogin    *time.Time
}
