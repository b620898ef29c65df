// Package testutil provides fixtures shared by package tests.
package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sitedesk/apiserver/config"
	"github.com/sitedesk/apiserver/internal/db"
	"github.com/sitedesk/apiserver/internal/store"
	"github.com/sitedesk/apiserver/types"
)

// NewDB opens a private in-memory SQLite database with the schema applied.
func NewDB(t testing.TB) *sqlx.DB {
	t.Helper()
	cfg := config.Config{Database: config.DatabaseConfig{Driver: db.DriverSQLite, Path: db.MemoryPath}}
	conn, err := db.Open(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, db.MigrateUp(conn, cfg.Database))
	return conn
}

// AdminOptions customises SeedAdmin.
type AdminOptions struct {
	Email    string
	Inactive bool
}

// SeedAdmin stores an administrator whose password is password.
func SeedAdmin(t testing.TB, conn *sqlx.DB, username, password string, opts ...AdminOptions) types.AdminUser {
	t.Helper()
	var opt AdminOptions
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Email == "" {
		opt.Email = username + "@example.com"
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	admin, err := store.NewAdminRepository(conn).Create(context.Background(), types.AdminUser{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        opt.Email,
		PasswordHash: string(hash),
		IsActive:     !opt.Inactive,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	})
	require.NoError(t, err)
	return admin
}

// Clock is a settable time source.
type Clock struct {
	Current time.Time
}

func NewClock(start time.Time) *Clock {
	return &Clock{Current: start}
}

func (c *Clock) Now() time.Time {
	return c.Current
}

// Advance moves the clock forward by d and returns the new time.
func (c *Clock) Advance(d time.Duration) time.Time {
	c.Current = c.Current.Add(d)
	return c.Current
}
