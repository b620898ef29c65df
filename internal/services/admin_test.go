package services_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/internal/store"
	"github.com/sitedesk/apiserver/internal/testutil"
)

func TestAdminCreate(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewDB(t)
	repo := store.NewAdminRepository(conn)
	hasher := newHasher(t)
	svc := services.NewAdminService(repo, hasher, discardLogger())

	admin, err := svc.Create(ctx, services.NewAdmin{Username: " admin ", Email: "admin@example.com", Password: "long-enough"})
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Username)
	assert.True(t, admin.IsActive)
	assert.NotEqual(t, "long-enough", admin.PasswordHash)
	assert.True(t, hasher.Verify("long-enough", admin.PasswordHash))

	_, err = svc.Create(ctx, services.NewAdmin{Username: "admin", Email: "other@example.com", Password: "long-enough"})
	assert.ErrorIs(t, err, services.ErrAdminExists)
	_, err = svc.Create(ctx, services.NewAdmin{Username: "other", Email: "admin@example.com", Password: "long-enough"})
	assert.ErrorIs(t, err, services.ErrAdminExists)

	_, err = svc.Create(ctx, services.NewAdmin{Username: "bob", Email: "bob@example.com", Password: "short"})
	requireValidation(t, err, "password")
	_, err = svc.Create(ctx, services.NewAdmin{Username: "bob", Email: "not-an-email", Password: "long-enough"})
	requireValidation(t, err, "email")
	_, err = svc.Create(ctx, services.NewAdmin{Email: "bob@example.com", Password: "long-enough"})
	requireValidation(t, err, "username")
}

func TestAdminSeedFromFile(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewDB(t)
	repo := store.NewAdminRepository(conn)
	svc := services.NewAdminService(repo, newHasher(t), discardLogger())

	path := filepath.Join(t.TempDir(), "admins.yaml")
	content := `admins:
  - username: alice
    email: alice@example.com
    password: alice-password
  - username: bob
    email: bob@example.com
    password: bob-password
    inactive: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	created, err := svc.SeedFromFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, 2, created)

	// Re-seeding skips existing admins.
	created, err = svc.SeedFromFile(ctx, path)
	require.NoError(t, err)
	assert.Zero(t, created)

	bob, err := repo.GetByUsername(ctx, "bob")
	require.NoError(t, err)
	assert.False(t, bob.IsActive)

	_, err = svc.SeedFromFile(ctx, filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("admins: [username: x, password: short]"), 0o600))
	_, err = svc.SeedFromFile(ctx, bad)
	assert.Error(t, err)
}
