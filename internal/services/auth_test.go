package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitedesk/apiserver/internal/auth"
	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/internal/store"
	"github.com/sitedesk/apiserver/internal/testutil"
	"github.com/sitedesk/apiserver/types"
)

type authFixture struct {
	svc    *services.AuthService
	repo   *store.AdminRepository
	tokens *auth.TokenCodec
	clock  *testutil.Clock
	admin  types.AdminUser
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	conn := testutil.NewDB(t)
	clock := testutil.NewClock(start)
	tokens, err := auth.NewTokenCodec("secret", "HS256", 30*time.Minute, auth.WithClock(clock.Now))
	require.NoError(t, err)
	repo := store.NewAdminRepository(conn)
	svc := services.NewAuthService(repo, newHasher(t), tokens, discardLogger()).WithClock(clock.Now)
	admin := testutil.SeedAdmin(t, conn, "alice", "correct-horse")
	return authFixture{svc: svc, repo: repo, tokens: tokens, clock: clock, admin: admin}
}

func TestLoginSuccess(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	result, err := f.svc.Login(ctx, " alice ", "correct-horse")
	require.NoError(t, err)
	assert.Equal(t, "bearer", result.TokenType)
	assert.Equal(t, f.admin.ID, result.UserID)
	assert.Equal(t, "alice", result.Username)
	assert.Equal(t, "alice@example.com", result.Email)

	subject, err := f.tokens.Verify(result.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, subject)

	stored, err := f.repo.GetByID(ctx, f.admin.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastLogin)
	assert.True(t, start.Equal(*stored.LastLogin))

	// Expires after the configured TTL.
	f.clock.Advance(30 * time.Minute)
	_, err = f.tokens.Verify(result.AccessToken)
	assert.ErrorIs(t, err, auth.ErrInvalidToken)
}

func TestLoginFailures(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	_, err := f.svc.Login(ctx, "", "correct-horse")
	requireValidation(t, err, "Username and password are required")
	_, err = f.svc.Login(ctx, "alice", "")
	requireValidation(t, err, "Username and password are required")

	_, unknownErr := f.svc.Login(ctx, "mallory", "correct-horse")
	_, wrongErr := f.svc.Login(ctx, "alice", "wrong-horse")
	assert.ErrorIs(t, unknownErr, services.ErrInvalidCredentials)
	assert.ErrorIs(t, wrongErr, services.ErrInvalidCredentials)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())

	stored, err := f.repo.GetByID(ctx, f.admin.ID)
	require.NoError(t, err)
	assert.Nil(t, stored.LastLogin)
}

func TestLoginInactive(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	require.NoError(t, f.repo.SetActive(ctx, f.admin.ID, false))

	_, err := f.svc.Login(ctx, "alice", "correct-horse")
	assert.ErrorIs(t, err, auth.ErrInactiveUser)

	// Without the right password the account state is not revealed.
	_, err = f.svc.Login(ctx, "alice", "wrong-horse")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
}

type failingLastLogin struct {
	*store.AdminRepository
}

func (f failingLastLogin) Update(context.Context, string, types.AdminUpdate) error {
	return errBoom
}

func TestLoginLastLoginFailureIsNotFatal(t *testing.T) {
	f := newAuthFixture(t)
	svc := services.NewAuthService(failingLastLogin{f.repo}, newHasher(t), f.tokens, discardLogger())

	result, err := svc.Login(context.Background(), "alice", "correct-horse")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
}

func TestChangePassword(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	before, err := f.svc.Login(ctx, "alice", "correct-horse")
	require.NoError(t, err)

	err = f.svc.ChangePassword(ctx, f.admin, "", "new-password")
	requireValidation(t, err, "Current password and new password are required")
	err = f.svc.ChangePassword(ctx, f.admin, "correct-horse", "")
	requireValidation(t, err, "Current password and new password are required")
	err = f.svc.ChangePassword(ctx, f.admin, "correct-horse", "short")
	requireValidation(t, err, "at least 8 characters")
	err = f.svc.ChangePassword(ctx, f.admin, "wrong-horse", "new-password")
	requireValidation(t, err, "Incorrect current password")

	require.NoError(t, f.svc.ChangePassword(ctx, f.admin, "correct-horse", "new-password"))

	_, err = f.svc.Login(ctx, "alice", "correct-horse")
	assert.ErrorIs(t, err, services.ErrInvalidCredentials)
	_, err = f.svc.Login(ctx, "alice", "new-password")
	assert.NoError(t, err)

	// Tokens issued before the change stay valid until they expire.
	subject, err := f.tokens.Verify(before.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, f.admin.ID, subject)
}

func TestChangePasswordEightCharacterBoundary(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, f.admin, "correct-horse", "1234567")
	requireValidation(t, err, "at least 8 characters")
	// Seven runes, more than eight bytes.
	err = f.svc.ChangePassword(ctx, f.admin, "correct-horse", "pässwör")
	requireValidation(t, err, "at least 8 characters")
	require.NoError(t, f.svc.ChangePassword(ctx, f.admin, "correct-horse", "12345678"))
}
