package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/sitedesk/apiserver/internal/auth"
	"github.com/sitedesk/apiserver/internal/store"
	"github.com/sitedesk/apiserver/types"
)

// MinPasswordLength is the shortest password accepted for an administrator.
const MinPasswordLength = 8

// AdminRepository defines persistence operations for administrators.
type AdminRepository interface {
	GetByID(ctx context.Context, id string) (types.AdminUser, error)
	GetByUsername(ctx context.Context, username string) (types.AdminUser, error)
	Update(ctx context.Context, id string, u types.AdminUpdate) error
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
}

type loginInput struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (in loginInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Username, validation.Required),
		validation.Field(&in.Password, validation.Required),
	)
}

type passwordChange struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (in passwordChange) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.CurrentPassword, validation.Required),
		validation.Field(&in.NewPassword, validation.Required),
	)
}

// AuthService implements login and password changes.
type AuthService struct {
	admins AdminRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenCodec
	logger *slog.Logger
	now    func() time.Time
}

func NewAuthService(admins AdminRepository, hasher *auth.PasswordHasher, tokens *auth.TokenCodec, logger *slog.Logger) *AuthService {
	return &AuthService{
		admins: admins,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock replaces the time source.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Login verifies credentials and issues an access token. The active flag is
// only consulted once the password has verified, so a disabled account does
// not reveal itself to someone without its password.
func (s *AuthService) Login(ctx context.Context, username, password string) (LoginResult, error) {
	username = strings.TrimSpace(username)
	if err := (loginInput{Username: username, Password: password}).Validate(); err != nil {
		return LoginResult{}, invalid("Username and password are required")
	}

	admin, err := s.admins.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.hasher.VerifyNothing(password)
			return LoginResult{}, ErrInvalidCredentials
		}
		return LoginResult{}, fmt.Errorf("load admin: %w", err)
	}
	if !s.hasher.Verify(password, admin.PasswordHash) {
		return LoginResult{}, ErrInvalidCredentials
	}
	if !admin.IsActive {
		return LoginResult{}, auth.ErrInactiveUser
	}

	now := s.now().UTC()
	if err := s.admins.Update(ctx, admin.ID, types.AdminUpdate{LastLogin: &now}); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login", "admin_id", admin.ID, "error", err)
	}

	token, err := s.tokens.Issue(admin.ID, s.tokens.TTL())
	if err != nil {
		return LoginResult{}, fmt.Errorf("issue token: %w", err)
	}

	s.logger.InfoContext(ctx, "admin logged in", "admin_id", admin.ID)
	return LoginResult{
		AccessToken: token,
		TokenType:   "bearer",
		UserID:      admin.ID,
		Username:    admin.Username,
		Email:       admin.Email,
	}, nil
}

// ChangePassword replaces the password of admin. Tokens issued before the
// change remain valid until they expire.
func (s *AuthService) ChangePassword(ctx context.Context, admin types.AdminUser, current, next string) error {
	if err := (passwordChange{CurrentPassword: current, NewPassword: next}).Validate(); err != nil {
		return invalid("Current password and new password are required")
	}
	if err := validation.Validate(next, validation.RuneLength(MinPasswordLength, 0)); err != nil {
		return invalid("New password must be at least %d characters long", MinPasswordLength)
	}
	if !s.hasher.Verify(current, admin.PasswordHash) {
		return invalid("Incorrect current password")
	}

	digest, err := s.hasher.Hash(next)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordTooLong) {
			return invalid("New password is too long")
		}
		return err
	}
	if err := s.admins.Update(ctx, admin.ID, types.AdminUpdate{PasswordHash: &digest}); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	s.logger.InfoContext(ctx, "admin password changed", "admin_id", admin.ID)
	return nil
}
