package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/sitedesk/apiserver/internal/auth"
	"github.com/sitedesk/apiserver/types"
)

// AdminProvisioner defines the persistence operations needed to create
// administrators.
type AdminProvisioner interface {
	ExistsByUsernameOrEmail(ctx context.Context, username, email string) (bool, error)
	Create(ctx context.Context, admin types.AdminUser) (types.AdminUser, error)
}

// NewAdmin describes an administrator to create.
type NewAdmin struct {
	Username string `json:"username" yaml:"username"`
	Email    string `json:"email" yaml:"email"`
	Password string `json:"password" yaml:"password"`
	Inactive bool   `json:"inactive" yaml:"inactive"`
}

func (a NewAdmin) Validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&a.Email, validation.Required, is.Email),
		validation.Field(&a.Password, validation.Required, validation.Length(MinPasswordLength, 72)),
	)
}

// AdminService provisions administrators out-of-band (CLI).
type AdminService struct {
	admins AdminProvisioner
	hasher *auth.PasswordHasher
	logger *slog.Logger
}

func NewAdminService(admins AdminProvisioner, hasher *auth.PasswordHasher, logger *slog.Logger) *AdminService {
	return &AdminService{admins: admins, hasher: hasher, logger: logger}
}

// ErrAdminExists is returned when the username or email is already taken.
var ErrAdminExists = &ValidationError{Message: "an admin with this username or email already exists"}

// Create stores a new administrator.
func (s *AdminService) Create(ctx context.Context, in NewAdmin) (types.AdminUser, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := in.Validate(); err != nil {
		return types.AdminUser{}, fromValidation(err)
	}

	exists, err := s.admins.ExistsByUsernameOrEmail(ctx, in.Username, in.Email)
	if err != nil {
		return types.AdminUser{}, fmt.Errorf("check admin: %w", err)
	}
	if exists {
		return types.AdminUser{}, ErrAdminExists
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return types.AdminUser{}, err
	}
	admin, err := s.admins.Create(ctx, types.AdminUser{
		ID:           uuid.NewString(),
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: digest,
		IsActive:     !in.Inactive,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return types.AdminUser{}, fmt.Errorf("create admin: %w", err)
	}
	s.logger.InfoContext(ctx, "admin created", "admin_id", admin.ID, "username", admin.Username)
	return admin, nil
}

type seedFile struct {
	Admins []NewAdmin `yaml:"admins"`
}

// SeedFromFile creates every administrator listed in a YAML file that does
// not exist yet. It returns how many were created.
func (s *AdminService) SeedFromFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}
	return s.Seed(ctx, file.Admins)
}

// Seed creates each admin in order, skipping ones that already exist.
func (s *AdminService) Seed(ctx context.Context, admins []NewAdmin) (int, error) {
	created := 0
	for _, in := range admins {
		_, err := s.Create(ctx, in)
		if errors.Is(err, ErrAdminExists) {
			s.logger.InfoContext(ctx, "admin already exists, skipping", "username", in.Username)
			continue
		}
		if err != nil {
			return created, fmt.Errorf("seed admin %q: %w", in.Username, err)
		}
		created++
	}
	return created, nil
}
