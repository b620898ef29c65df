package services

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/sitedesk/apiserver/types"
)

// SectionRepository defines persistence operations for section visibility.
type SectionRepository interface {
	List(ctx context.Context) ([]types.SectionVisibility, error)
	Upsert(ctx context.Context, s types.SectionVisibility) (types.SectionVisibility, error)
	InsertMissing(ctx context.Context, s types.SectionVisibility) error
}

// SectionUpdate sets the visibility of one section.
type SectionUpdate struct {
	SectionName string `json:"section_name"`
	IsVisible   bool   `json:"is_visible"`
}

func (u SectionUpdate) Validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.SectionName, validation.Required, validation.Length(1, 50)),
	)
}

// SectionService manages which sections of the public site are shown.
type SectionService struct {
	repo SectionRepository
	now  func() time.Time
}

func NewSectionService(repo SectionRepository) *SectionService {
	return &SectionService{repo: repo, now: time.Now}
}

// WithClock replaces the time source.
func (s *SectionService) WithClock(now func() time.Time) *SectionService {
	s.now = now
	return s
}

// Visibility returns every section, first creating any default section that
// has no row yet. Rows created for an admin caller record them as the
// updater.
func (s *SectionService) Visibility(ctx context.Context, admin *types.AdminUser) ([]types.SectionVisibility, error) {
	for _, name := range types.DefaultSections {
		row := types.SectionVisibility{
			ID:          uuid.NewString(),
			SectionName: name,
			IsVisible:   types.DefaultVisibility(name),
		}
		if admin != nil {
			now := s.now().UTC()
			row.UpdatedAt = &now
			row.UpdatedBy = &admin.ID
		}
		if err := s.repo.InsertMissing(ctx, row); err != nil {
			return nil, err
		}
	}
	return s.repo.List(ctx)
}

// Set changes the visibility of a section, creating it when needed.
func (s *SectionService) Set(ctx context.Context, admin types.AdminUser, u SectionUpdate) (types.SectionVisibility, error) {
	u.SectionName = strings.TrimSpace(u.SectionName)
	if err := u.Validate(); err != nil {
		return types.SectionVisibility{}, fromValidation(err)
	}
	now := s.now().UTC()
	return s.repo.Upsert(ctx, types.SectionVisibility{
		ID:          uuid.NewString(),
		SectionName: u.SectionName,
		IsVisible:   u.IsVisible,
		UpdatedAt:   &now,
		UpdatedBy:   &admin.ID,
	})
}

// SetMany applies several updates. Every update is validated before any is
// written.
func (s *SectionService) SetMany(ctx context.Context, admin types.AdminUser, updates []SectionUpdate) ([]types.SectionVisibility, error) {
	if len(updates) == 0 {
		return nil, invalid("sections must not be empty")
	}
	for i := range updates {
		updates[i].SectionName = strings.TrimSpace(updates[i].SectionName)
		if err := updates[i].Validate(); err != nil {
			return nil, fromValidation(err)
		}
	}
	out := make([]types.SectionVisibility, 0, len(updates))
	for _, u := range updates {
		row, err := s.Set(ctx, admin, u)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	return out, nil
}

// Reset restores every default section to its default visibility.
func (s *SectionService) Reset(ctx context.Context, admin types.AdminUser) error {
	for _, name := range types.DefaultSections {
		if _, err := s.Set(ctx, admin, SectionUpdate{SectionName: name, IsVisible: types.DefaultVisibility(name)}); err != nil {
			return err
		}
	}
	return nil
}
