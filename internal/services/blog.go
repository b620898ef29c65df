package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"

	"github.com/sitedesk/apiserver/internal/store"
	"github.com/sitedesk/apiserver/types"
)

// BlogRepository defines persistence operations for blog posts.
type BlogRepository interface {
	List(ctx context.Context, filter store.BlogFilter, page store.Page) ([]types.BlogPost, int, error)
	GetByID(ctx context.Context, id string) (types.BlogPost, error)
	GetBySlug(ctx context.Context, slug string) (types.BlogPost, error)
	Create(ctx context.Context, post types.BlogPost) (types.BlogPost, error)
	Update(ctx context.Context, post types.BlogPost) (types.BlogPost, error)
	Delete(ctx context.Context, id string) error
}

var errSlugTaken = &ValidationError{Message: "A blog post with this slug already exists"}

// BlogPostInput is the payload for creating a post.
type BlogPostInput struct {
	Title         string           `json:"title"`
	Content       string           `json:"content"`
	Excerpt       *string          `json:"excerpt"`
	FeaturedImage *string          `json:"featured_image"`
	Status        types.PostStatus `json:"status"`
}

func (in BlogPostInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Title, validation.Required, validation.Length(1, 255)),
		validation.Field(&in.Content, validation.Required),
		validation.Field(&in.FeaturedImage, validation.Length(0, 255)),
		validation.Field(&in.Status, validation.In(types.PostStatusDraft, types.PostStatusPublished)),
	)
}

func validateBlogUpdate(u types.BlogPostUpdate) error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.Title, validation.NilOrNotEmpty, validation.Length(1, 255)),
		validation.Field(&u.Content, validation.NilOrNotEmpty),
		validation.Field(&u.FeaturedImage, validation.Length(0, 255)),
	)
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9-]`)

// Slugify derives the URL slug of a title: lower-cased, spaces and
// underscores become hyphens, anything else outside [a-z0-9-] is dropped.
func Slugify(title string) string {
	slug := strings.ToLower(title)
	slug = strings.NewReplacer(" ", "-", "_", "-").Replace(slug)
	return slugUnsafe.ReplaceAllString(slug, "")
}

// BlogService encapsulates blog use-cases.
type BlogService struct {
	repo BlogRepository
	now  func() time.Time
}

func NewBlogService(repo BlogRepository) *BlogService {
	return &BlogService{repo: repo, now: time.Now}
}

// WithClock replaces the time source.
func (s *BlogService) WithClock(now func() time.Time) *BlogService {
	s.now = now
	return s
}

func (s *BlogService) List(ctx context.Context, page store.Page) ([]types.BlogPost, int, error) {
	return s.repo.List(ctx, store.BlogFilter{}, page)
}

func (s *BlogService) Get(ctx context.Context, id string) (types.BlogPost, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *BlogService) Create(ctx context.Context, author types.AdminUser, in BlogPostInput) (types.BlogPost, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := in.Validate(); err != nil {
		return types.BlogPost{}, fromValidation(err)
	}
	if in.Status == "" {
		in.Status = types.PostStatusDraft
	}

	slug := Slugify(in.Title)
	if slug == "" {
		return types.BlogPost{}, invalid("Title must contain at least one letter or digit")
	}
	if _, err := s.repo.GetBySlug(ctx, slug); err == nil {
		return types.BlogPost{}, errSlugTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return types.BlogPost{}, err
	}

	now := s.now().UTC()
	post := types.BlogPost{
		ID:            uuid.NewString(),
		Title:         in.Title,
		Slug:          slug,
		Content:       in.Content,
		Excerpt:       in.Excerpt,
		FeaturedImage: in.FeaturedImage,
		Status:        in.Status,
		AuthorID:      author.ID,
		CreatedAt:     now,
	}
	if post.Status == types.PostStatusPublished {
		post.PublishedAt = &now
	}

	created, err := s.repo.Create(ctx, post)
	if errors.Is(err, store.ErrConflict) {
		return types.BlogPost{}, errSlugTaken
	}
	return created, err
}

// Update merges u into the stored post. The slug never changes after creation.
func (s *BlogService) Update(ctx context.Context, id string, u types.BlogPostUpdate) (types.BlogPost, error) {
	if err := validateBlogUpdate(u); err != nil {
		return types.BlogPost{}, fromValidation(err)
	}
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.BlogPost{}, err
	}
	now := s.now().UTC()
	post.Apply(u, now)
	post.UpdatedAt = &now
	return s.repo.Update(ctx, post)
}

func (s *BlogService) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// TogglePublish flips a post between draft and published.
func (s *BlogService) TogglePublish(ctx context.Context, id string) (types.BlogPost, error) {
	post, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return types.BlogPost{}, err
	}
	next := types.PostStatusPublished
	if post.Status == types.PostStatusPublished {
		next = types.PostStatusDraft
	}
	now := s.now().UTC()
	post.Apply(types.BlogPostUpdate{Status: &next}, now)
	post.UpdatedAt = &now
	return s.repo.Update(ctx, post)
}

// ListPublished returns published posts, newest first.
func (s *BlogService) ListPublished(ctx context.Context, page store.Page) ([]types.BlogPost, int, error) {
	published := types.PostStatusPublished
	return s.repo.List(ctx, store.BlogFilter{Status: &published}, page)
}

// GetPublished returns a published post by slug. Drafts are reported as not
// found.
func (s *BlogService) GetPublished(ctx context.Context, slug string) (types.BlogPost, error) {
	post, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return types.BlogPost{}, err
	}
	if post.Status != types.PostStatusPublished {
		return types.BlogPost{}, store.ErrNotFound
	}
	return post, nil
}
