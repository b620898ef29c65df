package types

import (
	"encoding/json"
	"errors"
	"time"
)

// PostStatus is the publication state of a blog post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether s is a known status.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// BlogPost is an article written by an administrator.
type BlogPost struct {
	ID            string     `json:"id" db:"id"`
	Title         string     `json:"title" db:"title"`
	Slug          string     `json:"slug" db:"slug"`
	Content       string     `json:"content" db:"content"`
	Excerpt       *string    `json:"excerpt" db:"excerpt"`
	FeaturedImage *string    `json:"featured_image" db:"featured_image"`
	Status        PostStatus `json:"status" db:"status"`
	AuthorID      string     `json:"author_id" db:"author_id"`
	PublishedAt   *time.Time `json:"published_at" db:"published_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at" db:"updated_at"`
}

// BlogPostUpdate carries a partial update. Only non-nil fields are applied.
type BlogPostUpdate struct {
	Title         *string     `json:"title"`
	Content       *string     `json:"content"`
	Excerpt       *string     `json:"excerpt"`
	FeaturedImage *string     `json:"featured_image"`
	Status        *PostStatus `json:"status"`
}

// Apply merges u into p. PublishedAt is stamped with now the first time the
// post becomes published.
func (p *BlogPost) Apply(u BlogPostUpdate, now time.Time) {
	if u.Title != nil {
		p.Title = *u.Title
	}
	if u.Content != nil {
		p.Content = *u.Content
	}
	if u.Excerpt != nil {
		p.Excerpt = u.Excerpt
	}
	if u.FeaturedImage != nil {
		p.FeaturedImage = u.FeaturedImage
	}
	if u.Status != nil {
		p.Status = *u.Status
	}
	if p.Status == PostStatusPublished && p.PublishedAt == nil {
		p.PublishedAt = &now
	}
}

// UnmarshalJSON rejects unknown status values.
func (s *PostStatus) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	status := PostStatus(raw)
	if !status.Valid() {
		return errors.New("status must be draft or published")
	}
	*s = status
	return nil
}
