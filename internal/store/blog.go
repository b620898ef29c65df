package store

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/sitedesk/apiserver/types"
)

const blogColumns = `id, title, slug, content, excerpt, featured_image, status, author_id, published_at, created_at, updated_at`

// BlogFilter narrows a post listing.
type BlogFilter struct {
	Status *types.PostStatus
}

// BlogRepository handles persistence for blog posts.
type BlogRepository struct {
	db *sqlx.DB
}

func NewBlogRepository(db *sqlx.DB) *BlogRepository {
	return &BlogRepository{db: db}
}

func (r *BlogRepository) List(ctx context.Context, filter BlogFilter, page Page) ([]types.BlogPost, int, error) {
	where := ``
	var args []any
	if filter.Status != nil {
		where = ` WHERE status = ?`
		args = append(args, string(*filter.Status))
	}

	var total int
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(`SELECT COUNT(*) FROM blog_posts`+where), args...); err != nil {
		return nil, 0, err
	}

	order := ` ORDER BY created_at DESC, id`
	if filter.Status != nil && *filter.Status == types.PostStatusPublished {
		order = ` ORDER BY published_at DESC, id`
	}
	query := r.db.Rebind(`SELECT ` + blogColumns + ` FROM blog_posts` + where + order + ` LIMIT ? OFFSET ?`)
	posts := []types.BlogPost{}
	if err := r.db.SelectContext(ctx, &posts, query, append(args, page.Limit, page.Offset)...); err != nil {
		return nil, 0, err
	}
	return posts, total, nil
}

func (r *BlogRepository) GetByID(ctx context.Context, id string) (types.BlogPost, error) {
	var post types.BlogPost
	query := r.db.Rebind(`SELECT ` + blogColumns + ` FROM blog_posts WHERE id = ?`)
	if err := r.db.GetContext(ctx, &post, query, id); err != nil {
		return types.BlogPost{}, translate(err)
	}
	return post, nil
}

func (r *BlogRepository) GetBySlug(ctx context.Context, slug string) (types.BlogPost, error) {
	var post types.BlogPost
	query := r.db.Rebind(`SELECT ` + blogColumns + ` FROM blog_posts WHERE slug = ?`)
	if err := r.db.GetContext(ctx, &post, query, slug); err != nil {
		return types.BlogPost{}, translate(err)
	}
	return post, nil
}

func (r *BlogRepository) Create(ctx context.Context, post types.BlogPost) (types.BlogPost, error) {
	const query = `
		INSERT INTO blog_posts (id, title, slug, content, excerpt, featured_image, status, author_id, published_at, created_at, updated_at)
		VALUES (:id, :title, :slug, :content, :excerpt, :featured_image, :status, :author_id, :published_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, post); err != nil {
		return types.BlogPost{}, translate(err)
	}
	return post, nil
}

// Update writes every mutable column of post.
func (r *BlogRepository) Update(ctx context.Context, post types.BlogPost) (types.BlogPost, error) {
	const query = `
		UPDATE blog_posts
		SET title = :title,
			slug = :slug,
			content = :content,
			excerpt = :excerpt,
			featured_image = :featured_image,
			status = :status,
			published_at = :published_at,
			updated_at = :updated_at
		WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, post)
	if err != nil {
		return types.BlogPost{}, translate(err)
	}
	if err := expectOne(result); err != nil {
		return types.BlogPost{}, err
	}
	return post, nil
}

func (r *BlogRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, r.db.Rebind(`DELETE FROM blog_posts WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return expectOne(result)
}
