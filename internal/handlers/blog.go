package handlers

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/types"
)

const msgPostNotFound = "Blog post not found"

// BlogHandler provides HTTP handlers for blog posts.
type BlogHandler struct {
	blogService *services.BlogService
	logger      *slog.Logger
}

func NewBlogHandler(blogService *services.BlogService, logger *slog.Logger) *BlogHandler {
	return &BlogHandler{blogService: blogService, logger: logger}
}

// BlogRouter registers blog routes. Everything under /posts is admin-only;
// /public serves published posts to anyone.
func BlogRouter(r chi.Router, blogService *services.BlogService, requireAdmin func(http.Handler) http.Handler, logger *slog.Logger) {
	handler := NewBlogHandler(blogService, logger)

	r.Route("/posts", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/", handler.ListPosts)
		r.Post("/", handler.CreatePost)
		r.Route("/{postID}", func(r chi.Router) {
			r.Get("/", handler.GetPost)
			r.Put("/", handler.UpdatePost)
			r.Delete("/", handler.DeletePost)
			r.Patch("/publish", handler.TogglePublish)
		})
	})
	r.Get("/public/posts", handler.ListPublished)
	r.Get("/public/posts/{slug}", handler.GetPublished)
}

func (h *BlogHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	page, limit, p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.blogService.List(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgPostNotFound, "failed to list blog posts")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *BlogHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	post, err := h.blogService.Get(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgPostNotFound, "failed to fetch blog post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *BlogHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	var req services.BlogPostInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	post, err := h.blogService.Create(r.Context(), admin, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgPostNotFound, "failed to create blog post")
		return
	}
	writeJSON(w, http.StatusCreated, post)
}

func (h *BlogHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	var req types.BlogPostUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	post, err := h.blogService.Update(r.Context(), chi.URLParam(r, "postID"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgPostNotFound, "failed to update blog post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

func (h *BlogHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.blogService.Delete(r.Context(), chi.URLParam(r, "postID")); err != nil {
		writeServiceError(w, r, h.logger, err, msgPostNotFound, "failed to delete blog post")
		return
	}
	writeMessage(w, "Blog post deleted successfully")
}

// TogglePublish flips a post between draft and published.
func (h *BlogHandler) TogglePublish(w http.ResponseWriter, r *http.Request) {
	post, err := h.blogService.TogglePublish(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgPostNotFound, "failed to update blog post")
		return
	}
	verb := "unpublished"
	if post.Status == types.PostStatusPublished {
		verb = "published"
	}
	writeJSON(w, http.StatusOK, PublishResponse{
		Message: "Blog post " + verb + " successfully",
		Status:  post.Status,
	})
}

func (h *BlogHandler) ListPublished(w http.ResponseWriter, r *http.Request) {
	page, limit, p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.blogService.ListPublished(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgPostNotFound, "failed to list blog posts")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *BlogHandler) GetPublished(w http.ResponseWriter, r *http.Request) {
	post, err := h.blogService.GetPublished(r.Context(), strings.ToLower(chi.URLParam(r, "slug")))
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgPostNotFound, "failed to fetch blog post")
		return
	}
	writeJSON(w, http.StatusOK, post)
}

type PublishResponse struct {
	Message string           `json:"message"`
	Status  types.PostStatus `json:"status"`
}
