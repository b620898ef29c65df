package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/types"
)

const msgNewsletterNotFound = "Newsletter not found"

// NewsletterHandler provides HTTP handlers for newsletters and subscribers.
type NewsletterHandler struct {
	newsletterService *services.NewsletterService
	logger            *slog.Logger
}

func NewNewsletterHandler(newsletterService *services.NewsletterService, logger *slog.Logger) *NewsletterHandler {
	return &NewsletterHandler{newsletterService: newsletterService, logger: logger}
}

// NewsletterRouter registers newsletter routes. publicLimit throttles the
// public subscribe endpoint and may be nil.
func NewsletterRouter(
	r chi.Router,
	newsletterService *services.NewsletterService,
	requireAdmin func(http.Handler) http.Handler,
	publicLimit func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	handler := NewNewsletterHandler(newsletterService, logger)

	r.Group(func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/newsletters", handler.ListNewsletters)
		r.Post("/newsletters", handler.CreateNewsletter)
		r.Get("/newsletters/{newsletterID}", handler.GetNewsletter)
		r.Put("/newsletters/{newsletterID}", handler.UpdateNewsletter)
		r.Delete("/newsletters/{newsletterID}", handler.DeleteNewsletter)
		r.Post("/newsletters/{newsletterID}/send", handler.SendNewsletter)
		r.Get("/subscribers", handler.ListSubscribers)
	})
	if publicLimit != nil {
		r.With(publicLimit).Post("/subscribe", handler.Subscribe)
	} else {
		r.Post("/subscribe", handler.Subscribe)
	}
}

func (h *NewsletterHandler) ListNewsletters(w http.ResponseWriter, r *http.Request) {
	page, limit, p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.newsletterService.List(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgNewsletterNotFound, "failed to list newsletters")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *NewsletterHandler) GetNewsletter(w http.ResponseWriter, r *http.Request) {
	n, err := h.newsletterService.Get(r.Context(), chi.URLParam(r, "newsletterID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgNewsletterNotFound, "failed to fetch newsletter")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NewsletterHandler) CreateNewsletter(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	var req services.NewsletterInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.newsletterService.Create(r.Context(), admin, req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgNewsletterNotFound, "failed to create newsletter")
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *NewsletterHandler) UpdateNewsletter(w http.ResponseWriter, r *http.Request) {
	var req types.NewsletterUpdate
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, err := h.newsletterService.Update(r.Context(), chi.URLParam(r, "newsletterID"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgNewsletterNotFound, "failed to update newsletter")
		return
	}
	writeJSON(w, http.StatusOK, n)
}

func (h *NewsletterHandler) DeleteNewsletter(w http.ResponseWriter, r *http.Request) {
	if err := h.newsletterService.Delete(r.Context(), chi.URLParam(r, "newsletterID")); err != nil {
		writeServiceError(w, r, h.logger, err, msgNewsletterNotFound, "failed to delete newsletter")
		return
	}
	writeMessage(w, "Newsletter deleted successfully")
}

// SendNewsletter queues a newsletter for delivery.
func (h *NewsletterHandler) SendNewsletter(w http.ResponseWriter, r *http.Request) {
	var req services.SendRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	n, recipients, err := h.newsletterService.Send(r.Context(), chi.URLParam(r, "newsletterID"), req)
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgNewsletterNotFound, "failed to send newsletter")
		return
	}
	writeJSON(w, http.StatusOK, SendResponse{
		Message:      "Newsletter sent successfully",
		NewsletterID: n.ID,
		SentAt:       n.SentAt,
		Recipients:   recipients,
	})
}

func (h *NewsletterHandler) ListSubscribers(w http.ResponseWriter, r *http.Request) {
	page, limit, p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.newsletterService.ListSubscribers(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to list subscribers")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

// Subscribe adds an address to the mailing list.
func (h *NewsletterHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sub, err := h.newsletterService.Subscribe(r.Context(), req.Email)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to subscribe")
		return
	}
	writeJSON(w, http.StatusOK, SubscribeResponse{
		Message: "Successfully subscribed to newsletter",
		Email:   sub.Email,
	})
}

type SendResponse struct {
	Message      string     `json:"message"`
	NewsletterID string     `json:"newsletter_id"`
	SentAt       *time.Time `json:"sent_at"`
	Recipients   int        `json:"recipients"`
}

type SubscribeRequest struct {
	Email string `json:"email"`
}

type SubscribeResponse struct {
	Message string `json:"message"`
	Email   string `json:"email"`
}
