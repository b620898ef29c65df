package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/types"
)

const msgMessageNotFound = "Contact message not found"

// ContactHandler provides HTTP handlers for the contact form and inbox.
type ContactHandler struct {
	contactService *services.ContactService
	logger         *slog.Logger
}

func NewContactHandler(contactService *services.ContactService, logger *slog.Logger) *ContactHandler {
	return &ContactHandler{contactService: contactService, logger: logger}
}

// ContactRouter registers contact routes. publicLimit throttles the public
// submit endpoint and may be nil.
func ContactRouter(
	r chi.Router,
	contactService *services.ContactService,
	requireAdmin func(http.Handler) http.Handler,
	publicLimit func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	handler := NewContactHandler(contactService, logger)

	if publicLimit != nil {
		r.With(publicLimit).Post("/submit", handler.Submit)
	} else {
		r.Post("/submit", handler.Submit)
	}
	r.Route("/messages", func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/", handler.ListMessages)
		r.Post("/bulk-mark-read", handler.BulkMarkRead)
		r.Route("/{messageID}", func(r chi.Router) {
			r.Get("/", handler.GetMessage)
			r.Put("/", handler.UpdateMessage)
			r.Delete("/", handler.DeleteMessage)
			r.Post("/mark-read", handler.MarkRead)
		})
	})
}

// Submit stores a message from the public contact form.
func (h *ContactHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req services.ContactInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	msg, err := h.contactService.Submit(r.Context(), req, services.ClientInfo{
		IP:        clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to submit message")
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *ContactHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	page, limit, p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	result, err := h.contactService.List(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, ContactListResponse{
		ListResponse: newListResponse(result.Items, page, limit, result.Total),
		UnreadCount:  result.UnreadCount,
	})
}

func (h *ContactHandler) GetMessage(w http.ResponseWriter, r *http.Request) {
	msg, err := h.contactService.Get(r.Context(), chi.URLParam(r, "messageID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgMessageNotFound, "failed to fetch message")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

// UpdateMessage sets the read flag of a message.
func (h *ContactHandler) UpdateMessage(w http.ResponseWriter, r *http.Request) {
	var req ContactUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsRead == nil {
		writeError(w, http.StatusBadRequest, "is_read is required")
		return
	}
	msg, err := h.contactService.SetRead(r.Context(), chi.URLParam(r, "messageID"), *req.IsRead)
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgMessageNotFound, "failed to update message")
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *ContactHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := h.contactService.Delete(r.Context(), chi.URLParam(r, "messageID")); err != nil {
		writeServiceError(w, r, h.logger, err, msgMessageNotFound, "failed to delete message")
		return
	}
	writeMessage(w, "Contact message deleted successfully")
}

func (h *ContactHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.contactService.MarkRead(r.Context(), chi.URLParam(r, "messageID")); err != nil {
		writeServiceError(w, r, h.logger, err, msgMessageNotFound, "failed to update message")
		return
	}
	writeMessage(w, "Message marked as read")
}

// BulkMarkRead accepts a JSON array of message ids.
func (h *ContactHandler) BulkMarkRead(w http.ResponseWriter, r *http.Request) {
	var ids []string
	if err := decodeJSON(w, r, &ids); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	count, err := h.contactService.BulkMarkRead(r.Context(), ids)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to update messages")
		return
	}
	writeJSON(w, http.StatusOK, BulkMarkReadResponse{
		Message: fmt.Sprintf("Marked %d messages as read", count),
		Count:   count,
	})
}

type ContactListResponse struct {
	ListResponse[types.ContactMessage]
	UnreadCount int `json:"unread_count"`
}

type ContactUpdateRequest struct {
	IsRead *bool `json:"is_read"`
}

type BulkMarkReadResponse struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}
