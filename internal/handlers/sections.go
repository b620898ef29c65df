package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/types"
)

// SectionHandler provides HTTP handlers for section visibility.
type SectionHandler struct {
	sectionService *services.SectionService
	logger         *slog.Logger
}

func NewSectionHandler(sectionService *services.SectionService, logger *slog.Logger) *SectionHandler {
	return &SectionHandler{sectionService: sectionService, logger: logger}
}

// SectionRouter registers section routes. GET /visibility is public.
func SectionRouter(r chi.Router, sectionService *services.SectionService, requireAdmin func(http.Handler) http.Handler, logger *slog.Logger) {
	handler := NewSectionHandler(sectionService, logger)

	r.Get("/visibility", handler.PublicVisibility)
	r.Group(func(r chi.Router) {
		r.Use(requireAdmin)
		r.Get("/visibility/admin", handler.AdminVisibility)
		r.Post("/visibility/bulk", handler.BulkUpdate)
		r.Post("/visibility/reset", handler.Reset)
		r.Put("/visibility/{sectionName}", handler.Update)
	})
}

func (h *SectionHandler) PublicVisibility(w http.ResponseWriter, r *http.Request) {
	rows, err := h.sectionService.Visibility(r.Context(), nil)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to load sections")
		return
	}
	writeJSON(w, http.StatusOK, SectionListResponse{Sections: rows})
}

func (h *SectionHandler) AdminVisibility(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	rows, err := h.sectionService.Visibility(r.Context(), &admin)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to load sections")
		return
	}
	writeJSON(w, http.StatusOK, SectionListResponse{Sections: rows})
}

// Update sets the visibility of the section named in the path.
func (h *SectionHandler) Update(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	var req SectionUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.IsVisible == nil {
		writeError(w, http.StatusBadRequest, "is_visible is required")
		return
	}
	row, err := h.sectionService.Set(r.Context(), admin, services.SectionUpdate{
		SectionName: chi.URLParam(r, "sectionName"),
		IsVisible:   *req.IsVisible,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to update section")
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (h *SectionHandler) BulkUpdate(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	var req BulkSectionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rows, err := h.sectionService.SetMany(r.Context(), admin, req.Sections)
	if err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to update sections")
		return
	}
	writeJSON(w, http.StatusOK, SectionListResponse{Sections: rows})
}

func (h *SectionHandler) Reset(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	if err := h.sectionService.Reset(r.Context(), admin); err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to reset sections")
		return
	}
	writeMessage(w, "Section visibility reset to defaults")
}

type SectionListResponse struct {
	Sections []types.SectionVisibility `json:"sections"`
}

type SectionUpdateRequest struct {
	IsVisible *bool `json:"is_visible"`
}

type BulkSectionRequest struct {
	Sections []services.SectionUpdate `json:"sections"`
}
