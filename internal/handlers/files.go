package handlers

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/types"
)

const (
	msgFileNotFound       = "File not found"
	formFieldFile         = "file"
	formFieldDescription  = "description"
	multipartMemory       = 8 << 20
	multipartFormOverhead = 1 << 20
)

// FileHandler provides HTTP handlers for uploaded files.
type FileHandler struct {
	fileService    *services.FileService
	maxUploadBytes int64
	logger         *slog.Logger
}

func NewFileHandler(fileService *services.FileService, maxUploadBytes int64, logger *slog.Logger) *FileHandler {
	return &FileHandler{fileService: fileService, maxUploadBytes: maxUploadBytes, logger: logger}
}

// FileRouter registers the admin file routes.
func FileRouter(r chi.Router, handler *FileHandler, requireAdmin func(http.Handler) http.Handler) {
	r.Use(requireAdmin)
	r.Post("/upload", handler.Upload)
	r.Get("/files", handler.ListFiles)
	r.Route("/files/{fileID}", func(r chi.Router) {
		r.Get("/", handler.GetFile)
		r.Put("/", handler.UpdateFile)
		r.Delete("/", handler.DeleteFile)
		r.Get("/download", handler.Download)
	})
}

// UploadsRouter serves stored objects publicly by key.
func UploadsRouter(r chi.Router, handler *FileHandler) {
	r.Get("/{key}", handler.ServeUpload)
}

// Upload accepts a multipart form with a "file" part and an optional
// "description" field.
func (h *FileHandler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+multipartFormOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "uploaded file too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	files := r.MultipartForm.File[formFieldFile]
	if len(files) == 0 {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	if len(files) > 1 {
		writeError(w, http.StatusBadRequest, "only one file is allowed")
		return
	}

	header := files[0]
	file, err := header.Open()
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read upload")
		return
	}
	data, err := readFileLimited(file, h.maxUploadBytes)
	_ = file.Close()
	if err != nil {
		status := http.StatusBadRequest
		if strings.Contains(err.Error(), "too large") {
			status = http.StatusRequestEntityTooLarge
		}
		writeError(w, status, err.Error())
		return
	}

	var description *string
	if values, ok := r.MultipartForm.Value[formFieldDescription]; ok && len(values) > 0 {
		description = &values[0]
	}

	uploaded, err := h.fileService.Upload(r.Context(), services.Upload{
		OriginalFilename: header.Filename,
		Data:             data,
		Description:      description,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgFileNotFound, "failed to save file")
		return
	}
	writeJSON(w, http.StatusCreated, uploaded)
}

func (h *FileHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	page, limit, p, err := parsePagination(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	items, total, err := h.fileService.List(r.Context(), p)
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgFileNotFound, "failed to list files")
		return
	}
	writeJSON(w, http.StatusOK, newListResponse(items, page, limit, total))
}

func (h *FileHandler) GetFile(w http.ResponseWriter, r *http.Request) {
	f, err := h.fileService.Get(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgFileNotFound, "failed to fetch file")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// UpdateFile replaces the description of a file. A null description clears
// it.
func (h *FileHandler) UpdateFile(w http.ResponseWriter, r *http.Request) {
	var req FileUpdateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	f, err := h.fileService.UpdateDescription(r.Context(), chi.URLParam(r, "fileID"), req.Description)
	if err != nil {
		writeServiceError(w, r, h.logger, err, msgFileNotFound, "failed to update file")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (h *FileHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	if err := h.fileService.Delete(r.Context(), chi.URLParam(r, "fileID")); err != nil {
		writeServiceError(w, r, h.logger, err, msgFileNotFound, "failed to delete file")
		return
	}
	writeMessage(w, "File deleted successfully")
}

// Download streams a file as an attachment under its original name.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	f, rc, err := h.fileService.Open(r.Context(), chi.URLParam(r, "fileID"))
	if err != nil {
		h.writeOpenError(w, r, err)
		return
	}
	defer rc.Close()
	h.stream(w, r, f, rc, "attachment")
}

// ServeUpload streams a stored object inline, e.g. a featured image.
func (h *FileHandler) ServeUpload(w http.ResponseWriter, r *http.Request) {
	f, rc, err := h.fileService.OpenByKey(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeOpenError(w, r, err)
		return
	}
	defer rc.Close()
	h.stream(w, r, f, rc, "inline")
}

func (h *FileHandler) writeOpenError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, services.ErrObjectMissing) {
		writeError(w, http.StatusNotFound, "File not found on disk")
		return
	}
	writeServiceError(w, r, h.logger, err, msgFileNotFound, "failed to open file")
}

func (h *FileHandler) stream(w http.ResponseWriter, r *http.Request, f types.File, body io.Reader, disposition string) {
	w.Header().Set("Content-Type", f.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(f.FileSize, 10))
	contentDisposition := mime.FormatMediaType(disposition, map[string]string{"filename": f.OriginalFilename})
	if contentDisposition == "" {
		contentDisposition = disposition
	}
	w.Header().Set("Content-Disposition", contentDisposition)
	w.Header().Set("Last-Modified", f.UploadedAt.UTC().Format(http.TimeFormat))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger.WarnContext(r.Context(), "file stream interrupted", "file_id", f.ID, "error", err)
	}
}

type FileUpdateRequest struct {
	Description *string `json:"description"`
}

