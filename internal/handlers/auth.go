package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sitedesk/apiserver/internal/auth"
	"github.com/sitedesk/apiserver/internal/services"
	"github.com/sitedesk/apiserver/types"
)

const (
	msgCouldNotValidate = "Could not validate credentials"
	msgIncorrectLogin   = "Incorrect username or password"
	msgInactiveUser     = "Inactive user"
)

// AuthHandler provides login and account endpoints.
type AuthHandler struct {
	authService *services.AuthService
	logger      *slog.Logger
}

// NewAuthHandler constructs an AuthHandler with the provided dependencies.
func NewAuthHandler(authService *services.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, logger: logger}
}

// AuthRouter registers auth routes on the given router. loginLimit throttles
// the login endpoint and may be nil.
func AuthRouter(
	r chi.Router,
	authService *services.AuthService,
	requireAdmin func(http.Handler) http.Handler,
	loginLimit func(http.Handler) http.Handler,
	logger *slog.Logger,
) {
	handler := NewAuthHandler(authService, logger)

	if loginLimit != nil {
		r.With(loginLimit).Post("/login", handler.Login)
	} else {
		r.Post("/login", handler.Login)
	}
	r.With(requireAdmin).Get("/me", handler.Me)
	r.With(requireAdmin).Put("/password", handler.ChangePassword)
}

// RequireAdmin resolves the bearer token to an active administrator and
// places it on the request context.
func RequireAdmin(guard *auth.Guard, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			admin, err := guard.Resolve(r.Context(), r.Header.Get("Authorization"))
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(auth.WithAdmin(r.Context(), admin)))
			case errors.Is(err, auth.ErrUnauthenticated):
				writeUnauthorized(w, msgCouldNotValidate)
			case errors.Is(err, auth.ErrInactiveUser):
				writeError(w, http.StatusBadRequest, msgInactiveUser)
			default:
				logger.ErrorContext(r.Context(), "failed to resolve identity", "error", err)
				writeError(w, http.StatusInternalServerError, "failed to authenticate")
			}
		})
	}
}

// currentAdmin returns the identity placed on the context by RequireAdmin.
// Routes without the middleware get a 401.
func currentAdmin(w http.ResponseWriter, r *http.Request) (types.AdminUser, bool) {
	admin, ok := auth.AdminFromContext(r.Context())
	if !ok {
		writeUnauthorized(w, msgCouldNotValidate)
	}
	return admin, ok
}

// Login verifies credentials and returns an access token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.authService.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidCredentials):
			writeUnauthorized(w, msgIncorrectLogin)
		case errors.Is(err, auth.ErrInactiveUser):
			writeError(w, http.StatusBadRequest, msgInactiveUser)
		default:
			writeServiceError(w, r, h.logger, err, "", "failed to authenticate")
		}
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Me returns the current authenticated administrator.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, admin)
}

// ChangePassword replaces the password of the current administrator.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	admin, ok := currentAdmin(w, r)
	if !ok {
		return
	}

	var req PasswordChangeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.authService.ChangePassword(r.Context(), admin, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, h.logger, err, "", "failed to update password")
		return
	}
	writeMessage(w, "Password updated successfully")
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type PasswordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}
