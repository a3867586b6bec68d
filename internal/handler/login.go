package handler

import (
	"log/slog"
	"net/http"

	"github.com/yourorg/teamtask/internal/domain"
	"github.com/yourorg/teamtask/internal/security/middleware"
	"github.com/yourorg/teamtask/internal/service"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginHandler handles employee authentication
type LoginHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(authService *service.AuthService, logger *slog.Logger) *LoginHandler {
	return &LoginHandler{authService: authService, logger: logger}
}

// ServeHTTP handles POST /api/login requests
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	result, err := h.authService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, result)
}

// ChangePasswordRequest rotates the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// ChangePasswordHandler lets an authenticated employee rotate their password.
type ChangePasswordHandler struct {
	authService *service.AuthService
	logger      *slog.Logger
}

// NewChangePasswordHandler creates a new password change handler
func NewChangePasswordHandler(authService *service.AuthService, logger *slog.Logger) *ChangePasswordHandler {
	return &ChangePasswordHandler{authService: authService, logger: logger}
}

// ServeHTTP handles POST /api/auth/password requests
func (h *ChangePasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.E(domain.ErrUnauthenticated, "authentication required"))
		return
	}

	var req ChangePasswordRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	if err := h.authService.ChangePassword(r.Context(), principal.ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]string{"message": "password changed"})
}
