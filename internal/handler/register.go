package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/teamtask/internal/service"
)

// VerifyResponse exposes the invitation details the registration form needs.
// The token itself and the used flag never round-trip.
type VerifyResponse struct {
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Role   string    `json:"role"`
	Expiry time.Time `json:"expiry"`
}

// VerifyHandler checks an invitation token ahead of registration.
type VerifyHandler struct {
	invitationService *service.InvitationService
	logger            *slog.Logger
}

// NewVerifyHandler creates a new verification handler
func NewVerifyHandler(invitationService *service.InvitationService, logger *slog.Logger) *VerifyHandler {
	return &VerifyHandler{invitationService: invitationService, logger: logger}
}

// ServeHTTP handles GET /api/invitations/verify?token=... requests
func (h *VerifyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	verified, err := h.invitationService.Verify(r.Context(), r.URL.Query().Get("token"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusOK, VerifyResponse{
		Email:  verified.Email,
		Name:   verified.Name,
		Role:   string(verified.Role),
		Expiry: verified.Expiry,
	})
}

// RegisterRequest redeems an invitation into an account.
type RegisterRequest struct {
	Token    string `json:"token"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterResponse is the newly minted employee. No password material.
type RegisterResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	ManagerID string `json:"managerId"`
}

// RegisterHandler consumes an invitation and creates the employee account.
type RegisterHandler struct {
	invitationService *service.InvitationService
	logger            *slog.Logger
}

// NewRegisterHandler creates a new registration handler
func NewRegisterHandler(invitationService *service.InvitationService, logger *slog.Logger) *RegisterHandler {
	return &RegisterHandler{invitationService: invitationService, logger: logger}
}

// ServeHTTP handles POST /api/register requests
func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req RegisterRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	employee, err := h.invitationService.Consume(r.Context(), req.Token, service.RegistrationData{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, RegisterResponse{
		ID:        employee.ID,
		Name:      employee.Name,
		Email:     employee.Email,
		Role:      string(employee.Role),
		ManagerID: employee.ManagerID,
	})
}
