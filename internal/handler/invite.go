package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/teamtask/internal/domain"
	"github.com/yourorg/teamtask/internal/security"
	"github.com/yourorg/teamtask/internal/security/middleware"
	"github.com/yourorg/teamtask/internal/service"
)

// InviteRequest represents an invitation issuance request.
type InviteRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// InviteResponse acknowledges a stored invitation. Warning is set when the
// email could not be delivered; the token is still redeemable.
type InviteResponse struct {
	Message string    `json:"message"`
	Expiry  time.Time `json:"expiry"`
	Warning string    `json:"warning,omitempty"`
}

// InviteHandler issues employee invitations (POST /api/team/invitations) and
// manager invitations (POST /api/team/invitations/manager).
type InviteHandler struct {
	invitationService *service.InvitationService
	employees         domain.EmployeeRepository
	authz             *security.AuthorizationService
	logger            *slog.Logger
	manager           bool
}

// NewInviteHandler creates an employee invitation handler
func NewInviteHandler(invitationService *service.InvitationService, employees domain.EmployeeRepository, authz *security.AuthorizationService, logger *slog.Logger) *InviteHandler {
	return &InviteHandler{
		invitationService: invitationService,
		employees:         employees,
		authz:             authz,
		logger:            logger,
	}
}

// NewManagerInviteHandler creates a manager invitation handler; only admins
// pass its permission check.
func NewManagerInviteHandler(invitationService *service.InvitationService, employees domain.EmployeeRepository, authz *security.AuthorizationService, logger *slog.Logger) *InviteHandler {
	h := NewInviteHandler(invitationService, employees, authz, logger)
	h.manager = true
	return h
}

// ServeHTTP handles invitation issuance requests
func (h *InviteHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.E(domain.ErrUnauthenticated, "authentication required"))
		return
	}

	permission := security.PermInviteEmployee
	role := domain.RoleEmployee
	if h.manager {
		permission = security.PermInviteManager
		role = domain.RoleManager
	}
	if err := h.authz.ValidatePermission(principal.Role, permission); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req InviteRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	input := service.IssueInput{
		Email: req.Email,
		Name:  req.Name,
		Role:  role,
	}
	// Resolve the anchors from the issuer: the account root always rides
	// along; for employee invitations the issuing manager (or the admin's
	// own record) becomes the supervisor.
	issuer, err := h.employees.GetByID(r.Context(), principal.ID)
	if err != nil {
		writeError(w, h.logger, domain.E(domain.ErrNotFound, "issuer profile not found"))
		return
	}
	input.UserID = issuer.UserID
	if input.UserID == "" {
		input.UserID = issuer.ID
	}
	if role == domain.RoleEmployee {
		input.ManagerID = issuer.ID
	}

	result, err := h.invitationService.Issue(r.Context(), input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, InviteResponse{
		Message: "invitation sent",
		Expiry:  result.Expiry,
		Warning: result.Warning,
	})
}
