package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/teamtask/internal/domain"
	"github.com/yourorg/teamtask/internal/security"
	"github.com/yourorg/teamtask/internal/security/middleware"
)

// TeamMemberResponse is an employee as seen in a roster. No password
// material ever serializes.
type TeamMemberResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ManagerID string    `json:"managerId"`
	CreatedAt time.Time `json:"createdAt"`
}

// TeamHandler lists the employees supervised by the caller.
type TeamHandler struct {
	employees domain.EmployeeRepository
	authz     *security.AuthorizationService
	logger    *slog.Logger
}

// NewTeamHandler creates a new team roster handler
func NewTeamHandler(employees domain.EmployeeRepository, authz *security.AuthorizationService, logger *slog.Logger) *TeamHandler {
	return &TeamHandler{employees: employees, authz: authz, logger: logger}
}

// ServeHTTP handles GET /api/team/employees requests
func (h *TeamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	principal, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.E(domain.ErrUnauthenticated, "authentication required"))
		return
	}
	if err := h.authz.ValidatePermission(principal.Role, security.PermViewTeam); err != nil {
		writeError(w, h.logger, err)
		return
	}

	team, err := h.employees.ListByManager(r.Context(), principal.ID)
	if err != nil {
		h.logger.Error("failed to list team", slog.String("error", err.Error()))
		writeError(w, h.logger, domain.E(domain.ErrInternal, "failed to list team"))
		return
	}

	out := make([]TeamMemberResponse, 0, len(team))
	for _, e := range team {
		out = append(out, TeamMemberResponse{
			ID:        e.ID,
			Name:      e.Name,
			Email:     e.Email,
			Role:      string(e.Role),
			ManagerID: e.ManagerID,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}
