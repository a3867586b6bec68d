package security

import (
	"log/slog"

	"github.com/yourorg/teamtask/internal/domain"
)

// Permission represents an action permission
type Permission string

const (
	PermCreateTask     Permission = "create_task"
	PermDeleteTask     Permission = "delete_task"
	PermUpdateTask     Permission = "update_task"
	PermViewTasks      Permission = "view_tasks"
	PermInviteEmployee Permission = "invite_employee"
	PermInviteManager  Permission = "invite_manager"
	PermViewTeam       Permission = "view_team"
)

// RolePermissions maps roles to their coarse permissions. Resource-level
// decisions (which task, whose team) live in TaskPolicy.
var RolePermissions = map[domain.Role][]Permission{
	domain.RoleAdmin: {
		PermCreateTask,
		PermDeleteTask,
		PermUpdateTask,
		PermViewTasks,
		PermInviteEmployee,
		PermInviteManager,
		PermViewTeam,
	},
	domain.RoleManager: {
		PermCreateTask,
		PermDeleteTask,
		PermUpdateTask,
		PermViewTasks,
		PermInviteEmployee,
		PermViewTeam,
	},
	domain.RoleEmployee: {
		PermUpdateTask,
		PermViewTasks,
	},
}

// AuthorizationService handles coarse role-based authorization checks
type AuthorizationService struct {
	logger *slog.Logger
}

// NewAuthorizationService creates a new authorization service
func NewAuthorizationService(logger *slog.Logger) *AuthorizationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthorizationService{
		logger: logger,
	}
}

// HasPermission checks if a role has a specific permission
func (as *AuthorizationService) HasPermission(role domain.Role, permission Permission) bool {
	permissions, exists := RolePermissions[role]
	if !exists {
		return false
	}
	for _, p := range permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// ValidatePermission validates that a role has a specific permission
func (as *AuthorizationService) ValidatePermission(role domain.Role, permission Permission) error {
	if !as.HasPermission(role, permission) {
		as.logger.Warn("permission denied",
			slog.String("role", string(role)),
			slog.String("permission", string(permission)),
		)
		return domain.Ef(domain.ErrForbidden, "role %s does not have permission %s", role, permission)
	}
	return nil
}
