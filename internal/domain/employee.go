package domain

import (
	"context"
	"strings"
	"time"
)

// Role is the canonical set of principal roles. Stored and compared in
// lowercase; ParseRole normalizes whatever casing arrives at a boundary.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// ParseRole normalizes a role tag from a JWT claim, request body, or stored
// row. Unknown tags are rejected rather than defaulted.
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleManager:
		return RoleManager, true
	case RoleEmployee:
		return RoleEmployee, true
	}
	return "", false
}

// Principal is the authenticated caller resolved per request by the identity
// provider. It is never persisted.
type Principal struct {
	ID    string
	Role  Role
	Email string
	Name  string
}

// Employee is a team member account. ManagerID is the single supervision
// edge: it identifies the employee record of the supervising manager (a
// manager's anchor record points at itself). UserID identifies the owning
// account root (the Admin that the org hangs off) and is never consulted for
// authorization decisions.
type Employee struct {
	ID           string
	Name         string
	Email        string // unique across all employees
	PasswordHash string // bcrypt, never serialized in responses
	Role         Role
	UserID       string
	ManagerID    string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// EmployeeRepository defines data access for employees.
type EmployeeRepository interface {
	Create(ctx context.Context, employee *Employee) error
	GetByID(ctx context.Context, id string) (*Employee, error)
	GetByEmail(ctx context.Context, email string) (*Employee, error)
	Update(ctx context.Context, employee *Employee) error
	// ListByManager returns the employees directly supervised by managerID,
	// newest first.
	ListByManager(ctx context.Context, managerID string) ([]*Employee, error)
	// CountSupervised returns how many of the given employee IDs resolve to
	// employees supervised by managerID. Callers compare the count against
	// len(ids) to detect partial overlap.
	CountSupervised(ctx context.Context, managerID string, ids []string) (int, error)
	// CountExisting returns the subset of ids that resolve to existing
	// employees.
	CountExisting(ctx context.Context, ids []string) ([]string, error)
}
