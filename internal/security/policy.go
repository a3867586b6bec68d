package security

import (
	"context"
	"log/slog"

	"github.com/yourorg/teamtask/internal/domain"
)

// TaskPolicy makes resource-level task access decisions. Team membership is
// resolved through the employee repository; the decisions themselves have no
// side effects.
type TaskPolicy struct {
	employees domain.EmployeeRepository
	logger    *slog.Logger
}

// NewTaskPolicy creates a new task access policy
func NewTaskPolicy(employees domain.EmployeeRepository, logger *slog.Logger) *TaskPolicy {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskPolicy{
		employees: employees,
		logger:    logger,
	}
}

// CanManageTasks decides whether the principal may create or (re)assign
// tasks touching the given employees. Admins always may. A manager may only
// when every target id resolves to an employee they supervise; if even one
// id falls outside the team (or does not exist) the whole check fails, so
// partial assignment is impossible. A manager with no targets passes (the
// unscoped case, e.g. initiating a create before assignment validation).
// Employees never manage tasks.
func (p *TaskPolicy) CanManageTasks(ctx context.Context, principal domain.Principal, targetEmployeeIDs []string) (bool, error) {
	if principal.Role == domain.RoleAdmin {
		return true, nil
	}

	if principal.Role != domain.RoleManager {
		return false, nil
	}

	if len(targetEmployeeIDs) == 0 {
		return true, nil
	}

	count, err := p.employees.CountSupervised(ctx, principal.ID, targetEmployeeIDs)
	if err != nil {
		return false, err
	}

	if count != len(targetEmployeeIDs) {
		p.logger.Warn("manager attempted to assign outside their team",
			slog.String("manager_id", principal.ID),
			slog.Int("requested", len(targetEmployeeIDs)),
			slog.Int("supervised", count),
		)
		return false, nil
	}

	return true, nil
}

// CanViewTask decides whether the principal may see (and therefore update)
// the task. The most specific grant wins: creators and assignees always see
// their own tasks regardless of role; admins see everything; a manager sees
// any task with at least one of their team among the assignees.
func (p *TaskPolicy) CanViewTask(ctx context.Context, principal domain.Principal, task *domain.Task) (bool, error) {
	if principal.Role == domain.RoleAdmin {
		return true, nil
	}
	if task.ManagerID == principal.ID {
		return true, nil
	}
	if task.AssignedTo(principal.ID) {
		return true, nil
	}

	if principal.Role == domain.RoleManager {
		count, err := p.employees.CountSupervised(ctx, principal.ID, task.AssignedEmployeeIDs)
		if err != nil {
			return false, err
		}
		return count > 0, nil
	}

	return false, nil
}

// EmployeeForbiddenFields names every field in the patch an employee
// principal is not allowed to touch. Employees may only move a task's
// status; anything else present in the payload makes the whole update fail.
func EmployeeForbiddenFields(patch domain.TaskPatch) []string {
	var fields []string
	if patch.Title != nil {
		fields = append(fields, "title")
	}
	if patch.Description != nil {
		fields = append(fields, "description")
	}
	if patch.Priority != nil {
		fields = append(fields, "priority")
	}
	if patch.DueDateSet {
		fields = append(fields, "dueDate")
	}
	if patch.AssignedEmployeeIDs != nil {
		fields = append(fields, "assignedEmployeeIds")
	}
	return fields
}
