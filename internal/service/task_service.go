package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/yourorg/teamtask/internal/domain"
	"github.com/yourorg/teamtask/internal/observability/metrics"
	"github.com/yourorg/teamtask/internal/security"
	"github.com/yourorg/teamtask/pkg/cache"
)

// managerSummaryTTL bounds how stale the creator info attached to task
// responses may be. Authorization never reads from this cache.
const managerSummaryTTL = 30 * time.Second

// TaskService orchestrates policy-checked task mutations against the record
// store.
type TaskService struct {
	tasks     domain.TaskRepository
	employees domain.EmployeeRepository
	policy    *security.TaskPolicy
	summaries *cache.Cache
	logger    *slog.Logger
}

// NewTaskService creates a new task service
func NewTaskService(
	tasks domain.TaskRepository,
	employees domain.EmployeeRepository,
	policy *security.TaskPolicy,
	logger *slog.Logger,
) *TaskService {
	if logger == nil {
		logger = slog.Default()
	}
	return &TaskService{
		tasks:     tasks,
		employees: employees,
		policy:    policy,
		summaries: cache.New(),
		logger:    logger,
	}
}

// CreateTaskInput captures a task creation request after JSON decoding.
type CreateTaskInput struct {
	Title               string
	Description         string
	Status              *domain.TaskStatus
	Priority            *domain.TaskPriority
	DueDate             *time.Time
	AssignedEmployeeIDs []string
}

// TaskResult is a task with its creator summary resolved.
type TaskResult struct {
	Task    *domain.Task
	Manager *domain.ManagerSummary
}

// Create validates, policy-checks, and persists a new task.
func (s *TaskService) Create(ctx context.Context, principal domain.Principal, input CreateTaskInput) (*TaskResult, error) {
	if principal.Role == domain.RoleEmployee {
		metrics.ObservePolicyDenial("create", string(principal.Role))
		return nil, domain.E(domain.ErrForbidden, "you don't have permission to create tasks")
	}

	var missing []string
	if input.Title == "" {
		missing = append(missing, "title")
	}
	if len(input.AssignedEmployeeIDs) == 0 {
		missing = append(missing, "assignedEmployeeIds")
	}
	if len(missing) > 0 {
		return nil, domain.EFields(domain.ErrValidation, "missing required fields", missing)
	}

	// The creator must have an employee record to own the task.
	manager, err := s.employees.GetByID(ctx, principal.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.E(domain.ErrNotFound, "manager profile not found for the current user")
		}
		return nil, s.internal(err, "resolve manager")
	}

	ok, err := s.policy.CanManageTasks(ctx, principal, input.AssignedEmployeeIDs)
	if err != nil {
		return nil, s.internal(err, "policy check")
	}
	if !ok {
		metrics.ObservePolicyDenial("create", string(principal.Role))
		return nil, domain.E(domain.ErrForbidden, "you don't have permission to assign tasks to one or more selected employees")
	}

	if err := s.requireAllExist(ctx, input.AssignedEmployeeIDs); err != nil {
		return nil, err
	}

	status := domain.StatusPending
	if input.Status != nil {
		status = *input.Status
	}
	priority := domain.PriorityMedium
	if input.Priority != nil {
		priority = *input.Priority
	}

	task := &domain.Task{
		ID:                  uuid.NewString(),
		Title:               input.Title,
		Description:         input.Description,
		Status:              status,
		Priority:            priority,
		DueDate:             input.DueDate,
		ManagerID:           manager.ID,
		AssignedEmployeeIDs: input.AssignedEmployeeIDs,
	}

	if err := s.tasks.Create(ctx, task); err != nil {
		metrics.ObserveTaskMutation("create", "error")
		return nil, s.internal(err, "create task")
	}

	metrics.ObserveTaskMutation("create", "success")
	s.logger.Info("task created",
		slog.String("task_id", task.ID),
		slog.String("manager_id", manager.ID),
		slog.Int("assignees", len(task.AssignedEmployeeIDs)),
	)

	return s.withManager(ctx, task), nil
}

// Update applies a patch to a task, enforcing field-level restrictions by
// role. Employees may only move status; managers re-prove team scope when
// reassigning.
func (s *TaskService) Update(ctx context.Context, principal domain.Principal, taskID string, patch domain.TaskPatch) (*TaskResult, error) {
	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, s.internal(err, "get task")
	}

	ok, err := s.policy.CanViewTask(ctx, principal, task)
	if err != nil {
		return nil, s.internal(err, "policy check")
	}
	if !ok {
		metrics.ObservePolicyDenial("update", string(principal.Role))
		return nil, domain.E(domain.ErrForbidden, "you don't have permission to update this task")
	}

	if principal.Role == domain.RoleEmployee {
		if fields := security.EmployeeForbiddenFields(patch); len(fields) > 0 {
			metrics.ObservePolicyDenial("update", string(principal.Role))
			return nil, domain.EFields(domain.ErrForbidden, "employees can only update the task status; invalid fields", fields)
		}
		if patch.Status != nil {
			task.Status = *patch.Status
		}
	} else {
		if len(patch.AssignedEmployeeIDs) > 0 {
			ok, err := s.policy.CanManageTasks(ctx, principal, patch.AssignedEmployeeIDs)
			if err != nil {
				return nil, s.internal(err, "policy check")
			}
			if !ok {
				metrics.ObservePolicyDenial("update", string(principal.Role))
				return nil, domain.E(domain.ErrForbidden, "you don't have permission to assign tasks to one or more selected employees")
			}
			if err := s.requireAllExist(ctx, patch.AssignedEmployeeIDs); err != nil {
				return nil, err
			}
			task.AssignedEmployeeIDs = patch.AssignedEmployeeIDs
		}
		if patch.Title != nil {
			if *patch.Title == "" {
				return nil, domain.EFields(domain.ErrValidation, "missing required fields", []string{"title"})
			}
			task.Title = *patch.Title
		}
		if patch.Description != nil {
			task.Description = *patch.Description
		}
		if patch.Status != nil {
			task.Status = *patch.Status
		}
		if patch.Priority != nil {
			task.Priority = *patch.Priority
		}
		// Tri-state due date: present-and-null clears, absent keeps.
		if patch.DueDateSet {
			task.DueDate = patch.DueDate
		}
	}

	if err := s.tasks.Update(ctx, task); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		metrics.ObserveTaskMutation("update", "error")
		return nil, s.internal(err, "update task")
	}

	metrics.ObserveTaskMutation("update", "success")
	return s.withManager(ctx, task), nil
}

// Delete removes a task. Only the creating manager or an admin may delete.
func (s *TaskService) Delete(ctx context.Context, principal domain.Principal, taskID string) error {
	if principal.Role == domain.RoleEmployee {
		metrics.ObservePolicyDenial("delete", string(principal.Role))
		return domain.E(domain.ErrForbidden, "employees do not have permission to delete tasks")
	}

	task, err := s.tasks.GetByID(ctx, taskID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return s.internal(err, "get task")
	}

	if task.ManagerID != principal.ID && principal.Role != domain.RoleAdmin {
		metrics.ObservePolicyDenial("delete", string(principal.Role))
		return domain.E(domain.ErrForbidden, "only the task creator or an admin can delete tasks")
	}

	if err := s.tasks.Delete(ctx, taskID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		metrics.ObserveTaskMutation("delete", "error")
		return s.internal(err, "delete task")
	}

	metrics.ObserveTaskMutation("delete", "success")
	s.logger.Info("task deleted",
		slog.String("task_id", taskID),
		slog.String("principal_id", principal.ID),
	)
	return nil
}

// List returns the tasks visible to the principal, newest first. Admins see
// everything; managers see what they created plus anything assigned to their
// team; employees see what they created or are assigned to.
func (s *TaskService) List(ctx context.Context, principal domain.Principal) ([]*TaskResult, error) {
	var tasks []*domain.Task
	var err error

	switch principal.Role {
	case domain.RoleAdmin:
		tasks, err = s.tasks.List(ctx)
	case domain.RoleManager:
		team, teamErr := s.employees.ListByManager(ctx, principal.ID)
		if teamErr != nil {
			return nil, s.internal(teamErr, "resolve team")
		}
		teamIDs := make([]string, 0, len(team))
		for _, e := range team {
			teamIDs = append(teamIDs, e.ID)
		}
		tasks, err = s.tasks.ListVisible(ctx, principal.ID, teamIDs)
	default:
		tasks, err = s.tasks.ListVisible(ctx, principal.ID, []string{principal.ID})
	}
	if err != nil {
		return nil, s.internal(err, "list tasks")
	}

	results := make([]*TaskResult, 0, len(tasks))
	for _, task := range tasks {
		results = append(results, s.withManager(ctx, task))
	}
	return results, nil
}

// requireAllExist fails with NotFound naming every id that does not resolve
// to an employee.
func (s *TaskService) requireAllExist(ctx context.Context, ids []string) error {
	found, err := s.employees.CountExisting(ctx, ids)
	if err != nil {
		return s.internal(err, "resolve assignees")
	}
	if len(found) != len(ids) {
		exists := make(map[string]bool, len(found))
		for _, id := range found {
			exists[id] = true
		}
		var missing []string
		for _, id := range ids {
			if !exists[id] {
				missing = append(missing, id)
			}
		}
		return domain.EFields(domain.ErrNotFound, "one or more assigned employees not found", missing)
	}
	return nil
}

// withManager attaches the creator summary, served from a short-lived cache.
func (s *TaskService) withManager(ctx context.Context, task *domain.Task) *TaskResult {
	result := &TaskResult{Task: task}

	key := "manager:" + task.ManagerID
	if cached, ok := s.summaries.Get(key); ok {
		result.Manager = cached.(*domain.ManagerSummary)
		return result
	}

	manager, err := s.employees.GetByID(ctx, task.ManagerID)
	if err != nil {
		// Display data only; the task itself is still returned.
		s.logger.Warn("failed to resolve task manager",
			slog.String("task_id", task.ID),
			slog.String("manager_id", task.ManagerID),
			slog.String("error", err.Error()),
		)
		return result
	}

	summary := &domain.ManagerSummary{ID: manager.ID, Name: manager.Name, Email: manager.Email}
	s.summaries.Set(key, summary, managerSummaryTTL)
	result.Manager = summary
	return result
}

// internal logs the store-level detail for operators and returns an opaque
// InternalError to the caller.
func (s *TaskService) internal(err error, op string) error {
	s.logger.Error("task service failure",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return domain.E(domain.ErrInternal, fmt.Sprintf("internal error during %s", op))
}
