package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/yourorg/teamtask/internal/domain"
	"github.com/yourorg/teamtask/internal/security"
)

type taskFixture struct {
	svc       *TaskService
	tasks     *memTasks
	employees *memEmployees

	admin    domain.Principal
	manager  domain.Principal
	manager2 domain.Principal
	employee domain.Principal
}

// newTaskFixture builds two teams: mgr1 supervising emp1 and emp2, mgr2
// supervising emp3.
func newTaskFixture(t *testing.T) *taskFixture {
	t.Helper()

	employees := newMemEmployees()
	employees.add("admin1", "", domain.RoleAdmin)
	employees.add("mgr1", "mgr1", domain.RoleManager)
	employees.add("mgr2", "mgr2", domain.RoleManager)
	employees.add("emp1", "mgr1", domain.RoleEmployee)
	employees.add("emp2", "mgr1", domain.RoleEmployee)
	employees.add("emp3", "mgr2", domain.RoleEmployee)

	tasks := newMemTasks()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := security.NewTaskPolicy(employees, logger)

	return &taskFixture{
		svc:       NewTaskService(tasks, employees, policy, logger),
		tasks:     tasks,
		employees: employees,
		admin:     domain.Principal{ID: "admin1", Role: domain.RoleAdmin},
		manager:   domain.Principal{ID: "mgr1", Role: domain.RoleManager},
		manager2:  domain.Principal{ID: "mgr2", Role: domain.RoleManager},
		employee:  domain.Principal{ID: "emp1", Role: domain.RoleEmployee},
	}
}

func (f *taskFixture) mustCreate(t *testing.T, principal domain.Principal, assignees ...string) *domain.Task {
	t.Helper()
	result, err := f.svc.Create(context.Background(), principal, CreateTaskInput{
		Title:               "quarterly report",
		AssignedEmployeeIDs: assignees,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return result.Task
}

func TestTaskCreateEmployeeForbidden(t *testing.T) {
	f := newTaskFixture(t)

	_, err := f.svc.Create(context.Background(), f.employee, CreateTaskInput{
		Title:               "sneaky",
		AssignedEmployeeIDs: []string{"emp1"},
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestTaskCreateMissingFields(t *testing.T) {
	f := newTaskFixture(t)

	_, err := f.svc.Create(context.Background(), f.manager, CreateTaskInput{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	fields := domain.ErrorFields(err)
	if len(fields) != 2 || fields[0] != "title" || fields[1] != "assignedEmployeeIds" {
		t.Fatalf("expected missing fields [title assignedEmployeeIds], got %v", fields)
	}
}

func TestTaskCreatePartialOverlapDenied(t *testing.T) {
	f := newTaskFixture(t)

	// emp3 belongs to mgr2; one out-of-team id fails the whole request.
	_, err := f.svc.Create(context.Background(), f.manager, CreateTaskInput{
		Title:               "cross-team",
		AssignedEmployeeIDs: []string{"emp1", "emp3"},
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for partial overlap, got %v", err)
	}
}

func TestTaskCreateUnknownAssignee(t *testing.T) {
	f := newTaskFixture(t)

	// Admins skip team scoping, so a ghost id surfaces as NotFound.
	_, err := f.svc.Create(context.Background(), f.admin, CreateTaskInput{
		Title:               "ghost",
		AssignedEmployeeIDs: []string{"emp1", "nope"},
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if fields := domain.ErrorFields(err); len(fields) != 1 || fields[0] != "nope" {
		t.Fatalf("expected missing id [nope], got %v", fields)
	}
}

func TestTaskCreateDefaultsAndManagerSummary(t *testing.T) {
	f := newTaskFixture(t)

	result, err := f.svc.Create(context.Background(), f.manager, CreateTaskInput{
		Title:               "quarterly report",
		AssignedEmployeeIDs: []string{"emp1", "emp2"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if result.Task.Status != domain.StatusPending {
		t.Errorf("expected default status %q, got %q", domain.StatusPending, result.Task.Status)
	}
	if result.Task.Priority != domain.PriorityMedium {
		t.Errorf("expected default priority %q, got %q", domain.PriorityMedium, result.Task.Priority)
	}
	if result.Task.DueDate != nil {
		t.Errorf("expected nil due date, got %v", result.Task.DueDate)
	}
	if result.Manager == nil || result.Manager.ID != "mgr1" {
		t.Errorf("expected manager summary for mgr1, got %+v", result.Manager)
	}
	if result.Manager != nil && result.Manager.Email == "" {
		t.Error("expected manager summary to carry email")
	}
}

func TestTaskUpdateEmployeeStatusOnly(t *testing.T) {
	f := newTaskFixture(t)
	task := f.mustCreate(t, f.manager, "emp1")

	status := domain.StatusInProgress
	result, err := f.svc.Update(context.Background(), f.employee, task.ID, domain.TaskPatch{Status: &status})
	if err != nil {
		t.Fatalf("status-only update failed: %v", err)
	}
	if result.Task.Status != domain.StatusInProgress {
		t.Fatalf("expected status %q, got %q", domain.StatusInProgress, result.Task.Status)
	}
}

func TestTaskUpdateEmployeeForbiddenFieldsNamed(t *testing.T) {
	f := newTaskFixture(t)
	task := f.mustCreate(t, f.manager, "emp1")

	title := "renamed"
	status := domain.StatusCompleted
	_, err := f.svc.Update(context.Background(), f.employee, task.ID, domain.TaskPatch{
		Title:  &title,
		Status: &status,
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	fields := domain.ErrorFields(err)
	if len(fields) != 1 || fields[0] != "title" {
		t.Fatalf("expected forbidden fields [title], got %v", fields)
	}

	// The whole patch must be rejected: the status change did not land.
	stored, err := f.tasks.GetByID(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if stored.Status != domain.StatusPending {
		t.Fatalf("expected status untouched, got %q", stored.Status)
	}
}

func TestTaskUpdateUnassignedEmployeeForbidden(t *testing.T) {
	f := newTaskFixture(t)
	task := f.mustCreate(t, f.manager, "emp2")

	status := domain.StatusCompleted
	_, err := f.svc.Update(context.Background(), f.employee, task.ID, domain.TaskPatch{Status: &status})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-assignee, got %v", err)
	}
}

func TestTaskUpdateDueDateTriState(t *testing.T) {
	f := newTaskFixture(t)
	due := time.Now().Add(48 * time.Hour).UTC()

	result, err := f.svc.Create(context.Background(), f.manager, CreateTaskInput{
		Title:               "with deadline",
		DueDate:             &due,
		AssignedEmployeeIDs: []string{"emp1"},
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	taskID := result.Task.ID

	// Patch without touching dueDate keeps it.
	desc := "updated"
	result, err = f.svc.Update(context.Background(), f.manager, taskID, domain.TaskPatch{Description: &desc})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if result.Task.DueDate == nil || !result.Task.DueDate.Equal(due) {
		t.Fatalf("expected due date preserved, got %v", result.Task.DueDate)
	}

	// Explicit null clears it.
	result, err = f.svc.Update(context.Background(), f.manager, taskID, domain.TaskPatch{DueDateSet: true})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if result.Task.DueDate != nil {
		t.Fatalf("expected due date cleared, got %v", result.Task.DueDate)
	}
}

func TestTaskUpdateReassignOutsideTeamDenied(t *testing.T) {
	f := newTaskFixture(t)
	task := f.mustCreate(t, f.manager, "emp1")

	_, err := f.svc.Update(context.Background(), f.manager, task.ID, domain.TaskPatch{
		AssignedEmployeeIDs: []string{"emp3"},
	})
	if !errors.Is(err, domain.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestTaskUpdateNotFound(t *testing.T) {
	f := newTaskFixture(t)

	_, err := f.svc.Update(context.Background(), f.manager, "missing", domain.TaskPatch{})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskDelete(t *testing.T) {
	f := newTaskFixture(t)

	t.Run("employee forbidden", func(t *testing.T) {
		task := f.mustCreate(t, f.manager, "emp1")
		err := f.svc.Delete(context.Background(), f.employee, task.ID)
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("non-creator manager forbidden", func(t *testing.T) {
		task := f.mustCreate(t, f.manager, "emp1")
		err := f.svc.Delete(context.Background(), f.manager2, task.ID)
		if !errors.Is(err, domain.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("creator deletes", func(t *testing.T) {
		task := f.mustCreate(t, f.manager, "emp1")
		if err := f.svc.Delete(context.Background(), f.manager, task.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := f.tasks.GetByID(context.Background(), task.ID); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected task gone, got %v", err)
		}
	})

	t.Run("admin deletes any", func(t *testing.T) {
		task := f.mustCreate(t, f.manager, "emp1")
		if err := f.svc.Delete(context.Background(), f.admin, task.ID); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
	})

	t.Run("unknown task", func(t *testing.T) {
		err := f.svc.Delete(context.Background(), f.manager, "missing")
		if !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})
}

func TestTaskListVisibility(t *testing.T) {
	f := newTaskFixture(t)

	mine := f.mustCreate(t, f.manager, "emp1")
	theirs := f.mustCreate(t, f.manager2, "emp3")

	ids := func(results []*TaskResult) map[string]bool {
		out := map[string]bool{}
		for _, r := range results {
			out[r.Task.ID] = true
		}
		return out
	}

	adminTasks, err := f.svc.List(context.Background(), f.admin)
	if err != nil {
		t.Fatalf("admin List failed: %v", err)
	}
	if got := ids(adminTasks); !got[mine.ID] || !got[theirs.ID] {
		t.Fatalf("admin should see all tasks, got %v", got)
	}

	managerTasks, err := f.svc.List(context.Background(), f.manager)
	if err != nil {
		t.Fatalf("manager List failed: %v", err)
	}
	if got := ids(managerTasks); !got[mine.ID] || got[theirs.ID] {
		t.Fatalf("manager should see only team tasks, got %v", got)
	}

	employeeTasks, err := f.svc.List(context.Background(), f.employee)
	if err != nil {
		t.Fatalf("employee List failed: %v", err)
	}
	if got := ids(employeeTasks); !got[mine.ID] || got[theirs.ID] {
		t.Fatalf("employee should see only assigned tasks, got %v", got)
	}
}

func TestTaskListNewestFirst(t *testing.T) {
	f := newTaskFixture(t)

	first := f.mustCreate(t, f.manager, "emp1")
	second := f.mustCreate(t, f.manager, "emp1")

	results, err := f.svc.List(context.Background(), f.manager)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(results))
	}
	if results[0].Task.ID != second.ID || results[1].Task.ID != first.ID {
		t.Fatal("expected newest task first")
	}
}
