package security

import (
	"context"
	"testing"

	"github.com/yourorg/teamtask/internal/domain"
)

type memEmployeeRepo struct {
	byID map[string]*domain.Employee
}

func newMemEmployeeRepo() *memEmployeeRepo {
	return &memEmployeeRepo{byID: map[string]*domain.Employee{}}
}

func (m *memEmployeeRepo) add(id, managerID string, role domain.Role) {
	m.byID[id] = &domain.Employee{ID: id, ManagerID: managerID, Role: role, Email: id + "@example.com"}
}

func (m *memEmployeeRepo) Create(ctx context.Context, e *domain.Employee) error {
	m.byID[e.ID] = e
	return nil
}
func (m *memEmployeeRepo) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	if e, ok := m.byID[id]; ok {
		return e, nil
	}
	return nil, domain.E(domain.ErrNotFound, "employee not found")
}
func (m *memEmployeeRepo) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	for _, e := range m.byID {
		if e.Email == email {
			return e, nil
		}
	}
	return nil, domain.E(domain.ErrNotFound, "employee not found")
}
func (m *memEmployeeRepo) Update(ctx context.Context, e *domain.Employee) error {
	m.byID[e.ID] = e
	return nil
}
func (m *memEmployeeRepo) ListByManager(ctx context.Context, managerID string) ([]*domain.Employee, error) {
	var out []*domain.Employee
	for _, e := range m.byID {
		if e.ManagerID == managerID {
			out = append(out, e)
		}
	}
	return out, nil
}
func (m *memEmployeeRepo) CountSupervised(ctx context.Context, managerID string, ids []string) (int, error) {
	count := 0
	for _, id := range ids {
		if e, ok := m.byID[id]; ok && e.ManagerID == managerID {
			count++
		}
	}
	return count, nil
}
func (m *memEmployeeRepo) CountExisting(ctx context.Context, ids []string) ([]string, error) {
	var found []string
	for _, id := range ids {
		if _, ok := m.byID[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

func TestCanManageTasksAdmin(t *testing.T) {
	policy := NewTaskPolicy(newMemEmployeeRepo(), nil)
	admin := domain.Principal{ID: "a1", Role: domain.RoleAdmin}

	ok, err := policy.CanManageTasks(context.Background(), admin, []string{"nobody"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ok {
		t.Fatalf("admin should always manage tasks")
	}
}

func TestCanManageTasksManagerScoping(t *testing.T) {
	repo := newMemEmployeeRepo()
	repo.add("e1", "m1", domain.RoleEmployee)
	repo.add("e2", "m1", domain.RoleEmployee)
	repo.add("e3", "m2", domain.RoleEmployee)
	policy := NewTaskPolicy(repo, nil)
	manager := domain.Principal{ID: "m1", Role: domain.RoleManager}

	ok, err := policy.CanManageTasks(context.Background(), manager, []string{"e1", "e2"})
	if err != nil || !ok {
		t.Fatalf("manager should manage their own team, ok=%v err=%v", ok, err)
	}

	// Partial overlap must fail entirely, never partially succeed.
	ok, err = policy.CanManageTasks(context.Background(), manager, []string{"e1", "e3"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatalf("partial team overlap must deny the whole check")
	}

	// A non-existent target counts as outside the team.
	ok, _ = policy.CanManageTasks(context.Background(), manager, []string{"e1", "ghost"})
	if ok {
		t.Fatalf("unknown target id must deny the whole check")
	}

	// Unscoped manager operations are allowed.
	ok, _ = policy.CanManageTasks(context.Background(), manager, nil)
	if !ok {
		t.Fatalf("manager with no targets should pass")
	}
}

func TestCanManageTasksEmployee(t *testing.T) {
	repo := newMemEmployeeRepo()
	repo.add("e1", "m1", domain.RoleEmployee)
	policy := NewTaskPolicy(repo, nil)
	employee := domain.Principal{ID: "e1", Role: domain.RoleEmployee}

	ok, _ := policy.CanManageTasks(context.Background(), employee, nil)
	if ok {
		t.Fatalf("employees can never manage tasks")
	}
}

func TestCanViewTask(t *testing.T) {
	repo := newMemEmployeeRepo()
	repo.add("e1", "m1", domain.RoleEmployee)
	repo.add("e2", "m2", domain.RoleEmployee)
	policy := NewTaskPolicy(repo, nil)

	task := &domain.Task{ID: "t1", ManagerID: "m1", AssignedEmployeeIDs: []string{"e1"}}

	cases := []struct {
		name      string
		principal domain.Principal
		want      bool
	}{
		{"admin", domain.Principal{ID: "root", Role: domain.RoleAdmin}, true},
		{"creator", domain.Principal{ID: "m1", Role: domain.RoleManager}, true},
		{"assignee", domain.Principal{ID: "e1", Role: domain.RoleEmployee}, true},
		{"supervising manager", domain.Principal{ID: "m1", Role: domain.RoleManager}, true},
		{"unrelated manager", domain.Principal{ID: "m2", Role: domain.RoleManager}, false},
		{"unrelated employee", domain.Principal{ID: "e2", Role: domain.RoleEmployee}, false},
	}

	for _, tc := range cases {
		got, err := policy.CanViewTask(context.Background(), tc.principal, task)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: want %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestEmployeeForbiddenFields(t *testing.T) {
	title := "x"
	status := domain.StatusInProgress

	patch := domain.TaskPatch{Title: &title, Status: &status, DueDateSet: true}
	fields := EmployeeForbiddenFields(patch)
	if len(fields) != 2 {
		t.Fatalf("expected 2 forbidden fields, got %v", fields)
	}
	want := map[string]bool{"title": true, "dueDate": true}
	for _, f := range fields {
		if !want[f] {
			t.Fatalf("unexpected forbidden field %q", f)
		}
	}

	// Status-only patches are clean.
	if fields := EmployeeForbiddenFields(domain.TaskPatch{Status: &status}); len(fields) != 0 {
		t.Fatalf("status-only patch should have no forbidden fields, got %v", fields)
	}
}

func TestRolePermissions(t *testing.T) {
	authz := NewAuthorizationService(nil)

	if !authz.HasPermission(domain.RoleAdmin, PermInviteManager) {
		t.Fatalf("admin should invite managers")
	}
	if authz.HasPermission(domain.RoleManager, PermInviteManager) {
		t.Fatalf("manager must not invite managers")
	}
	if authz.HasPermission(domain.RoleEmployee, PermCreateTask) {
		t.Fatalf("employee must not create tasks")
	}
	if err := authz.ValidatePermission(domain.RoleEmployee, PermDeleteTask); err == nil {
		t.Fatalf("expected permission error")
	}
}
