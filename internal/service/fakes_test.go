package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/teamtask/internal/domain"
)

// In-memory repository fakes shared by the service tests.

type memEmployees struct {
	mu   sync.Mutex
	byID map[string]*domain.Employee
}

func newMemEmployees() *memEmployees {
	return &memEmployees{byID: map[string]*domain.Employee{}}
}

func (m *memEmployees) add(id, managerID string, role domain.Role) *domain.Employee {
	e := &domain.Employee{
		ID:        id,
		Name:      "Employee " + id,
		Email:     id + "@example.com",
		Role:      role,
		ManagerID: managerID,
		CreatedAt: time.Now(),
	}
	m.byID[id] = e
	return e
}

func (m *memEmployees) Create(ctx context.Context, e *domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.byID {
		if strings.EqualFold(existing.Email, e.Email) {
			return domain.E(domain.ErrConflict, "an employee with this email already exists")
		}
	}
	e.CreatedAt = time.Now()
	e.UpdatedAt = e.CreatedAt
	// Store a copy: a real repository persists values, so later mutations of
	// the caller's struct (e.g. the service blanking PasswordHash before
	// returning) must not reach back into the store.
	copied := *e
	m.byID[e.ID] = &copied
	return nil
}

func (m *memEmployees) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.byID[id]; ok {
		return e, nil
	}
	return nil, domain.E(domain.ErrNotFound, "employee not found")
}

func (m *memEmployees) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.byID {
		if strings.EqualFold(e.Email, email) {
			return e, nil
		}
	}
	return nil, domain.E(domain.ErrNotFound, "employee not found")
}

func (m *memEmployees) Update(ctx context.Context, e *domain.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[e.ID]; !ok {
		return domain.E(domain.ErrNotFound, "employee not found")
	}
	e.UpdatedAt = time.Now()
	m.byID[e.ID] = e
	return nil
}

func (m *memEmployees) ListByManager(ctx context.Context, managerID string) ([]*domain.Employee, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Employee
	for _, e := range m.byID {
		if e.ManagerID == managerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEmployees) CountSupervised(ctx context.Context, managerID string, ids []string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, id := range ids {
		if e, ok := m.byID[id]; ok && e.ManagerID == managerID {
			count++
		}
	}
	return count, nil
}

func (m *memEmployees) CountExisting(ctx context.Context, ids []string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found []string
	for _, id := range ids {
		if _, ok := m.byID[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

type memTasks struct {
	mu   sync.Mutex
	byID map[string]*domain.Task
	seq  int
}

func newMemTasks() *memTasks {
	return &memTasks{byID: map[string]*domain.Task{}}
}

func (m *memTasks) Create(ctx context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t.CreatedAt = time.Unix(int64(m.seq), 0)
	t.UpdatedAt = t.CreatedAt
	m.byID[t.ID] = t
	return nil
}

func (m *memTasks) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.byID[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, domain.E(domain.ErrNotFound, "task not found")
}

func (m *memTasks) Update(ctx context.Context, t *domain.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[t.ID]; !ok {
		return domain.E(domain.ErrNotFound, "task not found")
	}
	t.UpdatedAt = time.Now()
	m.byID[t.ID] = t
	return nil
}

func (m *memTasks) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byID[id]; !ok {
		return domain.E(domain.ErrNotFound, "task not found")
	}
	delete(m.byID, id)
	return nil
}

func (m *memTasks) List(ctx context.Context) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.Task
	for _, t := range m.byID {
		out = append(out, t)
	}
	sortNewestFirst(out)
	return out, nil
}

func (m *memTasks) ListVisible(ctx context.Context, creatorID string, assigneeIDs []string) ([]*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	assigned := make(map[string]bool, len(assigneeIDs))
	for _, id := range assigneeIDs {
		assigned[id] = true
	}
	var out []*domain.Task
	for _, t := range m.byID {
		visible := t.ManagerID == creatorID
		for _, id := range t.AssignedEmployeeIDs {
			if assigned[id] {
				visible = true
				break
			}
		}
		if visible {
			out = append(out, t)
		}
	}
	sortNewestFirst(out)
	return out, nil
}

func sortNewestFirst(tasks []*domain.Task) {
	sort.Slice(tasks, func(i, j int) bool {
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})
}

type memInvitations struct {
	mu        sync.Mutex
	byToken   map[string]*domain.Invitation
	employees *memEmployees
}

func newMemInvitations(employees *memEmployees) *memInvitations {
	return &memInvitations{byToken: map[string]*domain.Invitation{}, employees: employees}
}

func (m *memInvitations) Create(ctx context.Context, inv *domain.Invitation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byToken[inv.Token]; ok {
		return domain.E(domain.ErrConflict, "invitation token collision")
	}
	inv.CreatedAt = time.Now()
	m.byToken[inv.Token] = inv
	return nil
}

func (m *memInvitations) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if inv, ok := m.byToken[token]; ok {
		copied := *inv
		return &copied, nil
	}
	return nil, domain.E(domain.ErrNotFound, "invitation not found")
}

func (m *memInvitations) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for token, inv := range m.byToken {
		if inv.Expiry.Before(now) {
			delete(m.byToken, token)
			removed++
		}
	}
	return removed, nil
}

func (m *memInvitations) ConsumeTx(ctx context.Context, token string, employee *domain.Employee) error {
	m.mu.Lock()
	inv, ok := m.byToken[token]
	if !ok {
		m.mu.Unlock()
		return domain.E(domain.ErrNotFound, "invitation not found")
	}
	if inv.Used {
		m.mu.Unlock()
		return domain.E(domain.ErrAlreadyUsed, "this invitation has already been used")
	}
	m.mu.Unlock()

	if err := m.employees.Create(ctx, employee); err != nil {
		return err
	}

	m.mu.Lock()
	inv.Used = true
	m.mu.Unlock()
	return nil
}

type fakeNotifier struct {
	mu    sync.Mutex
	sent  []string
	fail  bool
	roles []domain.Role
}

func (n *fakeNotifier) SendInvitation(ctx context.Context, email, token string, role domain.Role) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return context.DeadlineExceeded
	}
	n.sent = append(n.sent, email)
	n.roles = append(n.roles, role)
	return nil
}
