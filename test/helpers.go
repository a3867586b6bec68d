package test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/yourorg/teamtask/internal/domain"
	"github.com/yourorg/teamtask/internal/handler"
	"github.com/yourorg/teamtask/internal/security"
	"github.com/yourorg/teamtask/internal/security/auth"
	"github.com/yourorg/teamtask/internal/security/middleware"
	"github.com/yourorg/teamtask/internal/service"
	"golang.org/x/crypto/bcrypt"
)

// TestServerHelper runs the full HTTP surface against in-memory stores.
type TestServerHelper struct {
	Server    *httptest.Server
	Logger    *slog.Logger
	Employees *EmployeeStore
	Notifier  *CapturingNotifier
}

const (
	AdminEmail    = "admin@example.com"
	AdminPassword = "admin-password"
)

// NewTestServer wires repositories, services, handlers, and the JWT
// middleware the way cmd/server does, seeded with one admin account.
func NewTestServer(t *testing.T) *TestServerHelper {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	employees := NewEmployeeStore()
	tasks := newTaskStore()
	invitations := newInvitationStore(employees)
	notifier := &CapturingNotifier{}

	hash, err := bcrypt.GenerateFromPassword([]byte(AdminPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash admin password: %v", err)
	}
	employees.seed(&domain.Employee{
		ID:           "admin-1",
		Name:         "Admin",
		Email:        AdminEmail,
		PasswordHash: string(hash),
		Role:         domain.RoleAdmin,
		UserID:       "admin-1",
	})

	policy := security.NewTaskPolicy(employees, logger)
	authz := security.NewAuthorizationService(logger)
	tokenManager := auth.NewTokenManager("integration-test-secret", "teamtask-test")

	taskService := service.NewTaskService(tasks, employees, policy, logger)
	invitationService := service.NewInvitationService(invitations, employees, notifier, logger)
	authService := service.NewAuthService(employees, tokenManager, logger)

	mux := http.NewServeMux()
	mux.Handle("POST /api/login", handler.NewLoginHandler(authService, logger))
	mux.Handle("POST /api/auth/password", handler.NewChangePasswordHandler(authService, logger))
	mux.Handle("POST /api/register", handler.NewRegisterHandler(invitationService, logger))
	mux.Handle("GET /api/invitations/verify", handler.NewVerifyHandler(invitationService, logger))
	tasksHandler := handler.NewTasksHandler(taskService, logger)
	mux.Handle("GET /api/tasks", tasksHandler)
	mux.Handle("POST /api/tasks", tasksHandler)
	taskItemHandler := handler.NewTaskItemHandler(taskService, logger)
	mux.Handle("PUT /api/tasks/{id}", taskItemHandler)
	mux.Handle("DELETE /api/tasks/{id}", taskItemHandler)
	mux.Handle("GET /api/team/employees", handler.NewTeamHandler(employees, authz, logger))
	mux.Handle("POST /api/team/invitations", handler.NewInviteHandler(invitationService, employees, authz, logger))
	mux.Handle("POST /api/team/invitations/manager", handler.NewManagerInviteHandler(invitationService, employees, authz, logger))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	root := middleware.JWTMiddleware(tokenManager, logger)(mux)
	server := httptest.NewServer(root)

	return &TestServerHelper{
		Server:    server,
		Logger:    logger,
		Employees: employees,
		Notifier:  notifier,
	}
}

func (h *TestServerHelper) Close() {
	h.Server.Close()
}

func (h *TestServerHelper) URL() string {
	return h.Server.URL
}

// Login returns a bearer token for the given credentials.
func (h *TestServerHelper) Login(t *testing.T, email, password string) string {
	t.Helper()
	body := h.DoJSON(t, "POST", "/api/login", "", map[string]string{
		"email":    email,
		"password": password,
	}, http.StatusOK)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login for %s returned no token: %v", email, body)
	}
	return token
}

// DoJSON sends a JSON request (token optional) and decodes the response
// object after asserting the status code.
func (h *TestServerHelper) DoJSON(t *testing.T, method, path, token string, payload any, wantStatus int) map[string]any {
	t.Helper()
	resp := h.Do(t, method, path, token, payload)
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, path, wantStatus, resp.StatusCode, raw)
	}
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("%s %s: decode response: %v", method, path, err)
	}
	return body
}

// Do sends a JSON request and returns the raw response.
func (h *TestServerHelper) Do(t *testing.T, method, path, token string, payload any) *http.Response {
	t.Helper()
	var reader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, h.URL()+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

// decodeList decodes a JSON array response body.
func decodeList(t *testing.T, resp *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode list response: %v", err)
	}
}

// AssertStatusCode helper function
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Errorf("Expected status %d, got %d", expected, resp.StatusCode)
	}
}

// CapturingNotifier records invitation emails instead of sending them.
type CapturingNotifier struct {
	mu     sync.Mutex
	Tokens []string
	Emails []string
}

func (n *CapturingNotifier) SendInvitation(ctx context.Context, email, token string, role domain.Role) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Emails = append(n.Emails, email)
	n.Tokens = append(n.Tokens, token)
	return nil
}

// LastToken returns the most recently issued invitation token.
func (n *CapturingNotifier) LastToken(t *testing.T) string {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.Tokens) == 0 {
		t.Fatal("no invitation email was captured")
	}
	return n.Tokens[len(n.Tokens)-1]
}

// EmployeeStore is an in-memory domain.EmployeeRepository.
type EmployeeStore struct {
	mu   sync.Mutex
	byID map[string]*domain.Employee
}

func NewEmployeeStore() *EmployeeStore {
	return &EmployeeStore{byID: map[string]*domain.Employee{}}
}

func (s *EmployeeStore) seed(e *domain.Employee) {
	e.CreatedAt = time.Now()
	s.byID[e.ID] = e
}

// SeedEmployee registers an employee with a bcrypt-hashed password and
// returns its id.
func (s *EmployeeStore) SeedEmployee(t *testing.T, name, email, password string, role domain.Role, managerID string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seed(&domain.Employee{
		ID:           id,
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         role,
		UserID:       "admin-1",
		ManagerID:    managerID,
	})
	return id
}

func (s *EmployeeStore) Create(ctx context.Context, e *domain.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if strings.EqualFold(existing.Email, e.Email) {
			return domain.E(domain.ErrConflict, "an employee with this email already exists")
		}
	}
	e.CreatedAt = time.Now()
	// Store a copy: a real repository persists values, so later mutations of
	// the caller's struct (e.g. the service blanking PasswordHash before
	// returning) must not reach back into the store.
	copied := *e
	s.byID[e.ID] = &copied
	return nil
}

func (s *EmployeeStore) GetByID(ctx context.Context, id string) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.byID[id]; ok {
		return e, nil
	}
	return nil, domain.E(domain.ErrNotFound, "employee not found")
}

func (s *EmployeeStore) GetByEmail(ctx context.Context, email string) (*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.byID {
		if strings.EqualFold(e.Email, email) {
			return e, nil
		}
	}
	return nil, domain.E(domain.ErrNotFound, "employee not found")
}

func (s *EmployeeStore) Update(ctx context.Context, e *domain.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[e.ID]; !ok {
		return domain.E(domain.ErrNotFound, "employee not found")
	}
	e.UpdatedAt = time.Now()
	s.byID[e.ID] = e
	return nil
}

func (s *EmployeeStore) ListByManager(ctx context.Context, managerID string) ([]*domain.Employee, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Employee
	for _, e := range s.byID {
		if e.ManagerID == managerID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *EmployeeStore) CountSupervised(ctx context.Context, managerID string, ids []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, id := range ids {
		if e, ok := s.byID[id]; ok && e.ManagerID == managerID {
			count++
		}
	}
	return count, nil
}

func (s *EmployeeStore) CountExisting(ctx context.Context, ids []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []string
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			found = append(found, id)
		}
	}
	return found, nil
}

type taskStore struct {
	mu   sync.Mutex
	byID map[string]*domain.Task
	seq  int
}

func newTaskStore() *taskStore {
	return &taskStore{byID: map[string]*domain.Task{}}
}

func (s *taskStore) Create(ctx context.Context, t *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	t.CreatedAt = time.Unix(int64(s.seq), 0)
	t.UpdatedAt = t.CreatedAt
	s.byID[t.ID] = t
	return nil
}

func (s *taskStore) GetByID(ctx context.Context, id string) (*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.byID[id]; ok {
		copied := *t
		return &copied, nil
	}
	return nil, domain.E(domain.ErrNotFound, "task not found")
}

func (s *taskStore) Update(ctx context.Context, t *domain.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[t.ID]; !ok {
		return domain.E(domain.ErrNotFound, "task not found")
	}
	t.UpdatedAt = time.Now()
	s.byID[t.ID] = t
	return nil
}

func (s *taskStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[id]; !ok {
		return domain.E(domain.ErrNotFound, "task not found")
	}
	delete(s.byID, id)
	return nil
}

func (s *taskStore) List(ctx context.Context) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Task
	for _, t := range s.byID {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *taskStore) ListVisible(ctx context.Context, creatorID string, assigneeIDs []string) ([]*domain.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	assigned := make(map[string]bool, len(assigneeIDs))
	for _, id := range assigneeIDs {
		assigned[id] = true
	}
	var out []*domain.Task
	for _, t := range s.byID {
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
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

type invitationStore struct {
	mu        sync.Mutex
	byToken   map[string]*domain.Invitation
	employees *EmployeeStore
}

func newInvitationStore(employees *EmployeeStore) *invitationStore {
	return &invitationStore{byToken: map[string]*domain.Invitation{}, employees: employees}
}

func (s *invitationStore) Create(ctx context.Context, inv *domain.Invitation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	inv.CreatedAt = time.Now()
	s.byToken[inv.Token] = inv
	return nil
}

func (s *invitationStore) GetByToken(ctx context.Context, token string) (*domain.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if inv, ok := s.byToken[token]; ok {
		copied := *inv
		return &copied, nil
	}
	return nil, domain.E(domain.ErrNotFound, "invitation not found")
}

func (s *invitationStore) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for token, inv := range s.byToken {
		if inv.Expiry.Before(now) {
			delete(s.byToken, token)
			removed++
		}
	}
	return removed, nil
}

func (s *invitationStore) ConsumeTx(ctx context.Context, token string, employee *domain.Employee) error {
	s.mu.Lock()
	inv, ok := s.byToken[token]
	if !ok {
		s.mu.Unlock()
		return domain.E(domain.ErrNotFound, "invitation not found")
	}
	if inv.Used {
		s.mu.Unlock()
		return domain.E(domain.ErrAlreadyUsed, "this invitation has already been used")
	}
	s.mu.Unlock()

	if err := s.employees.Create(ctx, employee); err != nil {
		return err
	}

	s.mu.Lock()
	inv.Used = true
	s.mu.Unlock()
	return nil
}
