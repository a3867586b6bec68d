package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/teamtask/internal/domain"
	"github.com/yourorg/teamtask/internal/security/middleware"
	"github.com/yourorg/teamtask/internal/service"
)

// TaskResponse is the task wire shape. DueDate serializes as null when the
// task has none; Manager is the creator summary when it could be resolved.
type TaskResponse struct {
	ID                  string                 `json:"id"`
	Title               string                 `json:"title"`
	Description         string                 `json:"description"`
	Status              string                 `json:"status"`
	Priority            string                 `json:"priority"`
	DueDate             *time.Time             `json:"dueDate"`
	ManagerID           string                 `json:"managerId"`
	AssignedEmployeeIDs []string               `json:"assignedEmployeeIds"`
	Manager             *domain.ManagerSummary `json:"manager,omitempty"`
	CreatedAt           time.Time              `json:"createdAt"`
	UpdatedAt           time.Time              `json:"updatedAt"`
}

func taskResponse(result *service.TaskResult) TaskResponse {
	t := result.Task
	return TaskResponse{
		ID:                  t.ID,
		Title:               t.Title,
		Description:         t.Description,
		Status:              string(t.Status),
		Priority:            string(t.Priority),
		DueDate:             t.DueDate,
		ManagerID:           t.ManagerID,
		AssignedEmployeeIDs: t.AssignedEmployeeIDs,
		Manager:             result.Manager,
		CreatedAt:           t.CreatedAt,
		UpdatedAt:           t.UpdatedAt,
	}
}

// CreateTaskRequest represents a task creation request.
type CreateTaskRequest struct {
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Status              string     `json:"status"`
	Priority            string     `json:"priority"`
	DueDate             *time.Time `json:"dueDate"`
	AssignedEmployeeIDs []string   `json:"assignedEmployeeIds"`
}

// UpdateTaskRequest represents a partial task update. DueDate uses a raw
// payload so that an explicit null (clear the date) is distinguishable from
// the key being absent (keep it).
type UpdateTaskRequest struct {
	Title               *string         `json:"title"`
	Description         *string         `json:"description"`
	Status              *string         `json:"status"`
	Priority            *string         `json:"priority"`
	DueDate             json.RawMessage `json:"dueDate"`
	AssignedEmployeeIDs []string        `json:"assignedEmployeeIds"`
}

// TasksHandler handles the task collection: list and create.
type TasksHandler struct {
	taskService *service.TaskService
	logger      *slog.Logger
}

// NewTasksHandler creates a new tasks handler
func NewTasksHandler(taskService *service.TaskService, logger *slog.Logger) *TasksHandler {
	return &TasksHandler{taskService: taskService, logger: logger}
}

// ServeHTTP handles GET and POST /api/tasks requests
func (h *TasksHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.E(domain.ErrUnauthenticated, "authentication required"))
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.list(w, r, principal)
	case http.MethodPost:
		h.create(w, r, principal)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TasksHandler) list(w http.ResponseWriter, r *http.Request, principal domain.Principal) {
	results, err := h.taskService.List(r.Context(), principal)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	out := make([]TaskResponse, 0, len(results))
	for _, result := range results {
		out = append(out, taskResponse(result))
	}
	writeJSON(w, h.logger, http.StatusOK, out)
}

func (h *TasksHandler) create(w http.ResponseWriter, r *http.Request, principal domain.Principal) {
	var req CreateTaskRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	input := service.CreateTaskInput{
		Title:               req.Title,
		Description:         req.Description,
		DueDate:             req.DueDate,
		AssignedEmployeeIDs: req.AssignedEmployeeIDs,
	}
	if req.Status != "" {
		status, ok := domain.ParseTaskStatus(req.Status)
		if !ok {
			writeError(w, h.logger, domain.EFields(domain.ErrValidation, "invalid task status", []string{"status"}))
			return
		}
		input.Status = &status
	}
	if req.Priority != "" {
		priority, ok := domain.ParseTaskPriority(req.Priority)
		if !ok {
			writeError(w, h.logger, domain.EFields(domain.ErrValidation, "invalid task priority", []string{"priority"}))
			return
		}
		input.Priority = &priority
	}

	result, err := h.taskService.Create(r.Context(), principal, input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusCreated, taskResponse(result))
}

// TaskItemHandler handles a single task: update and delete.
type TaskItemHandler struct {
	taskService *service.TaskService
	logger      *slog.Logger
}

// NewTaskItemHandler creates a new task item handler
func NewTaskItemHandler(taskService *service.TaskService, logger *slog.Logger) *TaskItemHandler {
	return &TaskItemHandler{taskService: taskService, logger: logger}
}

// ServeHTTP handles PUT and DELETE /api/tasks/{id} requests
func (h *TaskItemHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, ok := middleware.GetPrincipalFromContext(r.Context())
	if !ok {
		writeError(w, h.logger, domain.E(domain.ErrUnauthenticated, "authentication required"))
		return
	}

	taskID := r.PathValue("id")
	if taskID == "" {
		writeError(w, h.logger, domain.EFields(domain.ErrValidation, "missing task id", []string{"id"}))
		return
	}

	switch r.Method {
	case http.MethodPut, http.MethodPatch:
		h.update(w, r, principal, taskID)
	case http.MethodDelete:
		h.delete(w, r, principal, taskID)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *TaskItemHandler) update(w http.ResponseWriter, r *http.Request, principal domain.Principal, taskID string) {
	var req UpdateTaskRequest
	if !decodeJSON(w, r, h.logger, &req) {
		return
	}

	patch := domain.TaskPatch{
		Title:               req.Title,
		Description:         req.Description,
		AssignedEmployeeIDs: req.AssignedEmployeeIDs,
	}
	if req.Status != nil {
		status, ok := domain.ParseTaskStatus(*req.Status)
		if !ok {
			writeError(w, h.logger, domain.EFields(domain.ErrValidation, "invalid task status", []string{"status"}))
			return
		}
		patch.Status = &status
	}
	if req.Priority != nil {
		priority, ok := domain.ParseTaskPriority(*req.Priority)
		if !ok {
			writeError(w, h.logger, domain.EFields(domain.ErrValidation, "invalid task priority", []string{"priority"}))
			return
		}
		patch.Priority = &priority
	}
	if len(req.DueDate) > 0 {
		patch.DueDateSet = true
		if !bytes.Equal(req.DueDate, []byte("null")) {
			var due time.Time
			if err := json.Unmarshal(req.DueDate, &due); err != nil {
				writeError(w, h.logger, domain.EFields(domain.ErrValidation, "invalid due date", []string{"dueDate"}))
				return
			}
			patch.DueDate = &due
		}
	}

	result, err := h.taskService.Update(r.Context(), principal, taskID, patch)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, h.logger, http.StatusOK, taskResponse(result))
}

func (h *TaskItemHandler) delete(w http.ResponseWriter, r *http.Request, principal domain.Principal, taskID string) {
	if err := h.taskService.Delete(r.Context(), principal, taskID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
