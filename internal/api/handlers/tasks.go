package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"gorm.io/gorm"

	"github.com/douglas-germano/advantage-crm-backend/internal/api/dto"
	"github.com/douglas-germano/advantage-crm-backend/internal/api/middleware"
	"github.com/douglas-germano/advantage-crm-backend/internal/database/models"
	"github.com/douglas-germano/advantage-crm-backend/internal/tasks"
)

type TaskHandler struct {
	db          *gorm.DB
	asynqClient *asynq.Client
}

func NewTaskHandler(db *gorm.DB, asynqClient *asynq.Client) *TaskHandler {
	return &TaskHandler{db: db, asynqClient: asynqClient}
}

// CreateTaskRequest represents the request to create a task
type CreateTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	TaskType    string     `json:"task_type,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	EntityType  string     `json:"entity_type,omitempty"`
	EntityID    string     `json:"entity_id,omitempty"`
	AssignedTo  string     `json:"assigned_to,omitempty"`
}

func (r CreateTaskRequest) Validate() map[string]string {
	errs := make(map[string]string)
	if r.Title == "" {
		errs["title"] = "Title is required"
	}
	if r.Priority != "" && !models.ValidTaskPriority(r.Priority) {
		errs["priority"] = "Invalid priority"
	}
	if (r.EntityType == "") != (r.EntityID == "") {
		errs["entity"] = "Entity type and ID must be provided together"
	}
	if r.EntityType != "" && !models.EntityType(r.EntityType).Valid() {
		errs["entity_type"] = "Invalid entity type"
	}
	if r.EntityID != "" {
		if _, err := uuid.Parse(r.EntityID); err != nil {
			errs["entity_id"] = "Invalid entity ID format"
		}
	}
	if r.AssignedTo != "" {
		if _, err := uuid.Parse(r.AssignedTo); err != nil {
			errs["assigned_to"] = "Invalid user ID format"
		}
	}
	return errs
}

// UpdateTaskRequest represents the request to update a task
type UpdateTaskRequest struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      *string    `json:"status,omitempty"`
	Priority    *string    `json:"priority,omitempty"`
	TaskType    *string    `json:"task_type,omitempty"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	AssignedTo  *string    `json:"assigned_to,omitempty"`
}

// List handles GET /api/tasks
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	pagination := dto.ParsePagination(r.URL.Query())

	query := h.db.Model(&models.Task{})

	if status := r.URL.Query().Get("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if priority := r.URL.Query().Get("priority"); priority != "" {
		query = query.Where("priority = ?", priority)
	}
	if assignedTo := r.URL.Query().Get("assigned_to"); assignedTo != "" {
		query = query.Where("assigned_to = ?", assignedTo)
	}
	if taskType := r.URL.Query().Get("task_type"); taskType != "" {
		query = query.Where("task_type = ?", taskType)
	}
	if entityType := r.URL.Query().Get("entity_type"); entityType != "" {
		query = query.Where("entity_type = ?", entityType)
		if entityID := r.URL.Query().Get("entity_id"); entityID != "" {
			query = query.Where("entity_id = ?", entityID)
		}
	}
	if overdue := r.URL.Query().Get("overdue"); overdue == "true" {
		query = query.Where("due_date < ? AND status IN ?", time.Now(),
			[]string{models.TaskStatusPending, models.TaskStatusInProgress})
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to count tasks"})
		return
	}

	var taskList []models.Task
	if err := query.
		Preload("AssignedUser").
		Order("due_date ASC, created_at DESC").
		Offset(pagination.Offset()).
		Limit(pagination.PerPage).
		Find(&taskList).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to list tasks"})
		return
	}

	writeJSON(w, http.StatusOK, dto.NewPaginated(taskList, total, pagination))
}

// Create handles POST /api/tasks
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Validation failed", Details: errs})
		return
	}

	priority := req.Priority
	if priority == "" {
		priority = models.TaskPriorityMedium
	}

	task := models.Task{
		Title:       req.Title,
		Description: req.Description,
		Status:      models.TaskStatusPending,
		Priority:    priority,
		TaskType:    req.TaskType,
		DueDate:     req.DueDate,
		CreatedBy:   middleware.GetUserID(r.Context()),
	}

	if req.EntityType != "" {
		entityID, _ := uuid.Parse(req.EntityID)
		task.EntityRef = models.EntityRef{
			EntityType: models.EntityType(req.EntityType),
			EntityID:   entityID,
		}
		if err := task.EntityRef.Resolve(h.db); err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Referenced entity not found"})
			return
		}
	}

	if req.AssignedTo != "" {
		assigneeID, _ := uuid.Parse(req.AssignedTo)
		var assignee models.User
		if err := h.db.First(&assignee, "id = ?", assigneeID).Error; err != nil {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Assignee not found"})
			return
		}
		task.AssignedTo = &assigneeID
	}

	if err := h.db.Create(&task).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to create task"})
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// Get handles GET /api/tasks/:id
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid task ID"})
		return
	}

	var task models.Task
	if err := h.db.
		Preload("AssignedUser").
		Preload("Creator").
		First(&task, "id = ?", taskID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Update handles PUT /api/tasks/:id
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid task ID"})
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid request body"})
		return
	}

	var task models.Task
	if err := h.db.First(&task, "id = ?", taskID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
		return
	}

	if !h.canTouch(r, &task) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	if req.Title != nil && *req.Title != "" {
		task.Title = *req.Title
	}
	if req.Description != nil {
		task.Description = *req.Description
	}
	if req.Status != nil {
		if !models.ValidTaskStatus(*req.Status) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"status": "Invalid status"},
			})
			return
		}
		task.Status = *req.Status
		if task.Status == models.TaskStatusCompleted && task.CompletedAt == nil {
			now := time.Now()
			task.CompletedAt = &now
		}
		if task.Status != models.TaskStatusCompleted {
			task.CompletedAt = nil
		}
	}
	if req.Priority != nil {
		if !models.ValidTaskPriority(*req.Priority) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
				Error:   "Validation failed",
				Details: map[string]string{"priority": "Invalid priority"},
			})
			return
		}
		task.Priority = *req.Priority
	}
	if req.TaskType != nil {
		task.TaskType = *req.TaskType
	}
	if req.DueDate != nil {
		task.DueDate = req.DueDate
	}
	if req.AssignedTo != nil {
		if *req.AssignedTo == "" {
			task.AssignedTo = nil
		} else {
			assigneeID, err := uuid.Parse(*req.AssignedTo)
			if err != nil {
				writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
					Error:   "Validation failed",
					Details: map[string]string{"assigned_to": "Invalid user ID format"},
				})
				return
			}
			task.AssignedTo = &assigneeID
		}
	}

	if err := h.db.Save(&task).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update task"})
		return
	}

	writeJSON(w, http.StatusOK, task)
}

// Delete handles DELETE /api/tasks/:id
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid task ID"})
		return
	}

	var task models.Task
	if err := h.db.First(&task, "id = ?", taskID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
		return
	}

	if !h.canTouch(r, &task) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	if err := h.db.Delete(&task).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to delete task"})
		return
	}

	writeJSON(w, http.StatusOK, dto.SuccessResponse{Message: "Task deleted"})
}

// Complete handles POST /api/tasks/:id/complete
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(t *models.Task) error { return t.Complete() })
}

// Reopen handles POST /api/tasks/:id/reopen
func (h *TaskHandler) Reopen(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(t *models.Task) error { return t.Reopen() })
}

// Cancel handles POST /api/tasks/:id/cancel
func (h *TaskHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, func(t *models.Task) error { return t.Cancel() })
}

func (h *TaskHandler) transition(w http.ResponseWriter, r *http.Request, apply func(*models.Task) error) {
	taskID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid task ID"})
		return
	}

	var task models.Task
	if err := h.db.First(&task, "id = ?", taskID).Error; err != nil {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Error: "Task not found"})
		return
	}

	if !h.canTouch(r, &task) {
		writeJSON(w, http.StatusForbidden, dto.ErrorResponse{Error: "Insufficient permissions"})
		return
	}

	wasCompleted := task.Status == models.TaskStatusCompleted

	if err := apply(&task); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{Error: "Invalid status transition"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update task"})
		return
	}

	if err := h.db.Save(&task).Error; err != nil {
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to update task"})
		return
	}

	if !wasCompleted && task.Status == models.TaskStatusCompleted {
		h.emitEvent(r, models.TriggerTaskCompleted, task.ID)
	}

	writeJSON(w, http.StatusOK, task)
}

// canTouch allows the creator, the assignee and admins to mutate a task.
func (h *TaskHandler) canTouch(r *http.Request, task *models.Task) bool {
	p := principal(r)
	if p.CanManage(task.CreatedBy) {
		return true
	}
	return task.AssignedTo != nil && *task.AssignedTo == p.UserID
}

func (h *TaskHandler) emitEvent(r *http.Request, trigger string, taskID uuid.UUID) {
	if h.asynqClient == nil {
		return
	}
	t, err := tasks.NewWorkflowEventTask(tasks.WorkflowEventPayload{
		TriggerType: trigger,
		EntityType:  string(models.EntityTypeTask),
		EntityID:    taskID,
		ActorID:     middleware.GetUserID(r.Context()),
	})
	if err != nil {
		return
	}
	_, _ = h.asynqClient.Enqueue(t)
}
